package model

import "strings"

// Relationship types known to the knowledge graph.
const (
	RelationshipProposes        = "PROPOSES"
	RelationshipContradicts     = "CONTRADICTS"
	RelationshipExtends         = "EXTENDS"
	RelationshipPrerequisiteFor = "PREREQUISITE_FOR"
	RelationshipCites           = "CITES"
	RelationshipRelatedTo       = "RELATED_TO"
	RelationshipAuthoredBy      = "AUTHORED_BY"
	RelationshipPublishedIn     = "PUBLISHED_IN"
)

// RelationshipTypes lists the relationship vocabulary.
var RelationshipTypes = []string{
	RelationshipProposes,
	RelationshipContradicts,
	RelationshipExtends,
	RelationshipPrerequisiteFor,
	RelationshipCites,
	RelationshipRelatedTo,
	RelationshipAuthoredBy,
	RelationshipPublishedIn,
}

// Relationship is a typed, directed edge between two entity names.
type Relationship struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Type       string   `json:"relationship_type"`
	Weight     float64  `json:"weight"`
	SourceBook string   `json:"source_book"`
	Properties Metadata `json:"properties"`
}

// NewRelationship creates a relationship with the default weight of 1.
func NewRelationship(source, relType, target, sourceBook string) *Relationship {
	return &Relationship{
		Source:     source,
		Target:     target,
		Type:       relType,
		Weight:     1.0,
		SourceBook: sourceBook,
		Properties: Metadata{},
	}
}

// Touches reports whether name is one of the endpoints.
func (r *Relationship) Touches(name string) bool {
	return r.Source == name || r.Target == name
}

// Other returns the endpoint opposite to name.
func (r *Relationship) Other(name string) string {
	if r.Source == name {
		return r.Target
	}
	return r.Source
}

// IsKnownRelationshipType reports whether relType is part of the vocabulary.
func IsKnownRelationshipType(relType string) bool {
	for _, known := range RelationshipTypes {
		if known == relType {
			return true
		}
	}
	return false
}

// Triplet is a raw (subject, predicate, object) fact extracted from text.
type Triplet struct {
	Subject       string  `json:"subject"`
	Predicate     string  `json:"predicate"`
	Object        string  `json:"object"`
	SourceFile    string  `json:"source_file,omitempty"`
	SourceChunkID string  `json:"source_chunk_id,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// Normalize trims the parts and upper-cases the predicate.
func (t *Triplet) Normalize() {
	t.Subject = strings.TrimSpace(t.Subject)
	t.Object = strings.TrimSpace(t.Object)
	t.Predicate = strings.ToUpper(strings.TrimSpace(t.Predicate))
}

// Valid reports whether all three parts are set.
func (t *Triplet) Valid() bool {
	return t.Subject != "" && t.Predicate != "" && t.Object != ""
}
