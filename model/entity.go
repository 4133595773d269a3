package model

// Entity types known to the knowledge graph.
const (
	EntityTypeConcept      = "Concept"
	EntityTypePerson       = "Person"
	EntityTypeTheory       = "Theory"
	EntityTypeMethod       = "Method"
	EntityTypeOrganization = "Organization"
)

// EntityTypes lists the entity vocabulary in display order.
var EntityTypes = []string{
	EntityTypeConcept,
	EntityTypePerson,
	EntityTypeTheory,
	EntityTypeMethod,
	EntityTypeOrganization,
}

// Entity is a named node of the knowledge graph. Name is its identity.
type Entity struct {
	Name        string   `json:"name"`
	Type        string   `json:"entity_type"`
	Description string   `json:"description"`
	SourceBook  string   `json:"source_book"`
	Properties  Metadata `json:"properties"`
}

// GraphStats summarises a knowledge graph.
type GraphStats struct {
	EntityCount       int            `json:"entity_count"`
	RelationshipCount int            `json:"relationship_count"`
	EntityTypes       map[string]int `json:"entity_types"`
}

// Neighborhood is the part of the graph reachable from an entity.
type Neighborhood struct {
	Entities      []*Entity       `json:"entities"`
	Relationships []*Relationship `json:"relationships"`
}
