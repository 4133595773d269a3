package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a unit of retrievable text. Parent chunks carry the broader
// context, children are the precise retrieval targets.
type Chunk struct {
	ChunkID       string    `json:"chunk_id"`
	Text          string    `json:"text"`
	ParentID      *string   `json:"parent_id,omitempty"`
	SourceFile    string    `json:"source_file"`
	PageNum       *int      `json:"page_num,omitempty"`
	Chapter       string    `json:"chapter"`
	Section       string    `json:"section"`
	IsParent      bool      `json:"is_parent"`
	ContextPrefix string    `json:"context_prefix,omitempty"`
	Metadata      Metadata  `json:"metadata,omitempty"`
	Embedding     []float32 `json:"embedding,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// NewChunkID returns a fresh random chunk identifier.
func NewChunkID() string {
	return uuid.NewString()
}

// EmbeddingText is the text that gets embedded: the context prefix
// followed by the chunk text.
func (c *Chunk) EmbeddingText() string {
	return c.ContextPrefix + c.Text
}

// ParentIDValue returns the parent id or "" for parents.
func (c *Chunk) ParentIDValue() string {
	if c.ParentID == nil {
		return ""
	}
	return *c.ParentID
}

// PageNumValue returns the page number or 0 when unknown.
func (c *Chunk) PageNumValue() int {
	if c.PageNum == nil {
		return 0
	}
	return *c.PageNum
}

// ToRecord flattens the chunk into a vector store record.
func (c *Chunk) ToRecord() *Record {
	return &Record{
		ID:            c.ChunkID,
		Text:          c.Text,
		ParentID:      c.ParentIDValue(),
		IsParent:      c.IsParent,
		SourceFile:    c.SourceFile,
		PageNum:       c.PageNumValue(),
		Chapter:       c.Chapter,
		Section:       c.Section,
		BookTitle:     c.Metadata.String(MetadataBookTitle),
		Author:        c.Metadata.String(MetadataAuthor),
		Language:      c.Metadata.String(MetadataLanguage),
		OCRConfidence: c.Metadata.Float(MetadataOCRConfidence),
		ContextPrefix: c.ContextPrefix,
	}
}
