package pipeline

import (
	"strings"

	"github.com/kukmin84ai/bibliotheca/model"
)

// HierarchyBuilder groups segments into parent chunks and emits the
// child chunks that point to them.
type HierarchyBuilder struct {
	childSize  int
	parentSize int
	overlap    int
}

// NewHierarchyBuilder creates a builder with the given word budgets.
func NewHierarchyBuilder(childSize int, parentSize int, overlap int) *HierarchyBuilder {
	return &HierarchyBuilder{
		childSize:  childSize,
		parentSize: parentSize,
		overlap:    overlap,
	}
}

// Build returns each parent directly followed by its children. Every
// chunk carries sourceFile, pageNum and the labels of section.
func (b *HierarchyBuilder) Build(segments []string, sourceFile string, pageNum *int, section Section) []*model.Chunk {
	var chunks []*model.Chunk

	for _, group := range b.groupSegments(segments) {
		parent := newChunk(strings.Join(group, " "), sourceFile, pageNum, section)
		parent.IsParent = true
		chunks = append(chunks, parent)

		for _, segment := range group {
			for _, text := range WindowSplit(segment, b.childSize, b.overlap) {
				child := newChunk(text, sourceFile, pageNum, section)
				parentID := parent.ChunkID
				child.ParentID = &parentID
				chunks = append(chunks, child)
			}
		}
	}

	return chunks
}

// groupSegments closes a group before a segment would push its word count
// past the parent budget.
func (b *HierarchyBuilder) groupSegments(segments []string) [][]string {
	var groups [][]string
	var current []string
	words := 0

	for _, segment := range segments {
		n := len(strings.Fields(segment))
		if words+n > b.parentSize && len(current) > 0 {
			groups = append(groups, current)
			current = nil
			words = 0
		}
		current = append(current, segment)
		words += n
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}

func newChunk(text string, sourceFile string, pageNum *int, section Section) *model.Chunk {
	chunk := &model.Chunk{
		ChunkID:    model.NewChunkID(),
		Text:       text,
		SourceFile: sourceFile,
		Chapter:    section.Chapter,
		Section:    section.Section,
	}
	if pageNum != nil {
		page := *pageNum
		chunk.PageNum = &page
	}
	return chunk
}
