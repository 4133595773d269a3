package pipeline

import (
	"fmt"
	"strings"

	"github.com/kukmin84ai/bibliotheca/model"
)

// ContextPrefix situates a chunk in its book, e.g.
// "From 'Optics' by Hecht in chapter 'Waves' section 'Interference' (page 12). ".
// The author only appears together with a title. Returns "" when nothing is known.
func ContextPrefix(chunk *model.Chunk, metadata model.Metadata) string {
	var parts []string

	if title := metadata.String(model.MetadataBookTitle); title != "" {
		parts = append(parts, fmt.Sprintf("From '%s'", title))
		if author := metadata.String(model.MetadataAuthor); author != "" {
			parts = append(parts, "by "+author)
		}
	}
	if chunk.Chapter != "" {
		parts = append(parts, fmt.Sprintf("in chapter '%s'", chunk.Chapter))
	}
	if chunk.Section != "" {
		parts = append(parts, fmt.Sprintf("section '%s'", chunk.Section))
	}
	if chunk.PageNum != nil {
		parts = append(parts, fmt.Sprintf("(page %d)", *chunk.PageNum))
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + ". "
}
