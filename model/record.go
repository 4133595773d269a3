package model

// Record is a raw row returned by a vector store.
// PageNum 0 and ParentID "" mean unset. Lower Distance is more similar.
type Record struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	ParentID      string  `json:"parent_id"`
	IsParent      bool    `json:"is_parent"`
	SourceFile    string  `json:"source_file"`
	PageNum       int     `json:"page_num"`
	Chapter       string  `json:"chapter"`
	Section       string  `json:"section"`
	BookTitle     string  `json:"book_title"`
	Author        string  `json:"author"`
	Language      string  `json:"language"`
	OCRConfidence float64 `json:"ocr_confidence"`
	ContextPrefix string  `json:"context_prefix"`
	Distance      float64 `json:"_distance"`
}

// FilterKeys are the record fields a search can be filtered on.
var FilterKeys = []string{
	MetadataSourceFile,
	MetadataBookTitle,
	MetadataAuthor,
	MetadataLanguage,
	"chapter",
	"section",
	MetadataPageNum,
}

// Matches reports whether the record satisfies every known filter.
// Unknown filter keys are ignored.
func (r *Record) Matches(filters Metadata) bool {
	for key := range filters {
		switch key {
		case MetadataSourceFile:
			if r.SourceFile != filters.String(key) {
				return false
			}
		case MetadataBookTitle:
			if r.BookTitle != filters.String(key) {
				return false
			}
		case MetadataAuthor:
			if r.Author != filters.String(key) {
				return false
			}
		case MetadataLanguage:
			if r.Language != filters.String(key) {
				return false
			}
		case "chapter":
			if r.Chapter != filters.String(key) {
				return false
			}
		case "section":
			if r.Section != filters.String(key) {
				return false
			}
		case MetadataPageNum:
			page, ok := filters.Int(key)
			if !ok || r.PageNum != page {
				return false
			}
		}
	}
	return true
}
