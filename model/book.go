package model

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookStatus is the processing state of a manifest entry.
type BookStatus string

const (
	BookStatusPending    BookStatus = "pending"
	BookStatusProcessing BookStatus = "processing"
	BookStatusDone       BookStatus = "done"
	BookStatusError      BookStatus = "error"
	BookStatusEmpty      BookStatus = "empty"
)

// Book is an entry in the manifest of ingested files.
type Book struct {
	ID         uuid.UUID  `json:"id"`
	FilePath   string     `json:"file_path"`
	FileHash   string     `json:"file_hash"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	ISBN       string     `json:"isbn,omitempty"`
	DOI        string     `json:"doi,omitempty"`
	Publisher  string     `json:"publisher,omitempty"`
	Year       *int       `json:"year,omitempty"`
	PageCount  int        `json:"page_count"`
	Language   string     `json:"language,omitempty"`
	Subject    string     `json:"subject,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Status     BookStatus `json:"status"`
	ChunkCount int        `json:"chunk_count"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ProcessingStats counts manifest entries per status.
type ProcessingStats map[BookStatus]int

var (
	libgenSuffix    = regexp.MustCompile(`\s*-\s*libgen\.\w+$`)
	doiSuffix       = regexp.MustCompile(`\s*\[[\d./]+\]$`)
	roleMarker      = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	filenameFormats = []*regexp.Regexp{
		regexp.MustCompile(`^\[(?P<series>[^\]]+)\]\s+(?P<author>.+?)\s+-\s+(?P<title>.+?)\s+\((?P<year>\d{4}),\s*(?P<publisher>[^)]+)\)`),
		regexp.MustCompile(`^(?P<author>.+?)\s+-\s+(?P<title>.+?)\s+\((?P<year>\d{4}),\s*(?P<publisher>[^)]+)\)`),
		regexp.MustCompile(`^(?P<author>.+?)\s+-\s+(?P<title>.+?)\s+\((?P<year>\d{4})\)`),
		regexp.MustCompile(`^(?P<author>[^-]+?)\s+-\s+(?P<title>.+)$`),
	}
)

// NewBookFromFile creates a pending manifest entry for filePath. Title,
// author, year and publisher are parsed from common "Author - Title (Year, Publisher)"
// file names; the bare file name is used as title otherwise.
func NewBookFromFile(filePath string, fileHash string) *Book {
	book := &Book{
		FilePath: filePath,
		FileHash: fileHash,
		Status:   BookStatusPending,
	}

	filename := filepath.Base(filePath)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = libgenSuffix.ReplaceAllString(stem, "")
	stem = doiSuffix.ReplaceAllString(stem, "")

	for _, format := range filenameFormats {
		match := format.FindStringSubmatch(stem)
		if match == nil {
			continue
		}
		for i, name := range format.SubexpNames() {
			value := strings.TrimSpace(match[i])
			switch name {
			case "author":
				book.Author = cleanAuthor(value)
			case "title":
				book.Title = strings.TrimSpace(strings.TrimRight(value, "_"))
			case "publisher":
				book.Publisher = value
			case "year":
				if year, err := strconv.Atoi(value); err == nil {
					book.Year = &year
				}
			}
		}
		break
	}

	if book.Title == "" {
		book.Title = stem
	}

	return book
}

// Metadata returns the book level metadata handed to the chunking engine.
func (b *Book) Metadata() Metadata {
	return Metadata{
		MetadataSourceFile: b.FilePath,
		MetadataBookTitle:  b.Title,
		MetadataAuthor:     b.Author,
		MetadataLanguage:   b.Language,
	}
}

func cleanAuthor(raw string) string {
	var authors []string
	for _, part := range strings.Split(raw, "_") {
		name := strings.TrimSpace(roleMarker.ReplaceAllString(part, " "))
		if name != "" {
			authors = append(authors, name)
		}
	}
	return strings.Join(authors, ", ")
}
