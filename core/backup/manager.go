package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

const (
	snapshotPrefix = "bibliotheca_backup_"
	graphFolder    = "graph"
	booksKey       = "books.json"
	exportKey      = "export_manifest.json"
)

// BookLister provides the manifest for export.
type BookLister interface {
	SelectAllBooks(ctx context.Context) ([]*model.Book, error)
}

// ExportManifest describes a snapshot.
type ExportManifest struct {
	ExportedAt time.Time `json:"exported_at"`
	GraphFiles []string  `json:"graph_files"`
	Books      int       `json:"books"`
}

// Manager writes and restores snapshots of the graph store and the
// book manifest.
type Manager struct {
	storage  Storage
	graphDir string
	books    BookLister
	now      func() time.Time
	log      *slog.Logger
}

// NewManager creates a manager. books may be nil to skip the manifest dump.
func NewManager(storage Storage, graphDir string, books BookLister, logger *slog.Logger) (*Manager, error) {
	if storage == nil {
		return nil, helper.NewError("create backup manager", fmt.Errorf("storage is nil"))
	}
	if logger == nil {
		logger = helper.NewLogger("info")
	}
	return &Manager{
		storage:  storage,
		graphDir: graphDir,
		books:    books,
		now:      time.Now,
		log:      logger,
	}, nil
}

// Export writes a timestamped snapshot and returns its prefix.
func (m *Manager) Export(ctx context.Context) (string, error) {
	prefix := snapshotPrefix + m.now().UTC().Format("20060102_150405")
	manifest := ExportManifest{ExportedAt: m.now().UTC(), GraphFiles: []string{}}

	files, err := m.graphFiles()
	if err != nil {
		return "", err
	}
	for _, rel := range files {
		if err := m.putFile(ctx, path.Join(prefix, graphFolder, rel), filepath.Join(m.graphDir, filepath.FromSlash(rel))); err != nil {
			return "", err
		}
		manifest.GraphFiles = append(manifest.GraphFiles, rel)
	}

	if m.books != nil {
		books, err := m.books.SelectAllBooks(ctx)
		if err != nil {
			return "", helper.NewError("select books", err)
		}
		if err := m.putJSON(ctx, path.Join(prefix, booksKey), books); err != nil {
			return "", err
		}
		manifest.Books = len(books)
	}

	if err := m.putJSON(ctx, path.Join(prefix, exportKey), manifest); err != nil {
		return "", err
	}

	m.log.Info("Exported backup", slog.String("prefix", prefix), slog.Int("graph_files", len(files)), slog.Int("books", manifest.Books))
	return prefix, nil
}

// Import restores the graph files of the snapshot prefix into the graph
// directory and returns the restored paths relative to it.
func (m *Manager) Import(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimSuffix(prefix, "/")
	graphPrefix := path.Join(prefix, graphFolder) + "/"

	keys, err := m.storage.List(ctx, graphPrefix)
	if err != nil {
		return nil, helper.NewError("list backup", err)
	}
	if len(keys) == 0 {
		return nil, helper.NewError("import backup", fmt.Errorf("no graph files under %s", prefix))
	}

	var restored []string
	for _, key := range keys {
		rel := strings.TrimPrefix(key, graphPrefix)
		target, err := m.restorePath(rel)
		if err != nil {
			return nil, err
		}
		if err := m.getFile(ctx, key, target); err != nil {
			return nil, err
		}
		restored = append(restored, rel)
	}

	m.log.Info("Imported backup", slog.String("prefix", prefix), slog.Int("graph_files", len(restored)))
	return restored, nil
}

// Manifest reads the export manifest of a snapshot.
func (m *Manager) Manifest(ctx context.Context, prefix string) (*ExportManifest, error) {
	reader, err := m.storage.Get(ctx, path.Join(strings.TrimSuffix(prefix, "/"), exportKey))
	if err != nil {
		return nil, helper.NewError("read export manifest", err)
	}
	defer reader.Close()

	var manifest ExportManifest
	if err := json.NewDecoder(reader).Decode(&manifest); err != nil {
		return nil, helper.NewError("decode export manifest", err)
	}
	return &manifest, nil
}

// Snapshots lists the snapshot prefixes, oldest first.
func (m *Manager) Snapshots(ctx context.Context) ([]string, error) {
	keys, err := m.storage.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, helper.NewError("list backups", err)
	}

	seen := map[string]bool{}
	var snapshots []string
	for _, key := range keys {
		prefix, _, _ := strings.Cut(key, "/")
		if !seen[prefix] {
			seen[prefix] = true
			snapshots = append(snapshots, prefix)
		}
	}
	sort.Strings(snapshots)
	return snapshots, nil
}

// graphFiles returns the json files below the graph directory as slash
// paths. A missing directory has no files.
func (m *Manager) graphFiles() ([]string, error) {
	if _, err := os.Stat(m.graphDir); os.IsNotExist(err) {
		m.log.Warn("Graph directory not found, skipping", slog.String("dir", m.graphDir))
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(m.graphDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(m.graphDir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, helper.NewError("list graph files", err)
	}
	sort.Strings(files)
	return files, nil
}

func (m *Manager) restorePath(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if rel == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", helper.NewError("import backup", fmt.Errorf("invalid graph file %q", rel))
	}
	return filepath.Join(m.graphDir, clean), nil
}

func (m *Manager) putFile(ctx context.Context, key string, source string) error {
	f, err := os.Open(source)
	if err != nil {
		return helper.NewError("open graph file", err)
	}
	defer f.Close()

	if err := m.storage.Put(ctx, key, f); err != nil {
		return helper.NewError("store backup file", err)
	}
	return nil
}

func (m *Manager) putJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return helper.NewError("encode backup", err)
	}
	if err := m.storage.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return helper.NewError("store backup file", err)
	}
	return nil
}

func (m *Manager) getFile(ctx context.Context, key string, target string) error {
	reader, err := m.storage.Get(ctx, key)
	if err != nil {
		return helper.NewError("read backup file", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return helper.NewError("create graph directory", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return helper.NewError("read backup file", err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return helper.NewError("write graph file", err)
	}
	return nil
}
