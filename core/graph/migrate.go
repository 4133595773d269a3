package graph

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kukmin84ai/bibliotheca/helper"
)

// MigrateLegacy moves graph files lying directly in baseDir into
// baseDir/default. Files already present in the target are left alone.
// It returns the names of the moved files.
func MigrateLegacy(baseDir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = helper.NewLogger("info")
	}

	var legacy []string
	for _, name := range []string{EntitiesFile, RelationshipsFile} {
		_, err := os.Stat(filepath.Join(baseDir, name))
		if err == nil {
			legacy = append(legacy, name)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, helper.NewError("stat legacy graph file", err)
		}
	}
	if len(legacy) == 0 {
		return nil, nil
	}

	defaultDir := filepath.Join(baseDir, "default")
	if err := os.MkdirAll(defaultDir, 0o750); err != nil {
		return nil, helper.NewError("create default graph directory", err)
	}

	var moved []string
	for _, name := range legacy {
		target := filepath.Join(defaultDir, name)
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := os.Rename(filepath.Join(baseDir, name), target); err != nil {
			return moved, helper.NewError("migrate legacy graph file", err)
		}
		moved = append(moved, name)
		logger.Info("Migrated legacy graph file", slog.String("file", name), slog.String("to", defaultDir))
	}

	return moved, nil
}
