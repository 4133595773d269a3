package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
)

const (
	EntitiesFile      = "entities.json"
	RelationshipsFile = "relationships.json"
)

// FileStore keeps the graph in memory and persists it as two JSON files
// under <baseDir>/<subject>/ after every mutation.
type FileStore struct {
	mu            sync.RWMutex
	dir           string
	entities      map[string]*model.Entity
	relationships []*model.Relationship
	log           *slog.Logger
}

// NewFileStore opens or creates the graph of subject under baseDir.
// Run MigrateLegacy on baseDir first to pick up root-level files.
func NewFileStore(baseDir string, subject string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = helper.NewLogger("info")
	}
	if subject == "" {
		subject = "default"
	}

	dir := filepath.Join(baseDir, subject)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, helper.NewError("create graph store directory", err)
	}

	store := &FileStore{
		dir:           dir,
		entities:      map[string]*model.Entity{},
		relationships: []*model.Relationship{},
		log:           logger,
	}
	if err := store.load(); err != nil {
		return nil, helper.NewError("load graph store", err)
	}

	return store, nil
}

// Dir returns the directory holding the graph files.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, EntitiesFile))
	if err == nil {
		if err := json.Unmarshal(data, &s.entities); err != nil {
			return fmt.Errorf("decode %s: %w", EntitiesFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	data, err = os.ReadFile(filepath.Join(s.dir, RelationshipsFile))
	if err == nil {
		if err := json.Unmarshal(data, &s.relationships); err != nil {
			return fmt.Errorf("decode %s: %w", RelationshipsFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	for name, entity := range s.entities {
		if entity.Name == "" {
			entity.Name = name
		}
	}

	return nil
}

// commit persists the given state and only then makes it current. It
// must be called with the write lock held.
func (s *FileStore) commit(entities map[string]*model.Entity, relationships []*model.Relationship) error {
	if err := writeJSON(filepath.Join(s.dir, EntitiesFile), entities); err != nil {
		return helper.NewError("save entities", err)
	}
	if err := writeJSON(filepath.Join(s.dir, RelationshipsFile), relationships); err != nil {
		return helper.NewError("save relationships", err)
	}
	s.entities = entities
	s.relationships = relationships
	return nil
}

// copyEntities returns a shallow copy of the entity map.
func (s *FileStore) copyEntities() map[string]*model.Entity {
	entities := make(map[string]*model.Entity, len(s.entities)+1)
	for name, entity := range s.entities {
		entities[name] = entity
	}
	return entities
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) AddEntity(ctx context.Context, entity *model.Entity) error {
	if entity == nil || entity.Name == "" {
		return helper.NewError("add entity", fmt.Errorf("entity name is empty"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entity
	if stored.Properties == nil {
		stored.Properties = model.Metadata{}
	}
	entities := s.copyEntities()
	entities[entity.Name] = &stored
	if err := s.commit(entities, s.relationships); err != nil {
		return err
	}
	s.log.Debug("Added entity", slog.String("name", entity.Name), slog.String("type", entity.Type))

	return nil
}

func (s *FileStore) AddRelationship(ctx context.Context, rel *model.Relationship) error {
	if rel == nil {
		return helper.NewError("add relationship", fmt.Errorf("relationship is nil"))
	}
	if !model.IsKnownRelationshipType(rel.Type) {
		s.log.Warn("Unknown relationship type", slog.String("type", rel.Type))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rel
	if stored.Properties == nil {
		stored.Properties = model.Metadata{}
	}
	rels := make([]*model.Relationship, 0, len(s.relationships)+1)
	rels = append(rels, s.relationships...)

	return s.commit(s.entities, append(rels, &stored))
}

func (s *FileStore) AddTriplets(ctx context.Context, triplets []*model.Triplet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities := s.copyEntities()
	rels := make([]*model.Relationship, 0, len(s.relationships)+len(triplets))
	rels = append(rels, s.relationships...)
	for _, t := range triplets {
		if _, ok := entities[t.Subject]; !ok {
			entities[t.Subject] = conceptFor(t.Subject, t.SourceFile)
		}
		if _, ok := entities[t.Object]; !ok {
			entities[t.Object] = conceptFor(t.Object, t.SourceFile)
		}
		rels = append(rels, relationshipFor(t))
	}

	if err := s.commit(entities, rels); err != nil {
		return err
	}
	s.log.Info("Added triplets to knowledge graph", slog.Int("count", len(triplets)))

	return nil
}

func (s *FileStore) GetEntity(ctx context.Context, name string) (*model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.entities[name], nil
}

func (s *FileStore) SearchEntity(ctx context.Context, name string) (*model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entity, ok := s.entities[name]; ok {
		return entity, nil
	}

	lower := strings.ToLower(name)
	for _, key := range s.sortedNames() {
		if strings.Contains(strings.ToLower(key), lower) {
			return s.entities[key], nil
		}
	}

	return nil, nil
}

func (s *FileStore) sortedNames() []string {
	names := make([]string, 0, len(s.entities))
	for name := range s.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *FileStore) GetRelationships(ctx context.Context, name string, relType string) ([]*model.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rels []*model.Relationship
	for _, rel := range s.relationships {
		if rel.Touches(name) && (relType == "" || rel.Type == relType) {
			rels = append(rels, rel)
		}
	}

	return rels, nil
}

func (s *FileStore) Neighbors(ctx context.Context, name string, depth int) (*model.Neighborhood, error) {
	return neighbors(ctx, s, name, depth)
}

func (s *FileStore) Stats(ctx context.Context) (*model.GraphStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	for _, entity := range s.entities {
		counts[entity.Type]++
	}

	return newStats(len(s.entities), len(s.relationships), counts), nil
}

func (s *FileStore) RemoveEntity(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[name]; !ok {
		return false, nil
	}

	entities := s.copyEntities()
	delete(entities, name)
	kept := make([]*model.Relationship, 0, len(s.relationships))
	for _, rel := range s.relationships {
		if !rel.Touches(name) {
			kept = append(kept, rel)
		}
	}

	if err := s.commit(entities, kept); err != nil {
		return false, err
	}
	s.log.Info("Removed entity", slog.String("name", name))

	return true, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commit(map[string]*model.Entity{}, []*model.Relationship{}); err != nil {
		return err
	}
	s.log.Info("Cleared knowledge graph")

	return nil
}
