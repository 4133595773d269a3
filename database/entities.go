package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"github.com/kukmin84ai/bibliotheca/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(ctx context.Context, entity *model.Entity) error
	EnsureEntity(ctx context.Context, name string, entityType string, sourceBook string) error
	SelectEntity(ctx context.Context, name string) (*model.Entity, error)
	SearchEntities(ctx context.Context, term string, limit int) ([]*model.Entity, error)
	SelectEntityTypeCounts(ctx context.Context) (map[string]int, error)
	CountEntities(ctx context.Context) (int, error)
	DeleteEntity(ctx context.Context, name string) (bool, error)
	DeleteAllEntities(ctx context.Context) error
}

// EntitiesDBHandler handles knowledge graph nodes.
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// UpsertEntity adds the entity or replaces the one with the same name.
func (h *EntitiesDBHandler) UpsertEntity(ctx context.Context, entity *model.Entity) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT upsert_entity($1, $2, $3, $4, $5)`,
		entity.Name,
		entity.Type,
		entity.Description,
		entity.SourceBook,
		entity.Properties,
	)
	if err != nil {
		return helper.NewError("upsert entity", err)
	}
	return nil
}

// EnsureEntity creates a bare entity unless the name is already known.
func (h *EntitiesDBHandler) EnsureEntity(ctx context.Context, name string, entityType string, sourceBook string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT ensure_entity($1, $2, $3)`,
		name,
		entityType,
		sourceBook,
	)
	if err != nil {
		return helper.NewError("ensure entity", err)
	}
	return nil
}

// SelectEntity retrieves an entity by exact name, nil when it does not exist.
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, name string) (*model.Entity, error) {
	entities, err := h.queryEntities(ctx, `SELECT * FROM select_entity($1)`, name)
	if err != nil {
		return nil, helper.NewError("select entity", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// SearchEntities returns entities whose name contains term, case-insensitive,
// ordered by name.
func (h *EntitiesDBHandler) SearchEntities(ctx context.Context, term string, limit int) ([]*model.Entity, error) {
	entities, err := h.queryEntities(ctx, `SELECT * FROM search_entities($1, $2)`, term, limit)
	if err != nil {
		return nil, helper.NewError("search entities", err)
	}
	return entities, nil
}

// SelectEntityTypeCounts counts entities per type.
func (h *EntitiesDBHandler) SelectEntityTypeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_entity_type_counts()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var entityType string
		var count int
		err := rows.Scan(&entityType, &count)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		counts[entityType] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return counts, nil
}

// CountEntities returns the number of entities.
func (h *EntitiesDBHandler) CountEntities(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_entities()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count entities", err)
	}
	return count, nil
}

// DeleteEntity deletes an entity by name and reports whether it existed.
func (h *EntitiesDBHandler) DeleteEntity(ctx context.Context, name string) (bool, error) {
	var deleted int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT delete_entity($1)`, name).Scan(&deleted)
	if err != nil {
		return false, helper.NewError("delete entity", err)
	}
	return deleted > 0, nil
}

// DeleteAllEntities removes every entity.
func (h *EntitiesDBHandler) DeleteAllEntities(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_all_entities()`)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func (h *EntitiesDBHandler) queryEntities(ctx context.Context, query string, args ...interface{}) ([]*model.Entity, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := rows.Scan(
			&entity.Name,
			&entity.Type,
			&entity.Description,
			&entity.SourceBook,
			&entity.Properties,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}
