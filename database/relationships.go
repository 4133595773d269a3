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

// RelationshipsDBHandlerFunctions defines the interface for Relationships database operations.
type RelationshipsDBHandlerFunctions interface {
	InsertRelationship(ctx context.Context, rel *model.Relationship) (int, error)
	SelectRelationships(ctx context.Context, name string, relType string) ([]*model.Relationship, error)
	CountRelationships(ctx context.Context) (int, error)
	DeleteRelationshipsByEntity(ctx context.Context, name string) (int, error)
	DeleteAllRelationships(ctx context.Context) error
}

// RelationshipsDBHandler handles the directed, typed edges between entities.
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// It initializes the database connection and loads relationship-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := sql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the 'relationships' table in the database.
// If the table already exists, it does not create it again.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		log.Panicf("error initializing relationships table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// InsertRelationship appends a relationship and returns its id.
func (h *RelationshipsDBHandler) InsertRelationship(ctx context.Context, rel *model.Relationship) (int, error) {
	var id int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT insert_relationship($1, $2, $3, $4, $5, $6)`,
		rel.Source,
		rel.Target,
		rel.Type,
		rel.Weight,
		rel.SourceBook,
		rel.Properties,
	).Scan(&id)
	if err != nil {
		return 0, helper.NewError("insert relationship", err)
	}
	return id, nil
}

// SelectRelationships returns the relationships where name is source or target
// in insertion order. An empty relType selects all types.
func (h *RelationshipsDBHandler) SelectRelationships(ctx context.Context, name string, relType string) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_relationships($1, $2)`,
		name,
		relType,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var relationships []*model.Relationship
	for rows.Next() {
		rel := &model.Relationship{}
		err := rows.Scan(
			&rel.Source,
			&rel.Target,
			&rel.Type,
			&rel.Weight,
			&rel.SourceBook,
			&rel.Properties,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		relationships = append(relationships, rel)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relationships, nil
}

// CountRelationships returns the number of relationships.
func (h *RelationshipsDBHandler) CountRelationships(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_relationships()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count relationships", err)
	}
	return count, nil
}

// DeleteRelationshipsByEntity removes every relationship touching name.
func (h *RelationshipsDBHandler) DeleteRelationshipsByEntity(ctx context.Context, name string) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT delete_relationships_by_entity($1)`, name).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("delete relationships by entity", err)
	}
	return deleted, nil
}

// DeleteAllRelationships removes every relationship.
func (h *RelationshipsDBHandler) DeleteAllRelationships(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_all_relationships()`)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
