// Package store persists markov model snapshots in a SQLite database, keyed
// by model name. It is the storage collaborator of the generation core: the
// core only sees snapshots, never the database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blatherlabs/blather/pkg/markov"
)

// ErrNotFound is returned when a named model does not exist in the store.
var ErrNotFound = errors.New("store: model not found")

// SetupSchema initializes the necessary tables in the provided database. This
// function should be called once on a new database before any other
// operations are performed. It is idempotent and safe to call on an
// already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS chain_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL
);
`
		schemaNodes = `
CREATE TABLE IF NOT EXISTS chain_nodes (
    model_id INTEGER NOT NULL,
    tail TEXT NOT NULL,
    weight INTEGER NOT NULL,
    is_exit INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (model_id, tail)
);
`
		schemaLinks = `
CREATE TABLE IF NOT EXISTS chain_links (
    model_id INTEGER NOT NULL,
    tail TEXT NOT NULL,
    position INTEGER NOT NULL,
    word TEXT NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, tail, position)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaNodes); err != nil {
		return fmt.Errorf("could not create nodes schema: %w", err)
	}

	if _, err = tx.Exec(schemaLinks); err != nil {
		return fmt.Errorf("could not create links schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// ModelInfo describes one stored model.
type ModelInfo struct {
	Id    int
	Name  string
	Order int
}

// Store reads and writes model snapshots. It holds the database connection
// and prepared SQL statements for the hot paths.
type Store struct {
	db              *sql.DB
	stmtGetModel    *sql.Stmt
	stmtListModels  *sql.Stmt
	stmtInsertModel *sql.Stmt
	stmtGetNodes    *sql.Stmt
	stmtGetLinks    *sql.Stmt
	logger          *slog.Logger
}

// NewStore creates a Store over db. It pre-compiles the statements used by
// Save and Load, returning an error if any preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModel, err := db.Prepare(`SELECT model_id, model_order FROM chain_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtListModels, err := db.Prepare(`SELECT model_id, model_name, model_order FROM chain_models;`)
	if err != nil {
		return nil, err
	}

	stmtInsertModel, err := db.Prepare(`INSERT INTO chain_models (model_name, model_order) VALUES (?, ?) ON CONFLICT(model_name) DO UPDATE SET model_order = excluded.model_order RETURNING model_id;`)
	if err != nil {
		return nil, err
	}

	stmtGetNodes, err := db.Prepare(`SELECT tail, weight, is_exit FROM chain_nodes WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetLinks, err := db.Prepare(`SELECT tail, word, frequency FROM chain_links WHERE model_id = ? ORDER BY tail, position;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:              db,
		stmtGetModel:    stmtGetModel,
		stmtListModels:  stmtListModels,
		stmtInsertModel: stmtInsertModel,
		stmtGetNodes:    stmtGetNodes,
		stmtGetLinks:    stmtGetLinks,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store. It should be
// called when the Store is no longer needed.
func (s *Store) Close() {
	_ = s.stmtGetModel.Close()
	_ = s.stmtListModels.Close()
	_ = s.stmtInsertModel.Close()
	_ = s.stmtGetNodes.Close()
	_ = s.stmtGetLinks.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// List returns info for every stored model, keyed by name.
func (s *Store) List(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtListModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var info ModelInfo
		if err = rows.Scan(&info.Id, &info.Name, &info.Order); err != nil {
			return nil, err
		}
		models[info.Name] = info
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// Save writes a snapshot under the given name, replacing any previous
// contents for that name. The operation is performed within a transaction.
// Link insertion order is preserved through the position column, so a later
// Load reproduces the snapshot exactly.
func (s *Store) Save(ctx context.Context, name string, snap *markov.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID int
	if err = tx.StmtContext(ctx, s.stmtInsertModel).QueryRowContext(ctx, name, snap.Order).Scan(&modelID); err != nil {
		return fmt.Errorf("failed to upsert model '%s': %w", name, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM chain_nodes WHERE model_id = ?`, modelID); err != nil {
		return fmt.Errorf("failed to clear nodes for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chain_links WHERE model_id = ?`, modelID); err != nil {
		return fmt.Errorf("failed to clear links for model %d: %w", modelID, err)
	}

	stmtInsertNode, err := tx.PrepareContext(ctx, `INSERT INTO chain_nodes (model_id, tail, weight, is_exit) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertNode)

	stmtInsertLink, err := tx.PrepareContext(ctx, `INSERT INTO chain_links (model_id, tail, position, word, frequency) VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertLink)

	var linkCount int
	for tail, node := range snap.Graph {
		if _, err = stmtInsertNode.ExecContext(ctx, modelID, tail, node.Weight, node.IsExit); err != nil {
			return fmt.Errorf("failed to insert node for tail '%s': %w", tail, err)
		}
		for i, word := range node.Links {
			if _, err = stmtInsertLink.ExecContext(ctx, modelID, tail, i, word, node.Freqs[i]); err != nil {
				return fmt.Errorf("failed to insert link '%s' -> '%s': %w", tail, word, err)
			}
			linkCount++
		}
	}

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("model_order", snap.Order),
		slog.Int("nodes_saved", len(snap.Graph)),
		slog.Int("links_saved", linkCount),
	)

	return tx.Commit()
}

// Load reads the snapshot stored under name. It returns ErrNotFound if no
// model with that name exists.
func (s *Store) Load(ctx context.Context, name string) (*markov.Snapshot, error) {
	var modelID, order int
	err := s.stmtGetModel.QueryRowContext(ctx, name).Scan(&modelID, &order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up model '%s': %w", name, err)
	}

	graph := make(map[string]*markov.Node)

	rows, err := s.stmtGetNodes.QueryContext(ctx, modelID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			tail   string
			weight int
			isExit bool
		)
		if err = rows.Scan(&tail, &weight, &isExit); err != nil {
			_ = rows.Close()
			return nil, err
		}
		graph[tail] = &markov.Node{Weight: weight, IsExit: isExit}
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	lRows, err := s.stmtGetLinks.QueryContext(ctx, modelID)
	if err != nil {
		return nil, err
	}
	for lRows.Next() {
		var (
			tail, word string
			freq       int
		)
		if err = lRows.Scan(&tail, &word, &freq); err != nil {
			_ = lRows.Close()
			return nil, err
		}
		node, ok := graph[tail]
		if !ok {
			_ = lRows.Close()
			return nil, fmt.Errorf("consistency error: link row for unknown tail '%s'", tail)
		}
		node.Links = append(node.Links, word)
		node.Freqs = append(node.Freqs, freq)
	}
	_ = lRows.Close()
	if err = lRows.Err(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Model loaded",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("model_order", order),
		slog.Int("nodes_loaded", len(graph)),
	)

	return &markov.Snapshot{Order: order, Graph: graph}, nil
}

// Delete removes a model and all of its nodes and links from the store. The
// operation is performed within a transaction. Deleting a missing model
// returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	var modelID, order int
	err := s.stmtGetModel.QueryRowContext(ctx, name).Scan(&modelID, &order)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up model '%s': %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for delete: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, `DELETE FROM chain_links WHERE model_id = ?`, modelID); err != nil {
		return fmt.Errorf("failed to remove links for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chain_nodes WHERE model_id = ?`, modelID); err != nil {
		return fmt.Errorf("failed to remove nodes for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chain_models WHERE model_id = ?`, modelID); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", modelID, err)
	}

	s.logger.InfoContext(ctx, "Model removed",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
	)

	return tx.Commit()
}
