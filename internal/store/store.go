// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists resolved citations in SQLite. It owns the
// project-level uniqueness constraint and the first-seen ordering sequence
// that the rest of the engine relies on for idempotency.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

// ErrNotFound indicates the requested citation row does not exist.
var ErrNotFound = errors.New("citation not found")

// errExists signals the in-transaction fast path found the row already present.
var errExists = errors.New("citation exists")

// Store manages the citation SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the citation database at path and bootstraps the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY
	// churn when concurrent sections resolve into the same project.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS citations (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			cite_key TEXT NOT NULL,
			csl TEXT NOT NULL,
			first_seen_order INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(project_id, cite_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_project ON citations(project_id)`,
		`CREATE TABLE IF NOT EXISTS citation_seq (
			project_id TEXT PRIMARY KEY,
			next_order INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// FindCitation returns the citation for (projectID, citeKey), or ErrNotFound.
func (s *Store) FindCitation(ctx context.Context, projectID, citeKey string) (types.Citation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, cite_key, csl, first_seen_order, created_at
		 FROM citations WHERE project_id = ? AND cite_key = ?`,
		projectID, citeKey)
	return scanCitation(row)
}

// InsertCitationIfAbsent creates the citation row for (projectID, citeKey) if
// it does not exist and returns it with wasInserted=true. If the row already
// exists (including a concurrent insert losing the race), the existing row is
// returned with wasInserted=false and the stored CSL record is kept.
//
// FirstSeenOrder is drawn from a per-project sequence inside the same
// transaction as the insert, so each value is assigned exactly once and a
// failed attempt never burns a position.
func (s *Store) InsertCitationIfAbsent(ctx context.Context, projectID, citeKey string, csl types.CSLItem) (types.Citation, bool, error) {
	c, err := s.insertCitation(ctx, projectID, citeKey, csl)
	if err == nil {
		return c, true, nil
	}
	if errors.Is(err, errExists) {
		return c, false, nil
	}

	// A concurrent writer (another process) can still win the insert race;
	// the unique constraint resolves it and we re-read the surviving row.
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		existing, ferr := s.FindCitation(ctx, projectID, citeKey)
		if ferr != nil {
			return types.Citation{}, false, fmt.Errorf("re-reading after conflict: %w", ferr)
		}
		return existing, false, nil
	}
	return types.Citation{}, false, err
}

func (s *Store) insertCitation(ctx context.Context, projectID, citeKey string, csl types.CSLItem) (types.Citation, error) {
	cslJSON, err := json.Marshal(csl)
	if err != nil {
		return types.Citation{}, fmt.Errorf("encoding csl record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Citation{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Fast path: row already present, no sequence value consumed.
	row := tx.QueryRowContext(ctx,
		`SELECT id, project_id, cite_key, csl, first_seen_order, created_at
		 FROM citations WHERE project_id = ? AND cite_key = ?`,
		projectID, citeKey)
	if existing, err := scanCitation(row); err == nil {
		return existing, errExists
	} else if !errors.Is(err, ErrNotFound) {
		return types.Citation{}, err
	}

	var order int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO citation_seq (project_id, next_order) VALUES (?, 1)
		 ON CONFLICT(project_id) DO UPDATE SET next_order = next_order + 1
		 RETURNING next_order`,
		projectID).Scan(&order)
	if err != nil {
		return types.Citation{}, fmt.Errorf("advancing citation sequence: %w", err)
	}

	c := types.Citation{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		CiteKey:        citeKey,
		CSL:            csl,
		FirstSeenOrder: order,
		CreatedAt:      time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO citations (id, project_id, cite_key, csl, first_seen_order, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.CiteKey, string(cslJSON), c.FirstSeenOrder,
		c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return types.Citation{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Citation{}, fmt.Errorf("committing citation: %w", err)
	}
	return c, nil
}

// ListCitations returns a project's citations ordered by first-seen order.
func (s *Store) ListCitations(ctx context.Context, projectID string) ([]types.Citation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, cite_key, csl, first_seen_order, created_at
		 FROM citations WHERE project_id = ? ORDER BY first_seen_order`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("listing citations: %w", err)
	}
	defer rows.Close()

	var citations []types.Citation
	for rows.Next() {
		c, err := scanCitation(rows)
		if err != nil {
			return nil, err
		}
		citations = append(citations, c)
	}
	return citations, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCitation(row scanner) (types.Citation, error) {
	var c types.Citation
	var cslJSON, createdAt string
	err := row.Scan(&c.ID, &c.ProjectID, &c.CiteKey, &cslJSON, &c.FirstSeenOrder, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Citation{}, ErrNotFound
	}
	if err != nil {
		return types.Citation{}, fmt.Errorf("scanning citation: %w", err)
	}
	if err := json.Unmarshal([]byte(cslJSON), &c.CSL); err != nil {
		return types.Citation{}, fmt.Errorf("decoding csl record: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		c.CreatedAt = t
	}
	return c, nil
}
