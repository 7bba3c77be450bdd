// Package artifactstore is the SQLite-backed persistence layer for generated
// planning artifacts and their revision chains.
//
// Notes:
//   - Artifacts are append-only except for the approval merge, which rewrites
//     content_json in place.
//   - WAL is enabled to support concurrent reads while writing.
package artifactstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists artifacts in a local SQLite database.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Artifact is one generated bundle version. RevisionBaseID is empty on chain
// roots and holds the root artifact id on every revision.
type Artifact struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	Type           string `json:"type"`
	Version        int    `json:"version"`
	ContentJSON    string `json:"content_json"`
	PromptHash     string `json:"prompt_hash"`
	RevisionBaseID string `json:"revision_base_id"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
	UpdatedAtUnixMs int64 `json:"updated_at_unix_ms"`
}

// ChainRootID returns the id of the chain this artifact belongs to.
func (a Artifact) ChainRootID() string {
	if a.RevisionBaseID != "" {
		return a.RevisionBaseID
	}
	return a.ID
}

const artifactColumns = `
  id, project_id, type, version, content_json, prompt_hash, revision_base_id,
  created_at_unix_ms, updated_at_unix_ms`

func scanArtifact(row interface{ Scan(...any) error }) (Artifact, error) {
	var a Artifact
	err := row.Scan(
		&a.ID,
		&a.ProjectID,
		&a.Type,
		&a.Version,
		&a.ContentJSON,
		&a.PromptHash,
		&a.RevisionBaseID,
		&a.CreatedAtUnixMs,
		&a.UpdatedAtUnixMs,
	)
	return a, err
}

// Create inserts a chain-root artifact. Missing id and timestamps are filled
// in; version defaults to 1.
func (s *Store) Create(ctx context.Context, a Artifact) (Artifact, error) {
	if s == nil || s.db == nil {
		return Artifact{}, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a.ID = strings.TrimSpace(a.ID)
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.ProjectID = strings.TrimSpace(a.ProjectID)
	a.Type = strings.TrimSpace(a.Type)
	a.PromptHash = strings.TrimSpace(a.PromptHash)
	a.RevisionBaseID = ""
	if a.Type == "" {
		return Artifact{}, errors.New("missing artifact type")
	}
	if strings.TrimSpace(a.ContentJSON) == "" {
		return Artifact{}, errors.New("missing artifact content")
	}
	if a.Version <= 0 {
		a.Version = 1
	}

	now := time.Now().UnixMilli()
	if a.CreatedAtUnixMs <= 0 {
		a.CreatedAtUnixMs = now
	}
	if a.UpdatedAtUnixMs <= 0 {
		a.UpdatedAtUnixMs = a.CreatedAtUnixMs
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO ai_artifacts(`+artifactColumns+`
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		a.ID,
		a.ProjectID,
		a.Type,
		a.Version,
		a.ContentJSON,
		a.PromptHash,
		a.RevisionBaseID,
		a.CreatedAtUnixMs,
		a.UpdatedAtUnixMs,
	)
	if err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// Get returns the artifact by id, or (nil, nil) when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Artifact, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("missing artifact id")
	}

	a, err := scanArtifact(s.db.QueryRowContext(ctx, `
SELECT`+artifactColumns+`
FROM ai_artifacts
WHERE id = ?
`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Latest returns the most recently created artifact, optionally scoped to a
// project, or (nil, nil) when none exists.
func (s *Store) Latest(ctx context.Context, projectID string) (*Artifact, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q := `
SELECT` + artifactColumns + `
FROM ai_artifacts`
	args := []any{}
	if projectID = strings.TrimSpace(projectID); projectID != "" {
		q += `
WHERE project_id = ?`
		args = append(args, projectID)
	}
	q += `
ORDER BY created_at_unix_ms DESC, id DESC
LIMIT 1`

	a, err := scanArtifact(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// List returns artifacts newest-first. The limit is clamped to [1, 100] and
// defaults to 20 when non-positive.
func (s *Store) List(ctx context.Context, projectID string, limit int) ([]Artifact, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	q := `
SELECT` + artifactColumns + `
FROM ai_artifacts`
	args := []any{}
	if projectID = strings.TrimSpace(projectID); projectID != "" {
		q += `
WHERE project_id = ?`
		args = append(args, projectID)
	}
	q += `
ORDER BY created_at_unix_ms DESC, id DESC
LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Artifact, 0, limit)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Chain returns every member of a revision chain oldest-first: the root plus
// all artifacts whose revision_base_id points at it.
func (s *Store) Chain(ctx context.Context, rootID string) ([]Artifact, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rootID = strings.TrimSpace(rootID)
	if rootID == "" {
		return nil, errors.New("missing chain root id")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT`+artifactColumns+`
FROM ai_artifacts
WHERE id = ? OR revision_base_id = ?
ORDER BY created_at_unix_ms ASC, version ASC, id ASC
`, rootID, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateRevision appends a revision to the chain rooted at rootID. The new
// version is max(chain versions)+1, read and written inside one transaction
// so concurrent revisions of the same chain cannot collide.
func (s *Store) CreateRevision(ctx context.Context, rootID string, a Artifact) (Artifact, error) {
	if s == nil || s.db == nil {
		return Artifact{}, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rootID = strings.TrimSpace(rootID)
	if rootID == "" {
		return Artifact{}, errors.New("missing chain root id")
	}
	a.ID = strings.TrimSpace(a.ID)
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.ProjectID = strings.TrimSpace(a.ProjectID)
	a.Type = strings.TrimSpace(a.Type)
	a.PromptHash = strings.TrimSpace(a.PromptHash)
	a.RevisionBaseID = rootID
	if a.Type == "" {
		return Artifact{}, errors.New("missing artifact type")
	}
	if strings.TrimSpace(a.ContentJSON) == "" {
		return Artifact{}, errors.New("missing artifact content")
	}

	now := time.Now().UnixMilli()
	if a.CreatedAtUnixMs <= 0 {
		a.CreatedAtUnixMs = now
	}
	if a.UpdatedAtUnixMs <= 0 {
		a.UpdatedAtUnixMs = a.CreatedAtUnixMs
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Artifact{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var maxVersion sql.NullInt64
	if err := tx.QueryRowContext(ctx, `
SELECT MAX(version)
FROM ai_artifacts
WHERE id = ? OR revision_base_id = ?
`, rootID, rootID).Scan(&maxVersion); err != nil {
		return Artifact{}, err
	}
	if !maxVersion.Valid || maxVersion.Int64 <= 0 {
		// No chain members at all would mean the root vanished.
		a.Version = 2
	} else {
		a.Version = int(maxVersion.Int64) + 1
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO ai_artifacts(`+artifactColumns+`
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		a.ID,
		a.ProjectID,
		a.Type,
		a.Version,
		a.ContentJSON,
		a.PromptHash,
		a.RevisionBaseID,
		a.CreatedAtUnixMs,
		a.UpdatedAtUnixMs,
	); err != nil {
		return Artifact{}, err
	}
	if err := tx.Commit(); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// UpdateContent replaces an artifact's content and bumps updated_at. Returns
// sql.ErrNoRows when the artifact does not exist.
func (s *Store) UpdateContent(ctx context.Context, id string, contentJSON string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, errors.New("missing artifact id")
	}
	if strings.TrimSpace(contentJSON) == "" {
		return 0, errors.New("missing artifact content")
	}

	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
UPDATE ai_artifacts
SET content_json = ?, updated_at_unix_ms = ?
WHERE id = ?
`, contentJSON, now, id)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, sql.ErrNoRows
	}
	return now, nil
}

func initSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}

	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS ai_artifacts (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  content_json TEXT NOT NULL,
  prompt_hash TEXT NOT NULL DEFAULT '',
  revision_base_id TEXT NOT NULL DEFAULT '',
  created_at_unix_ms INTEGER NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_artifacts_created ON ai_artifacts(created_at_unix_ms DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_ai_artifacts_chain ON ai_artifacts(revision_base_id);
CREATE INDEX IF NOT EXISTS idx_ai_artifacts_project ON ai_artifacts(project_id, created_at_unix_ms DESC);
`)
	return err
}
