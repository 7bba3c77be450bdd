// Package projectstore persists projects confirmed from approved planning
// artifacts: the project row, its tech stack links, position needs, and the
// initial kanban columns, created together in one transaction.
package projectstore

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

type Project struct {
	ID           string `json:"id"`
	OwnerID      string `json:"owner_id"`
	ArtifactID   string `json:"artifact_id"`
	OriginalLang string `json:"original_lang"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	Description  string `json:"description"`
	Mode         string `json:"mode"`
	Difficulty   string `json:"difficulty"`
	Status       string `json:"status"`
	Capacity     int    `json:"capacity"`

	DeadlineUnixMs  int64 `json:"deadline_unix_ms"`
	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
	UpdatedAtUnixMs int64 `json:"updated_at_unix_ms"`

	TechStacks    []TechStack    `json:"tech_stacks"`
	PositionNeeds []PositionNeed `json:"position_needs"`
	KanbanColumns []KanbanColumn `json:"kanban_columns"`
}

type TechStack struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type PositionNeed struct {
	ID        int64  `json:"id"`
	Position  string `json:"position"`
	Headcount int    `json:"headcount"`
}

type KanbanColumn struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type ConfirmInput struct {
	OwnerID      string
	ArtifactID   string
	OriginalLang string
	Title        string
	Summary      string
	Description  string
	Mode         string // ONLINE | OFFLINE
	Difficulty   string // EASY | MEDIUM | HARD
	Capacity     int

	DeadlineUnixMs int64

	TechStackNames []string
	PositionNeeds  []PositionNeedInput
}

type PositionNeedInput struct {
	Position  string
	Headcount int
}

// defaultKanbanColumns seed every confirmed project's board.
var defaultKanbanColumns = []string{"TODO", "IN_PROGRESS", "DONE"}

func normalizeMode(mode string) string {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "OFFLINE":
		return "OFFLINE"
	default:
		return "ONLINE"
	}
}

func normalizeDifficulty(d string) string {
	switch strings.ToUpper(strings.TrimSpace(d)) {
	case "EASY":
		return "EASY"
	case "HARD":
		return "HARD"
	default:
		return "MEDIUM"
	}
}

// Confirm creates a project from an approved artifact. The project row, tech
// stack links, position needs, and the default kanban columns commit
// atomically: a failure at any step leaves nothing behind.
func (s *Store) Confirm(ctx context.Context, in ConfirmInput) (Project, error) {
	if s == nil || s.db == nil {
		return Project{}, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Title = strings.TrimSpace(in.Title)
	if in.OwnerID == "" {
		return Project{}, errors.New("missing owner id")
	}
	if in.Title == "" {
		return Project{}, errors.New("missing project title")
	}

	p := Project{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		ArtifactID:     strings.TrimSpace(in.ArtifactID),
		OriginalLang:   strings.TrimSpace(in.OriginalLang),
		Title:          in.Title,
		Summary:        strings.TrimSpace(in.Summary),
		Description:    strings.TrimSpace(in.Description),
		Mode:           normalizeMode(in.Mode),
		Difficulty:     normalizeDifficulty(in.Difficulty),
		Status:         "PLANNING",
		Capacity:       in.Capacity,
		DeadlineUnixMs: in.DeadlineUnixMs,
	}
	if p.OriginalLang == "" {
		p.OriginalLang = "ko"
	}
	if p.Capacity < 1 {
		p.Capacity = 1
	}
	now := time.Now().UnixMilli()
	p.CreatedAtUnixMs = now
	p.UpdatedAtUnixMs = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Project{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO projects(
  id, owner_id, artifact_id, original_lang, title, summary, description,
  mode, difficulty, status, capacity, deadline_unix_ms,
  created_at_unix_ms, updated_at_unix_ms
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		p.ID, p.OwnerID, p.ArtifactID, p.OriginalLang, p.Title, p.Summary, p.Description,
		p.Mode, p.Difficulty, p.Status, p.Capacity, p.DeadlineUnixMs,
		p.CreatedAtUnixMs, p.UpdatedAtUnixMs,
	); err != nil {
		return Project{}, err
	}

	seenStacks := map[string]bool{}
	for _, name := range in.TechStackNames {
		name = strings.TrimSpace(name)
		if name == "" || seenStacks[name] {
			continue
		}
		seenStacks[name] = true
		if _, err := tx.ExecContext(ctx, `
INSERT INTO tech_stacks(name) VALUES(?) ON CONFLICT(name) DO NOTHING
`, name); err != nil {
			return Project{}, err
		}
		var techID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM tech_stacks WHERE name = ?`, name).Scan(&techID); err != nil {
			return Project{}, err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO project_tech_stacks(project_id, tech_stack_id) VALUES(?, ?)
`, p.ID, techID); err != nil {
			return Project{}, err
		}
		p.TechStacks = append(p.TechStacks, TechStack{ID: techID, Name: name})
	}

	for _, pn := range in.PositionNeeds {
		position := strings.TrimSpace(pn.Position)
		if position == "" {
			continue
		}
		headcount := pn.Headcount
		if headcount < 1 {
			headcount = 1
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO project_position_needs(project_id, position, headcount) VALUES(?, ?, ?)
`, p.ID, position, headcount)
		if err != nil {
			return Project{}, err
		}
		id, _ := res.LastInsertId()
		p.PositionNeeds = append(p.PositionNeeds, PositionNeed{ID: id, Position: position, Headcount: headcount})
	}

	for pos, title := range defaultKanbanColumns {
		res, err := tx.ExecContext(ctx, `
INSERT INTO kanban_columns(project_id, title, position) VALUES(?, ?, ?)
`, p.ID, title, pos)
		if err != nil {
			return Project{}, err
		}
		id, _ := res.LastInsertId()
		p.KanbanColumns = append(p.KanbanColumns, KanbanColumn{ID: id, Title: title, Position: pos})
	}

	if err := tx.Commit(); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Get returns a project with its relations, or (nil, nil) when it does not
// exist.
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("missing project id")
	}

	var p Project
	err := s.db.QueryRowContext(ctx, `
SELECT
  id, owner_id, artifact_id, original_lang, title, summary, description,
  mode, difficulty, status, capacity, deadline_unix_ms,
  created_at_unix_ms, updated_at_unix_ms
FROM projects
WHERE id = ?
`, id).Scan(
		&p.ID, &p.OwnerID, &p.ArtifactID, &p.OriginalLang, &p.Title, &p.Summary, &p.Description,
		&p.Mode, &p.Difficulty, &p.Status, &p.Capacity, &p.DeadlineUnixMs,
		&p.CreatedAtUnixMs, &p.UpdatedAtUnixMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.loadRelations(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns projects newest-first. The limit is clamped to [1, 100] and
// defaults to 20 when non-positive.
func (s *Store) List(ctx context.Context, limit int) ([]Project, error) {
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

	rows, err := s.db.QueryContext(ctx, `
SELECT
  id, owner_id, artifact_id, original_lang, title, summary, description,
  mode, difficulty, status, capacity, deadline_unix_ms,
  created_at_unix_ms, updated_at_unix_ms
FROM projects
ORDER BY created_at_unix_ms DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Project, 0, limit)
	for rows.Next() {
		var p Project
		if err := rows.Scan(
			&p.ID, &p.OwnerID, &p.ArtifactID, &p.OriginalLang, &p.Title, &p.Summary, &p.Description,
			&p.Mode, &p.Difficulty, &p.Status, &p.Capacity, &p.DeadlineUnixMs,
			&p.CreatedAtUnixMs, &p.UpdatedAtUnixMs,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadRelations(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadRelations(ctx context.Context, p *Project) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT t.id, t.name
FROM project_tech_stacks pt
JOIN tech_stacks t ON t.id = pt.tech_stack_id
WHERE pt.project_id = ?
ORDER BY t.name ASC
`, p.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var t TechStack
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			rows.Close()
			return err
		}
		p.TechStacks = append(p.TechStacks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
SELECT id, position, headcount
FROM project_position_needs
WHERE project_id = ?
ORDER BY id ASC
`, p.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var pn PositionNeed
		if err := rows.Scan(&pn.ID, &pn.Position, &pn.Headcount); err != nil {
			rows.Close()
			return err
		}
		p.PositionNeeds = append(p.PositionNeeds, pn)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
SELECT id, title, position
FROM kanban_columns
WHERE project_id = ?
ORDER BY position ASC
`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c KanbanColumn
		if err := rows.Scan(&c.ID, &c.Title, &c.Position); err != nil {
			return err
		}
		p.KanbanColumns = append(p.KanbanColumns, c)
	}
	return rows.Err()
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
CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  artifact_id TEXT NOT NULL DEFAULT '',
  original_lang TEXT NOT NULL DEFAULT 'ko',
  title TEXT NOT NULL,
  summary TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  mode TEXT NOT NULL DEFAULT 'ONLINE',
  difficulty TEXT NOT NULL DEFAULT 'MEDIUM',
  status TEXT NOT NULL DEFAULT 'PLANNING',
  capacity INTEGER NOT NULL DEFAULT 1,
  deadline_unix_ms INTEGER NOT NULL DEFAULT 0,
  created_at_unix_ms INTEGER NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at_unix_ms DESC, id DESC);
CREATE TABLE IF NOT EXISTS tech_stacks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS project_tech_stacks (
  project_id TEXT NOT NULL,
  tech_stack_id INTEGER NOT NULL,
  PRIMARY KEY(project_id, tech_stack_id)
);
CREATE TABLE IF NOT EXISTS project_position_needs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  project_id TEXT NOT NULL,
  position TEXT NOT NULL,
  headcount INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_position_needs_project ON project_position_needs(project_id);
CREATE TABLE IF NOT EXISTS kanban_columns (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  project_id TEXT NOT NULL,
  title TEXT NOT NULL,
  position INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kanban_columns_project ON kanban_columns(project_id, position ASC);
`)
	return err
}
