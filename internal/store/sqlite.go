package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
	project_id  TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS criteria (
	project_id TEXT NOT NULL REFERENCES projects(project_id) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	parent_id  TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS alternatives (
	project_id TEXT NOT NULL REFERENCES projects(project_id) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	cost       REAL,
	position   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS evaluators (
	project_id TEXT NOT NULL REFERENCES projects(project_id) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	weight     REAL NOT NULL DEFAULT 1,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS comparisons (
	project_id   TEXT NOT NULL REFERENCES projects(project_id) ON DELETE CASCADE,
	evaluator_id TEXT NOT NULL,
	parent_id    TEXT NOT NULL DEFAULT '',
	element_a    TEXT NOT NULL,
	element_b    TEXT NOT NULL,
	value        REAL NOT NULL CHECK (value > 0),
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (project_id, evaluator_id, parent_id, element_a, element_b)
);
`

// SQLiteStore is the single-file backend used by the CLI and small
// deployments.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path with WAL and
// foreign keys enabled, and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: SQLite has a single writer, and it makes every
	// transaction a consistent snapshot.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	now := s.now().UTC()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (project_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, p.Description, now.UnixMilli(), now.UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	return sqliteProject(ctx, s.db, id)
}

func (s *SQLiteStore) AddCriterion(ctx context.Context, c *Criterion) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO criteria (project_id, id, name, parent_id, position)
		VALUES (?1, ?2, ?3, ?4,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM criteria WHERE project_id = ?1))
		RETURNING position`,
		c.ProjectID.String(), c.ID, c.Name, c.ParentID,
	).Scan(&c.Position)
	return mapSQLiteError(err)
}

func (s *SQLiteStore) AddAlternative(ctx context.Context, a *Alternative) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO alternatives (project_id, id, name, cost, position)
		VALUES (?1, ?2, ?3, ?4,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM alternatives WHERE project_id = ?1))
		RETURNING position`,
		a.ProjectID.String(), a.ID, a.Name, a.Cost,
	).Scan(&a.Position)
	return mapSQLiteError(err)
}

func (s *SQLiteStore) UpsertEvaluator(ctx context.Context, e *Evaluator) error {
	e.UpdatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluators (project_id, id, weight, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, id) DO UPDATE SET weight = excluded.weight, updated_at = excluded.updated_at`,
		e.ProjectID.String(), e.ID, e.Weight, e.UpdatedAt.UnixMilli(),
	)
	return mapSQLiteError(err)
}

const sqliteUpsertComparison = `
	INSERT INTO comparisons (project_id, evaluator_id, parent_id, element_a, element_b, value, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (project_id, evaluator_id, parent_id, element_a, element_b)
	DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertComparison(ctx context.Context, c *Comparison) error {
	*c = c.Canonical()
	c.UpdatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, sqliteUpsertComparison,
		c.ProjectID.String(), c.EvaluatorID, c.ParentID, c.ElementA, c.ElementB, c.Value, c.UpdatedAt.UnixMilli(),
	)
	return mapSQLiteError(err)
}

func (s *SQLiteStore) UpsertComparisons(ctx context.Context, e *Evaluator, comps []Comparison) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	if e != nil {
		e.UpdatedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO evaluators (project_id, id, weight, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (project_id, id) DO NOTHING`,
			e.ProjectID.String(), e.ID, e.Weight, now.UnixMilli(),
		)
		if err != nil {
			return mapSQLiteError(err)
		}
	}
	for i := range comps {
		c := comps[i].Canonical()
		c.UpdatedAt = now
		_, err := tx.ExecContext(ctx, sqliteUpsertComparison,
			c.ProjectID.String(), c.EvaluatorID, c.ParentID, c.ElementA, c.ElementB, c.Value, now.UnixMilli(),
		)
		if err != nil {
			return mapSQLiteError(err)
		}
		comps[i] = c
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListComparisons(ctx context.Context, projectID uuid.UUID, evaluatorID string) ([]Comparison, error) {
	query := `SELECT project_id, evaluator_id, parent_id, element_a, element_b, value, updated_at
		FROM comparisons WHERE project_id = ?`
	args := []interface{}{projectID.String()}
	if evaluatorID != "" {
		query += " AND evaluator_id = ?"
		args = append(args, evaluatorID)
	}
	query += " ORDER BY evaluator_id, parent_id, element_a, element_b"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteComparisons(rows)
}

func (s *SQLiteStore) Snapshot(ctx context.Context, projectID uuid.UUID) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := sqliteProject(ctx, tx, projectID)
	if err != nil || p == nil {
		return nil, err
	}
	snap := &Snapshot{Project: p}
	id := projectID.String()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, parent_id, position FROM criteria
		WHERE project_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		c := Criterion{ProjectID: projectID}
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.Position); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Criteria = append(snap.Criteria, c)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT id, name, cost, position FROM alternatives
		WHERE project_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		a := Alternative{ProjectID: projectID}
		var cost sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.Name, &cost, &a.Position); err != nil {
			rows.Close()
			return nil, err
		}
		if cost.Valid {
			a.Cost = &cost.Float64
		}
		snap.Alternatives = append(snap.Alternatives, a)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT id, weight, updated_at FROM evaluators
		WHERE project_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		e := Evaluator{ProjectID: projectID}
		var updated int64
		if err := rows.Scan(&e.ID, &e.Weight, &updated); err != nil {
			rows.Close()
			return nil, err
		}
		e.UpdatedAt = time.UnixMilli(updated).UTC()
		snap.Evaluators = append(snap.Evaluators, e)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `
		SELECT project_id, evaluator_id, parent_id, element_a, element_b, value, updated_at
		FROM comparisons WHERE project_id = ?
		ORDER BY evaluator_id, parent_id, element_a, element_b`, id)
	if err != nil {
		return nil, err
	}
	comps, err := scanSQLiteComparisons(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	snap.Comparisons = comps

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sqliteProject(ctx context.Context, q sqliteQuerier, id uuid.UUID) (*Project, error) {
	p := &Project{ID: id}
	var created, updated int64
	err := q.QueryRowContext(ctx, `
		SELECT name, description, created_at, updated_at
		FROM projects WHERE project_id = ?`, id.String(),
	).Scan(&p.Name, &p.Description, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(created).UTC()
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return p, nil
}

func scanSQLiteComparisons(rows *sql.Rows) ([]Comparison, error) {
	var out []Comparison
	for rows.Next() {
		var c Comparison
		var projectID string
		var updated int64
		if err := rows.Scan(&projectID, &c.EvaluatorID, &c.ParentID, &c.ElementA, &c.ElementB, &c.Value, &updated); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(projectID)
		if err != nil {
			return nil, fmt.Errorf("parse project id %q: %w", projectID, err)
		}
		c.ProjectID = id
		c.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

// mapSQLiteError classifies constraint failures by the driver's message text.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("project: %w", ErrNotFound)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w", msg, ErrConflict)
	}
	return err
}
