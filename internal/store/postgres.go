package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS priority_projects (
	project_id  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS priority_criteria (
	project_id UUID NOT NULL REFERENCES priority_projects(project_id) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	parent_id  TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS priority_alternatives (
	project_id UUID NOT NULL REFERENCES priority_projects(project_id) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	cost       DOUBLE PRECISION,
	position   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS priority_evaluators (
	project_id UUID NOT NULL REFERENCES priority_projects(project_id) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	weight     DOUBLE PRECISION NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS priority_comparisons (
	project_id   UUID NOT NULL REFERENCES priority_projects(project_id) ON DELETE CASCADE,
	evaluator_id TEXT NOT NULL,
	parent_id    TEXT NOT NULL DEFAULT '',
	element_a    TEXT NOT NULL,
	element_b    TEXT NOT NULL,
	value        DOUBLE PRECISION NOT NULL CHECK (value > 0),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (project_id, evaluator_id, parent_id, element_a, element_b)
);
`

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *Project) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO priority_projects (name, description)
		VALUES ($1, $2)
		RETURNING project_id, created_at, updated_at`,
		p.Name, p.Description,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	return getProject(ctx, s.pool, id)
}

func (s *PostgresStore) AddCriterion(ctx context.Context, c *Criterion) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO priority_criteria (project_id, id, name, parent_id, position)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM priority_criteria WHERE project_id = $1))
		RETURNING position`,
		c.ProjectID, c.ID, c.Name, c.ParentID,
	).Scan(&c.Position)
	return mapPgError(err)
}

func (s *PostgresStore) AddAlternative(ctx context.Context, a *Alternative) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO priority_alternatives (project_id, id, name, cost, position)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM priority_alternatives WHERE project_id = $1))
		RETURNING position`,
		a.ProjectID, a.ID, a.Name, a.Cost,
	).Scan(&a.Position)
	return mapPgError(err)
}

func (s *PostgresStore) UpsertEvaluator(ctx context.Context, e *Evaluator) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO priority_evaluators (project_id, id, weight)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, id) DO UPDATE SET weight = EXCLUDED.weight, updated_at = now()
		RETURNING updated_at`,
		e.ProjectID, e.ID, e.Weight,
	).Scan(&e.UpdatedAt)
	return mapPgError(err)
}

const pgUpsertComparison = `
	INSERT INTO priority_comparisons (project_id, evaluator_id, parent_id, element_a, element_b, value)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (project_id, evaluator_id, parent_id, element_a, element_b)
	DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	RETURNING updated_at`

func (s *PostgresStore) UpsertComparison(ctx context.Context, c *Comparison) error {
	*c = c.Canonical()
	err := s.pool.QueryRow(ctx, pgUpsertComparison,
		c.ProjectID, c.EvaluatorID, c.ParentID, c.ElementA, c.ElementB, c.Value,
	).Scan(&c.UpdatedAt)
	return mapPgError(err)
}

func (s *PostgresStore) UpsertComparisons(ctx context.Context, e *Evaluator, comps []Comparison) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if e != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO priority_evaluators (project_id, id, weight)
			VALUES ($1, $2, $3)
			ON CONFLICT (project_id, id) DO NOTHING`,
			e.ProjectID, e.ID, e.Weight,
		)
		if err != nil {
			return mapPgError(err)
		}
	}
	for i := range comps {
		c := comps[i].Canonical()
		err := tx.QueryRow(ctx, pgUpsertComparison,
			c.ProjectID, c.EvaluatorID, c.ParentID, c.ElementA, c.ElementB, c.Value,
		).Scan(&c.UpdatedAt)
		if err != nil {
			return mapPgError(err)
		}
		comps[i] = c
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComparisons(ctx context.Context, projectID uuid.UUID, evaluatorID string) ([]Comparison, error) {
	query := `SELECT project_id, evaluator_id, parent_id, element_a, element_b, value, updated_at
		FROM priority_comparisons WHERE project_id = $1`
	args := []interface{}{projectID}
	if evaluatorID != "" {
		query += " AND evaluator_id = $2"
		args = append(args, evaluatorID)
	}
	query += " ORDER BY evaluator_id, parent_id, element_a, element_b"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComparisons(rows)
}

// Snapshot reads the whole project in one repeatable-read transaction so
// concurrent upserts never produce a half-updated view.
func (s *PostgresStore) Snapshot(ctx context.Context, projectID uuid.UUID) (*Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := getProject(ctx, tx, projectID)
	if err != nil || p == nil {
		return nil, err
	}
	snap := &Snapshot{Project: p}

	rows, err := tx.Query(ctx, `
		SELECT project_id, id, name, parent_id, position
		FROM priority_criteria WHERE project_id = $1 ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c Criterion
		if err := rows.Scan(&c.ProjectID, &c.ID, &c.Name, &c.ParentID, &c.Position); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Criteria = append(snap.Criteria, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `
		SELECT project_id, id, name, cost, position
		FROM priority_alternatives WHERE project_id = $1 ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var a Alternative
		var cost sql.NullFloat64
		if err := rows.Scan(&a.ProjectID, &a.ID, &a.Name, &cost, &a.Position); err != nil {
			rows.Close()
			return nil, err
		}
		if cost.Valid {
			a.Cost = &cost.Float64
		}
		snap.Alternatives = append(snap.Alternatives, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `
		SELECT project_id, id, weight, updated_at
		FROM priority_evaluators WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var e Evaluator
		if err := rows.Scan(&e.ProjectID, &e.ID, &e.Weight, &e.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Evaluators = append(snap.Evaluators, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `
		SELECT project_id, evaluator_id, parent_id, element_a, element_b, value, updated_at
		FROM priority_comparisons WHERE project_id = $1
		ORDER BY evaluator_id, parent_id, element_a, element_b`, projectID)
	if err != nil {
		return nil, err
	}
	comps, err := scanComparisons(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	snap.Comparisons = comps

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getProject(ctx context.Context, q pgQuerier, id uuid.UUID) (*Project, error) {
	p := &Project{}
	err := q.QueryRow(ctx, `
		SELECT project_id, name, description, created_at, updated_at
		FROM priority_projects WHERE project_id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanComparisons(rows pgx.Rows) ([]Comparison, error) {
	var out []Comparison
	for rows.Next() {
		var c Comparison
		if err := rows.Scan(&c.ProjectID, &c.EvaluatorID, &c.ParentID, &c.ElementA, &c.ElementB, &c.Value, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return fmt.Errorf("project: %w", ErrNotFound)
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrConflict)
		}
	}
	return err
}
