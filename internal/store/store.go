package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/drukpa1455/crewai-job/pkg/types"
)

var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	job_url    TEXT NOT NULL,
	variant    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	company    TEXT NOT NULL DEFAULT '',
	score      INTEGER,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	outputs    TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// DB records pipeline runs in SQLite.
type DB struct {
	Pool *sql.DB
}

func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite wants a single writer
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	if _, err := pool.ExecContext(ctx, schema); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

func (d *DB) SaveRun(ctx context.Context, r types.Run) error {
	outputs, err := json.Marshal(nonNil(r.Outputs))
	if err != nil {
		return fmt.Errorf("encode outputs: %w", err)
	}
	var score sql.NullInt64
	if r.Score != nil {
		score = sql.NullInt64{Int64: int64(*r.Score), Valid: true}
	}
	_, err = d.Pool.ExecContext(ctx, `
		INSERT INTO runs (id, job_url, variant, title, company, score, status, error, outputs, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			company = excluded.company,
			score = excluded.score,
			status = excluded.status,
			error = excluded.error,
			outputs = excluded.outputs`,
		r.ID, r.JobURL, string(r.Variant), r.Title, r.Company, score,
		string(r.Status), r.Error, string(outputs), r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.Pool.QueryContext(ctx, `
		SELECT id, job_url, variant, title, company, score, status, error, outputs, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []types.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) GetRun(ctx context.Context, id string) (types.Run, error) {
	row := d.Pool.QueryRowContext(ctx, `
		SELECT id, job_url, variant, title, company, score, status, error, outputs, created_at
		FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, ErrNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (types.Run, error) {
	var (
		r         types.Run
		variant   string
		status    string
		score     sql.NullInt64
		outputs   string
		createdAt int64
	)
	if err := s.Scan(&r.ID, &r.JobURL, &variant, &r.Title, &r.Company, &score, &status, &r.Error, &outputs, &createdAt); err != nil {
		return types.Run{}, err
	}
	r.Variant = types.Variant(variant)
	r.Status = types.RunStatus(status)
	if score.Valid {
		v := int(score.Int64)
		r.Score = &v
	}
	if err := json.Unmarshal([]byte(outputs), &r.Outputs); err != nil {
		return types.Run{}, fmt.Errorf("decode outputs of run %s: %w", r.ID, err)
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
