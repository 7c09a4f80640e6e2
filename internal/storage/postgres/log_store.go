// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webscout/webscout/internal/scout"
)

// LogStoreConfig controls the Postgres connection pool used for job records.
type LogStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// LogStore persists job records in Postgres. It implements scout.LogStore.
type LogStore struct {
	pool pgxPool
}

// NewLogStore creates a Postgres-backed LogStore using the provided config.
func NewLogStore(ctx context.Context, cfg LogStoreConfig) (*LogStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &LogStore{pool: pool}, nil
}

// NewLogStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewLogStoreWithPool(pool pgxPool) (*LogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &LogStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *LogStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Append inserts a new job record. The job id must not already exist.
func (s *LogStore) Append(ctx context.Context, job scout.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	query, results, audit, progress, err := marshalJob(job)
	if err != nil {
		return err
	}
	const stmt = `
INSERT INTO jobs (
	id,
	kind,
	parent_id,
	query,
	status,
	created_at,
	updated_at,
	results,
	audit,
	error_message,
	progress
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`
	_, err = s.pool.Exec(ctx, stmt,
		job.ID,
		string(job.Kind),
		nullableString(job.ParentID),
		query,
		string(job.Status),
		job.Created,
		job.Updated,
		results,
		audit,
		nullableString(job.Error),
		progress,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Update replaces the stored record for the job id wholesale.
func (s *LogStore) Update(ctx context.Context, job scout.Job) error {
	query, results, audit, progress, err := marshalJob(job)
	if err != nil {
		return err
	}
	const stmt = `
UPDATE jobs
SET query = $2,
	status = $3,
	updated_at = $4,
	results = $5,
	audit = $6,
	error_message = $7,
	progress = $8
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, stmt,
		job.ID,
		query,
		string(job.Status),
		job.Updated,
		results,
		audit,
		nullableString(job.Error),
		progress,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scout.ErrJobNotFound
	}
	return nil
}

const selectColumns = `id, kind, parent_id, query, status, created_at, updated_at, results, audit, error_message, progress`

// Get retrieves a single job by its id.
func (s *LogStore) Get(ctx context.Context, jobID string) (scout.Job, error) {
	stmt := `SELECT ` + selectColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(s.pool.QueryRow(ctx, stmt, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scout.Job{}, scout.ErrJobNotFound
		}
		return scout.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListChildren returns the children of a bulk parent in submission order.
func (s *LogStore) ListChildren(ctx context.Context, parentID string) ([]scout.Job, error) {
	stmt := `SELECT ` + selectColumns + ` FROM jobs WHERE parent_id = $1 ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, stmt, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var jobs []scout.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return jobs, nil
}

// List returns jobs newest first along with the total count.
func (s *LogStore) List(ctx context.Context, limit, offset int) ([]scout.Job, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	stmt := `SELECT ` + selectColumns + ` FROM jobs ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, stmt, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []scout.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, total, nil
}

func marshalJob(job scout.Job) (query, results, audit, progress []byte, err error) {
	query, err = json.Marshal(job.Query)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal query: %w", err)
	}
	if job.Results != nil {
		results, err = json.Marshal(job.Results)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal results: %w", err)
		}
	}
	if job.Audit != nil {
		audit, err = json.Marshal(job.Audit)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal audit: %w", err)
		}
	}
	if job.Progress != nil {
		progress, err = json.Marshal(job.Progress)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal progress: %w", err)
		}
	}
	return query, results, audit, progress, nil
}

func scanJob(row pgx.Row) (scout.Job, error) {
	var (
		job              scout.Job
		kind, status     string
		parentID, errMsg *string
		query            []byte
		results, audit   []byte
		progress         []byte
	)
	err := row.Scan(
		&job.ID,
		&kind,
		&parentID,
		&query,
		&status,
		&job.Created,
		&job.Updated,
		&results,
		&audit,
		&errMsg,
		&progress,
	)
	if err != nil {
		return scout.Job{}, err
	}
	job.Kind = scout.JobKind(kind)
	job.Status = scout.JobStatus(status)
	if parentID != nil {
		job.ParentID = *parentID
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	if err := json.Unmarshal(query, &job.Query); err != nil {
		return scout.Job{}, fmt.Errorf("unmarshal query: %w", err)
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &job.Results); err != nil {
			return scout.Job{}, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	if len(audit) > 0 {
		if err := json.Unmarshal(audit, &job.Audit); err != nil {
			return scout.Job{}, fmt.Errorf("unmarshal audit: %w", err)
		}
	}
	if len(progress) > 0 {
		var p scout.Progress
		if err := json.Unmarshal(progress, &p); err != nil {
			return scout.Job{}, fmt.Errorf("unmarshal progress: %w", err)
		}
		job.Progress = &p
	}
	return job, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
