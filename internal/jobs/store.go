// Package jobs tracks ingestion jobs in Postgres. The tracker is the source of
// truth for job outcomes: workers always answer 200 and record the real result
// here.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Pavel401/bugviper/internal/models"
)

// ErrDuplicateJob signals an active job already exists for the owner/repo.
// The caller should return the existing job rather than fail the request.
var ErrDuplicateJob = errors.New("active job already exists for repository")

// ErrNotFound signals an unknown job id.
var ErrNotFound = errors.New("job not found")

const schema = `
CREATE TABLE IF NOT EXISTS ingestion_jobs (
	job_id         TEXT PRIMARY KEY,
	owner          TEXT NOT NULL,
	repo_name      TEXT NOT NULL,
	branch         TEXT NOT NULL DEFAULT '',
	clear_existing BOOLEAN NOT NULL DEFAULT FALSE,
	status         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	started_at     TIMESTAMPTZ,
	completed_at   TIMESTAMPTZ,
	stats          JSONB,
	error_message  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_repo
	ON ingestion_jobs (owner, repo_name, status);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_created
	ON ingestion_jobs (created_at DESC);
`

// Store is the job tracker contract consumed by the API and worker processes.
type Store interface {
	Create(ctx context.Context, job *models.IngestionJob) error
	Get(ctx context.Context, jobID string) (*models.IngestionJob, error)
	ListRecent(ctx context.Context, limit int) ([]*models.IngestionJob, error)
	FindActive(ctx context.Context, owner, repoName string) (*models.IngestionJob, error)
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, stats *models.IngestionStats, errorMessage string) error
}

// PostgresStore implements Store over sqlx.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure jobs schema: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Create inserts a new PENDING job. While an active job exists for the same
// owner/repo the insert is refused with ErrDuplicateJob; the existing job can
// then be fetched with FindActive.
func (s *PostgresStore) Create(ctx context.Context, job *models.IngestionJob) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing string
	err = tx.GetContext(ctx, &existing, `
		SELECT job_id FROM ingestion_jobs
		WHERE owner = $1 AND repo_name = $2 AND status IN ('PENDING', 'DISPATCHED', 'RUNNING')
		LIMIT 1
		FOR UPDATE
	`, job.Owner, job.RepoName)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, existing)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check active job: %w", err)
	}

	now := time.Now().UTC()
	job.Status = models.JobPending
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ingestion_jobs
			(job_id, owner, repo_name, branch, clear_existing, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, job.JobID, job.Owner, job.RepoName, job.Branch, job.ClearExisting,
		job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create job: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"job_id": job.JobID, "repo": job.Repo(),
	}).Info("created ingestion job")
	return nil
}

// Get fetches a job by id.
func (s *PostgresStore) Get(ctx context.Context, jobID string) (*models.IngestionJob, error) {
	row := jobRow{}
	err := s.db.GetContext(ctx, &row, `SELECT * FROM ingestion_jobs WHERE job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return row.toModel()
}

// ListRecent returns the newest jobs first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*models.IngestionJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM ingestion_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]*models.IngestionJob, 0, len(rows))
	for _, row := range rows {
		job, err := row.toModel()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// FindActive returns the non-terminal job for owner/repo, or nil.
func (s *PostgresStore) FindActive(ctx context.Context, owner, repoName string) (*models.IngestionJob, error) {
	row := jobRow{}
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM ingestion_jobs
		WHERE owner = $1 AND repo_name = $2 AND status IN ('PENDING', 'DISPATCHED', 'RUNNING')
		ORDER BY created_at DESC
		LIMIT 1
	`, owner, repoName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return row.toModel()
}

// UpdateStatus transitions a job and records stats or the failure message.
func (s *PostgresStore) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, stats *models.IngestionStats, errorMessage string) error {
	now := time.Now().UTC()

	var statsJSON any
	if stats != nil {
		raw, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		statsJSON = raw
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_jobs SET
			status = $2,
			updated_at = $3,
			started_at = CASE WHEN $2 = 'RUNNING' THEN $3 ELSE started_at END,
			completed_at = CASE WHEN $2 IN ('COMPLETED', 'FAILED') THEN $3 ELSE completed_at END,
			stats = COALESCE($4, stats),
			error_message = CASE WHEN $5 <> '' THEN $5 ELSE error_message END
		WHERE job_id = $1
	`, jobID, status, now, statsJSON, errorMessage)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	s.logger.WithFields(logrus.Fields{"job_id": jobID, "status": status}).Info("job status updated")
	return nil
}

// jobRow mirrors the table; stats unmarshals lazily.
type jobRow struct {
	JobID         string     `db:"job_id"`
	Owner         string     `db:"owner"`
	RepoName      string     `db:"repo_name"`
	Branch        string     `db:"branch"`
	ClearExisting bool       `db:"clear_existing"`
	Status        string     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	StartedAt     *time.Time `db:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"`
	Stats         []byte     `db:"stats"`
	ErrorMessage  string     `db:"error_message"`
}

func (r *jobRow) toModel() (*models.IngestionJob, error) {
	job := &models.IngestionJob{
		JobID:         r.JobID,
		Owner:         r.Owner,
		RepoName:      r.RepoName,
		Branch:        r.Branch,
		ClearExisting: r.ClearExisting,
		Status:        models.JobStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		ErrorMessage:  r.ErrorMessage,
	}
	if len(r.Stats) > 0 {
		stats := &models.IngestionStats{}
		if err := json.Unmarshal(r.Stats, stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats for %s: %w", r.JobID, err)
		}
		job.Stats = stats
	}
	return job, nil
}
