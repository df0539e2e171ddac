package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

// JobStore is the pgx-backed importer.JobStore. Job config and the row-error
// log are stored as JSONB.
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

const jobColumns = `id, vendor_id, import_type, status, file_name, stored_name,
	file_size, config, total_rows, processed_rows, success_count, error_count,
	skipped_count, errors, failure_reason, created_at, started_at, completed_at`

func (s *JobStore) Create(ctx context.Context, job *importer.ImportJob) error {
	config, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("encode job config: %w", err)
	}
	rowErrors, err := marshalErrors(job.Errors)
	if err != nil {
		return err
	}

	const q = `INSERT INTO import_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = s.pool.Exec(ctx, q,
		job.ID, job.VendorID, string(job.Type), string(job.Status),
		job.FileName, job.StoredName, job.FileSize, config,
		job.TotalRows, job.ProcessedRows, job.SuccessCount, job.ErrorCount,
		job.SkippedCount, rowErrors, job.FailureReason,
		job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	return err
}

func (s *JobStore) Get(ctx context.Context, id string) (*importer.ImportJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM import_jobs WHERE id = $1`
	job, err := scanJob(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobStore) GetStatus(ctx context.Context, id string) (importer.JobStatus, error) {
	const q = `SELECT status FROM import_jobs WHERE id = $1`
	var status string
	err := s.pool.QueryRow(ctx, q, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return importer.JobStatus(status), nil
}

func (s *JobStore) ListByVendor(ctx context.Context, vendorID string) ([]*importer.ImportJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM import_jobs
		WHERE vendor_id = $1 ORDER BY created_at DESC`
	return s.listJobs(ctx, q, vendorID)
}

func (s *JobStore) CountActive(ctx context.Context, vendorID string) (int, error) {
	const q = `SELECT COUNT(*) FROM import_jobs
		WHERE vendor_id = $1 AND status = ANY($2)`

	var count int
	err := s.pool.QueryRow(ctx, q, vendorID, statusStrings(importer.ActiveStatuses)).Scan(&count)
	return count, err
}

func (s *JobStore) Start(ctx context.Context, id string) error {
	const q = `UPDATE import_jobs SET status = $2, started_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, id, string(importer.StatusValidating))
	return err
}

func (s *JobStore) SetProcessing(ctx context.Context, id string) error {
	const q = `UPDATE import_jobs SET status = $2 WHERE id = $1 AND status = $3`
	_, err := s.pool.Exec(ctx, q, id,
		string(importer.StatusProcessing), string(importer.StatusValidating))
	return err
}

func (s *JobStore) UpdateProgress(ctx context.Context, job *importer.ImportJob) error {
	rowErrors, err := marshalErrors(job.Errors)
	if err != nil {
		return err
	}

	const q = `UPDATE import_jobs SET
		total_rows = $2, processed_rows = $3, success_count = $4,
		error_count = $5, skipped_count = $6, errors = $7
		WHERE id = $1`

	_, err = s.pool.Exec(ctx, q, job.ID,
		job.TotalRows, job.ProcessedRows, job.SuccessCount,
		job.ErrorCount, job.SkippedCount, rowErrors,
	)
	return err
}

func (s *JobStore) Complete(ctx context.Context, id string) error {
	const q = `UPDATE import_jobs SET status = $2, completed_at = now()
		WHERE id = $1 AND status = ANY($3)`
	_, err := s.pool.Exec(ctx, q, id,
		string(importer.StatusCompleted), statusStrings(importer.ActiveStatuses))
	return err
}

func (s *JobStore) Fail(ctx context.Context, id string, reason string) error {
	const q = `UPDATE import_jobs SET status = $2, failure_reason = $3, completed_at = now()
		WHERE id = $1 AND status = ANY($4)`
	_, err := s.pool.Exec(ctx, q, id,
		string(importer.StatusFailed), reason, statusStrings(importer.ActiveStatuses))
	return err
}

func (s *JobStore) Cancel(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE import_jobs SET status = $2, completed_at = now()
		WHERE id = $1 AND status = ANY($3)`

	tag, err := s.pool.Exec(ctx, q, id,
		string(importer.StatusCancelled), statusStrings(importer.ActiveStatuses))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *JobStore) ListStale(ctx context.Context, cutoff time.Time) ([]*importer.ImportJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM import_jobs
		WHERE status = ANY($1) AND created_at < $2`
	return s.listJobs(ctx, q, statusStrings(importer.ActiveStatuses), cutoff)
}

func (s *JobStore) listJobs(ctx context.Context, q string, args ...any) ([]*importer.ImportJob, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*importer.ImportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*importer.ImportJob, error) {
	var (
		job        importer.ImportJob
		importType string
		status     string
		config     []byte
		rowErrors  []byte
	)

	err := row.Scan(
		&job.ID, &job.VendorID, &importType, &status,
		&job.FileName, &job.StoredName, &job.FileSize, &config,
		&job.TotalRows, &job.ProcessedRows, &job.SuccessCount, &job.ErrorCount,
		&job.SkippedCount, &rowErrors, &job.FailureReason,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = importer.ImportType(importType)
	job.Status = importer.JobStatus(status)
	if len(config) > 0 {
		if err := json.Unmarshal(config, &job.Config); err != nil {
			return nil, fmt.Errorf("decode job config: %w", err)
		}
	}
	if len(rowErrors) > 0 {
		if err := json.Unmarshal(rowErrors, &job.Errors); err != nil {
			return nil, fmt.Errorf("decode job errors: %w", err)
		}
	}
	return &job, nil
}

func marshalErrors(errs []importer.RowError) ([]byte, error) {
	if errs == nil {
		errs = []importer.RowError{}
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return nil, fmt.Errorf("encode job errors: %w", err)
	}
	return data, nil
}

func statusStrings(statuses []importer.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
