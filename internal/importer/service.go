package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarhq/catalog-import/internal/tabular"
)

// ErrConcurrencyLimit is returned at submission when the vendor already has
// the maximum number of non-terminal jobs. No job record is created.
var ErrConcurrencyLimit = errors.New("CONCURRENCY_LIMIT_EXCEEDED: vendor already has the maximum number of running imports")

// ErrUnknownImportType is returned when no processor is registered for the
// requested import type.
var ErrUnknownImportType = errors.New("unknown import type")

// ErrJobNotFound is returned when a job id does not resolve to a record.
var ErrJobNotFound = errors.New("import job not found")

// FileValidationError carries every file-level validation failure so the
// caller sees the full list, not just the first.
type FileValidationError struct {
	Problems []string
}

func (e *FileValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Options configures the import service. Zero values fall back to the
// documented defaults.
type Options struct {
	// MaxFileSize is the upload byte ceiling (default 10 MiB).
	MaxFileSize int64
	// MaxRows is the data-row ceiling per file (default 10000).
	MaxRows int
	// MaxActiveJobs is the per-vendor admission cap (default 3).
	MaxActiveJobs int
	// CheckpointRows is the counter-persistence cadence (default 10).
	CheckpointRows int
	// MaxErrorLog caps the per-job row-error log (default 1000).
	MaxErrorLog int
	// JobTimeout bounds one job's asynchronous execution (default 10m).
	JobTimeout time.Duration
	// UploadsDir is where submitted payloads are stored for the execution
	// context to re-read.
	UploadsDir string
}

const (
	DefaultMaxFileSize    = 10 * 1024 * 1024
	DefaultMaxRows        = 10000
	DefaultMaxActiveJobs  = 3
	DefaultCheckpointRows = 10
	DefaultMaxErrorLog    = 1000
	DefaultJobTimeout     = 10 * time.Minute
)

func (o *Options) applyDefaults() {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	if o.MaxActiveJobs <= 0 {
		o.MaxActiveJobs = DefaultMaxActiveJobs
	}
	if o.CheckpointRows <= 0 {
		o.CheckpointRows = DefaultCheckpointRows
	}
	if o.MaxErrorLog <= 0 {
		o.MaxErrorLog = DefaultMaxErrorLog
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = DefaultJobTimeout
	}
}

// Service owns job admission, asynchronous execution, and status queries.
type Service struct {
	opts   Options
	reader *tabular.Reader
	jobs   JobStore
	stores Stores
}

// NewService wires the import pipeline over its collaborators.
func NewService(jobs JobStore, stores Stores, opts Options) (*Service, error) {
	opts.applyDefaults()

	if opts.UploadsDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		opts.UploadsDir = filepath.Join(wd, "uploads")
	}
	if err := os.MkdirAll(opts.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}

	return &Service{
		opts:   opts,
		reader: tabular.NewReader(opts.MaxFileSize, opts.MaxRows),
		jobs:   jobs,
		stores: stores,
	}, nil
}

// SubmitRequest is one import submission: the payload, the import type, and
// the configuration snapshot the job will carry.
type SubmitRequest struct {
	VendorID string
	File     tabular.FileUpload
	Type     ImportType
	Config   JobConfig
}

// CreateJob admits a submission: checks the vendor's concurrency budget,
// validates the file, and performs an eager parse solely to capture
// totalRows before the job is persisted, so the caller gets an immediate
// row-count estimate. On success the job is persisted in PENDING and
// execution starts on its own goroutine.
func (s *Service) CreateJob(ctx context.Context, req SubmitRequest) (*ImportJob, error) {
	if req.VendorID == "" {
		return nil, errors.New("vendor id is required")
	}
	if _, ok := ProcessorFor(req.Type); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownImportType, req.Type)
	}

	active, err := s.jobs.CountActive(ctx, req.VendorID)
	if err != nil {
		return nil, fmt.Errorf("count active jobs: %w", err)
	}
	if active >= s.opts.MaxActiveJobs {
		return nil, ErrConcurrencyLimit
	}

	if result := s.reader.Validate(req.File); !result.IsValid() {
		return nil, &FileValidationError{Problems: result.Errors}
	}

	delimiter := s.reader.DetectDelimiter(req.File)
	table, err := s.reader.Parse(req.File, req.Config.HasHeader, delimiter)
	if err != nil {
		return nil, &FileValidationError{Problems: []string{err.Error()}}
	}

	job := &ImportJob{
		ID:         uuid.New().String(),
		VendorID:   req.VendorID,
		Type:       req.Type,
		Status:     StatusPending,
		FileName:   req.File.FileName,
		StoredName: uuid.New().String() + ".csv",
		FileSize:   int64(len(req.File.Data)),
		Config:     req.Config,
		TotalRows:  table.TotalRows,
		CreatedAt:  time.Now(),
	}

	// The execution context re-reads the stored payload rather than sharing
	// the in-memory bytes across the async boundary.
	path := filepath.Join(s.opts.UploadsDir, job.StoredName)
	if err := os.WriteFile(path, req.File.Data, 0o644); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	slog.Info("import job admitted",
		"job_id", job.ID,
		"vendor_id", job.VendorID,
		"import_type", job.Type,
		"total_rows", job.TotalRows,
		"file_name", job.FileName,
	)

	go s.runJob(job.ID)

	return job, nil
}

// PreviewFile validates and parses an upload, truncating the returned rows
// to maxRows while keeping the true total, so callers can inspect a file
// before committing to an import.
func (s *Service) PreviewFile(f tabular.FileUpload, maxRows int, hasHeader bool) (*tabular.ParsedTable, error) {
	if result := s.reader.Validate(f); !result.IsValid() {
		return nil, &FileValidationError{Problems: result.Errors}
	}
	return s.reader.Preview(f, maxRows, hasHeader)
}

// GetJob returns the polling projection for a job.
func (s *Service) GetJob(ctx context.Context, id string) (*ImportJob, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListVendorJobs returns the vendor's jobs, most recent first.
func (s *Service) ListVendorJobs(ctx context.Context, vendorID string) ([]*ImportJob, error) {
	return s.jobs.ListByVendor(ctx, vendorID)
}

// Cancel flips a non-terminal job to CANCELLED. The running row loop
// observes the flag at its next checkpoint boundary and stops early; rows
// already applied keep their outcomes.
func (s *Service) Cancel(ctx context.Context, id string) error {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is already %s", id, job.Status)
	}

	changed, err := s.jobs.Cancel(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if changed {
		slog.Info("import job cancelled", "job_id", id)
	}
	return nil
}

// uploadPath resolves the stored payload location for a job.
func (s *Service) uploadPath(job *ImportJob) string {
	return filepath.Join(s.opts.UploadsDir, job.StoredName)
}
