package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bazaarhq/catalog-import/internal/tabular"
)

// runJob is the asynchronous execution context for one admitted job. The
// job record is reloaded from the store rather than shared with the
// submission path, so the two contexts never race on the same value.
func (s *Service) runJob(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.JobTimeout)
	defer cancel()

	log := slog.With("job_id", id)

	defer func() {
		if r := recover(); r != nil {
			log.Error("import job panicked", "panic", r)
			if err := s.jobs.Fail(ctx, id, fmt.Sprintf("internal error: %v", r)); err != nil {
				log.Error("failed to mark job failed", "error", err)
			}
		}
	}()

	job, err := s.jobs.Get(ctx, id)
	if err != nil || job == nil {
		log.Error("reload job for execution", "error", err)
		return
	}
	if job.Status != StatusPending {
		// Cancelled (or otherwise moved on) before execution began.
		log.Info("job no longer pending, skipping execution", "status", job.Status)
		return
	}

	if err := s.jobs.Start(ctx, id); err != nil {
		log.Error("mark job validating", "error", err)
		return
	}

	table, err := s.reparse(job)
	if err != nil {
		log.Warn("import file failed re-validation", "error", err)
		if ferr := s.jobs.Fail(ctx, id, err.Error()); ferr != nil {
			log.Error("failed to mark job failed", "error", ferr)
		}
		return
	}

	proc, ok := ProcessorFor(job.Type)
	if !ok {
		_ = s.jobs.Fail(ctx, id, fmt.Sprintf("unknown import type: %s", job.Type))
		return
	}

	if err := s.jobs.SetProcessing(ctx, id); err != nil {
		log.Error("mark job processing", "error", err)
		return
	}

	job.TotalRows = table.TotalRows
	start := time.Now()
	log.Info("import job processing",
		"import_type", job.Type,
		"total_rows", job.TotalRows,
	)

	finished, err := s.processRows(ctx, job, proc, table, log)
	if err != nil {
		// Orchestration-level failure: remaining rows are abandoned but the
		// recorded outcomes stand. The job is not rolled back.
		_ = s.jobs.UpdateProgress(ctx, job)
		_ = s.jobs.Fail(ctx, id, err.Error())
		log.Error("import job failed", "error", err)
		return
	}

	if err := s.jobs.UpdateProgress(ctx, job); err != nil {
		_ = s.jobs.Fail(ctx, id, fmt.Sprintf("persist final counters: %v", err))
		return
	}

	if !finished {
		// Cancellation observed at a checkpoint boundary; the store already
		// holds the CANCELLED terminal state.
		log.Info("import job stopped by cancellation",
			"processed_rows", job.ProcessedRows,
			"success_count", job.SuccessCount,
		)
		return
	}

	if err := s.jobs.Complete(ctx, id); err != nil {
		log.Error("mark job completed", "error", err)
		return
	}

	log.Info("import job completed",
		"processed_rows", job.ProcessedRows,
		"success_count", job.SuccessCount,
		"error_count", job.ErrorCount,
		"skipped_count", job.SkippedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// reparse re-reads and re-parses the stored payload inside the execution
// context. Parse errors are joined into one failure reason.
func (s *Service) reparse(job *ImportJob) (*tabular.ParsedTable, error) {
	data, err := os.ReadFile(s.uploadPath(job))
	if err != nil {
		return nil, fmt.Errorf("read stored upload: %w", err)
	}

	file := tabular.FileUpload{
		Data:        data,
		FileName:    job.FileName,
		ContentType: "text/csv",
	}

	if result := s.reader.Validate(file); !result.IsValid() {
		return nil, errors.New(strings.Join(result.Errors, "; "))
	}

	delimiter := s.reader.DetectDelimiter(file)
	table, err := s.reader.Parse(file, job.Config.HasHeader, delimiter)
	if err != nil {
		return nil, err
	}
	return table, nil
}

// processRows drives the strict-sequential row loop. It returns false when
// the loop stopped early because a cancellation request was observed at a
// checkpoint boundary. The returned error is orchestration-level only;
// per-row failures are recorded on the job and never abort the batch.
func (s *Service) processRows(ctx context.Context, job *ImportJob, proc RowProcessor, table *tabular.ParsedTable, log *slog.Logger) (bool, error) {
	rc := &RowContext{
		Job:      job,
		Resolver: tabular.NewFieldResolver(table.Headers, job.Config.ColumnMapping),
		Stores:   s.stores,
	}

	for i, row := range table.Rows {
		err := s.applyRow(ctx, proc, rc, row)

		job.ProcessedRows++
		switch {
		case err == nil:
			job.SuccessCount++
		case isValidation(err):
			if job.Config.SkipInvalidRows {
				job.SkippedCount++
			} else {
				job.ErrorCount++
			}
			s.recordRowError(job, row, ErrorValidation, err.Error())
		default:
			job.ErrorCount++
			s.recordRowError(job, row, ErrorSystem, err.Error())
		}

		if (i+1)%s.opts.CheckpointRows == 0 {
			if err := s.jobs.UpdateProgress(ctx, job); err != nil {
				return false, fmt.Errorf("checkpoint counters: %w", err)
			}

			status, err := s.jobs.GetStatus(ctx, job.ID)
			if err != nil {
				return false, fmt.Errorf("read job status at checkpoint: %w", err)
			}
			if status == StatusCancelled {
				return false, nil
			}

			log.Debug("import checkpoint",
				"processed_rows", job.ProcessedRows,
				"success_count", job.SuccessCount,
				"error_count", job.ErrorCount,
				"skipped_count", job.SkippedCount,
			)
		}
	}

	return true, nil
}

// applyRow runs one row through the processor, converting panics into
// errors so a single bad row never aborts the batch.
func (s *Service) applyRow(ctx context.Context, proc RowProcessor, rc *RowContext, row map[string]string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("row processing panicked: %v", r)
		}
	}()
	return proc.ProcessRow(ctx, rc, row)
}

// recordRowError appends a row error, honoring the configured cap: the
// oldest entries are retained and later ones are counted but dropped, which
// bounds memory and storage regardless of input size.
func (s *Service) recordRowError(job *ImportJob, row map[string]string, kind ErrorKind, message string) {
	if len(job.Errors) >= s.opts.MaxErrorLog {
		return
	}

	snapshot := make(map[string]string, len(row))
	for k, v := range row {
		if k == tabular.RowNumberField {
			continue
		}
		snapshot[k] = v
	}

	job.Errors = append(job.Errors, RowError{
		RowNumber: tabular.RowNumber(row),
		Kind:      kind,
		Message:   message,
		RowData:   snapshot,
	})
}

func isValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
