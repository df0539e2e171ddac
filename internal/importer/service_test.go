package importer_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bazaarhq/catalog-import/internal/importer"
	"github.com/bazaarhq/catalog-import/internal/store/memory"
	"github.com/bazaarhq/catalog-import/internal/tabular"
)

// stubProcessor lets a test script per-row outcomes by value: "bad" rows get
// a validation error, "boom" rows panic, everything else succeeds. When block
// is set the first row signals started and waits for proceed.
type stubProcessor struct {
	importType importer.ImportType
	started    chan struct{}
	proceed    chan struct{}
	blockOnce  bool
	blocked    bool
}

func (p *stubProcessor) Type() importer.ImportType { return p.importType }

func (p *stubProcessor) ProcessRow(ctx context.Context, rc *importer.RowContext, row map[string]string) error {
	if p.blockOnce && !p.blocked {
		p.blocked = true
		close(p.started)
		<-p.proceed
	}

	switch rc.Resolver.Value(row, "value") {
	case "bad":
		return importer.Invalid("row is bad")
	case "boom":
		panic("processor exploded")
	}
	return nil
}

func newTestService(t *testing.T, importType importer.ImportType, proc importer.RowProcessor, opts importer.Options) (*importer.Service, *memory.JobStore) {
	t.Helper()

	importer.Register(proc)
	t.Cleanup(importer.ClearRegistry)

	jobs := memory.NewJobStore()
	stores := importer.Stores{
		Items:      memory.NewItemStore(),
		Variants:   memory.NewVariantStore(),
		Categories: memory.CategoryResolver{},
	}

	opts.UploadsDir = t.TempDir()
	svc, err := importer.NewService(jobs, stores, opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, jobs
}

func upload(rows ...string) tabular.FileUpload {
	content := "value\n" + strings.Join(rows, "\n") + "\n"
	return tabular.FileUpload{
		Data:        []byte(content),
		FileName:    "rows.csv",
		ContentType: "text/csv",
	}
}

func submit(t *testing.T, svc *importer.Service, importType importer.ImportType, cfg importer.JobConfig, rows ...string) *importer.ImportJob {
	t.Helper()

	job, err := svc.CreateJob(context.Background(), importer.SubmitRequest{
		VendorID: "vendor-1",
		File:     upload(rows...),
		Type:     importType,
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	return job
}

func waitTerminal(t *testing.T, svc *importer.Service, id string) *importer.ImportJob {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return nil
}

func TestCreateJob_EndToEnd(t *testing.T) {
	const typ = importer.ImportType("STUB_ROWS")
	svc, _ := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{})

	cfg := importer.JobConfig{HasHeader: true, SkipInvalidRows: true}
	job := submit(t, svc, typ, cfg, "ok", "bad", "bad")

	if job.Status != importer.StatusPending {
		t.Errorf("submitted status = %s, want %s", job.Status, importer.StatusPending)
	}
	if job.TotalRows != 3 {
		t.Errorf("TotalRows = %d, want 3", job.TotalRows)
	}

	final := waitTerminal(t, svc, job.ID)
	if final.Status != importer.StatusCompleted {
		t.Fatalf("status = %s, want %s (reason: %s)", final.Status, importer.StatusCompleted, final.FailureReason)
	}
	if final.ProcessedRows != 3 {
		t.Errorf("ProcessedRows = %d, want 3", final.ProcessedRows)
	}
	if final.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", final.SuccessCount)
	}
	if final.SkippedCount != 2 {
		t.Errorf("SkippedCount = %d, want 2", final.SkippedCount)
	}
	if final.ErrorCount != 0 {
		t.Errorf("ErrorCount = %d, want 0", final.ErrorCount)
	}

	// Skipped rows are still recorded with header-aware row numbers.
	if len(final.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(final.Errors))
	}
	if final.Errors[0].RowNumber != 3 || final.Errors[1].RowNumber != 4 {
		t.Errorf("error rows = %d, %d, want 3, 4", final.Errors[0].RowNumber, final.Errors[1].RowNumber)
	}
	if final.Errors[0].Kind != importer.ErrorValidation {
		t.Errorf("error kind = %s, want %s", final.Errors[0].Kind, importer.ErrorValidation)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not stamped on terminal job")
	}
}

func TestCreateJob_InvalidRowsCountAsErrorsWithoutSkip(t *testing.T) {
	const typ = importer.ImportType("STUB_STRICT")
	svc, _ := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{})

	job := submit(t, svc, typ, importer.JobConfig{HasHeader: true}, "ok", "bad")

	final := waitTerminal(t, svc, job.ID)
	if final.Status != importer.StatusCompleted {
		t.Fatalf("status = %s, want %s", final.Status, importer.StatusCompleted)
	}
	if final.ErrorCount != 1 || final.SkippedCount != 0 {
		t.Errorf("counts = errors %d, skipped %d, want 1, 0", final.ErrorCount, final.SkippedCount)
	}
}

func TestCreateJob_PanicBecomesSystemError(t *testing.T) {
	const typ = importer.ImportType("STUB_PANIC")
	svc, _ := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{})

	job := submit(t, svc, typ, importer.JobConfig{HasHeader: true}, "ok", "boom", "ok")

	final := waitTerminal(t, svc, job.ID)
	if final.Status != importer.StatusCompleted {
		t.Fatalf("status = %s, want %s", final.Status, importer.StatusCompleted)
	}
	if final.SuccessCount != 2 || final.ErrorCount != 1 {
		t.Errorf("counts = success %d, errors %d, want 2, 1", final.SuccessCount, final.ErrorCount)
	}
	if len(final.Errors) != 1 || final.Errors[0].Kind != importer.ErrorSystem {
		t.Fatalf("errors = %+v, want one SYSTEM entry", final.Errors)
	}
}

func TestCreateJob_ErrorLogCap(t *testing.T) {
	const typ = importer.ImportType("STUB_CAP")
	svc, _ := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{MaxErrorLog: 2})

	job := submit(t, svc, typ, importer.JobConfig{HasHeader: true}, "bad", "bad", "bad", "bad", "bad")

	final := waitTerminal(t, svc, job.ID)
	if final.ErrorCount != 5 {
		t.Errorf("ErrorCount = %d, want 5", final.ErrorCount)
	}
	// The cap bounds the log; the oldest entries are the ones retained.
	if len(final.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(final.Errors))
	}
	if final.Errors[0].RowNumber != 2 || final.Errors[1].RowNumber != 3 {
		t.Errorf("retained rows = %d, %d, want 2, 3", final.Errors[0].RowNumber, final.Errors[1].RowNumber)
	}
}

func TestCreateJob_ConcurrencyLimit(t *testing.T) {
	const typ = importer.ImportType("STUB_LIMIT")
	proc := &stubProcessor{
		importType: typ,
		started:    make(chan struct{}),
		proceed:    make(chan struct{}),
		blockOnce:  true,
	}
	svc, _ := newTestService(t, typ, proc, importer.Options{MaxActiveJobs: 1})

	first := submit(t, svc, typ, importer.JobConfig{HasHeader: true}, "ok")
	<-proc.started

	// Slot is held while the first job runs.
	_, err := svc.CreateJob(context.Background(), importer.SubmitRequest{
		VendorID: "vendor-1",
		File:     upload("ok"),
		Type:     typ,
		Config:   importer.JobConfig{HasHeader: true},
	})
	if !errors.Is(err, importer.ErrConcurrencyLimit) {
		t.Fatalf("CreateJob() error = %v, want ErrConcurrencyLimit", err)
	}

	// Other vendors are unaffected by this vendor's budget.
	other, err := svc.CreateJob(context.Background(), importer.SubmitRequest{
		VendorID: "vendor-2",
		File:     upload("ok"),
		Type:     typ,
		Config:   importer.JobConfig{HasHeader: true},
	})
	if err != nil {
		t.Fatalf("CreateJob() for second vendor error = %v", err)
	}

	close(proc.proceed)
	waitTerminal(t, svc, first.ID)
	waitTerminal(t, svc, other.ID)

	// A terminal job frees its slot.
	again := submit(t, svc, typ, importer.JobConfig{HasHeader: true}, "ok")
	waitTerminal(t, svc, again.ID)
}

func TestCreateJob_FileValidationFailure(t *testing.T) {
	const typ = importer.ImportType("STUB_VALIDATE")
	svc, _ := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{})

	_, err := svc.CreateJob(context.Background(), importer.SubmitRequest{
		VendorID: "vendor-1",
		File:     tabular.FileUpload{FileName: "empty.csv", ContentType: "text/csv"},
		Type:     typ,
		Config:   importer.JobConfig{HasHeader: true},
	})

	var fve *importer.FileValidationError
	if !errors.As(err, &fve) {
		t.Fatalf("CreateJob() error = %v, want FileValidationError", err)
	}
	if !strings.Contains(fve.Error(), "EMPTY_FILE") {
		t.Errorf("error = %q, want EMPTY_FILE code", fve.Error())
	}
}

func TestCreateJob_UnknownImportType(t *testing.T) {
	const typ = importer.ImportType("STUB_KNOWN")
	svc, _ := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{})

	_, err := svc.CreateJob(context.Background(), importer.SubmitRequest{
		VendorID: "vendor-1",
		File:     upload("ok"),
		Type:     "NO_SUCH_TYPE",
		Config:   importer.JobConfig{HasHeader: true},
	})
	if !errors.Is(err, importer.ErrUnknownImportType) {
		t.Fatalf("CreateJob() error = %v, want ErrUnknownImportType", err)
	}
}

func TestCancel_ObservedAtCheckpoint(t *testing.T) {
	const typ = importer.ImportType("STUB_CANCEL")
	proc := &stubProcessor{
		importType: typ,
		started:    make(chan struct{}),
		proceed:    make(chan struct{}),
		blockOnce:  true,
	}
	svc, _ := newTestService(t, typ, proc, importer.Options{CheckpointRows: 1})

	rows := make([]string, 20)
	for i := range rows {
		rows[i] = "ok"
	}
	job := submit(t, svc, typ, importer.JobConfig{HasHeader: true}, rows...)

	<-proc.started
	if err := svc.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	close(proc.proceed)

	final := waitTerminal(t, svc, job.ID)
	if final.Status != importer.StatusCancelled {
		t.Fatalf("status = %s, want %s", final.Status, importer.StatusCancelled)
	}
	// The loop stops at the first checkpoint after the flag flips; applied
	// rows keep their outcomes.
	if final.ProcessedRows == 0 || final.ProcessedRows == 20 {
		t.Errorf("ProcessedRows = %d, want partial progress", final.ProcessedRows)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not stamped on cancelled job")
	}
}

func TestCancel_TerminalJobRejected(t *testing.T) {
	const typ = importer.ImportType("STUB_TERMINAL")
	svc, _ := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{})

	job := submit(t, svc, typ, importer.JobConfig{HasHeader: true}, "ok")
	waitTerminal(t, svc, job.ID)

	if err := svc.Cancel(context.Background(), job.ID); err == nil {
		t.Fatal("Cancel() of a terminal job should fail")
	}
}

func TestGetJob_NotFound(t *testing.T) {
	const typ = importer.ImportType("STUB_MISSING")
	svc, _ := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{})

	_, err := svc.GetJob(context.Background(), "nope")
	if !errors.Is(err, importer.ErrJobNotFound) {
		t.Fatalf("GetJob() error = %v, want ErrJobNotFound", err)
	}
}

func TestListVendorJobs_MostRecentFirst(t *testing.T) {
	const typ = importer.ImportType("STUB_LIST")
	svc, _ := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{})

	var ids []string
	for i := 0; i < 3; i++ {
		job := submit(t, svc, typ, importer.JobConfig{HasHeader: true}, fmt.Sprintf("row-%d", i))
		waitTerminal(t, svc, job.ID)
		ids = append(ids, job.ID)
		time.Sleep(2 * time.Millisecond)
	}

	jobs, err := svc.ListVendorJobs(context.Background(), "vendor-1")
	if err != nil {
		t.Fatalf("ListVendorJobs() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(jobs))
	}
	if jobs[0].ID != ids[2] {
		t.Errorf("first listed = %s, want most recent %s", jobs[0].ID, ids[2])
	}
}

func TestWatchdog_ReapsStaleJobs(t *testing.T) {
	const typ = importer.ImportType("STUB_STALE")
	svc, jobs := newTestService(t, typ, &stubProcessor{importType: typ}, importer.Options{})

	// A job record stuck in PROCESSING with no live runner, as left behind by
	// a crash.
	stale := &importer.ImportJob{
		ID:        "stale-job",
		VendorID:  "vendor-1",
		Type:      typ,
		Status:    importer.StatusProcessing,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	if err := jobs.Create(context.Background(), stale); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.StartWatchdog(ctx, importer.WatchdogConfig{
			MaxJobAge:     30 * time.Minute,
			CheckInterval: time.Hour,
		})
	}()

	final := waitTerminal(t, svc, "stale-job")
	if final.Status != importer.StatusFailed {
		t.Errorf("status = %s, want %s", final.Status, importer.StatusFailed)
	}
	if !strings.Contains(final.FailureReason, "watchdog") {
		t.Errorf("FailureReason = %q, want watchdog mention", final.FailureReason)
	}

	cancel()
	<-done
}
