// Package importer implements the bulk catalog import pipeline: job
// admission, the job lifecycle state machine, and per-row processing of
// parsed tabular uploads. Row-processing strategies live in the processors
// subpackage and register themselves at init time.
package importer

import "time"

// ImportType identifies which row-processing strategy a job uses.
// Immutable after job creation.
type ImportType string

const (
	TypeCatalogItems ImportType = "CATALOG_ITEMS"
	TypeVariants     ImportType = "VARIANTS"
	TypePriceUpdate  ImportType = "PRICE_UPDATE"
	TypeStockUpdate  ImportType = "STOCK_UPDATE"
)

// JobStatus is the job lifecycle state machine:
// PENDING -> VALIDATING -> PROCESSING -> COMPLETED | FAILED, with CANCELLED
// reachable from any non-terminal state by external request.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusValidating JobStatus = "VALIDATING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
	StatusCancelled  JobStatus = "CANCELLED"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ActiveStatuses are the states that count against a vendor's admission cap.
var ActiveStatuses = []JobStatus{StatusPending, StatusValidating, StatusProcessing}

// ErrorKind classifies a row failure. VALIDATION means the row broke a
// business rule; SYSTEM means something unexpected happened while applying
// the mutation.
type ErrorKind string

const (
	ErrorValidation ErrorKind = "VALIDATION"
	ErrorSystem     ErrorKind = "SYSTEM"
)

// RowError records one failed row: its 1-based, header-aware row number,
// the failure class, and a snapshot of the raw values for operator diagnosis.
type RowError struct {
	RowNumber int               `json:"rowNumber"`
	Kind      ErrorKind         `json:"kind"`
	Message   string            `json:"message"`
	RowData   map[string]string `json:"rowData,omitempty"`
}

// JobConfig is the configuration snapshot taken at submission. Immutable
// once the job starts.
type JobConfig struct {
	// ColumnMapping maps logical field names to source column names.
	// nil enables the field resolver's heuristic fallback chain.
	ColumnMapping map[string]string `json:"columnMapping,omitempty"`

	// HasHeader indicates the first record is a header row.
	HasHeader bool `json:"hasHeader"`

	UpdateExisting          bool `json:"updateExisting"`
	SkipInvalidRows         bool `json:"skipInvalidRows"`
	AutoGenerateIdentifiers bool `json:"autoGenerateIdentifiers"`
}

// ImportJob is the persistent record of one submitted import. It is created
// once per submission and append-only afterwards: counters and the error log
// grow monotonically and status only moves forward.
type ImportJob struct {
	ID       string     `json:"id"`
	VendorID string     `json:"vendorId"`
	Type     ImportType `json:"importType"`
	Status   JobStatus  `json:"status"`

	FileName   string `json:"fileName"`
	StoredName string `json:"-"`
	FileSize   int64  `json:"fileSize"`

	Config JobConfig `json:"config"`

	TotalRows     int `json:"totalRows"`
	ProcessedRows int `json:"processedRows"`
	SuccessCount  int `json:"successCount"`
	ErrorCount    int `json:"errorCount"`
	SkippedCount  int `json:"skippedCount"`

	// Errors is capped by the service's error-log limit; rows failing past
	// the cap are counted but not recorded.
	Errors []RowError `json:"errors,omitempty"`

	// FailureReason is set only when Status is FAILED.
	FailureReason string `json:"failureReason,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ProgressPercent derives completion as processedRows*100/totalRows,
// 0 when totalRows is 0.
func (j *ImportJob) ProgressPercent() int {
	if j.TotalRows == 0 {
		return 0
	}
	return j.ProcessedRows * 100 / j.TotalRows
}

// JobView is the status projection returned to polling callers.
type JobView struct {
	ID              string     `json:"id"`
	VendorID        string     `json:"vendorId"`
	Type            ImportType `json:"importType"`
	Status          JobStatus  `json:"status"`
	FileName        string     `json:"fileName"`
	TotalRows       int        `json:"totalRows"`
	ProcessedRows   int        `json:"processedRows"`
	SuccessCount    int        `json:"successCount"`
	ErrorCount      int        `json:"errorCount"`
	SkippedCount    int        `json:"skippedCount"`
	ProgressPercent int        `json:"progressPercent"`
	Errors          []RowError `json:"errors,omitempty"`
	FailureReason   string     `json:"failureReason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// View builds the polling projection for the job.
func (j *ImportJob) View() JobView {
	return JobView{
		ID:              j.ID,
		VendorID:        j.VendorID,
		Type:            j.Type,
		Status:          j.Status,
		FileName:        j.FileName,
		TotalRows:       j.TotalRows,
		ProcessedRows:   j.ProcessedRows,
		SuccessCount:    j.SuccessCount,
		ErrorCount:      j.ErrorCount,
		SkippedCount:    j.SkippedCount,
		ProgressPercent: j.ProgressPercent(),
		Errors:          j.Errors,
		FailureReason:   j.FailureReason,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}
