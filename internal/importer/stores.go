package importer

import (
	"context"
	"time"
)

// Stock status labels derived from item quantity.
const (
	StockStatusIn  = "In Stock"
	StockStatusOut = "Out of Stock"
)

// StockStatusFor derives the stock-status label for a quantity.
func StockStatusFor(quantity int) string {
	if quantity > 0 {
		return StockStatusIn
	}
	return StockStatusOut
}

// Item is a catalog item as seen by the import pipeline.
type Item struct {
	ID          string
	VendorID    string
	Name        string
	Description string
	Category    string
	Brand       string
	Price       float64
	Quantity    int
	StockStatus string
	Tags        []string
}

// Variant is a purchasable variant of a catalog item.
type Variant struct {
	ID         string
	ItemID     string
	SKU        string
	Attributes map[string]string
	Price      float64
	MRP        float64
	Quantity   int
}

// ItemStore is the catalog-item collaborator. Lookups return (nil, nil) when
// the id does not exist; errors are reserved for store failures.
type ItemStore interface {
	Get(ctx context.Context, id string) (*Item, error)
	Create(ctx context.Context, item *Item) error
	UpdatePrice(ctx context.Context, id string, price float64) error

	// SetStock sets the quantity to max(0, quantity) and returns the stored
	// value. AdjustStock applies the delta atomically at the store boundary,
	// flooring at 0, and returns the new quantity.
	SetStock(ctx context.Context, id string, quantity int) (int, error)
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
	UpdateStockStatus(ctx context.Context, id string, status string) error
}

// VariantStore is the variant collaborator, addressable by id or SKU.
type VariantStore interface {
	Get(ctx context.Context, id string) (*Variant, error)
	GetBySKU(ctx context.Context, sku string) (*Variant, error)
	Create(ctx context.Context, v *Variant) error

	// UpdatePrice sets the price and, when mrp is non-nil, the MRP.
	UpdatePrice(ctx context.Context, id string, price float64, mrp *float64) error

	SetStock(ctx context.Context, id string, quantity int) (int, error)
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}

// CategoryResolver supplies the default category used when a catalog-item
// row omits one.
type CategoryResolver interface {
	DefaultCategory(ctx context.Context) (string, error)
}

// Stores bundles the catalog collaborators handed to row processors.
type Stores struct {
	Items      ItemStore
	Variants   VariantStore
	Categories CategoryResolver
}

// JobStore is the persistent job-record collaborator.
type JobStore interface {
	Create(ctx context.Context, job *ImportJob) error
	Get(ctx context.Context, id string) (*ImportJob, error)
	GetStatus(ctx context.Context, id string) (JobStatus, error)

	// ListByVendor returns the vendor's jobs most-recent-first.
	ListByVendor(ctx context.Context, vendorID string) ([]*ImportJob, error)

	// CountActive counts the vendor's jobs whose status is in ActiveStatuses.
	CountActive(ctx context.Context, vendorID string) (int, error)

	// Start moves the job to VALIDATING and stamps startedAt.
	Start(ctx context.Context, id string) error

	// SetProcessing moves the job from VALIDATING to PROCESSING.
	SetProcessing(ctx context.Context, id string) error

	// UpdateProgress persists the job's counters, totalRows, and error log.
	UpdateProgress(ctx context.Context, job *ImportJob) error

	// Complete and Fail move the job to its terminal state and stamp
	// completedAt. Fail records the terminal failure reason.
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, reason string) error

	// Cancel flips a non-terminal job to CANCELLED, stamping completedAt.
	// It reports whether a transition happened.
	Cancel(ctx context.Context, id string) (bool, error)

	// ListStale returns non-terminal jobs created before the cutoff; the
	// watchdog uses it to reap jobs that died without reaching a terminal
	// state and still count against their vendor's admission cap.
	ListStale(ctx context.Context, cutoff time.Time) ([]*ImportJob, error)
}
