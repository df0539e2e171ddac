package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bazaarhq/catalog-import/internal/tabular"
)

// ValidationError marks a row that broke a business rule (missing required
// field, unresolved identifier, non-positive price). The runner classifies
// it as skipped or errored depending on the job's SkipInvalidRows flag.
// Any other error from a processor is classified SYSTEM.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// RowContext carries everything a processor needs beyond the row itself:
// the job's configuration snapshot, the field resolver built over the parsed
// table's headers, and the catalog collaborators.
type RowContext struct {
	Job      *ImportJob
	Resolver *tabular.FieldResolver
	Stores   Stores
}

// RowProcessor applies the row-level mutations for one import type. Rows are
// handed over strictly in file order; implementations must not retain them.
type RowProcessor interface {
	Type() ImportType
	ProcessRow(ctx context.Context, rc *RowContext, row map[string]string) error
}

var (
	registry   = make(map[ImportType]RowProcessor)
	registryMu sync.RWMutex
)

// Register adds a row processor to the registry. Panics if the import type
// is already registered.
func Register(p RowProcessor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[p.Type()]; exists {
		panic(fmt.Sprintf("row processor already registered: %s", p.Type()))
	}
	registry[p.Type()] = p
}

// ProcessorFor returns the processor registered for the import type.
func ProcessorFor(t ImportType) (RowProcessor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[t]
	return p, ok
}

// RegisteredTypes returns all registered import types, sorted for stable
// listings.
func RegisteredTypes() []ImportType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]ImportType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ClearRegistry removes all registered processors. Primarily useful for
// testing.
func ClearRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[ImportType]RowProcessor)
}
