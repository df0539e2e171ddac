// Package memory holds in-memory store implementations used by tests and
// single-process dev runs. All stores are safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

// ItemStore is a map-backed importer.ItemStore.
type ItemStore struct {
	mu    sync.Mutex
	items map[string]*importer.Item
}

func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[string]*importer.Item)}
}

func (s *ItemStore) Get(_ context.Context, id string) (*importer.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *ItemStore) Create(_ context.Context, item *importer.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *ItemStore) UpdatePrice(_ context.Context, id string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		item.Price = price
	}
	return nil
}

func (s *ItemStore) SetStock(_ context.Context, id string, quantity int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return 0, nil
	}
	if quantity < 0 {
		quantity = 0
	}
	item.Quantity = quantity
	return item.Quantity, nil
}

func (s *ItemStore) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return 0, nil
	}
	item.Quantity += delta
	if item.Quantity < 0 {
		item.Quantity = 0
	}
	return item.Quantity, nil
}

// List returns every stored item. Intended for tests and dev tooling.
func (s *ItemStore) List(_ context.Context) ([]*importer.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*importer.Item, 0, len(s.items))
	for _, item := range s.items {
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ItemStore) UpdateStockStatus(_ context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		item.StockStatus = status
	}
	return nil
}

// VariantStore is a map-backed importer.VariantStore.
type VariantStore struct {
	mu       sync.Mutex
	variants map[string]*importer.Variant
}

func NewVariantStore() *VariantStore {
	return &VariantStore{variants: make(map[string]*importer.Variant)}
}

func (s *VariantStore) Get(_ context.Context, id string) (*importer.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (s *VariantStore) GetBySKU(_ context.Context, sku string) (*importer.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.variants {
		if v.SKU == sku {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *VariantStore) Create(_ context.Context, v *importer.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.variants[v.ID] = &cp
	return nil
}

func (s *VariantStore) UpdatePrice(_ context.Context, id string, price float64, mrp *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.variants[id]; ok {
		v.Price = price
		if mrp != nil {
			v.MRP = *mrp
		}
	}
	return nil
}

func (s *VariantStore) SetStock(_ context.Context, id string, quantity int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return 0, nil
	}
	if quantity < 0 {
		quantity = 0
	}
	v.Quantity = quantity
	return v.Quantity, nil
}

func (s *VariantStore) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return 0, nil
	}
	v.Quantity += delta
	if v.Quantity < 0 {
		v.Quantity = 0
	}
	return v.Quantity, nil
}

// List returns every stored variant. Intended for tests and dev tooling.
func (s *VariantStore) List(_ context.Context) ([]*importer.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*importer.Variant, 0, len(s.variants))
	for _, v := range s.variants {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CategoryResolver answers every default-category lookup with a fixed name.
type CategoryResolver struct {
	Name string
}

func (r CategoryResolver) DefaultCategory(context.Context) (string, error) {
	if r.Name == "" {
		return "Uncategorized", nil
	}
	return r.Name, nil
}

// JobStore is a map-backed importer.JobStore.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*importer.ImportJob
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*importer.ImportJob)}
}

func cloneJob(j *importer.ImportJob) *importer.ImportJob {
	cp := *j
	if j.Errors != nil {
		cp.Errors = append([]importer.RowError(nil), j.Errors...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func (s *JobStore) Create(_ context.Context, job *importer.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *JobStore) Get(_ context.Context, id string) (*importer.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(job), nil
}

func (s *JobStore) GetStatus(_ context.Context, id string) (importer.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return "", nil
	}
	return job.Status, nil
}

func (s *JobStore) ListByVendor(_ context.Context, vendorID string) ([]*importer.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*importer.ImportJob
	for _, job := range s.jobs {
		if job.VendorID == vendorID {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *JobStore) CountActive(_ context.Context, vendorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if job.VendorID == vendorID && !job.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (s *JobStore) Start(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		now := time.Now()
		job.Status = importer.StatusValidating
		job.StartedAt = &now
	}
	return nil
}

func (s *JobStore) SetProcessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && job.Status == importer.StatusValidating {
		job.Status = importer.StatusProcessing
	}
	return nil
}

func (s *JobStore) UpdateProgress(_ context.Context, in *importer.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[in.ID]
	if !ok {
		return nil
	}
	job.TotalRows = in.TotalRows
	job.ProcessedRows = in.ProcessedRows
	job.SuccessCount = in.SuccessCount
	job.ErrorCount = in.ErrorCount
	job.SkippedCount = in.SkippedCount
	job.Errors = append([]importer.RowError(nil), in.Errors...)
	return nil
}

func (s *JobStore) Complete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && !job.Status.Terminal() {
		now := time.Now()
		job.Status = importer.StatusCompleted
		job.CompletedAt = &now
	}
	return nil
}

func (s *JobStore) Fail(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && !job.Status.Terminal() {
		now := time.Now()
		job.Status = importer.StatusFailed
		job.FailureReason = reason
		job.CompletedAt = &now
	}
	return nil
}

func (s *JobStore) Cancel(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return false, nil
	}
	now := time.Now()
	job.Status = importer.StatusCancelled
	job.CompletedAt = &now
	return true, nil
}

func (s *JobStore) ListStale(_ context.Context, cutoff time.Time) ([]*importer.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*importer.ImportJob
	for _, job := range s.jobs {
		if !job.Status.Terminal() && job.CreatedAt.Before(cutoff) {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}
