package partial

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/summaryhub/pkg/errors"
)

// Repository persists partial results. Implementations must index by
// batch, owner, and status so the handler's queries stay cheap.
type Repository interface {
	Save(ctx context.Context, result *PartialResult) error
	Get(ctx context.Context, id string) (*PartialResult, error)
	Update(ctx context.Context, result *PartialResult) error
	// ListByOwner returns results most recent first by cancellation time,
	// with the total count for pagination
	ListByOwner(ctx context.Context, owner string, page, size int) ([]*PartialResult, int, error)
	// ListByStatusBefore returns results in the given status whose
	// cancellation time is before the cutoff
	ListByStatusBefore(ctx context.Context, status Status, cutoff time.Time) ([]*PartialResult, error)
	// ListByBatch returns all results recorded for a batch
	ListByBatch(ctx context.Context, batchID string) ([]*PartialResult, error)
}

// MemoryRepository keeps partial results in process memory. Used by
// tests and embedded deployments.
type MemoryRepository struct {
	mutex   sync.RWMutex
	results map[string]*PartialResult
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{results: make(map[string]*PartialResult)}
}

func (r *MemoryRepository) Save(ctx context.Context, result *PartialResult) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.results[result.ID]; exists {
		return errors.New(errors.ErrAlreadyExists, "partial result already saved").WithDiagnostic("id", result.ID)
	}
	stored := *result
	r.results[result.ID] = &stored
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*PartialResult, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	stored, ok := r.results[id]
	if !ok {
		return nil, errors.New(errors.ErrNotFound, "partial result not found").WithDiagnostic("id", id)
	}
	out := *stored
	return &out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, result *PartialResult) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.results[result.ID]; !ok {
		return errors.New(errors.ErrNotFound, "partial result not found").WithDiagnostic("id", result.ID)
	}
	stored := *result
	r.results[result.ID] = &stored
	return nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, owner string, page, size int) ([]*PartialResult, int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matched []*PartialResult
	for _, stored := range r.results {
		if stored.Owner == owner {
			out := *stored
			matched = append(matched, &out)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CancelledAt.After(matched[j].CancelledAt)
	})

	total := len(matched)
	start, end := pageBounds(total, page, size)
	return matched[start:end], total, nil
}

func (r *MemoryRepository) ListByStatusBefore(ctx context.Context, status Status, cutoff time.Time) ([]*PartialResult, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matched []*PartialResult
	for _, stored := range r.results {
		if stored.Status == status && stored.CancelledAt.Before(cutoff) {
			out := *stored
			matched = append(matched, &out)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CancelledAt.Before(matched[j].CancelledAt)
	})
	return matched, nil
}

func (r *MemoryRepository) ListByBatch(ctx context.Context, batchID string) ([]*PartialResult, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matched []*PartialResult
	for _, stored := range r.results {
		if stored.BatchID == batchID {
			out := *stored
			matched = append(matched, &out)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CancelledAt.Before(matched[j].CancelledAt)
	})
	return matched, nil
}

// Ping reports storage health; in-memory storage is always reachable
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// pageBounds maps a 1-based page and size onto slice bounds
func pageBounds(total, page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}

var _ Repository = (*MemoryRepository)(nil)
