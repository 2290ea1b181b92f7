package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

// MemoryRepository keeps entries in process memory. Entries are cloned on the
// way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.LedgerEntry
	byKey map[models.LedgerKey]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]*models.LedgerEntry),
		byKey: make(map[models.LedgerKey]string),
	}
}

func (r *MemoryRepository) Get(ctx context.Context, key models.LedgerKey) (*models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *MemoryRepository) Insert(ctx context.Context, e *models.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[e.Key]; ok {
		return common.ErrVersionConflict
	}
	if _, ok := r.byID[e.ID]; ok {
		return common.ErrVersionConflict
	}
	e.Version = 1
	r.byID[e.ID] = e.Clone()
	r.byKey[e.Key] = e.ID
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, e *models.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[e.ID]
	if !ok {
		return common.ErrNotFound
	}
	if cur.Version != e.Version {
		return common.ErrVersionConflict
	}
	e.Version++
	stored := e.Clone()
	stored.Key = cur.Key
	r.byID[e.ID] = stored
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, f Filter) ([]*models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.LedgerEntry
	for _, e := range r.byID {
		if f.match(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
