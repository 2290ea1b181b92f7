package catalog

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

// Memory is an in-process catalog used for tests and single-node setups.
type Memory struct {
	mu         sync.RWMutex
	purchasers map[string]models.Purchaser
	documents  map[string]models.Document
	purchases  map[string]models.Purchase
}

func NewMemory() *Memory {
	return &Memory{
		purchasers: make(map[string]models.Purchaser),
		documents:  make(map[string]models.Document),
		purchases:  make(map[string]models.Purchase),
	}
}

func (m *Memory) PutPurchaser(p models.Purchaser) {
	m.mu.Lock()
	m.purchasers[p.ID] = p
	m.mu.Unlock()
}

func (m *Memory) PutDocument(d models.Document) {
	m.mu.Lock()
	m.documents[d.ID] = d
	m.mu.Unlock()
}

func (m *Memory) PutPurchase(p models.Purchase) {
	m.mu.Lock()
	m.purchases[p.ID] = p
	m.mu.Unlock()
}

func (m *Memory) Purchaser(ctx context.Context, id string) (*models.Purchaser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.purchasers[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (m *Memory) Document(ctx context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &d, nil
}

func (m *Memory) Purchase(ctx context.Context, id string) (*models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.purchases[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (m *Memory) SavePurchase(ctx context.Context, p *models.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.purchases[p.ID]; !ok {
		m.purchases[p.ID] = *p
	}
	return nil
}
