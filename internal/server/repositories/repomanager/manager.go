// Package repomanager hands out ledger and catalog repositories for a
// storage backend and runs its schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docdelivery/internal/dbx"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/ledger"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Ledger(db dbx.DBTX) ledger.Repository
	Catalog(db dbx.DBTX) catalog.Catalog
}

// MemoryRepositoryManager serves process-local repositories. The db argument
// is ignored; every call returns the same store.
type MemoryRepositoryManager struct {
	ledger  *ledger.MemoryRepository
	catalog *catalog.Memory
}

func NewMemoryRepositoryManager(c *catalog.Memory) *MemoryRepositoryManager {
	if c == nil {
		c = catalog.NewMemory()
	}
	return &MemoryRepositoryManager{ledger: ledger.NewMemoryRepository(), catalog: c}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Ledger(dbx.DBTX) ledger.Repository { return m.ledger }

func (m *MemoryRepositoryManager) Catalog(dbx.DBTX) catalog.Catalog { return m.catalog }
