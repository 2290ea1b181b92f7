// Package ledger persists usage ledger entries with optimistic concurrency.
package ledger

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

// Filter narrows List by entry creation time (both bounds inclusive) and
// document. Zero values mean "no bound".
type Filter struct {
	From       time.Time
	To         time.Time
	DocumentID string
}

// Repository stores ledger entries.
//
// Insert fails with common.ErrVersionConflict when an entry for the same key
// already exists. Update is a compare-and-swap on Version: it succeeds only if
// the stored version equals e.Version, and on success e.Version is advanced.
type Repository interface {
	Get(ctx context.Context, key models.LedgerKey) (*models.LedgerEntry, error)
	GetByID(ctx context.Context, id string) (*models.LedgerEntry, error)
	Insert(ctx context.Context, e *models.LedgerEntry) error
	Update(ctx context.Context, e *models.LedgerEntry) error
	List(ctx context.Context, f Filter) ([]*models.LedgerEntry, error)
}

func (f Filter) match(e *models.LedgerEntry) bool {
	if f.DocumentID != "" && e.Key.DocumentID != f.DocumentID {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}
