// Package catalog exposes read access to purchasers, documents and purchases.
// The catalog is owned elsewhere; this service only looks records up, apart
// from SavePurchase which mirrors purchases announced by events.
package catalog

import (
	"context"

	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

type Purchasers interface {
	Purchaser(ctx context.Context, id string) (*models.Purchaser, error)
}

type Documents interface {
	Document(ctx context.Context, id string) (*models.Document, error)
}

type Purchases interface {
	Purchase(ctx context.Context, id string) (*models.Purchase, error)
	SavePurchase(ctx context.Context, p *models.Purchase) error
}

// Catalog bundles the three lookups.
type Catalog interface {
	Purchasers
	Documents
	Purchases
}
