package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

// ErrInvalidPurchase rejects purchase announcements missing their ids.
var ErrInvalidPurchase = errors.New("invalid purchase")

// RecordPurchase mirrors a purchase announced by the storefront into the
// catalog so later lookups find it. An already known purchase is kept.
func (o *Orchestrator) RecordPurchase(ctx context.Context, p *models.Purchase) (err error) {
	ctx, span := o.tracer.Start(ctx, "delivery.RecordPurchase")
	defer func() { endSpan(span, err) }()

	if p.ID == "" || p.PurchaserID == "" {
		return fmt.Errorf("%w: purchase and purchaser ids are required", ErrInvalidPurchase)
	}
	if err := o.catalog().SavePurchase(ctx, p); err != nil {
		return fmt.Errorf("record purchase %s: %w", p.ID, err)
	}
	return nil
}
