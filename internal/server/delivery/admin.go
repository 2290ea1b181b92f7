package delivery

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/docdelivery/internal/server/analytics"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SetBlocked blocks or unblocks the entry for the triple. Blocking
// deactivates every issued token; unblocking does not reactivate them, so
// the purchaser needs a new delivery.
func (o *Orchestrator) SetBlocked(ctx context.Context, purchaserID, documentID, purchaseID string, blocked bool, reason string) (entry *models.LedgerEntry, err error) {
	key := models.LedgerKey{PurchaserID: purchaserID, DocumentID: documentID, PurchaseID: purchaseID}
	ctx, span := o.tracer.Start(ctx, "delivery.SetBlocked",
		trace.WithAttributes(append(keyAttrs(key), attribute.Bool("blocked", blocked))...))
	defer func() { endSpan(span, err) }()

	current, err := o.ledger().Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("ledger entry %s: %w", key, err)
	}

	revoked := 0
	entry, err = o.mutate(ctx, current.ID, func(e *models.LedgerEntry) error {
		revoked = 0
		if blocked {
			at := o.clock.Now().UTC()
			if !e.Blocked {
				e.BlockedAt = &at
			}
			e.Blocked = true
			e.BlockedReason = reason
			revoked = e.DeactivateTokens()
			return nil
		}
		e.Blocked = false
		e.BlockedReason = ""
		e.BlockedAt = nil
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update ledger entry: %w", err)
	}

	o.logger.Info(ctx, "entry block state changed",
		"entry_id", entry.ID, "blocked", blocked, "reason", reason, "tokens_revoked", revoked)
	ev := eventFor(models.EventDeliveryBlocked, entry)
	ev.Blocked = blocked
	ev.Reason = reason
	o.publish(ctx, ev)
	return entry, nil
}

// GetAnalytics returns a rollup over the ledger.
func (o *Orchestrator) GetAnalytics(ctx context.Context, f models.AnalyticsFilter) (rep *models.AnalyticsReport, err error) {
	ctx, span := o.tracer.Start(ctx, "delivery.GetAnalytics")
	defer func() { endSpan(span, err) }()
	if f.RecentLimit <= 0 {
		f.RecentLimit = o.cfg.RecentLimit
	}
	return analytics.NewAggregator(o.ledger(), o.clock).Report(ctx, f)
}
