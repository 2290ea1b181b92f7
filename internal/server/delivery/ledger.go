package delivery

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/cryptox"
	"github.com/dmitrijs2005/docdelivery/internal/dbx"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// mutate applies fn to a freshly loaded entry and writes it back with a
// version check, retrying on lost races. fn runs once per attempt and must
// not keep state between attempts other than through its return value.
func (o *Orchestrator) mutate(ctx context.Context, id string, fn func(e *models.LedgerEntry) error) (*models.LedgerEntry, error) {
	repo := o.ledger()
	var out *models.LedgerEntry
	err := dbx.RetryOnConflict(ctx, o.cfg.ConflictRetries, func(ctx context.Context) error {
		e, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
		e.UpdatedAt = o.clock.Now().UTC()
		if err := repo.Update(ctx, e); err != nil {
			if errors.Is(err, common.ErrVersionConflict) {
				o.metrics.IncConflict()
			}
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// recordFailure appends an unsuccessful attempt. It never changes the
// access count and only logs its own errors.
func (o *Orchestrator) recordFailure(ctx context.Context, id string, info models.RequestInfo, reason string) {
	_, err := o.mutate(ctx, id, func(e *models.LedgerEntry) error {
		o.appendHistory(e, models.AccessRecord{
			At:                o.clock.Now().UTC(),
			Origin:            info.Origin,
			ClientSignature:   info.ClientSignature,
			DeviceFingerprint: info.DeviceFingerprint,
			Success:           false,
			Reason:            reason,
		})
		return nil
	})
	if err != nil {
		o.logger.Warn(ctx, "record failed attempt", "entry_id", id, "reason", reason, "error", err.Error())
	}
}

func (o *Orchestrator) appendHistory(e *models.LedgerEntry, r models.AccessRecord) {
	e.History = append(e.History, r)
	if over := len(e.History) - o.cfg.MaxHistory; over > 0 {
		e.History = append(e.History[:0:0], e.History[over:]...)
	}
}

// deviceKey identifies the device an access came from. Without an explicit
// fingerprint the client signature stands in for it.
func deviceKey(info models.RequestInfo) string {
	switch {
	case info.DeviceFingerprint != "":
		return info.DeviceFingerprint
	case info.ClientSignature != "":
		return "sig:" + cryptox.Fingerprint(nil, info.ClientSignature)
	default:
		return "unknown"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
