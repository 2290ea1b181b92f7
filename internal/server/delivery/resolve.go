package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/server/credential"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"go.opentelemetry.io/otel/attribute"
)

// ResolveDelivery redeems a download token for a short-lived retrieval
// handle and records the access.
//
// Errors: common.ErrInvalidToken for any token problem (the reason is only
// logged), common.ErrNotFound when no ledger entry exists, common.ErrBlocked
// and common.ErrArtifactMissing (both recorded as failed attempts), plus
// storage errors.
func (o *Orchestrator) ResolveDelivery(ctx context.Context, token string, info models.RequestInfo) (res *models.DeliveryResult, err error) {
	ctx, span := o.tracer.Start(ctx, "delivery.ResolveDelivery")
	defer func() {
		o.metrics.IncResolve(resolveOutcome(err))
		endSpan(span, err)
	}()

	p, err := o.creds.Verify(ctx, token, info.DeviceFingerprint)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	key := p.Key()
	span.SetAttributes(keyAttrs(key)...)

	entry, err := o.ledger().Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("ledger entry %s: %w", key, common.ErrNotFound)
		}
		return nil, fmt.Errorf("load ledger entry: %w", err)
	}
	span.SetAttributes(attribute.String("ledger.entry_id", entry.ID))

	if entry.Blocked {
		o.recordFailure(ctx, entry.ID, info, "blocked")
		o.logger.Info(ctx, "download refused", "entry_id", entry.ID, "reason", "blocked", "token", credential.Fragment(token))
		return nil, common.ErrBlocked
	}
	if !entry.TokenActive(p.TokenID) {
		o.logger.Debug(ctx, "token rejected", "reason", "inactive or unknown token id", "token", credential.Fragment(token))
		return nil, common.ErrInvalidToken
	}

	ok, err := o.store.Exists(ctx, entry.Copy.Path)
	if err != nil {
		return nil, fmt.Errorf("check copy: %w", err)
	}
	if !ok {
		o.recordFailure(ctx, entry.ID, info, "artifact_missing")
		return nil, fmt.Errorf("copy %s: %w", entry.Copy.Path, common.ErrArtifactMissing)
	}

	handle, err := o.store.MintReadHandle(ctx, entry.Copy.Path, o.cfg.HandleValidity)
	if err != nil {
		return nil, fmt.Errorf("mint handle: %w", err)
	}
	now := o.clock.Now().UTC()

	var added []string
	updated, err := o.mutate(ctx, entry.ID, func(e *models.LedgerEntry) error {
		if e.Blocked {
			return common.ErrBlocked
		}
		o.appendHistory(e, models.AccessRecord{
			At:                now,
			Origin:            info.Origin,
			ClientSignature:   info.ClientSignature,
			DeviceFingerprint: info.DeviceFingerprint,
			Success:           true,
		})
		e.AccessCount++
		e.BytesServed += e.Copy.SizeBytes
		e.TouchDevice(deviceKey(info), now)
		added = e.AddFlags(o.detector.Evaluate(e, now)...)
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrBlocked) {
			o.recordFailure(ctx, entry.ID, info, "blocked")
			return nil, common.ErrBlocked
		}
		return nil, fmt.Errorf("record access: %w", err)
	}

	if len(added) > 0 {
		for _, l := range added {
			o.metrics.IncFlag(l)
		}
		o.logger.Warn(ctx, "suspicious activity", "entry_id", updated.ID, "labels", added)
		ev := eventFor(models.EventDeliveryFlagged, updated)
		ev.Labels = added
		o.publish(ctx, ev)
	}

	return &models.DeliveryResult{
		RetrievalHandle: handle,
		FileName:        updated.Copy.FileName,
		FileSize:        updated.Copy.SizeBytes,
		AccessCount:     updated.AccessCount,
		HandleExpiresAt: now.Add(o.cfg.HandleValidity),
	}, nil
}

func resolveOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, common.ErrBlocked):
		return "blocked"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrArtifactMissing):
		return "artifact_missing"
	case common.IsRetryable(err):
		return "storage_unavailable"
	default:
		return "error"
	}
}
