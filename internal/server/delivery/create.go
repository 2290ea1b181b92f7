package delivery

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/server/credential"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/dmitrijs2005/docdelivery/internal/server/watermark"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CreateDelivery returns a fresh download token for the triple, reusing the
// stored copy when it is still present and generating one otherwise.
//
// Errors: common.ErrNotFound for unknown or mismatched catalog records,
// common.ErrInvalidDocumentType for non-PDF or non-digital documents,
// common.ErrArtifactMissing when the document has no source file, plus
// generation and storage errors.
func (o *Orchestrator) CreateDelivery(ctx context.Context, purchaserID, documentID, purchaseID string, opts models.DeliveryOptions) (grant *models.DeliveryGrant, err error) {
	key := models.LedgerKey{PurchaserID: purchaserID, DocumentID: documentID, PurchaseID: purchaseID}
	ctx, span := o.tracer.Start(ctx, "delivery.CreateDelivery", trace.WithAttributes(keyAttrs(key)...))
	defer func() { endSpan(span, err) }()

	req, err := o.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	entry, reusable, err := o.reusable(ctx, key)
	if err != nil {
		return nil, err
	}

	path := "reuse"
	if !reusable {
		path = "generated"
		if entry != nil && entry.Blocked {
			o.logger.Info(ctx, "regenerating copy for blocked entry", "entry_id", entry.ID, "key", key.String())
		}
		if entry, err = o.ensureCopy(ctx, req, key); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("delivery.path", path))

	issued, err := o.creds.Issue(purchaserID, documentID, purchaseID, opts.DeviceFingerprint)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	now := o.clock.Now()
	_, err = o.mutate(ctx, entry.ID, func(e *models.LedgerEntry) error {
		live := e.Tokens[:0:0]
		for _, t := range e.Tokens {
			if t.ExpiresAt.After(now) {
				live = append(live, t)
			}
		}
		e.Tokens = append(live, models.IssuedToken{
			ID:        issued.Payload.TokenID,
			IssuedAt:  issued.Payload.IssuedAt(),
			ExpiresAt: issued.Payload.ExpiresAt(),
			Active:    true,
		})
		if reusable {
			e.AccessCount++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record token: %w", err)
	}

	o.metrics.IncDelivery(path)
	o.logger.Info(ctx, "delivery created",
		"entry_id", entry.ID, "path", path, "token", credential.Fragment(issued.Token))

	return &models.DeliveryGrant{
		DownloadID: entry.ID,
		Token:      issued.Token,
		ExpiresAt:  issued.Payload.ExpiresAt(),
	}, nil
}

// PrepareDelivery makes sure a copy exists for the triple without issuing a
// token and returns the ledger entry id.
func (o *Orchestrator) PrepareDelivery(ctx context.Context, purchaserID, documentID, purchaseID string) (id string, err error) {
	key := models.LedgerKey{PurchaserID: purchaserID, DocumentID: documentID, PurchaseID: purchaseID}
	ctx, span := o.tracer.Start(ctx, "delivery.PrepareDelivery", trace.WithAttributes(keyAttrs(key)...))
	defer func() { endSpan(span, err) }()

	req, err := o.lookup(ctx, key)
	if err != nil {
		return "", err
	}
	entry, reusable, err := o.reusable(ctx, key)
	if err != nil {
		return "", err
	}
	if !reusable {
		if entry, err = o.ensureCopy(ctx, req, key); err != nil {
			return "", err
		}
	}
	o.publish(ctx, eventFor(models.EventDeliveryPrepared, entry))
	return entry.ID, nil
}

// lookup resolves and validates the catalog records behind key.
func (o *Orchestrator) lookup(ctx context.Context, key models.LedgerKey) (watermark.Request, error) {
	cat := o.catalog()

	purchaser, err := cat.Purchaser(ctx, key.PurchaserID)
	if err != nil {
		return watermark.Request{}, fmt.Errorf("purchaser %s: %w", key.PurchaserID, err)
	}
	doc, err := cat.Document(ctx, key.DocumentID)
	if err != nil {
		return watermark.Request{}, fmt.Errorf("document %s: %w", key.DocumentID, err)
	}
	purchase, err := cat.Purchase(ctx, key.PurchaseID)
	if err != nil {
		return watermark.Request{}, fmt.Errorf("purchase %s: %w", key.PurchaseID, err)
	}
	if purchase.PurchaserID != purchaser.ID {
		return watermark.Request{}, fmt.Errorf("purchase %s: %w", key.PurchaseID, common.ErrNotFound)
	}
	if doc.Kind != models.DocumentKindDigital || !isPDF(doc.ContentType) {
		return watermark.Request{}, fmt.Errorf("document %s (%s, %q): %w", doc.ID, doc.Kind, doc.ContentType, common.ErrInvalidDocumentType)
	}
	if doc.SourcePath == "" {
		return watermark.Request{}, fmt.Errorf("document %s: %w", doc.ID, common.ErrArtifactMissing)
	}
	return watermark.Request{Document: *doc, Purchaser: *purchaser, Purchase: *purchase}, nil
}

// reusable loads the entry for key and reports whether its copy can be
// handed out as is: the entry is not blocked and its blob still exists.
func (o *Orchestrator) reusable(ctx context.Context, key models.LedgerKey) (*models.LedgerEntry, bool, error) {
	entry, err := o.ledger().Get(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load ledger entry: %w", err)
	}
	if entry.Blocked || entry.Copy.Path == "" {
		return entry, false, nil
	}
	ok, err := o.store.Exists(ctx, entry.Copy.Path)
	if err != nil {
		return nil, false, fmt.Errorf("check copy: %w", err)
	}
	return entry, ok, nil
}

// ensureCopy generates the copy for key at most once at a time. Concurrent
// callers in this process share one generation; other instances are
// excluded by the distributed lock and pick up the winner's entry.
func (o *Orchestrator) ensureCopy(ctx context.Context, req watermark.Request, key models.LedgerKey) (*models.LedgerEntry, error) {
	ch := o.group.DoChan(key.String(), func() (any, error) {
		return o.generateLocked(context.WithoutCancel(ctx), req, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("delivery.shared_generation", r.Shared))
		return r.Val.(*models.LedgerEntry).Clone(), nil
	}
}

func (o *Orchestrator) generateLocked(ctx context.Context, req watermark.Request, key models.LedgerKey) (*models.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.LockTTL)
	defer cancel()

	unlock, err := o.locker.Lock(ctx, "copy:"+key.String(), o.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("generation lock %s: %w", key, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			o.logger.Warn(ctx, "release generation lock", "key", key.String(), "error", err.Error())
		}
	}()

	// Another instance may have finished while we waited for the lock.
	entry, ok, err := o.reusable(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return entry, nil
	}

	c, err := o.engine.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		now := o.clock.Now().UTC()
		fresh := &models.LedgerEntry{
			ID:        uuid.NewString(),
			Key:       key,
			Copy:      *c,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := o.ledger().Insert(ctx, fresh)
		if err == nil {
			o.logger.Info(ctx, "ledger entry created", "entry_id", fresh.ID, "key", key.String())
			return fresh, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return nil, fmt.Errorf("create ledger entry: %w", err)
		}
		if entry, err = o.ledger().Get(ctx, key); err != nil {
			return nil, fmt.Errorf("load ledger entry: %w", err)
		}
	}

	// Existing entry: swap in the new copy, blocked state untouched.
	updated, err := o.mutate(ctx, entry.ID, func(e *models.LedgerEntry) error {
		e.Copy = *c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update ledger entry: %w", err)
	}
	return updated, nil
}

func isPDF(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(contentType)
	}
	return strings.EqualFold(mt, common.PDFContentType)
}

func keyAttrs(k models.LedgerKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("purchaser.id", k.PurchaserID),
		attribute.String("document.id", k.DocumentID),
		attribute.String("purchase.id", k.PurchaseID),
	}
}
