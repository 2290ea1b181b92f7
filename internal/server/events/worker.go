package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

const (
	defaultInterval = 2 * time.Second
	batchSize       = 50
)

var errMalformedEvent = errors.New("malformed purchase event")

// Preparer records purchases and pre-generates their copies.
type Preparer interface {
	RecordPurchase(ctx context.Context, p *models.Purchase) error
	PrepareDelivery(ctx context.Context, purchaserID, documentID, purchaseID string) (string, error)
}

// PurchaseWorker turns purchase.completed messages into prepared copies.
type PurchaseWorker struct {
	logger   logging.Logger
	consumer Consumer
	preparer Preparer
	topic    string
	interval time.Duration
}

func NewPurchaseWorker(l logging.Logger, c Consumer, p Preparer, topic string, interval time.Duration) *PurchaseWorker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &PurchaseWorker{
		logger:   l.With("module", "events.purchase_worker"),
		consumer: c,
		preparer: p,
		topic:    topic,
		interval: interval,
	}
}

// Run polls until ctx is done. A full batch is followed immediately by
// another poll; otherwise the worker waits for the next tick.
func (w *PurchaseWorker) Run(ctx context.Context) error {
	w.logger.Info(ctx, "Starting purchase worker", "topic", w.topic)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		n, err := w.processOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error(ctx, "consumer iteration failed", "error", err.Error())
		}
		if ctx.Err() != nil {
			w.logger.Info(ctx, "Stopping purchase worker...")
			return nil
		}
		if n == batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Stopping purchase worker...")
			return nil
		case <-ticker.C:
		}
	}
}

// processOnce handles one batch. Handled, off-topic and malformed messages
// are committed; a message whose handling failed is left for redelivery.
func (w *PurchaseWorker) processOnce(ctx context.Context) (int, error) {
	msgs, err := w.consumer.Poll(ctx, batchSize)
	done := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Topic != w.topic {
			w.logger.Debug(ctx, "skipping message from unexpected topic", "topic", msg.Topic)
			done = append(done, msg)
			continue
		}
		herr := w.handle(ctx, msg.Payload)
		switch {
		case herr == nil:
			done = append(done, msg)
		case errors.Is(herr, errMalformedEvent):
			w.logger.Warn(ctx, "dropping malformed purchase.completed", "error", herr.Error())
			done = append(done, msg)
		default:
			w.logger.Warn(ctx, "failed to handle purchase.completed", "error", herr.Error())
		}
	}
	if cerr := w.consumer.Commit(ctx, done...); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return len(msgs), err
}

func (w *PurchaseWorker) handle(ctx context.Context, payload []byte) error {
	var ev models.PurchaseCompleted
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %w", errMalformedEvent, err)
	}

	err := w.preparer.RecordPurchase(ctx, &models.Purchase{
		ID:              ev.PurchaseID,
		PurchaserID:     ev.PurchaserID,
		ReferenceNumber: ev.ReferenceNumber,
		CompletedAt:     ev.CompletedAt,
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, docID := range ev.DocumentIDs {
		id, err := w.preparer.PrepareDelivery(ctx, ev.PurchaserID, docID, ev.PurchaseID)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s/%s: %w", ev.PurchaseID, docID, err))
			continue
		}
		w.logger.Info(ctx, "Delivery prepared", "purchase_id", ev.PurchaseID, "document_id", docID, "entry_id", id)
	}
	return errors.Join(errs...)
}
