package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePreparer struct {
	mu        sync.Mutex
	purchases []models.Purchase
	prepared  []string
	failDoc   string
	recordErr error
}

func (p *fakePreparer) RecordPurchase(_ context.Context, pu *models.Purchase) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.recordErr != nil {
		return p.recordErr
	}
	p.purchases = append(p.purchases, *pu)
	return nil
}

func (p *fakePreparer) PrepareDelivery(_ context.Context, purchaserID, documentID, purchaseID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if documentID == p.failDoc {
		return "", common.ErrInvalidDocumentType
	}
	p.prepared = append(p.prepared, purchaserID+"/"+documentID+"/"+purchaseID)
	return "entry-" + documentID, nil
}

func (p *fakePreparer) snapshot() ([]models.Purchase, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Purchase(nil), p.purchases...), append([]string(nil), p.prepared...)
}

// queueConsumer hands out one batch per Poll.
type queueConsumer struct {
	mu        sync.Mutex
	batches   [][]Message
	committed []string
	commitErr error
}

func (c *queueConsumer) Poll(ctx context.Context, _ int) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batches) == 0 {
		return nil, ctx.Err()
	}
	b := c.batches[0]
	c.batches = c.batches[1:]
	return b, nil
}

func (c *queueConsumer) Commit(_ context.Context, msgs ...Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commitErr != nil {
		return c.commitErr
	}
	for _, m := range msgs {
		c.committed = append(c.committed, m.Topic+"/"+string(m.Key))
	}
	return nil
}

func (c *queueConsumer) Close() error { return nil }

func purchaseMessage(t *testing.T, ev models.PurchaseCompleted) Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return Message{Topic: "purchase.completed", Key: []byte(ev.PurchaseID), Payload: b}
}

func TestPurchaseWorker_ProcessOnce(t *testing.T) {
	completed := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	c := &queueConsumer{batches: [][]Message{{
		purchaseMessage(t, models.PurchaseCompleted{
			PurchaseID: "p1", PurchaserID: "u1", ReferenceNumber: "ORD-1",
			CompletedAt: completed, DocumentIDs: []string{"d1", "d2", "bad"},
		}),
		{Topic: "other.topic", Payload: []byte(`{}`)},
		{Topic: "purchase.completed", Key: []byte("bad-json"), Payload: []byte(`not json`)},
	}}}
	p := &fakePreparer{failDoc: "bad"}
	w := NewPurchaseWorker(logging.NewNop(), c, p, "purchase.completed", time.Millisecond)

	n, err := w.processOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	purchases, prepared := p.snapshot()
	assert.Equal(t, []models.Purchase{{ID: "p1", PurchaserID: "u1", ReferenceNumber: "ORD-1", CompletedAt: completed}}, purchases)
	assert.Equal(t, []string{"u1/d1/p1", "u1/d2/p1"}, prepared)
	assert.Equal(t, []string{"other.topic/", "purchase.completed/bad-json"}, c.committed,
		"a purchase whose preparation failed stays uncommitted")
}

func TestPurchaseWorker_CommitsHandledMessages(t *testing.T) {
	c := &queueConsumer{batches: [][]Message{{
		purchaseMessage(t, models.PurchaseCompleted{PurchaseID: "p1", PurchaserID: "u1", DocumentIDs: []string{"d1"}}),
		purchaseMessage(t, models.PurchaseCompleted{PurchaseID: "p2", PurchaserID: "u2", DocumentIDs: []string{"d2"}}),
	}}}
	w := NewPurchaseWorker(logging.NewNop(), c, &fakePreparer{}, "purchase.completed", time.Millisecond)

	n, err := w.processOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"purchase.completed/p1", "purchase.completed/p2"}, c.committed)
}

func TestPurchaseWorker_CommitFailureIsReported(t *testing.T) {
	c := &queueConsumer{
		batches: [][]Message{{
			purchaseMessage(t, models.PurchaseCompleted{PurchaseID: "p1", PurchaserID: "u1", DocumentIDs: []string{"d1"}}),
		}},
		commitErr: assert.AnError,
	}
	p := &fakePreparer{}
	w := NewPurchaseWorker(logging.NewNop(), c, p, "purchase.completed", time.Millisecond)

	_, err := w.processOnce(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	_, prepared := p.snapshot()
	assert.Equal(t, []string{"u1/d1/p1"}, prepared)
}

func TestPurchaseWorker_HandleReportsFailures(t *testing.T) {
	p := &fakePreparer{failDoc: "d2"}
	w := NewPurchaseWorker(logging.NewNop(), NewNoopConsumer(), p, "purchase.completed", 0)

	payload, err := json.Marshal(models.PurchaseCompleted{PurchaseID: "p1", PurchaserID: "u1", DocumentIDs: []string{"d1", "d2"}})
	require.NoError(t, err)

	err = w.handle(context.Background(), payload)
	assert.ErrorIs(t, err, common.ErrInvalidDocumentType)
	_, prepared := p.snapshot()
	assert.Equal(t, []string{"u1/d1/p1"}, prepared)

	p.recordErr = assert.AnError
	err = w.handle(context.Background(), payload)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPurchaseWorker_RunStopsOnCancel(t *testing.T) {
	c := &queueConsumer{batches: [][]Message{{
		purchaseMessage(t, models.PurchaseCompleted{PurchaseID: "p9", PurchaserID: "u9", DocumentIDs: []string{"d9"}}),
	}}}
	p := &fakePreparer{}
	w := NewPurchaseWorker(logging.NewNop(), c, p, "purchase.completed", 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, prepared := p.snapshot()
		return len(prepared) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
