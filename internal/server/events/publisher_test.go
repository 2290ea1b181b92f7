package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "delivery.events")
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "delivery.events")
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "delivery.events"}
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	ev := models.DeliveryEvent{
		Type:        models.EventDeliveryFlagged,
		EntryID:     "e1",
		PurchaserID: "u1",
		DocumentID:  "d1",
		PurchaseID:  "p1",
		Labels:      []string{"excessive_downloads"},
		At:          at,
	}
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "delivery.events", msg.Topic)
	assert.Equal(t, []byte("e1"), msg.Key)
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, HeaderEventType, msg.Headers[0].Key)
	assert.Equal(t, models.EventDeliveryFlagged, string(msg.Headers[0].Value))

	var decoded models.DeliveryEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev, decoded)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: assert.AnError}, topic: "t"}

	err := p.Publish(context.Background(), models.DeliveryEvent{Type: models.EventDeliveryBlocked})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), models.EventDeliveryBlocked)
}

func TestLoggingPublisher(t *testing.T) {
	p := NewLoggingPublisher(logging.NewNop())
	assert.NoError(t, p.Publish(context.Background(), models.DeliveryEvent{Type: models.EventDeliveryPrepared}))
	assert.NoError(t, p.Close())
}
