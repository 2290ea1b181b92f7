// Package events connects the delivery core to Kafka: it publishes
// delivery notifications and consumes completed purchases.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/segmentio/kafka-go"
)

// HeaderEventType names the Kafka header carrying DeliveryEvent.Type.
const HeaderEventType = "event_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	io.Closer
}

// KafkaPublisher writes delivery events to one topic, keyed by entry id so
// events for the same entry stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev models.DeliveryEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(ev.EntryID),
		Value:   payload,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(ev.Type)}},
		Time:    ev.At,
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LoggingPublisher records events in the log when no broker is configured.
type LoggingPublisher struct {
	logger logging.Logger
}

func NewLoggingPublisher(l logging.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: l.With("module", "events.publisher")}
}

func (p *LoggingPublisher) Publish(ctx context.Context, ev models.DeliveryEvent) error {
	p.logger.Info(ctx, "event published",
		"event_type", ev.Type,
		"entry_id", ev.EntryID,
		"labels", ev.Labels,
	)
	return nil
}

func (p *LoggingPublisher) Close() error { return nil }
