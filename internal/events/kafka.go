package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by Event.Key.
type KafkaPublisher struct {
	writer messageWriter
	log    *logrus.Entry
	topic  string
}

var _ Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(cfg config.KafkaConfig, log *logrus.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka configuration incomplete: both brokers and topic are required")
	}
	entry := log.WithField("component", "events")

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			entry.Errorf("kafka writer: "+msg, args...)
		}),
	}
	entry.WithField("brokers", cfg.Brokers).WithField("topic", cfg.Topic).Info("kafka publisher created")

	return &KafkaPublisher{writer: w, log: entry, topic: cfg.Topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to serialize event %s: %w", ev.ID, err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(ev.Key),
			Value: body,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(ev.Type)},
			},
		}
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.log.WithError(err).WithField("count", len(events)).Error("failed to publish events")
		return fmt.Errorf("failed to write to kafka: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	p.log.Info("closing kafka publisher")
	return p.writer.Close()
}
