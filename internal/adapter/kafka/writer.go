// Package kafka publishes committed hazard events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hazard-map-service/internal/config"
	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces one message per event to the configured topic.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string {
	return "kafka"
}

// Publish serializes and writes the events of one committed fetch in a single
// WriteMessages call. Events are keyed by ID so a re-fetch of the same range
// lands on the same partitions.
func (w *Writer) Publish(ctx context.Context, events []domain.HazardEvent, rng domain.FetchRange) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i], rng.LoadedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write hazard events: %w", err)
	}
	w.logger.Debug("hazard events published", "event_count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// eventMessage is the JSON value of a published event.
type eventMessage struct {
	domain.HazardEvent
	Severity domain.SeverityClass `json:"severity"`
	Threat   string               `json:"threat"`
	LoadedAt time.Time            `json:"loaded_at"`
}

// serializeToMessage marshals a HazardEvent into a Kafka message.
func serializeToMessage(event domain.HazardEvent, loadedAt time.Time) (kafkago.Message, error) {
	class := event.Severity()
	data, err := json.Marshal(eventMessage{
		HazardEvent: event,
		Severity:    class,
		Threat:      domain.ThreatLabel(class),
		LoadedAt:    loadedAt.UTC(),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize hazard event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(class.String())},
			{Key: "loaded_at", Value: []byte(loadedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
