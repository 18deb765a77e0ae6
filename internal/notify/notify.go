// Package notify publishes release lifecycle events.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/ironsheep/image-release-tools/internal/logging"
)

// Event reports that a release reached a terminal state.
type Event struct {
	ReleaseID       string    `json:"release_id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	GeneratedImages int       `json:"generated_images"`
	FailedCount     int       `json:"failed_count"`
	ArchivePath     string    `json:"archive_path,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Notifier delivers events. Delivery failures are returned to the caller,
// which logs them; they never change a release outcome.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Close() error
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a notifier on the package logger.
func NewLogNotifier() *LogNotifier { return &LogNotifier{log: logging.L()} }

func (n *LogNotifier) Notify(ctx context.Context, ev Event) error {
	n.log.InfoContext(ctx, "release finished",
		"release_id", ev.ReleaseID,
		"name", ev.Name,
		"status", ev.Status,
		"generated", ev.GeneratedImages,
		"failed", ev.FailedCount,
		"archive", ev.ArchivePath,
	)
	return nil
}

func (n *LogNotifier) Close() error { return nil }

// KafkaConfig configures a KafkaNotifier.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" koanf:"brokers"`
	Topic   string   `yaml:"topic" koanf:"topic"`
	// Acks is 0, 1 or -1 (all).
	Acks     int16  `yaml:"required_acks" koanf:"required_acks"`
	ClientID string `yaml:"client_id" koanf:"client_id"`
}

// KafkaNotifier publishes events as JSON keyed by release id.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier connects a synchronous producer to cfg.Brokers.
func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka notifier: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka notifier: no topic configured")
	}
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka notifier: %w", err)
	}
	return NewKafkaNotifierWithProducer(p, cfg.Topic), nil
}

// NewKafkaNotifierWithProducer wraps an existing producer.
func NewKafkaNotifierWithProducer(p sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: p, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka notifier: %w", err)
	}
	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(ev.ReleaseID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("kafka notifier: publish %s: %w", ev.ReleaseID, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error { return n.producer.Close() }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
