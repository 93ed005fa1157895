// Package notify delivers account notices produced by the 2FA flows.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/twofa/pkg/idx"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
	"github.com/segmentio/kafka-go"
)

const EventTwoFactorEnabled = "two_factor_enabled"

// Event is the JSON payload written to the notification topic. A mailer
// downstream turns it into the user-facing email.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes notices to a Kafka topic. The writer retries a
// bounded number of times; what still fails is returned to the caller,
// which logs and drops it.
type KafkaSink struct {
	w   messageWriter
	now func() time.Time
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			WriteTimeout: 5 * time.Second,
			Logger: kafka.LoggerFunc(func(msg string, args ...any) {
				logger.Debug(fmt.Sprintf(msg, args...), "component", "kafka")
			}),
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
				logger.Warn(fmt.Sprintf(msg, args...), "component", "kafka")
			}),
		},
		now: time.Now,
	}
}

func (s *KafkaSink) NotifyTwoFactorEnabled(ctx context.Context, email, firstName string) error {
	now := s.now().UTC()
	ev := Event{
		ID:         idx.NewAt(now).String(),
		Type:       EventTwoFactorEnabled,
		Email:      email,
		FirstName:  firstName,
		OccurredAt: now,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	// Keyed by email so one account's notices stay ordered on a partition.
	err = s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(email),
		Value: data,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: publish %s: %w", ev.Type, err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }

// LogSink only logs notices. It is used when no broker is configured.
type LogSink struct{}

func (LogSink) NotifyTwoFactorEnabled(ctx context.Context, email, firstName string) error {
	slogx.FromContext(ctx).Info("notification", "type", EventTwoFactorEnabled, "email", email, "first_name", firstName)
	return nil
}

func (LogSink) Close() error { return nil }
