package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/twofa/pkg/slogx"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	w := &recordingWriter{}
	sink := &KafkaSink{w: w, now: func() time.Time { return at }}

	require.NoError(t, sink.NotifyTwoFactorEnabled(context.Background(), "ada@example.com", "Ada"))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "ada@example.com", string(msg.Key))
	require.Equal(t, []kafka.Header{{Key: "type", Value: []byte(EventTwoFactorEnabled)}}, msg.Headers)

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	require.Equal(t, EventTwoFactorEnabled, ev.Type)
	require.Equal(t, "Ada", ev.FirstName)
	require.True(t, at.Equal(ev.OccurredAt))
	require.NotEmpty(t, ev.ID)

	require.NoError(t, sink.Close())
	require.True(t, w.closed)
}

func TestKafkaSinkError(t *testing.T) {
	down := errors.New("leader not available")
	sink := &KafkaSink{w: &recordingWriter{err: down}, now: time.Now}

	err := sink.NotifyTwoFactorEnabled(context.Background(), "ada@example.com", "Ada")
	require.ErrorIs(t, err, down)
}

func TestNewKafkaSink(t *testing.T) {
	sink := NewKafkaSink([]string{"localhost:9092"}, "account-notices", nil)
	w, ok := sink.w.(*kafka.Writer)
	require.True(t, ok)
	require.Equal(t, 3, w.MaxAttempts)
	require.Equal(t, "account-notices", w.Topic)
	require.NoError(t, sink.Close())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	ctx := slogx.WithContext(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, LogSink{}.NotifyTwoFactorEnabled(ctx, "ada@example.com", "Ada"))
	require.Contains(t, buf.String(), `"type":"two_factor_enabled"`)
}
