package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) snapshot() ([]kafka.Message, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...), w.closed
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func tracedContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestKafkaRelayForwardsBusEvents(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger := zerolog.New(io.Discard)
	writer := &fakeWriter{}
	relay := NewKafkaRelay(writer, 8, &logger)

	bus := NewEventBus()
	bus.SubscribeAll(relay.Handle)

	ctx := tracedContext(t)
	payload := AppointmentEventPayload{AppointmentID: "appt-1", SalonID: "s1", Status: "confirmed"}
	require.NoError(t, bus.PublishJSON(ctx, EventAppointmentConfirmed, payload))

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Start(runCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		msgs, _ := writer.snapshot()
		return len(msgs) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	msgs, closed := writer.snapshot()
	assert.True(t, closed)
	assert.Equal(t, "appt-1", string(msgs[0].Key))
	assert.Equal(t, EventAppointmentConfirmed, header(msgs[0], "event_type"))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header(msgs[0], "traceparent"))

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msgs[0]))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", extracted.TraceID().String())
}

func TestKafkaRelayQueueFull(t *testing.T) {
	logger := zerolog.New(io.Discard)
	relay := NewKafkaRelay(&fakeWriter{}, 1, &logger)

	require.NoError(t, relay.Handle(context.Background(), &Event{Type: "a", Key: "1"}))
	assert.ErrorIs(t, relay.Handle(context.Background(), &Event{Type: "a", Key: "2"}), ErrRelayFull)
}

func TestKafkaRelayFlushesOnShutdown(t *testing.T) {
	logger := zerolog.New(io.Discard)
	writer := &fakeWriter{}
	relay := NewKafkaRelay(writer, 4, &logger)

	for _, key := range []string{"1", "2", "3"} {
		require.NoError(t, relay.Handle(context.Background(), &Event{Type: "a", Key: key}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	relay.Start(ctx)

	msgs, closed := writer.snapshot()
	assert.True(t, closed)
	assert.Len(t, msgs, 3)
}

func TestKafkaRelayWriteErrorIsLogged(t *testing.T) {
	logger := zerolog.New(io.Discard)
	writer := &fakeWriter{err: errors.New("broker down")}
	relay := NewKafkaRelay(writer, 4, &logger)
	require.NoError(t, relay.Handle(context.Background(), &Event{Type: "a", Key: "1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { relay.Start(ctx) })
}

func TestHeaderCarrierOverwrites(t *testing.T) {
	c := &kafkaHeaderCarrier{headers: []kafka.Header{{Key: "traceparent", Value: []byte("old")}}}
	c.Set("traceparent", "new")
	c.Set("tracestate", "x=1")

	assert.Equal(t, "new", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent", "tracestate"}, c.Keys())
}
