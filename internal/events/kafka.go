package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MessageWriter is the subset of *kafka.Writer the relay needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a writer that hashes message keys onto partitions,
// so every event of one appointment lands on the same partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
}

var ErrRelayFull = errors.New("kafka relay queue is full")

// KafkaRelay forwards bus events to Kafka from a background goroutine.
type KafkaRelay struct {
	writer       MessageWriter
	queue        chan kafka.Message
	writeTimeout time.Duration
	logger       *zerolog.Logger
	closeOnce    sync.Once
}

func NewKafkaRelay(writer MessageWriter, queueSize int, logger *zerolog.Logger) *KafkaRelay {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &KafkaRelay{
		writer:       writer,
		queue:        make(chan kafka.Message, queueSize),
		writeTimeout: 5 * time.Second,
		logger:       logger,
	}
}

// Handle is an EventHandler. It never blocks: when the queue is full the
// event is dropped and ErrRelayFull returned.
func (r *KafkaRelay) Handle(ctx context.Context, event *Event) error {
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)

	select {
	case r.queue <- msg:
		return nil
	default:
		r.logger.Warn().Str("event_type", event.Type).Str("key", event.Key).Msg("kafka relay queue full, dropping event")
		return ErrRelayFull
	}
}

// Start drains the queue until ctx is cancelled, then flushes what is left
// and closes the writer.
func (r *KafkaRelay) Start(ctx context.Context) {
	r.logger.Info().Msg("kafka relay started")
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case msg := <-r.queue:
			r.write(context.Background(), msg)
		}
	}
}

func (r *KafkaRelay) flush() {
	for {
		select {
		case msg := <-r.queue:
			r.write(context.Background(), msg)
		default:
			r.closeOnce.Do(func() {
				if err := r.writer.Close(); err != nil {
					r.logger.Error().Err(err).Msg("failed to close kafka writer")
				}
			})
			r.logger.Info().Msg("kafka relay stopped")
			return
		}
	}
}

func (r *KafkaRelay) write(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.logger.Error().Err(err).Str("key", string(msg.Key)).Msg("failed to publish event to kafka")
	}
}

// InjectTraceHeaders appends W3C trace context headers to Kafka headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &kafkaHeaderCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

// ExtractTraceContext returns a context carrying the trace found in msg's headers.
func ExtractTraceContext(ctx context.Context, msg kafka.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, &kafkaHeaderCarrier{headers: msg.Headers})
}

type kafkaHeaderCarrier struct {
	headers []kafka.Header
}

var _ propagation.TextMapCarrier = (*kafkaHeaderCarrier)(nil)

func (c *kafkaHeaderCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *kafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *kafkaHeaderCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}
