// Package kafka publishes market data events to a Kafka topic, keyed by
// symbol so every event of one market lands in the same partition in order.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/pkg/events"
	"github.com/uhyunpark/matchbook/pkg/metrics"
)

const (
	defaultQueueSize = 4096
	maxBatch         = 256
	flushTimeout     = 5 * time.Second
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers   []string
	Topic     string
	QueueSize int
	Logger    *zap.SugaredLogger
	Metrics   *metrics.Metrics
}

// Sink implements events.Sink. Publish only enqueues; Run does the network
// writes, so a slow broker never stalls matching. Events that do not fit in
// the queue are dropped and counted.
type Sink struct {
	w       MessageWriter
	queue   chan kafka.Message
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewSink(cfg Config) *Sink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newSink(w, cfg)
}

func newSink(w MessageWriter, cfg Config) *Sink {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Sink{
		w:       w,
		queue:   make(chan kafka.Message, size),
		log:     log,
		metrics: cfg.Metrics,
	}
}

func (s *Sink) Publish(e events.Event) {
	value, err := events.Marshal(e)
	if err != nil {
		s.log.Warnw("kafka_encode_failed", "kind", e.EventKind(), "err", err)
		return
	}
	msg := kafka.Message{
		Key:     []byte(e.EventSymbol()),
		Value:   value,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(e.EventKind())}},
	}
	select {
	case s.queue <- msg:
	default:
		s.metrics.EventDropped("kafka")
	}
}

// Run writes queued events in batches until ctx is canceled, then flushes
// what is left and closes the writer.
func (s *Sink) Run(ctx context.Context) error {
	defer s.w.Close()
	batch := make([]kafka.Message, 0, maxBatch)
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return ctx.Err()
		case msg := <-s.queue:
			batch = append(batch[:0], msg)
			batch = s.drain(batch)
			if err := s.w.WriteMessages(ctx, batch...); err != nil && ctx.Err() == nil {
				s.log.Warnw("kafka_write_failed", "messages", len(batch), "err", err)
			}
		}
	}
}

func (s *Sink) drain(batch []kafka.Message) []kafka.Message {
	for len(batch) < maxBatch {
		select {
		case msg := <-s.queue:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}

func (s *Sink) flush() {
	batch := s.drain(nil)
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, batch...); err != nil {
		s.log.Warnw("kafka_flush_failed", "messages", len(batch), "err", err)
	}
}
