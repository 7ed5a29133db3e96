package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uhyunpark/matchbook/pkg/events"
	"github.com/uhyunpark/matchbook/pkg/metrics"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   error
	calls  int
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.fail != nil {
		return w.fail
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func trade(symbol string) events.TradeEvent {
	return events.TradeEvent{Ts: 1, Symbol: symbol, Price: decimal.RequireFromString("100"), Quantity: decimal.RequireFromString("0.4"), Side: "SELL"}
}

func TestSinkWritesKeyedMessages(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(w, Config{Logger: zaptest.NewLogger(t).Sugar()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Publish(trade("BTC-USD"))
	s.Publish(events.TickerEvent{Symbol: "ETH-USD"})

	require.Eventually(t, func() bool { return len(w.written()) == 2 }, time.Second, time.Millisecond)
	msgs := w.written()
	assert.Equal(t, "BTC-USD", string(msgs[0].Key))
	assert.Equal(t, "trade", string(msgs[0].Headers[0].Value))
	assert.Equal(t, "ETH-USD", string(msgs[1].Key))

	var env struct {
		Event string            `json:"event"`
		Data  []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &env))
	assert.Equal(t, "trade", env.Event)
	assert.Len(t, env.Data, 1)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, w.closed)
}

func TestSinkFlushesOnShutdown(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(w, Config{})
	for i := 0; i < 10; i++ {
		s.Publish(trade("BTC-USD"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Run(ctx), context.Canceled)
	assert.Len(t, w.written(), 10)
}

func TestSinkDropsWhenFull(t *testing.T) {
	m := metrics.New()
	s := newSink(&fakeWriter{}, Config{QueueSize: 2, Metrics: m})
	for i := 0; i < 5; i++ {
		s.Publish(trade("BTC-USD"))
	}
	assert.Len(t, s.queue, 2)
}

func TestSinkSurvivesWriteErrors(t *testing.T) {
	w := &fakeWriter{fail: errors.New("broker down")}
	s := newSink(w, Config{Logger: zaptest.NewLogger(t).Sugar()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Publish(trade("BTC-USD"))
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.calls == 1
	}, time.Second, time.Millisecond)

	w.mu.Lock()
	w.fail = nil
	w.mu.Unlock()
	s.Publish(trade("BTC-USD"))
	require.Eventually(t, func() bool { return len(w.written()) == 1 }, time.Second, time.Millisecond)

	cancel()
	<-done
}

type badEvent struct{}

func (badEvent) EventKind() events.Kind { return "bad" }
func (badEvent) EventSymbol() string    { return "X" }

func TestSinkSkipsUnencodableEvents(t *testing.T) {
	s := newSink(&fakeWriter{}, Config{})
	s.Publish(badEvent{})
	assert.Empty(t, s.queue)
}
