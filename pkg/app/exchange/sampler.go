package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/pkg/events"
	"github.com/uhyunpark/matchbook/pkg/metrics"
	"github.com/uhyunpark/matchbook/pkg/util"
)

const (
	DefaultSampleInterval = 200 * time.Millisecond
	DefaultSampleDepth    = 50
)

type SamplerConfig struct {
	Interval time.Duration // defaults to DefaultSampleInterval
	Depth    int           // levels per side in orderbook events; <= 0 means DefaultSampleDepth
	Sink     events.Sink
	Clock    util.Clock
	Logger   *zap.SugaredLogger
	Metrics  *metrics.Metrics
}

// Sampler periodically publishes a ticker and an orderbook event for every
// book. It only reads the books; it never holds a write lock.
type Sampler struct {
	svc      *Service
	interval time.Duration
	depth    int
	sink     events.Sink
	clock    util.Clock
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
}

func NewSampler(svc *Service, cfg SamplerConfig) *Sampler {
	s := &Sampler{
		svc:      svc,
		interval: cfg.Interval,
		depth:    cfg.Depth,
		sink:     cfg.Sink,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if s.interval <= 0 {
		s.interval = DefaultSampleInterval
	}
	if s.depth <= 0 {
		s.depth = DefaultSampleDepth
	}
	if s.sink == nil {
		s.sink = events.Discard
	}
	if s.clock == nil {
		s.clock = util.RealClock{}
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	return s
}

// Run samples every interval until ctx is canceled.
func (s *Sampler) Run(ctx context.Context) error {
	s.log.Infow("sampler_started", "interval", s.interval.String(), "depth", s.depth)
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("sampler_stopped")
			return ctx.Err()
		case <-s.clock.After(s.interval):
			s.SampleOnce()
		}
	}
}

// SampleOnce publishes one ticker then one orderbook event per symbol.
func (s *Sampler) SampleOnce() {
	for _, symbol := range s.svc.Symbols() {
		ticker, book, err := s.svc.Snapshot(symbol, s.depth)
		if err != nil {
			s.log.Warnw("sample_failed", "symbol", symbol, "err", err)
			continue
		}
		s.sink.Publish(ticker)
		s.sink.Publish(book)

		bidVol, _ := ticker.BidVolume.Float64()
		askVol, _ := ticker.AskVolume.Float64()
		s.metrics.Book(symbol, len(book.Bids), len(book.Asks), bidVol, askVol)
	}
}
