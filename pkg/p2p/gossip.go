// Package p2p gossips market data to peer nodes over libp2p pubsub. Each
// subscriber channel ("trades:BTC-USD", ...) maps to its own topic so peers
// only receive the markets they follow.
package p2p

import (
	"context"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/pkg/events"
	"github.com/uhyunpark/matchbook/pkg/metrics"
)

const (
	topicPrefix      = "matchbook/md/"
	defaultQueueSize = 4096
)

type GossipConfig struct {
	ListenAddr string
	Bootstrap  []string
	QueueSize  int
	Logger     *zap.SugaredLogger
	Metrics    *metrics.Metrics
}

type outbound struct {
	channel string
	payload []byte
}

// Gossip implements events.Sink. Publish only enqueues; Run joins topics and
// publishes, so a slow mesh never stalls matching.
type Gossip struct {
	h       host.Host
	ps      *pubsub.PubSub
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
	queue   chan outbound

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	seq    map[string]uint64
}

func NewGossip(ctx context.Context, cfg GossipConfig) (*Gossip, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	g := &Gossip{
		h: h, ps: ps, log: log, metrics: cfg.Metrics,
		queue:  make(chan outbound, size),
		topics: make(map[string]*pubsub.Topic),
		seq:    make(map[string]uint64),
	}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil {
			log.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	log.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	return g, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (g *Gossip) Host() host.Host { return g.h }

// Addrs returns the dialable addresses of this node including its peer id.
func (g *Gossip) Addrs() []string {
	var out []string
	for _, a := range g.h.Addrs() {
		out = append(out, a.String()+"/p2p/"+g.h.ID().String())
	}
	return out
}

// topic joins a channel's topic once and reuses it afterwards.
func (g *Gossip) topic(channel string) (*pubsub.Topic, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.topics[channel]; ok {
		return t, nil
	}
	t, err := g.ps.Join(topicPrefix + channel)
	if err != nil {
		return nil, err
	}
	g.topics[channel] = t
	return t, nil
}

func (g *Gossip) Publish(e events.Event) {
	payload, err := events.Marshal(e)
	if err != nil {
		g.log.Warnw("gossip_encode_failed", "kind", e.EventKind(), "err", err)
		return
	}
	select {
	case g.queue <- outbound{channel: events.Channel(e.EventKind(), e.EventSymbol()), payload: payload}:
	default:
		g.metrics.EventDropped("p2p")
	}
}

// Run publishes queued events until ctx is canceled.
func (g *Gossip) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out := <-g.queue:
			if err := g.send(ctx, out); err != nil && ctx.Err() == nil {
				g.log.Warnw("gossip_publish_failed", "channel", out.channel, "err", err)
			}
		}
	}
}

func (g *Gossip) send(ctx context.Context, out outbound) error {
	t, err := g.topic(out.channel)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.seq[out.channel]++
	seq := g.seq[out.channel]
	g.mu.Unlock()

	data, err := gobEncode(MarketDataWire{Channel: out.channel, Seq: seq, Payload: out.payload})
	if err != nil {
		return err
	}
	return t.Publish(ctx, data)
}

// Subscribe delivers every message gossiped on channel, including this
// node's own, to fn until ctx is canceled. fn runs on a single goroutine.
func (g *Gossip) Subscribe(ctx context.Context, channel string, fn func(from peer.ID, msg MarketDataWire)) error {
	if _, _, err := events.ParseChannel(channel); err != nil {
		return err
	}
	t, err := g.topic(channel)
	if err != nil {
		return err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return err
	}
	go func() {
		defer sub.Cancel()
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				return
			}
			var w MarketDataWire
			if err := gobDecode(msg.Data, &w); err != nil {
				continue
			}
			fn(msg.ReceivedFrom, w)
		}
	}()
	return nil
}

// Close shuts the host down; joined topics and subscriptions go with it.
func (g *Gossip) Close() error { return g.h.Close() }
