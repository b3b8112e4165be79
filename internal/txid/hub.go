// Package txid multicasts the latest known transaction id of an account to
// every interested consumer.
//
// A Hub is hot: a subscriber only sees ids published after it attached, and
// ids published while nobody is attached are discarded. Publish never waits on
// subscribers. Each subscription owns a queue that grows up to a bound, after
// which the oldest pending id is dropped.
package txid

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/oanda-data/internal/metrics"
)

// ErrSubscriptionClosed is returned by Next after Close.
var ErrSubscriptionClosed = errors.New("txid: subscription closed")

// Default subscriber queue sizes.
const (
	DefaultBufferSize    = 16
	DefaultMaxBufferSize = 4096
)

// Hub is a per-account broadcast point for transaction ids.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription

	bufferSize    int
	maxBufferSize int
	logger        *slog.Logger
	metrics       *metrics.Metrics

	published atomic.Int64
	discarded atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithBufferSize sets the initial and maximum per-subscriber queue size.
func WithBufferSize(initial, max int) Option {
	return func(h *Hub) {
		h.bufferSize = initial
		h.maxBufferSize = max
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithMetrics records publishes, drops and subscriber counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates a Hub with no subscribers.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:          make(map[uuid.UUID]*Subscription),
		bufferSize:    DefaultBufferSize,
		maxBufferSize: DefaultMaxBufferSize,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe attaches a new subscriber. It receives every id published from now
// until Close, in publish order.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		id:    uuid.New(),
		hub:   h,
		queue: newQueue[string](h.bufferSize, h.maxBufferSize),
	}

	h.mu.Lock()
	h.subs[s.id] = s
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	h.logger.Debug("txid subscriber attached", "subscription", s.id, "subscribers", n)
	return s
}

// Publish delivers id to every attached subscriber. Empty ids are ignored.
func (h *Hub) Publish(id string) {
	if id == "" {
		return
	}
	h.published.Add(1)
	h.metrics.HubPublish()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.subs) == 0 {
		h.discarded.Add(1)
		return
	}
	for _, s := range h.subs {
		if _, dropped := s.queue.push(id); dropped {
			h.metrics.HubDrop()
			h.logger.Warn("txid subscriber queue full, dropped oldest id",
				"subscription", s.id)
		}
	}
}

// Subscribers returns the number of attached subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats returns hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Published:   h.published.Load(),
		Discarded:   h.discarded.Load(),
		Subscribers: h.Subscribers(),
	}
}

// Stats contains hub statistics.
type Stats struct {
	Published   int64 // ids passed to Publish
	Discarded   int64 // ids published with no subscriber attached
	Subscribers int
}

func (h *Hub) detach(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s.id)
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	h.logger.Debug("txid subscriber detached", "subscription", s.id, "subscribers", n)
}

// Subscription is one consumer's view of a Hub.
type Subscription struct {
	id        uuid.UUID
	hub       *Hub
	queue     *queue[string]
	closeOnce sync.Once
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Next blocks until the next id is available. It returns ErrSubscriptionClosed
// once the subscription is closed and its pending ids are consumed, or the
// context error if ctx is done first.
func (s *Subscription) Next(ctx context.Context) (string, error) {
	id, err := s.queue.pop(ctx)
	if errors.Is(err, errQueueClosed) {
		return "", ErrSubscriptionClosed
	}
	return id, err
}

// TryNext returns the next pending id without blocking.
func (s *Subscription) TryNext() (string, bool) {
	return s.queue.tryPop()
}

// All yields ids until ctx is done or the subscription is closed.
func (s *Subscription) All(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			id, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(id) {
				return
			}
		}
	}
}

// Pending returns the number of ids waiting to be consumed.
func (s *Subscription) Pending() int {
	return s.queue.len()
}

// Dropped returns how many ids were dropped because the queue was full.
func (s *Subscription) Dropped() int64 {
	return s.queue.stats().Dropped
}

// Close detaches the subscription. Other subscriptions are unaffected.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.detach(s)
		s.queue.close()
	})
}
