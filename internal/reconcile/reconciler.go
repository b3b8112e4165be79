package reconcile

//go:generate mockgen -source=reconciler.go -destination=mock_reconciler_test.go -package=reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rickgao/oanda-data/internal/api"
	"github.com/rickgao/oanda-data/internal/model"
	"github.com/rickgao/oanda-data/internal/txid"
)

// Fetcher reads transaction history. *api.Client implements it.
type Fetcher interface {
	FetchByIDRange(ctx context.Context, r api.IDRange) ([]model.Transaction, error)
	TransactionsSinceID(ctx context.Context, id string) ([]model.Transaction, error)
}

// Handler receives fetched transactions in ascending id order.
type Handler interface {
	HandleTransactions(ctx context.Context, txs []model.Transaction) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(context.Context, []model.Transaction) error

func (f HandlerFunc) HandleTransactions(ctx context.Context, txs []model.Transaction) error {
	return f(ctx, txs)
}

// Config holds reconciler configuration.
type Config struct {
	Interval time.Duration             // Backstop poll interval (default: 1m)
	Timeout  time.Duration             // Per-fetch timeout (default: 30s)
	Types    []model.TransactionFilter // Filters for hub-triggered range fetches; empty means all
	StartID  optional.Option[string]   // Last id already handled; None starts from the first id heard
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		StartID:  optional.None[string](),
	}
}

// Stats contains reconciler statistics.
type Stats struct {
	RangeFetches int64
	PollFetches  int64
	Handled      int64
	Errors       int64
}

// Reconciler fetches transactions the consumer has not seen yet.
type Reconciler struct {
	cfg     Config
	fetcher Fetcher
	hub     *txid.Hub
	handler Handler
	logger  *slog.Logger

	// Guards lastID and serializes fetches.
	mu     sync.Mutex
	lastID optional.Option[string]

	wake chan struct{}

	// newest id heard from the hub
	targetMu sync.Mutex
	target   optional.Option[string]

	rangeFetches atomic.Int64
	pollFetches  atomic.Int64
	handled      atomic.Int64
	errors       atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Reconciler.
func New(cfg Config, fetcher Fetcher, hub *txid.Hub, handler Handler, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &Reconciler{
		cfg:     cfg,
		fetcher: fetcher,
		hub:     hub,
		handler: handler,
		logger:  logger,
		lastID:  cfg.StartID,
		target:  optional.None[string](),
		wake:    make(chan struct{}, 1),
	}
}

// Start subscribes to the hub and begins reconciling.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.hub == nil {
		return fmt.Errorf("reconciler: no hub")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	sub := r.hub.Subscribe()

	r.wg.Add(2)
	go r.listen(sub)
	go r.run()

	r.logger.Info("transaction reconciler started",
		"interval", r.cfg.Interval,
		"start_id", r.cfg.StartID.TakeOr(""),
	)

	return nil
}

// Stop gracefully shuts down the reconciler.
func (r *Reconciler) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("transaction reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastID returns the newest id handed to the handler.
func (r *Reconciler) LastID() optional.Option[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastID
}

// Stats returns reconciler statistics.
func (r *Reconciler) Stats() Stats {
	return Stats{
		RangeFetches: r.rangeFetches.Load(),
		PollFetches:  r.pollFetches.Load(),
		Handled:      r.handled.Load(),
		Errors:       r.errors.Load(),
	}
}

// listen records ids from the hub and wakes the run loop.
func (r *Reconciler) listen(sub *txid.Subscription) {
	defer r.wg.Done()
	defer sub.Close()

	for id := range sub.All(r.ctx) {
		r.observe(id)
	}
}

// observe raises the target to id. Stale ids are ignored.
func (r *Reconciler) observe(id string) {
	r.targetMu.Lock()
	if r.target.IsSome() && model.CompareTransactionIDs(id, r.target.Unwrap()) <= 0 {
		r.targetMu.Unlock()
		return
	}
	r.target = optional.Some(id)
	r.targetMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// run is the main loop.
func (r *Reconciler) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.wake:
			r.catchUp()
		case <-ticker.C:
			r.poll()
		}
	}
}

// catchUp fetches (lastID, target].
func (r *Reconciler) catchUp() {
	r.targetMu.Lock()
	target := r.target
	r.targetMu.Unlock()
	if target.IsNone() {
		return
	}
	to := target.Unwrap()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastID.IsNone() {
		// Nothing to anchor a range to; history starts here.
		r.lastID = optional.Some(to)
		r.logger.Info("reconciler anchored", "last_id", to)
		return
	}
	last := r.lastID.Unwrap()
	if model.CompareTransactionIDs(to, last) <= 0 {
		return
	}

	from, err := nextID(last)
	if err != nil {
		r.errors.Add(1)
		r.logger.Warn("cannot advance last id", "last_id", last, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	r.rangeFetches.Add(1)
	txs, err := r.fetcher.FetchByIDRange(ctx, api.IDRange{
		From:  optional.Some(from),
		To:    optional.Some(to),
		Types: r.cfg.Types,
	})
	if err != nil {
		r.errors.Add(1)
		r.logger.Warn("range fetch failed", "from", from, "to", to, "err", err)
		return
	}

	if err := r.deliver(ctx, txs); err != nil {
		return
	}
	// A filtered range may hold nothing; the range itself is still done.
	r.lastID = optional.Some(to)
}

// poll asks for everything after lastID.
func (r *Reconciler) poll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastID.IsNone() {
		return
	}
	last := r.lastID.Unwrap()

	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	r.pollFetches.Add(1)
	txs, err := r.fetcher.TransactionsSinceID(ctx, last)
	if err != nil {
		r.errors.Add(1)
		r.logger.Warn("poll failed", "since", last, "err", err)
		return
	}
	if len(txs) == 0 {
		return
	}

	if err := r.deliver(ctx, txs); err != nil {
		return
	}
	r.lastID = optional.Some(txs[len(txs)-1].ID)
}

// deliver hands txs to the handler. Must be called with mu held.
func (r *Reconciler) deliver(ctx context.Context, txs []model.Transaction) error {
	if len(txs) == 0 || r.handler == nil {
		return nil
	}
	if err := r.handler.HandleTransactions(ctx, txs); err != nil {
		r.errors.Add(1)
		r.logger.Warn("handler failed", "count", len(txs), "err", err)
		return err
	}
	r.handled.Add(int64(len(txs)))
	r.logger.Debug("reconciled transactions",
		"first", txs[0].ID,
		"last", txs[len(txs)-1].ID,
		"count", len(txs),
	)
	return nil
}

func nextID(id string) (string, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(n+1, 10), nil
}
