package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/oanda-data/internal/metrics"
	"github.com/rickgao/oanda-data/internal/model"
)

// TransactionWriter batches transactions into the transactions table. It
// satisfies reconcile.Handler.
type TransactionWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Database
	db DB

	// Batching
	batch       []transactionRow
	pending     map[rowKey]struct{} // buffered or in flight
	batchMu     sync.Mutex
	flushMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats WriterMetrics
}

// NewTransactionWriter creates a new TransactionWriter. m may be nil.
func NewTransactionWriter(
	cfg WriterConfig,
	db DB,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TransactionWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &TransactionWriter{
		cfg:     cfg,
		db:      db,
		metrics: m,
		logger:  logger,
		batch:   make([]transactionRow, 0, cfg.BatchSize),
		pending: make(map[rowKey]struct{}, cfg.BatchSize),
	}
}

// Start begins the periodic flush.
func (w *TransactionWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("transaction writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop halts the periodic flush and writes whatever is still buffered using ctx.
func (w *TransactionWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping transaction writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("transaction writer stop timed out")
		return ctx.Err()
	}

	if err := w.flush(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	w.logger.Info("transaction writer stopped")
	return nil
}

// Stats returns current counters.
func (w *TransactionWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// Pending returns the number of buffered rows.
func (w *TransactionWriter) Pending() int {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return len(w.batch)
}

// HandleTransactions buffers txs and flushes synchronously once the batch is
// full, so a failed write is reported to the caller. Transactions already
// buffered or in flight are skipped, so a caller retrying a range after a
// failed write does not grow the batch.
func (w *TransactionWriter) HandleTransactions(ctx context.Context, txs []model.Transaction) error {
	rows := make([]transactionRow, 0, len(txs))
	for _, tx := range txs {
		row, err := w.transform(tx)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	w.batchMu.Lock()
	for _, row := range rows {
		key := row.key()
		if _, ok := w.pending[key]; ok {
			continue
		}
		w.pending[key] = struct{}{}
		w.batch = append(w.batch, row)
	}
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		return w.flush(ctx)
	}
	return nil
}

func (w *TransactionWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			if err := w.flush(w.ctx); err != nil && w.ctx.Err() == nil {
				w.logger.Warn("periodic flush failed", "error", err)
			}
		}
	}
}

// transform converts a transaction to a transactionRow.
func (w *TransactionWriter) transform(tx model.Transaction) (transactionRow, error) {
	id, err := strconv.ParseInt(tx.ID, 10, 64)
	if err != nil {
		return transactionRow{}, fmt.Errorf("transaction id %q: %w", tx.ID, err)
	}

	row := transactionRow{
		AccountID: tx.AccountID,
		ID:        id,
		Time:      tx.Time.UTC(),
		Type:      string(tx.Type),
		Body:      tx.Body,
	}
	if tx.BatchID != "" {
		batchID, err := strconv.ParseInt(tx.BatchID, 10, 64)
		if err != nil {
			return transactionRow{}, fmt.Errorf("transaction %s batch id %q: %w", tx.ID, tx.BatchID, err)
		}
		row.BatchID = &batchID
	}
	if len(row.Body) == 0 {
		body, err := json.Marshal(tx)
		if err != nil {
			return transactionRow{}, fmt.Errorf("encode transaction %s: %w", tx.ID, err)
		}
		row.Body = body
	}
	return row, nil
}

// flush writes the current batch. On failure the rows go back to the front of
// the batch so the next flush retries them.
func (w *TransactionWriter) flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]transactionRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.batchMu.Lock()
		w.batch = append(batch, w.batch...)
		w.stats.Errors++
		w.batchMu.Unlock()
		w.metrics.JournalRowsAdd("error", len(batch))
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		return fmt.Errorf("insert %d transactions: %w", len(batch), err)
	}

	w.batchMu.Lock()
	for _, row := range batch {
		delete(w.pending, row.key())
	}
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.metrics.JournalRowsAdd("inserted", len(batch)-conflicts)
	w.metrics.JournalRowsAdd("conflict", conflicts)
	w.metrics.JournalFlush()

	w.logger.Debug("flushed transactions",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *TransactionWriter) batchInsert(ctx context.Context, rows []transactionRow) (conflicts int, err error) {
	if w.db == nil {
		return 0, fmt.Errorf("no database configured")
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO transactions (account_id, id, time, type, batch_id, body)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (account_id, id) DO NOTHING
		`, r.AccountID, r.ID, r.Time, r.Type, r.BatchID, r.Body)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
