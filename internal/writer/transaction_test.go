package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/oanda-data/internal/metrics"
	"github.com/rickgao/oanda-data/internal/model"
)

// fakeDB keeps journaled keys in memory and reports duplicates as conflicts.
type fakeDB struct {
	mu      sync.Mutex
	keys    map[string]bool
	execs   []string
	batches int
	fail    error
}

func newFakeDB() *fakeDB {
	return &fakeDB{keys: make(map[string]bool)}
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), f.fail
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	var highest *int64
	for key := range f.keys {
		var account string
		var id int64
		if _, err := fmt.Sscanf(key, "%s %d", &account, &id); err != nil || account != args[0] {
			continue
		}
		if highest == nil || id > *highest {
			highest = &id
		}
	}
	return fakeRow{id: highest, err: f.fail}
}

type fakeRow struct {
	id  *int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(**int64)) = r.id
	return nil
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++

	res := &fakeResults{fail: f.fail}
	if f.fail != nil {
		return res
	}
	for _, q := range b.QueuedQueries {
		key := fmt.Sprintf("%v %v", q.Arguments[0], q.Arguments[1])
		if f.keys[key] {
			res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 0"))
			continue
		}
		f.keys[key] = true
		res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 1"))
	}
	return res
}

func (f *fakeDB) rows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

type fakeResults struct {
	tags []pgconn.CommandTag
	fail error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.fail != nil {
		return pgconn.CommandTag{}, r.fail
	}
	tag := r.tags[0]
	r.tags = r.tags[1:]
	return tag, nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

func tx(id string) model.Transaction {
	body := fmt.Sprintf(`{"id":%q,"time":"2017-01-10T14:41:00Z","accountID":"A","type":"DAILY_FINANCING"}`, id)
	return model.Transaction{
		ID:        id,
		Time:      time.Date(2017, 1, 10, 14, 41, 0, 0, time.UTC),
		AccountID: "A",
		BatchID:   id,
		Type:      model.TransactionDailyFinancing,
		Body:      json.RawMessage(body),
	}
}

func TestTransactionWriter_Transform(t *testing.T) {
	w := NewTransactionWriter(DefaultWriterConfig(), nil, nil, nil)

	row, err := w.transform(tx("6409"))
	require.NoError(t, err)

	assert.Equal(t, "A", row.AccountID)
	assert.Equal(t, int64(6409), row.ID)
	assert.Equal(t, "DAILY_FINANCING", row.Type)
	require.NotNil(t, row.BatchID)
	assert.Equal(t, int64(6409), *row.BatchID)
	assert.JSONEq(t, string(tx("6409").Body), string(row.Body))
}

func TestTransactionWriter_TransformWithoutBody(t *testing.T) {
	w := NewTransactionWriter(DefaultWriterConfig(), nil, nil, nil)

	in := tx("7")
	in.Body = nil
	in.BatchID = ""

	row, err := w.transform(in)
	require.NoError(t, err)
	assert.Nil(t, row.BatchID)
	assert.Contains(t, string(row.Body), `"id":"7"`)
}

func TestTransactionWriter_TransformRejectsBadID(t *testing.T) {
	w := NewTransactionWriter(DefaultWriterConfig(), nil, nil, nil)

	_, err := w.transform(model.Transaction{ID: "x1"})
	assert.Error(t, err)
}

func TestTransactionWriter_FlushesWhenBatchFull(t *testing.T) {
	db := newFakeDB()
	w := NewTransactionWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour}, db, nil, nil)
	ctx := context.Background()

	require.NoError(t, w.HandleTransactions(ctx, []model.Transaction{tx("1")}))
	assert.Equal(t, 1, w.Pending())
	assert.Equal(t, 0, db.rows())

	require.NoError(t, w.HandleTransactions(ctx, []model.Transaction{tx("2")}))
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, 2, db.rows())

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.Inserts)
	assert.Equal(t, int64(1), stats.Flushes)
}

func TestTransactionWriter_ReplayCountsConflicts(t *testing.T) {
	db := newFakeDB()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	w := NewTransactionWriter(WriterConfig{BatchSize: 3, FlushInterval: time.Hour}, db, m, nil)
	ctx := context.Background()

	batch := []model.Transaction{tx("1"), tx("2"), tx("3")}
	require.NoError(t, w.HandleTransactions(ctx, batch))
	require.NoError(t, w.HandleTransactions(ctx, batch))

	stats := w.Stats()
	assert.Equal(t, int64(3), stats.Inserts)
	assert.Equal(t, int64(3), stats.Conflicts)
	assert.Equal(t, 3, db.rows())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.JournalRows.WithLabelValues("inserted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.JournalRows.WithLabelValues("conflict")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JournalFlushes))
}

func TestTransactionWriter_FailedFlushKeepsRows(t *testing.T) {
	db := newFakeDB()
	db.fail = errors.New("connection reset")
	w := NewTransactionWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour}, db, nil, nil)
	ctx := context.Background()

	err := w.HandleTransactions(ctx, []model.Transaction{tx("1"), tx("2")})
	require.Error(t, err)
	assert.Equal(t, 2, w.Pending())
	assert.Equal(t, int64(1), w.Stats().Errors)

	db.mu.Lock()
	db.fail = nil
	db.mu.Unlock()

	require.NoError(t, w.HandleTransactions(ctx, []model.Transaction{tx("3")}))
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, 3, db.rows())
}

func TestTransactionWriter_RetriedRangeIsNotBufferedTwice(t *testing.T) {
	db := newFakeDB()
	db.fail = errors.New("connection refused")
	w := NewTransactionWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour}, db, nil, nil)
	ctx := context.Background()

	batch := []model.Transaction{tx("6409"), tx("6410")}
	for range 5 {
		require.Error(t, w.HandleTransactions(ctx, batch))
		assert.Equal(t, 2, w.Pending())
	}
	assert.Equal(t, int64(5), w.Stats().Errors)

	db.mu.Lock()
	db.fail = nil
	db.mu.Unlock()

	require.NoError(t, w.HandleTransactions(ctx, batch))
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, 2, db.rows())
	assert.Equal(t, int64(2), w.Stats().Inserts)
	assert.Zero(t, w.Stats().Conflicts)

	// Once written, the same ids are buffered again and reported as conflicts.
	require.NoError(t, w.HandleTransactions(ctx, batch))
	assert.Equal(t, int64(2), w.Stats().Conflicts)
}

func TestTransactionWriter_DuplicateWithinCallIsSkipped(t *testing.T) {
	w := NewTransactionWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, newFakeDB(), nil, nil)

	require.NoError(t, w.HandleTransactions(context.Background(), []model.Transaction{tx("1"), tx("1"), tx("2")}))
	assert.Equal(t, 2, w.Pending())
}

func TestTransactionWriter_StopFlushesRemainder(t *testing.T) {
	db := newFakeDB()
	w := NewTransactionWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, db, nil, nil)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.HandleTransactions(context.Background(), []model.Transaction{tx("1")}))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))

	assert.Equal(t, 1, db.rows())
	assert.Equal(t, 0, w.Pending())
}

func TestTransactionWriter_PeriodicFlush(t *testing.T) {
	db := newFakeDB()
	w := NewTransactionWriter(WriterConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, db, nil, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.NoError(t, w.HandleTransactions(context.Background(), []model.Transaction{tx("1"), tx("2")}))

	assert.Eventually(t, func() bool { return db.rows() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTransactionWriter_StartStopWithoutDB(t *testing.T) {
	w := NewTransactionWriter(DefaultWriterConfig(), nil, nil, nil)

	require.NoError(t, w.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, w.Stop(stopCtx))
}

func TestEnsureSchema(t *testing.T) {
	db := newFakeDB()
	require.NoError(t, EnsureSchema(context.Background(), db))

	require.Len(t, db.execs, 2)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS transactions")
	assert.Contains(t, db.execs[0], "PRIMARY KEY (account_id, id)")

	db.fail = errors.New("permission denied")
	assert.ErrorContains(t, EnsureSchema(context.Background(), db), "permission denied")
}

func TestLastJournaledID(t *testing.T) {
	db := newFakeDB()
	ctx := context.Background()

	last, err := LastJournaledID(ctx, db, "A")
	require.NoError(t, err)
	assert.True(t, last.IsNone())

	w := NewTransactionWriter(WriterConfig{BatchSize: 3, FlushInterval: time.Hour}, db, nil, nil)
	require.NoError(t, w.HandleTransactions(ctx, []model.Transaction{tx("9"), tx("10"), tx("8")}))

	last, err = LastJournaledID(ctx, db, "A")
	require.NoError(t, err)
	assert.Equal(t, "10", last.Unwrap())

	last, err = LastJournaledID(ctx, db, "B")
	require.NoError(t, err)
	assert.True(t, last.IsNone())
}
