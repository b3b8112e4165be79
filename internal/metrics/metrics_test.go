package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveREST("account", "ok")
		m.ValidationFailed("account")
		m.StreamMessage("pricing", "heartbeat")
		m.HubPublish()
		m.HubDrop()
		m.SetSubscribers(3)
		m.JournalRowsAdd("inserted", 2)
		m.JournalFlush()
	})
}

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveREST("transactions.idrange", "ok")
	m.ObserveREST("transactions.idrange", "ok")
	m.ObserveREST("transactions.idrange", "error")
	m.HubPublish()
	m.HubDrop()
	m.SetSubscribers(2)
	m.JournalRowsAdd("inserted", 5)
	m.JournalRowsAdd("conflict", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RESTRequests.WithLabelValues("transactions.idrange", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RESTRequests.WithLabelValues("transactions.idrange", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HubPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HubDropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HubSubscribers))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.JournalRows.WithLabelValues("inserted")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_NilRegisterer(t *testing.T) {
	a := New(nil)
	b := New(nil)

	a.HubPublish()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.HubPublished))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.HubPublished))
}
