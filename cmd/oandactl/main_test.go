package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/oanda-data/internal/model"
)

const idRangeBody = `{
	"transactions": [
		{"id":"6410","time":"2017-01-10T14:41:00Z","accountID":"A","type":"DAILY_FINANCING"},
		{"id":"6409","time":"2017-01-10T14:40:00Z","accountID":"A","type":"DAILY_FINANCING"}
	],
	"lastTransactionID": "6412"
}`

func runApp(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	base := []string{"oandactl", "--rest-url", srv.URL, "--stream-url", srv.URL, "--token", "t", "--account", "A"}
	err := app.Run(context.Background(), append(base, args...))
	return out.String(), err
}

func TestTransactionsRange(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/accounts/A/transactions/idrange", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(idRangeBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := runApp(t, srv, "transactions", "range", "--from", "6409", "--to", "6410", "--type", "DAILY_FINANCING")
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "from=6409")
	assert.Contains(t, gotQuery, "to=6410")
	assert.Contains(t, gotQuery, "type=DAILY_FINANCING")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var first model.Transaction
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "6409", first.ID, "output is in ascending id order")
}

func TestTransactionsRange_BadFilter(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := runApp(t, srv, "transactions", "range", "--type", "BOGUS")
	assert.ErrorContains(t, err, "BOGUS")
}

func TestStreamTransactions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/accounts/A/transactions/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"HEARTBEAT","time":"2017-01-10T14:41:00Z","lastTransactionID":"6409"}` + "\n"))
		w.Write([]byte(`{"id":"6410","time":"2017-01-10T14:41:00Z","accountID":"A","type":"DAILY_FINANCING"}` + "\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := runApp(t, srv, "stream", "transactions", "--heartbeats")
	require.Error(t, err, "the server closing the stream is a disconnect")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"HEARTBEAT"`)
	assert.Contains(t, lines[1], `"6410"`)
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv("OANDA_TOKEN", "")
	t.Setenv("OANDA_ACCOUNT_ID", "")

	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run(context.Background(), []string{"oandactl", "transactions", "range"})
	assert.ErrorContains(t, err, "token is required")
}

func TestToWebsocket(t *testing.T) {
	assert.Equal(t, "wss://stream-fxtrade.oanda.com", toWebsocket("https://stream-fxtrade.oanda.com"))
	assert.Equal(t, "ws://localhost:1", toWebsocket("http://localhost:1"))
}
