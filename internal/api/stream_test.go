package api

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStream_ReadsLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/accounts/"+testAccountID+"/pricing/stream", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "instruments=EUR_USD,USD_JPY")
		assert.Equal(t, "true", r.URL.Query().Get("snapshot"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		flusher := w.(http.Flusher)
		io.WriteString(w, `{"type":"HEARTBEAT","time":"2017-01-10T14:40:00Z"}`+"\n")
		flusher.Flush()
		io.WriteString(w, "\n")
		io.WriteString(w, `{"type":"PRICE","instrument":"EUR_USD"}`)
	}))
	defer server.Close()

	c := NewClient("http://unused.invalid", "token", testAccountID, WithStreamURL(server.URL))
	ctx := context.Background()

	r, err := c.OpenStream(ctx, c.PricingStreamPath(), PricingStreamQuery([]string{"EUR_USD", "USD_JPY"}))
	require.NoError(t, err)
	defer r.Close()

	frame, err := r.ReadFrame(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"HEARTBEAT","time":"2017-01-10T14:40:00Z"}`, string(frame))

	frame, err = r.ReadFrame(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PRICE","instrument":"EUR_USD"}`, string(frame))

	_, err = r.ReadFrame(ctx)
	assert.ErrorIs(t, err, io.EOF)

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestOpenStream_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"errorMessage":"Insufficient authorization to perform request."}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "bad", testAccountID)
	_, err := c.OpenStream(context.Background(), c.TransactionStreamPath(), nil)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "stream /v3/accounts/"+testAccountID+"/transactions/stream", te.Op)
}

func TestStreamReader_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(server.URL, "token", testAccountID)
	ctx, cancel := context.WithCancel(context.Background())

	r, err := c.OpenStream(ctx, c.TransactionStreamPath(), nil)
	require.NoError(t, err)
	defer r.Close()

	cancel()
	_, err = r.ReadFrame(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamReader_FrameTooLarge(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		`{"type":"HEARTBEAT"}` + "\n" +
			`{"type":"PRICE","instrument":"EUR_USD"}` + "\n" +
			`{"type":"PRICE","instrument":"` + strings.Repeat("X", 200) + "\n",
	))
	r := &StreamReader{
		body:     body,
		reader:   bufio.NewReaderSize(body, 16),
		maxFrame: 64,
	}
	ctx := context.Background()

	frame, err := r.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"HEARTBEAT"}`, string(frame))

	// Longer than the read buffer, within the limit.
	frame, err = r.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"PRICE","instrument":"EUR_USD"}`, string(frame))

	_, err = r.ReadFrame(ctx)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.NotErrorIs(t, err, io.EOF)
}
