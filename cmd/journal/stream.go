package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/oanda-data/internal/api"
	"github.com/rickgao/oanda-data/internal/config"
	"github.com/rickgao/oanda-data/internal/connection"
	"github.com/rickgao/oanda-data/internal/stream"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = time.Minute
)

// newOpener selects the stream transport. HTTP uses the client's chunked
// stream; websocket dials the same path on the ws(s) form of the stream URL.
func newOpener(cfg *config.Config, client *api.Client, logger *slog.Logger) stream.Opener {
	if cfg.API.StreamTransport != config.TransportWebsocket {
		return stream.HTTPOpener(client)
	}

	connCfg := connection.DefaultConfig()
	connCfg.URL = websocketURL(cfg.API.StreamURL)
	connCfg.Token = cfg.API.Token
	dialer := connection.NewDialer(connCfg, logger)

	return func(ctx context.Context, path string, query url.Values) (stream.FrameReader, error) {
		conn, err := dialer.Open(ctx, path, query)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// websocketURL maps an http(s) base URL to ws(s).
func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// followTransactions keeps the transaction stream open until ctx ends. The
// stream publishes every id to the client's hub; reconnects back off
// exponentially while the stream keeps failing.
func followTransactions(ctx context.Context, client *api.Client, opener stream.Opener, logger *slog.Logger) error {
	delay := reconnectBaseDelay
	for {
		received, err := followOnce(ctx, client, opener, logger)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			delay = reconnectBaseDelay
		}

		logger.Warn("transaction stream ended, reconnecting", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, reconnectMaxDelay)
	}
}

// followOnce drains one stream connection. received reports whether any
// message arrived before it ended.
func followOnce(ctx context.Context, client *api.Client, opener stream.Opener, logger *slog.Logger) (received bool, err error) {
	s, err := stream.TransactionStream(ctx, client, stream.WithOpener(opener))
	if err != nil {
		return false, err
	}
	defer s.Close()

	logger.Info("transaction stream open")
	for msg, err := range s.All(ctx) {
		if err != nil {
			if errors.Is(err, stream.ErrDisconnected) {
				logger.Info("transaction stream disconnected")
			}
			return received, err
		}
		received = true
		if msg.IsHeartbeat() {
			continue
		}
		logger.Debug("transaction",
			"id", msg.Data.ID,
			"type", msg.Data.Type,
		)
	}
	return received, nil
}
