package main

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/oanda-data/internal/connection"
	"github.com/rickgao/oanda-data/internal/stream"
)

// streamFlags are shared by every streaming command.
func streamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "ws",
			Usage: "use the websocket transport instead of chunked HTTP",
		},
		&cli.BoolFlag{
			Name:  "no-validate",
			Usage: "skip response validation of stream messages",
		},
		&cli.BoolFlag{
			Name:  "heartbeats",
			Usage: "print heartbeats too",
		},
	}
}

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Follow a live stream",
		Commands: []*cli.Command{
			{
				Name:  "prices",
				Usage: "Stream prices for instruments",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:     "instrument",
						Aliases:  []string{"i"},
						Usage:    "instrument to price, e.g. EUR_USD (repeatable)",
						Required: true,
					},
				}, streamFlags()...),
				Action: streamPrices,
			},
			{
				Name:   "transactions",
				Usage:  "Stream account transactions",
				Flags:  streamFlags(),
				Action: streamTransactions,
			},
		},
	}
}

func watchIDsCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch-ids",
		Usage: "Print every transaction id published while the transaction stream runs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "ws",
				Usage: "use the websocket transport instead of chunked HTTP",
			},
			&cli.DurationFlag{
				Name:  "poll",
				Usage: "also poll the account summary at this interval (0 disables)",
			},
		},
		Action: watchIDs,
	}
}

func streamOptions(cmd *cli.Command) []stream.Option {
	var opts []stream.Option
	if cmd.Bool("no-validate") {
		opts = append(opts, stream.WithValidator(nil))
	}
	if cmd.Bool("ws") {
		opts = append(opts, stream.WithOpener(websocketOpener(cmd)))
	}
	return opts
}

func websocketOpener(cmd *cli.Command) stream.Opener {
	root := cmd.Root()
	cfg := connection.DefaultConfig()
	cfg.URL = toWebsocket(root.String("stream-url"))
	cfg.Token = root.String("token")
	dialer := connection.NewDialer(cfg, nil)

	return func(ctx context.Context, path string, query url.Values) (stream.FrameReader, error) {
		conn, err := dialer.Open(ctx, path, query)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func toWebsocket(base string) string {
	if rest, ok := strings.CutPrefix(base, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(base, "http://"); ok {
		return "ws://" + rest
	}
	return base
}

func streamPrices(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	prices, err := stream.PriceStream(ctx, s.client, cmd.StringSlice("instrument"), streamOptions(cmd)...)
	if err != nil {
		return err
	}
	defer prices.Close()

	return drain(ctx, prices, s.out, cmd.Bool("heartbeats"))
}

func streamTransactions(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	txs, err := stream.TransactionStream(ctx, s.client, streamOptions(cmd)...)
	if err != nil {
		return err
	}
	defer txs.Close()

	return drain(ctx, txs, s.out, cmd.Bool("heartbeats"))
}

// drain prints messages until the stream ends. Cancellation is a clean exit.
func drain[T any](ctx context.Context, st *stream.Stream[T], out *printer, heartbeats bool) error {
	for msg, err := range st.All(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg.IsHeartbeat() {
			if heartbeats {
				if err := out.print(msg.Heartbeat); err != nil {
					return err
				}
			}
			continue
		}
		if err := out.print(msg.Data); err != nil {
			return err
		}
	}
	return nil
}

type idLine struct {
	ID string `json:"id"`
}

func watchIDs(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	sub := s.hub.Subscribe()
	defer sub.Close()

	txs, err := stream.TransactionStream(ctx, s.client, streamOptions(cmd)...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer sub.Close()
		for _, err := range txs.All(gctx) {
			if err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		defer txs.Close()
		for id := range sub.All(gctx) {
			if err := s.out.print(idLine{ID: id}); err != nil {
				return err
			}
		}
		return nil
	})
	if interval := cmd.Duration("poll"); interval > 0 {
		g.Go(func() error {
			return pollAccount(gctx, s, interval)
		})
	}

	err = g.Wait()
	if ctx.Err() != nil || errors.Is(err, stream.ErrClosed) {
		return nil
	}
	return err
}

// pollAccount fetches the account summary on every tick; each response
// publishes its lastTransactionID to the hub.
func pollAccount(ctx context.Context, s *session, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.client.Account(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("account poll failed", "error", err)
			}
		}
	}
}
