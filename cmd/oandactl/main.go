// Command oandactl queries OANDA v20 transaction history and streams from the
// command line. Output is one JSON document per line.
//
// Credentials come from flags or the environment (OANDA_TOKEN,
// OANDA_ACCOUNT_ID), optionally loaded from a .env file named by OANDA_ENV_FILE.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/rickgao/oanda-data/internal/api"
	"github.com/rickgao/oanda-data/internal/config"
	"github.com/rickgao/oanda-data/internal/logging"
	"github.com/rickgao/oanda-data/internal/txid"
	"github.com/rickgao/oanda-data/internal/version"
)

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "oandactl:", err)
		os.Exit(1)
	}
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "oandactl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "oandactl",
		Usage:   "Query OANDA v20 transactions and streams",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rest-url",
				Usage:   "REST base URL",
				Value:   config.DefaultRestURL,
				Sources: cli.EnvVars("OANDA_REST_URL"),
			},
			&cli.StringFlag{
				Name:    "stream-url",
				Usage:   "streaming base URL",
				Value:   config.DefaultStreamURL,
				Sources: cli.EnvVars("OANDA_STREAM_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "personal access token",
				Sources: cli.EnvVars("OANDA_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "account id",
				Sources: cli.EnvVars("OANDA_ACCOUNT_ID"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			transactionsCommand(),
			streamCommand(),
			watchIDsCommand(),
		},
	}
}

// loadEnv reads OANDA_ENV_FILE (default .env) so flag env sources see it.
// A missing file is not an error.
func loadEnv() error {
	path := os.Getenv("OANDA_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// session is what every subcommand needs: a client and its hub.
type session struct {
	client *api.Client
	hub    *txid.Hub
	logger *slog.Logger
	out    *printer
}

func newSession(cmd *cli.Command) (*session, error) {
	root := cmd.Root()
	if root.String("token") == "" {
		return nil, errors.New("a token is required (--token or OANDA_TOKEN)")
	}
	if root.String("account") == "" {
		return nil, errors.New("an account is required (--account or OANDA_ACCOUNT_ID)")
	}

	logger, _, err := logging.New(root.String("log-level"), false)
	if err != nil {
		return nil, err
	}

	hub := txid.NewHub(txid.WithLogger(logger))
	client := api.NewClient(root.String("rest-url"), root.String("token"), root.String("account"),
		api.WithStreamURL(root.String("stream-url")),
		api.WithLogger(logger),
		api.WithHub(hub),
	)

	return &session{
		client: client,
		hub:    hub,
		logger: logger,
		out:    newPrinter(root.Writer),
	}, nil
}
