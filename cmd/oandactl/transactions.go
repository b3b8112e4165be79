package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"

	"github.com/rickgao/oanda-data/internal/api"
	"github.com/rickgao/oanda-data/internal/model"
)

func typeFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "type",
		Aliases: []string{"t"},
		Usage:   "comma-separated transaction filters, e.g. ORDER_FILL,FUNDING",
	}
}

func timeFlag(name, usage string) *cli.TimestampFlag {
	return &cli.TimestampFlag{
		Name:  name,
		Usage: usage,
		Config: cli.TimestampConfig{
			Layouts: []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"},
		},
	}
}

func transactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "transactions",
		Aliases: []string{"tx"},
		Usage:   "Read account transaction history",
		Commands: []*cli.Command{
			{
				Name:  "range",
				Usage: "Fetch transactions by id range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "first id (inclusive)"},
					&cli.StringFlag{Name: "to", Usage: "last id (inclusive)"},
					typeFlag(),
				},
				Action: transactionsRange,
			},
			{
				Name:  "window",
				Usage: "Fetch transactions created in a time window",
				Flags: []cli.Flag{
					timeFlag("start", "window start (UTC)"),
					timeFlag("end", "window end (UTC)"),
					typeFlag(),
					&cli.IntFlag{Name: "page", Usage: "page index, zero based"},
					&cli.IntFlag{Name: "page-size", Usage: "transactions per page", Value: api.DefaultPageSize},
					&cli.BoolFlag{Name: "all", Usage: "fetch every page"},
				},
				Action: transactionsWindow,
			},
			{
				Name:  "pages",
				Usage: "Show the page descriptors of a time window",
				Flags: []cli.Flag{
					timeFlag("start", "window start (UTC)"),
					timeFlag("end", "window end (UTC)"),
					typeFlag(),
					&cli.IntFlag{Name: "page-size", Usage: "transactions per page", Value: api.DefaultPageSize},
				},
				Action: transactionsPages,
			},
			{
				Name:      "get",
				Usage:     "Fetch one transaction",
				ArgsUsage: "<id>",
				Action:    transactionGet,
			},
		},
	}
}

func transactionsRange(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	types, err := parseTypes(cmd.String("type"))
	if err != nil {
		return err
	}

	txs, err := s.client.FetchByIDRange(ctx, api.IDRange{
		From:  optionalString(cmd.String("from")),
		To:    optionalString(cmd.String("to")),
		Types: types,
	})
	if err != nil {
		return err
	}
	return printTransactions(s.out, txs)
}

func transactionsWindow(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	w, err := timeWindow(cmd)
	if err != nil {
		return err
	}
	w.PageIndex = int(cmd.Int("page"))

	var txs []model.Transaction
	if cmd.Bool("all") {
		txs, err = s.client.FetchAllByTimeWindow(ctx, w)
	} else {
		txs, err = s.client.FetchByTimeWindow(ctx, w)
	}
	if err != nil {
		return err
	}
	return printTransactions(s.out, txs)
}

func transactionsPages(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	w, err := timeWindow(cmd)
	if err != nil {
		return err
	}

	summary, err := s.client.TransactionPages(ctx, w)
	if err != nil {
		return err
	}
	for i, page := range summary.Pages {
		if err := s.out.print(pageLine{
			Index: i,
			From:  page.From,
			To:    page.To,
			URL:   page.EncodeURL(s.client.BaseURL(), s.client.AccountID()),
		}); err != nil {
			return err
		}
	}
	return nil
}

func transactionGet(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected one transaction id")
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	tx, err := s.client.TransactionByID(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	return s.out.print(tx)
}

type pageLine struct {
	Index int    `json:"index"`
	From  string `json:"from"`
	To    string `json:"to"`
	URL   string `json:"url"`
}

func printTransactions(out *printer, txs []model.Transaction) error {
	for _, tx := range txs {
		if err := out.print(tx); err != nil {
			return err
		}
	}
	return nil
}

func timeWindow(cmd *cli.Command) (api.TimeWindow, error) {
	types, err := parseTypes(cmd.String("type"))
	if err != nil {
		return api.TimeWindow{}, err
	}
	w := api.TimeWindow{
		Start:    optional.None[time.Time](),
		End:      optional.None[time.Time](),
		Types:    types,
		PageSize: int(cmd.Int("page-size")),
	}
	if cmd.IsSet("start") {
		w.Start = optional.Some(cmd.Timestamp("start").UTC())
	}
	if cmd.IsSet("end") {
		w.End = optional.Some(cmd.Timestamp("end").UTC())
	}
	return w, nil
}

func parseTypes(list string) ([]model.TransactionFilter, error) {
	return model.SplitFilters(strings.ReplaceAll(list, " ", ""))
}

func optionalString(s string) optional.Option[string] {
	if s == "" {
		return optional.None[string]()
	}
	return optional.Some(s)
}
