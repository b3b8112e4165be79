package stream

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/oanda-data/internal/api"
	"github.com/rickgao/oanda-data/internal/model"
)

// Stream names used in logs and metrics.
const (
	NamePricing      = "pricing"
	NameTransactions = "transactions"
)

// Opener starts a stream connection for an endpoint path.
type Opener func(ctx context.Context, path string, query url.Values) (FrameReader, error)

// HTTPOpener opens newline-delimited JSON streams through c.
func HTTPOpener(c *api.Client) Opener {
	return func(ctx context.Context, path string, query url.Values) (FrameReader, error) {
		r, err := c.OpenStream(ctx, path, query)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// WithOpener replaces the default HTTP transport.
func WithOpener(o Opener) Option {
	return func(s *settings) {
		s.opener = o
	}
}

func clientOptions(c *api.Client, opts []Option) []Option {
	base := []Option{WithLogger(c.Logger()), WithMetrics(c.Metrics()), WithValidator(c.Validator())}
	return append(base, opts...)
}

func open(ctx context.Context, c *api.Client, cfg settings, path string, query url.Values) (FrameReader, error) {
	opener := cfg.opener
	if opener == nil {
		opener = HTTPOpener(c)
	}
	return opener(ctx, path, query)
}

// PriceStream streams prices of instruments for the client's account.
// Messages are checked with the client's validator unless opts replace it;
// WithValidator(nil) disables validation.
func PriceStream(ctx context.Context, c *api.Client, instruments []string, opts ...Option) (*Stream[model.ClientPrice], error) {
	if len(instruments) == 0 {
		return nil, fmt.Errorf("price stream: no instruments")
	}

	classifier := NewClassifier[model.ClientPrice](NamePricing, clientOptions(c, opts)...)
	r, err := open(ctx, c, classifier.cfg, c.PricingStreamPath(), api.PricingStreamQuery(instruments))
	if err != nil {
		return nil, fmt.Errorf("open price stream: %w", err)
	}
	return classifier.Open(r), nil
}

// TransactionStream streams the client's account transactions. Every
// heartbeat's lastTransactionID and every transaction's id is published to the
// client's hub, if it has one.
func TransactionStream(ctx context.Context, c *api.Client, opts ...Option) (*Stream[model.Transaction], error) {
	classifier := NewClassifier[model.Transaction](NameTransactions, clientOptions(c, opts)...)

	if hub := c.Hub(); hub != nil {
		userHook := classifier.cfg.onHeartbeat
		classifier.cfg.onHeartbeat = func(hb model.Heartbeat) {
			hub.Publish(hb.LastTransactionID)
			if userHook != nil {
				userHook(hb)
			}
		}
		classifier.onData = func(tx *model.Transaction) {
			hub.Publish(tx.ID)
		}
	}

	r, err := open(ctx, c, classifier.cfg, c.TransactionStreamPath(), nil)
	if err != nil {
		return nil, fmt.Errorf("open transaction stream: %w", err)
	}
	return classifier.Open(r), nil
}
