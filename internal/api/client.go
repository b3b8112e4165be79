package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rickgao/oanda-data/internal/metrics"
	"github.com/rickgao/oanda-data/internal/txid"
	"github.com/rickgao/oanda-data/internal/validation"
)

// Client provides access to the OANDA v20 REST and streaming API for one
// account.
type Client struct {
	baseURL      string
	streamURL    string
	token        string
	accountID    string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
	validator    *validation.Validator
	hub          *txid.Hub
	metrics      *metrics.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new client. token is sent as a bearer token; accountID
// scopes every account endpoint.
func NewClient(baseURL, token, accountID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   baseURL,
		streamURL: baseURL,
		token:     token,
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Streams are long-lived; only the context bounds them.
		streamClient: &http.Client{},
		logger:       slog.Default(),
		validator:    validation.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout for request/response calls.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client for request/response calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithStreamURL sets the base URL of the streaming host.
func WithStreamURL(streamURL string) ClientOption {
	return func(c *Client) {
		c.streamURL = streamURL
	}
}

// WithStreamClient sets the HTTP client used for streaming endpoints.
func WithStreamClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.streamClient = hc
	}
}

// WithHub publishes the lastTransactionID of every account-scoped response
// to hub.
func WithHub(hub *txid.Hub) ClientOption {
	return func(c *Client) {
		c.hub = hub
	}
}

// WithValidator sets the response validator.
func WithValidator(v *validation.Validator) ClientOption {
	return func(c *Client) {
		c.validator = v
	}
}

// WithMetrics records call outcomes.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// AccountID returns the account the client is scoped to.
func (c *Client) AccountID() string {
	return c.accountID
}

// BaseURL returns the REST base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Hub returns the configured hub, or nil.
func (c *Client) Hub() *txid.Hub {
	return c.hub
}

// Validator returns the response validator.
func (c *Client) Validator() *validation.Validator {
	return c.validator
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Metrics returns the configured metrics, or nil.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

func (c *Client) accountPath(suffix string) string {
	return accountPath(c.accountID, suffix)
}

func accountPath(accountID, suffix string) string {
	return "/v3/accounts/" + url.PathEscape(accountID) + suffix
}
