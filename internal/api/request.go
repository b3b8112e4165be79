package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rickgao/oanda-data/internal/version"
)

// APIError represents an error status returned by the OANDA API.
type APIError struct {
	StatusCode int
	Code       string // errorCode, when the server sends one
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("oanda api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("oanda api error %d: %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{
		StatusCode: status,
		Message:    http.StatusText(status),
		Body:       body,
	}
	var payload struct {
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.ErrorMessage != "" {
		e.Code = payload.ErrorCode
		e.Message = payload.ErrorMessage
	}
	return e
}

// TransportError is a failure to obtain a usable response: connection,
// timeout, read, error status or undecodable body. Status failures wrap an
// *APIError.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "oanda transport: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a page descriptor that cannot be turned into an id range.
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode page descriptor %q: %v", e.Input, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// lastTransactionIDer is implemented by account-scoped responses.
type lastTransactionIDer interface {
	lastTransaction() string
}

// encodeQuery encodes query like url.Values.Encode but keeps commas literal,
// which is how list parameters such as type=A,B are sent.
func encodeQuery(query url.Values) string {
	return strings.ReplaceAll(query.Encode(), "%2C", ",")
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Datetime-Format", "RFC3339")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// doRequest performs an HTTP request with the given method and path. payload,
// if non-nil, is sent as a JSON body.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + encodeQuery(query)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	op := method + " " + path
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return nil, &TransportError{Op: op, Err: newAPIError(resp.StatusCode, data)}
	}

	return data, nil
}

// call performs a request, decodes the body into result and validates it.
// endpoint names the call in metrics and logs.
func (c *Client) call(ctx context.Context, endpoint, method, path string, query url.Values, payload, result any) error {
	data, err := c.doRequest(ctx, method, path, query, payload)
	if err != nil {
		c.metrics.ObserveREST(endpoint, "error")
		return err
	}

	if err := json.Unmarshal(data, result); err != nil {
		c.metrics.ObserveREST(endpoint, "error")
		return &TransportError{Op: "decode " + endpoint, Err: err}
	}

	if c.validator != nil {
		if err := c.validator.Validate(result); err != nil {
			c.metrics.ObserveREST(endpoint, "invalid")
			c.metrics.ValidationFailed(endpoint)
			c.logger.Warn("response failed validation", "endpoint", endpoint, "error", err)
			return err
		}
	}

	c.metrics.ObserveREST(endpoint, "ok")
	return nil
}

// get performs a GET request that is not scoped to the account.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, result any) error {
	return c.call(ctx, endpoint, http.MethodGet, path, query, nil, result)
}

// accountGet performs an account-scoped GET and publishes the response's
// lastTransactionID once it has passed validation.
func (c *Client) accountGet(ctx context.Context, endpoint, path string, query url.Values, result lastTransactionIDer) error {
	if err := c.call(ctx, endpoint, http.MethodGet, path, query, nil, result); err != nil {
		return err
	}
	c.publish(result)
	return nil
}

// accountPost is accountGet for POST requests.
func (c *Client) accountPost(ctx context.Context, endpoint, path string, payload any, result lastTransactionIDer) error {
	if err := c.call(ctx, endpoint, http.MethodPost, path, nil, payload, result); err != nil {
		return err
	}
	c.publish(result)
	return nil
}

func (c *Client) publish(result lastTransactionIDer) {
	if c.hub == nil {
		return
	}
	c.hub.Publish(result.lastTransaction())
}
