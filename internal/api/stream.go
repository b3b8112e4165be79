package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// maxErrorBody bounds how much of a failed stream response is read.
const maxErrorBody = 64 << 10

// MaxFrameSize is the longest stream line accepted, in bytes.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge is wrapped by the TransportError of an oversized line.
var ErrFrameTooLarge = errors.New("stream frame too large")

// StreamReader reads newline-delimited JSON values from a chunked streaming
// response. It is not safe for concurrent use.
type StreamReader struct {
	body      io.ReadCloser
	reader    *bufio.Reader
	maxFrame  int
	closeOnce sync.Once
}

// ReadFrame returns the next JSON value. It returns io.EOF when the server
// ends the stream and a *TransportError for any other read failure.
func (r *StreamReader) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := r.readLine()
		if errors.Is(err, ErrFrameTooLarge) {
			return nil, &TransportError{Op: "read stream", Err: err}
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			// A final value without a trailing newline is still a value.
			return line, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &TransportError{Op: "read stream", Err: err}
		}
	}
}

// readLine reads through the next newline, giving up once the line exceeds
// maxFrame bytes.
func (r *StreamReader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.reader.ReadSlice('\n')
		if len(line)+len(chunk) > r.maxFrame {
			return nil, fmt.Errorf("%w: over %d bytes", ErrFrameTooLarge, r.maxFrame)
		}
		line = append(line, chunk...)
		if !errors.Is(err, bufio.ErrBufferFull) {
			return line, err
		}
	}
}

// Close releases the connection.
func (r *StreamReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.body.Close()
	})
	return err
}

// PricingStreamPath is the account's pricing stream endpoint.
func (c *Client) PricingStreamPath() string {
	return c.accountPath("/pricing/stream")
}

// TransactionStreamPath is the account's transaction stream endpoint.
func (c *Client) TransactionStreamPath() string {
	return c.accountPath("/transactions/stream")
}

// PricingStreamQuery selects the instruments of a pricing stream, starting
// with a snapshot of current prices.
func PricingStreamQuery(instruments []string) url.Values {
	query := url.Values{}
	query.Set("snapshot", "true")
	query.Set("instruments", strings.Join(instruments, ","))
	return query
}

// OpenStream starts a streaming GET against the stream host. The stream
// lives until ctx is done, the server closes it, or Close is called.
func (c *Client) OpenStream(ctx context.Context, path string, query url.Values) (*StreamReader, error) {
	fullURL := c.streamURL + path
	if len(query) > 0 {
		fullURL += "?" + encodeQuery(query)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	op := "stream " + path
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{Op: op, Err: newAPIError(resp.StatusCode, body)}
	}

	c.logger.Debug("stream opened", "path", path)
	return &StreamReader{
		body:     resp.Body,
		reader:   bufio.NewReaderSize(resp.Body, 64<<10),
		maxFrame: MaxFrameSize,
	}, nil
}
