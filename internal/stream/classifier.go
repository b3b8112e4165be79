// Package stream turns a long-lived push connection into an ordered, lazy
// sequence of heartbeats and typed data messages.
//
// A Stream reads one frame per Next call; nothing is buffered ahead. The
// sequence ends at the first failure. Validation failures end it with a
// *validation.Error, decode and read failures with an *api.TransportError, and
// a server-side close with an *api.TransportError matching ErrDisconnected.
// A frame whose type is neither HEARTBEAT nor one the stream carries is a
// decode failure, validator or not.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/oanda-data/internal/api"
	"github.com/rickgao/oanda-data/internal/metrics"
	"github.com/rickgao/oanda-data/internal/model"
	"github.com/rickgao/oanda-data/internal/validation"
)

var (
	// ErrDisconnected marks a stream the server ended.
	ErrDisconnected = errors.New("stream disconnected by server")

	// ErrClosed is returned after the consumer closed the stream.
	ErrClosed = errors.New("stream closed")

	// ErrUnknownMessageType marks a frame whose type the stream does not carry.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// FrameReader yields one JSON value per call. It returns io.EOF once the
// server has ended the stream.
type FrameReader interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// Kind tells heartbeats from data.
type Kind int

const (
	KindHeartbeat Kind = iota
	KindData
)

func (k Kind) String() string {
	if k == KindHeartbeat {
		return "heartbeat"
	}
	return "data"
}

// Message is one stream element. Exactly one of Heartbeat and Data is set,
// according to Kind.
type Message[T any] struct {
	Kind      Kind
	Heartbeat *model.Heartbeat
	Data      *T
}

// IsHeartbeat reports whether the message is a heartbeat.
func (m Message[T]) IsHeartbeat() bool {
	return m.Kind == KindHeartbeat
}

// envelope extracts the discriminator without a full parse.
type envelope struct {
	Type string `json:"type"`
}

// Option configures a Classifier.
type Option func(*settings)

type settings struct {
	validator   *validation.Validator
	logger      *slog.Logger
	metrics     *metrics.Metrics
	onHeartbeat func(model.Heartbeat)
	opener      Opener
	accepts     func(string) bool
}

// WithValidator validates every message before it is yielded. Without it
// messages are only decoded.
func WithValidator(v *validation.Validator) Option {
	return func(s *settings) {
		s.validator = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics counts messages by kind.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithHeartbeatHook calls fn for every accepted heartbeat, before it is
// yielded.
func WithHeartbeatHook(fn func(model.Heartbeat)) Option {
	return func(s *settings) {
		s.onHeartbeat = fn
	}
}

// WithMessageTypes restricts data frames to the given type values. Without it
// the accepted types follow T: PRICE for prices, documented transaction types
// for transactions, anything else for other payloads.
func WithMessageTypes(types ...string) Option {
	accepted := make(map[string]struct{}, len(types))
	for _, t := range types {
		accepted[t] = struct{}{}
	}
	return func(s *settings) {
		s.accepts = func(t string) bool {
			_, ok := accepted[t]
			return ok
		}
	}
}

// dataTypes returns the type check for payloads of T.
func dataTypes[T any]() func(string) bool {
	switch any(new(T)).(type) {
	case *model.ClientPrice:
		return func(t string) bool { return t == model.MessageTypePrice }
	case *model.Transaction:
		return func(t string) bool { return model.TransactionType(t).Known() }
	}
	return func(string) bool { return true }
}

// Classifier decodes frames of one stream into Messages of T.
type Classifier[T any] struct {
	name   string
	cfg    settings
	onData func(*T)
}

// NewClassifier creates a Classifier. name labels logs and metrics.
func NewClassifier[T any](name string, opts ...Option) *Classifier[T] {
	c := &Classifier[T]{
		name: name,
		cfg:  settings{logger: slog.Default(), accepts: dataTypes[T]()},
	}
	for _, opt := range opts {
		opt(&c.cfg)
	}
	if c.cfg.logger == nil {
		c.cfg.logger = slog.Default()
	}
	return c
}

// Classify decodes a single frame.
func (c *Classifier[T]) Classify(frame []byte) (Message[T], error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message[T]{}, &api.TransportError{Op: "decode " + c.name, Err: err}
	}

	if env.Type == model.MessageTypeHeartbeat {
		var hb model.Heartbeat
		if err := json.Unmarshal(frame, &hb); err != nil {
			return Message[T]{}, &api.TransportError{Op: "decode " + c.name + " heartbeat", Err: err}
		}
		if err := c.validate(&hb); err != nil {
			return Message[T]{}, err
		}
		c.cfg.metrics.StreamMessage(c.name, KindHeartbeat.String())
		if c.cfg.onHeartbeat != nil {
			c.cfg.onHeartbeat(hb)
		}
		return Message[T]{Kind: KindHeartbeat, Heartbeat: &hb}, nil
	}

	if !c.cfg.accepts(env.Type) {
		return Message[T]{}, &api.TransportError{
			Op:  "decode " + c.name,
			Err: fmt.Errorf("%w %q", ErrUnknownMessageType, env.Type),
		}
	}

	data := new(T)
	if err := json.Unmarshal(frame, data); err != nil {
		return Message[T]{}, &api.TransportError{Op: fmt.Sprintf("decode %s %s", c.name, env.Type), Err: err}
	}
	if err := c.validate(data); err != nil {
		return Message[T]{}, err
	}
	c.cfg.metrics.StreamMessage(c.name, KindData.String())
	if c.onData != nil {
		c.onData(data)
	}
	return Message[T]{Kind: KindData, Data: data}, nil
}

func (c *Classifier[T]) validate(v any) error {
	if c.cfg.validator == nil {
		return nil
	}
	if err := c.cfg.validator.Validate(v); err != nil {
		c.cfg.metrics.ValidationFailed(c.name)
		return err
	}
	return nil
}

// Open starts a Stream over r. The Stream owns r.
func (c *Classifier[T]) Open(r FrameReader) *Stream[T] {
	return &Stream[T]{classifier: c, reader: r}
}

// Stream is a lazy, non-restartable sequence of Messages. Next and All must
// not be called concurrently; Close may be called from any goroutine.
type Stream[T any] struct {
	classifier *Classifier[T]
	reader     FrameReader

	readMu sync.Mutex // serializes Next

	errMu sync.Mutex
	err   error // terminal error, sticky

	closed    atomic.Bool
	closeOnce sync.Once
}

// Next reads and classifies the next frame. Once it has returned an error,
// every later call returns the same error.
func (s *Stream[T]) Next(ctx context.Context) (Message[T], error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if err := s.Err(); err != nil {
		return Message[T]{}, err
	}
	if s.closed.Load() {
		s.setErr(ErrClosed)
		return Message[T]{}, ErrClosed
	}

	frame, err := s.reader.ReadFrame(ctx)
	if err != nil {
		return Message[T]{}, s.fail(ctx, err)
	}

	msg, err := s.classifier.Classify(frame)
	if err != nil {
		return Message[T]{}, s.fail(ctx, err)
	}
	return msg, nil
}

// fail records the terminal error and releases the connection.
func (s *Stream[T]) fail(ctx context.Context, err error) error {
	name := s.classifier.name
	switch {
	case s.closed.Load():
		err = ErrClosed
	case errors.Is(err, io.EOF):
		err = &api.TransportError{Op: "read " + name, Err: ErrDisconnected}
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
	default:
		var te *api.TransportError
		var ve *validation.Error
		if !errors.As(err, &te) && !errors.As(err, &ve) {
			err = &api.TransportError{Op: "read " + name, Err: err}
		}
	}

	s.setErr(err)
	if !errors.Is(err, ErrClosed) {
		s.classifier.cfg.logger.Warn("stream ended", "stream", name, "error", err)
	}
	s.Close()
	return err
}

// All yields messages until the stream ends. A terminal error is yielded once
// as the last element, except after Close.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[Message[T], error] {
	return func(yield func(Message[T], error) bool) {
		for {
			msg, err := s.Next(ctx)
			if err != nil {
				if !errors.Is(err, ErrClosed) {
					yield(Message[T]{}, err)
				}
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Err returns the terminal error, or nil while the stream is live. It does
// not wait for a pending Next.
func (s *Stream[T]) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream[T]) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// Close releases the connection. A blocked Next returns ErrClosed.
func (s *Stream[T]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.reader.Close()
	})
	return err
}
