package server

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ipc-courier/codec"
	"ipc-courier/middleware"
	"ipc-courier/pairing"
	"ipc-courier/protocol"
	"ipc-courier/registry"
)

// DefaultLoopDelay is the pause after every request and every session.
const DefaultLoopDelay = 100 * time.Millisecond

// FailurePolicy decides what a session failure does to the rest of the
// server.
type FailurePolicy int

const (
	// FailServer stops Serve on the first failed session and removes the
	// socket file.
	FailServer FailurePolicy = iota
	// IsolateSession logs the failure, drops that connection and keeps
	// accepting.
	IsolateSession
)

func (p FailurePolicy) String() string {
	switch p {
	case FailServer:
		return "fail-server"
	case IsolateSession:
		return "isolate-session"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy maps a configuration name to a FailurePolicy.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch name {
	case "fail-server", "":
		return FailServer, nil
	case "isolate-session":
		return IsolateSession, nil
	default:
		return 0, fmt.Errorf("server: unknown failure policy %q", name)
	}
}

type announcement struct {
	registry registry.Registry
	service  string
	weight   int
	ttl      int64
}

type options struct {
	loopDelay       time.Duration
	failurePolicy   FailurePolicy
	duplicatePolicy pairing.Policy
	limits          protocol.Limits
	codec           codec.Codec
	logger          zerolog.Logger
	announce        *announcement
	removeStale     bool
	middlewares     []middleware.Middleware
}

func defaultOptions() options {
	return options{
		loopDelay:       DefaultLoopDelay,
		failurePolicy:   FailServer,
		duplicatePolicy: pairing.SilentOverride,
		limits:          protocol.Unbounded(),
		codec:           codec.GetCodec(codec.CodecTypeCBOR),
		logger:          zerolog.Nop(),
	}
}

type Option func(*options)

// WithLoopDelay sets the pause applied after every request and after every
// session. Zero disables it.
func WithLoopDelay(d time.Duration) Option {
	return func(o *options) {
		if d < 0 {
			d = 0
		}
		o.loopDelay = d
	}
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *options) { o.failurePolicy = p }
}

// WithDuplicatePolicy sets how a second handler for the same request type
// is treated.
func WithDuplicatePolicy(p pairing.Policy) Option {
	return func(o *options) { o.duplicatePolicy = p }
}

// WithMaxFrameSize rejects frames larger than n bytes in both directions.
// Zero means unbounded.
func WithMaxFrameSize(n uint32) Option {
	return func(o *options) { o.limits = protocol.Limits{MaxFrameSize: n} }
}

// WithCodec selects the body codec. Client and server must agree.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry announces the socket path under service while Serve runs.
// ttl is in seconds; the lease is kept alive until Serve returns.
func WithRegistry(reg registry.Registry, service string, weight int, ttl int64) Option {
	return func(o *options) {
		o.announce = &announcement{registry: reg, service: service, weight: weight, ttl: ttl}
	}
}

// WithStaleSocketRemoval removes an existing file at the socket path before
// binding.
func WithStaleSocketRemoval(remove bool) Option {
	return func(o *options) { o.removeStale = remove }
}

// WithMiddleware appends middlewares run around every handler call. The
// first one is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}
