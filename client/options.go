package client

import (
	"fmt"

	"github.com/rs/zerolog"

	"ipc-courier/codec"
	"ipc-courier/pairing"
	"ipc-courier/protocol"
)

// Strategy selects how a client checks that a request is sent with the
// response type the server will answer with.
type Strategy int

const (
	// NoValidation sends every request as is. A wrong response type is
	// only noticed when the reply fails to decode.
	NoValidation Strategy = iota
	// ManualRegistration requires every request → response pair to be
	// registered with RegisterPair before it is sent.
	ManualRegistration
	// ServerReflection fetches the server's pairing table on Connect and
	// validates against it.
	ServerReflection
)

func (s Strategy) String() string {
	switch s {
	case NoValidation:
		return "no-validation"
	case ManualRegistration:
		return "manual-registration"
	case ServerReflection:
		return "server-reflection"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configuration name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "no-validation", "":
		return NoValidation, nil
	case "manual-registration":
		return ManualRegistration, nil
	case "server-reflection":
		return ServerReflection, nil
	default:
		return 0, fmt.Errorf("client: unknown validation strategy %q", name)
	}
}

type options struct {
	strategy        Strategy
	duplicatePolicy pairing.Policy
	codec           codec.Codec
	limits          protocol.Limits
	logger          zerolog.Logger
}

func defaultOptions() options {
	return options{
		strategy:        NoValidation,
		duplicatePolicy: pairing.SilentOverride,
		codec:           codec.GetCodec(codec.CodecTypeCBOR),
		limits:          protocol.Unbounded(),
		logger:          zerolog.Nop(),
	}
}

type Option func(*options)

func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithDuplicatePolicy sets how RegisterPair treats a request type that is
// already registered.
func WithDuplicatePolicy(p pairing.Policy) Option {
	return func(o *options) { o.duplicatePolicy = p }
}

// WithCodec selects the body codec. Client and server must agree.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithMaxFrameSize rejects frames larger than n bytes in both directions.
// Zero means unbounded.
func WithMaxFrameSize(n uint32) Option {
	return func(o *options) { o.limits = protocol.Limits{MaxFrameSize: n} }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
