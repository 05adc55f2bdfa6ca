// Package client implements the calling side of a courier connection.
//
// A Client owns one connection and runs one call at a time: the request
// frame is written, then the response frame is read, then the next call may
// start. Before a request is sent the client checks it against its pairing
// table according to its Strategy.
package client

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"ipc-courier/codec"
	"ipc-courier/message"
	"ipc-courier/pairing"
	"ipc-courier/transport"
)

var (
	ErrBadRequestToResponsePair     = errors.New("client: bad request to response pair")
	ErrUnableToConnectToServer      = errors.New("client: unable to connect to server")
	ErrUnableToReflectMappings      = errors.New("client: unable to reflect mappings")
	ErrUnableToSendMessage          = errors.New("client: unable to send message")
	ErrUnableToReceiveMessage       = errors.New("client: unable to receive message")
	ErrUnableToParseReturnedMessage = errors.New("client: unable to parse returned message")
)

type Client struct {
	socketPath string
	opts       options
	logger     zerolog.Logger
	payloads   *codec.PayloadCodec
	pairs      *pairing.Table

	mu        sync.Mutex // Serializes calls on the single connection
	transport *transport.ClientTransport
}

// New returns a disconnected client for the server at socketPath.
func New(socketPath string, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		socketPath: socketPath,
		opts:       o,
		logger:     o.logger.With().Str("component", "client").Str("socket", socketPath).Logger(),
		payloads:   codec.NewPayloadCodec(o.codec),
		pairs:      pairing.NewTable(o.duplicatePolicy),
		transport:  transport.NewClientTransport(o.limits),
	}
	if o.strategy == ServerReflection {
		c.pairs.Set(message.MappingRequestName, message.MappingResponseName)
	}
	return c
}

// Strategy returns the validation strategy chosen at construction.
func (c *Client) Strategy() Strategy {
	return c.opts.strategy
}

// Addr returns the server socket path.
func (c *Client) Addr() string {
	return c.socketPath
}

// Connect opens the connection. Under ServerReflection it then asks the
// server for its pairing table and replaces the local table with it; if
// that call fails the connection is closed again and the error wraps
// ErrUnableToReflectMappings.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transport.Connect(ctx, c.socketPath); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToConnectToServer, err)
	}
	c.logger.Debug().Stringer("strategy", c.opts.strategy).Msg("connected")

	if c.opts.strategy != ServerReflection {
		return nil
	}

	var mappings message.MappingResponse
	if err := c.call(ctx, &message.MappingRequest{}, &mappings); err != nil {
		c.transport.Close()
		return fmt.Errorf("%w: %w", ErrUnableToReflectMappings, err)
	}
	c.pairs.Replace(mappings.Mappings)
	c.logger.Debug().Int("pairs", len(mappings.Mappings)).Msg("reflected server mappings")
	return nil
}

// RegisterPair records that requests of type Req are answered with Resp.
// Both types are added to the message registry if needed. A second
// registration for the same Req follows the client's duplicate policy; see
// pairing.Resolve.
func RegisterPair[Req, Resp message.Message](c *Client) bool {
	reqName := mustRegisterType[Req]()
	respName := mustRegisterType[Resp]()
	return c.pairs.Register(reqName, respName)
}

func mustRegisterType[T message.Message]() string {
	name, err := message.RegisterType[T]()
	if err != nil {
		panic(fmt.Sprintf("client.RegisterPair: %v", err))
	}
	return name
}

// Pairs returns a copy of the request → response table.
func (c *Client) Pairs() map[string]string {
	return c.pairs.Snapshot()
}

// Call sends req and decodes the reply into resp, which must be a freshly
// allocated message of the expected response type.
//
// There is no timeout. Cancelling ctx closes the connection; the client
// must be connected again before the next call.
func (c *Client) Call(ctx context.Context, req, resp message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validate(req, resp); err != nil {
		return err
	}
	return c.call(ctx, req, resp)
}

func (c *Client) validate(req, resp message.Message) error {
	if c.opts.strategy == NoValidation {
		return nil
	}
	reqName, respName := req.MessageName(), resp.MessageName()
	expected, ok := c.pairs.Lookup(reqName)
	if ok && expected == respName {
		return nil
	}
	return fmt.Errorf("%w: Request type '%s' expects response type '%s', but '%s' was provided or not registered. Validation strategy: %s",
		ErrBadRequestToResponsePair, reqName, expected, respName, c.opts.strategy)
}

func (c *Client) call(ctx context.Context, req, resp message.Message) error {
	payload, err := c.payloads.Encode(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToSendMessage, err)
	}

	reply, err := c.transport.SendAndReceive(ctx, payload)
	if err != nil {
		if errors.Is(err, transport.ErrUnableToReceiveMessage) {
			return fmt.Errorf("%w: %w", ErrUnableToReceiveMessage, err)
		}
		return fmt.Errorf("%w: %w", ErrUnableToSendMessage, err)
	}

	if err := c.payloads.DecodeInto(reply, resp); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToParseReturnedMessage, err)
	}
	return nil
}

// Send is Call with the response allocated from Resp, which must be a
// pointer to a struct.
func Send[Req, Resp message.Message](ctx context.Context, c *Client, req Req) (Resp, error) {
	var zero Resp
	typ := reflect.TypeFor[Resp]()
	if typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return zero, fmt.Errorf("%w: %v is not a pointer to a struct", ErrBadRequestToResponsePair, typ)
	}

	resp := reflect.New(typ.Elem()).Interface().(Resp)
	if err := c.Call(ctx, req, resp); err != nil {
		return zero, err
	}
	return resp, nil
}

// Close closes the connection. The pairing table is kept, so the client
// can be connected again.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport.Close()
}
