package server

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"ipc-courier/codec"
	"ipc-courier/message"
	"ipc-courier/middleware"
	"ipc-courier/pairing"
)

var (
	ErrHandlerNotRegistered       = errors.New("server: handler not registered")
	ErrUnableToDeserializeMessage = errors.New("server: unable to deserialize message")
	ErrRuntimeError               = errors.New("server: runtime error")
	ErrUnableToSerializeMessage   = errors.New("server: unable to serialize message")
	ErrGeneralServerError         = errors.New("server: general server error")
	ErrSessionFailed              = errors.New("server: session failed")
)

// handler is a registered request handler with its types erased. The
// concrete request and response types live in the invoke closure.
type handler struct {
	request  string
	response string
	invoke   middleware.HandlerFunc
}

// Handle registers fn for requests of type Req. Both types are added to the
// message registry if needed, and Req → Resp is recorded in the server's
// pairing table.
//
// A second registration for the same Req follows the server's duplicate
// policy: the return value is false only under IndicateIgnore, and Throw
// panics with a *pairing.DuplicateRegistrationError. Handle also panics when
// Req or Resp cannot be registered as a message type.
func Handle[Req, Resp message.Message](s *Server, fn func(context.Context, Req) (Resp, error)) bool {
	reqName := mustRegisterType[Req]()
	respName := mustRegisterType[Resp]()

	h := handler{
		request:  reqName,
		response: respName,
		invoke: func(ctx context.Context, msg message.Message) (message.Message, error) {
			req, ok := msg.(Req)
			if !ok {
				return nil, fmt.Errorf("handler for %s received %T", reqName, msg)
			}
			resp, err := fn(ctx, req)
			if err != nil {
				return nil, err
			}
			if reflect.ValueOf(resp).IsNil() {
				return nil, fmt.Errorf("handler for %s returned a nil %s", reqName, respName)
			}
			return resp, nil
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.handlers[reqName]
	return pairing.Resolve(s.pairs.Policy(), reqName, respName, exists, func() {
		s.handlers[reqName] = h
		s.pairs.Set(reqName, respName)
	})
}

func mustRegisterType[T message.Message]() string {
	name, err := message.RegisterType[T]()
	if err != nil {
		panic(fmt.Sprintf("server.Handle: %v", err))
	}
	return name
}

// Use appends a middleware run around every handler call.
func (s *Server) Use(mw middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, mw)
}

// Dispatch decodes one request payload, runs the matching handler and
// returns the encoded response payload.
//
// Failures are reported as ErrUnableToDeserializeMessage,
// ErrHandlerNotRegistered, ErrRuntimeError (the handler returned an error
// or panicked) or ErrUnableToSerializeMessage, each wrapping its cause.
func (s *Server) Dispatch(ctx context.Context, raw []byte) (codec.Payload, error) {
	req, err := s.payloads.DecodeDynamic(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnableToDeserializeMessage, err)
	}
	name := req.MessageName()

	s.mu.RLock()
	h, ok := s.handlers[name]
	chain := middleware.Chain(s.middlewares...)
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: No handler for %s registered", ErrHandlerNotRegistered, name)
	}

	resp, err := invoke(ctx, chain(h.invoke), req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRuntimeError, name, err)
	}

	payload, err := s.payloads.Encode(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnableToSerializeMessage, err)
	}
	return payload, nil
}

// invoke calls fn and turns a panic into an error.
func invoke(ctx context.Context, fn middleware.HandlerFunc, req message.Message) (resp message.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	resp, err = fn(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("middleware returned no response")
	}
	return resp, err
}

// reflectMappings answers the built-in reflection request.
func (s *Server) reflectMappings(_ context.Context, _ *message.MappingRequest) (*message.MappingResponse, error) {
	return &message.MappingResponse{Mappings: s.pairs.Snapshot()}, nil
}
