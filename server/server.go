// Package server implements the courier acceptor, its per-connection
// session loop and the request dispatcher.
//
// Request processing pipeline:
//
//	Accept conn → serveConn (one connection at a time)
//	  → ReadFrame → Dispatch → WriteFrame → loop delay → next request
//	Dispatch: DecodeDynamic → handler lookup → Middleware Chain → handler → Encode
//
// The server never reads the next request on a connection before the
// previous response is written, and never accepts the next connection
// before the current one is finished.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ipc-courier/codec"
	"ipc-courier/metadata"
	"ipc-courier/middleware"
	"ipc-courier/pairing"
	"ipc-courier/protocol"
	"ipc-courier/registry"
)

// deregisterTimeout bounds the registry call made when Serve returns.
const deregisterTimeout = 5 * time.Second

// Server serves courier requests on one Unix socket.
type Server struct {
	socketPath string
	listener   *net.UnixListener
	opts       options
	logger     zerolog.Logger
	payloads   *codec.PayloadCodec

	mu          sync.RWMutex
	handlers    map[string]handler      // Request type name → handler
	middlewares []middleware.Middleware // Applied in order around every handler
	pairs       *pairing.Table          // Request type name → response type name

	serving  atomic.Bool
	shutdown atomic.Bool // Set before the listener is closed so Accept errors read as intentional
	done     chan struct{}

	connMu sync.Mutex
	active net.Conn // Connection of the running session, closed by Close

	closeOnce sync.Once
	closeErr  error
}

// New binds a listening socket at socketPath. A bind failure is returned
// here; no Server is created.
//
// The reflection handler is registered before New returns, so the pairing
// table always contains the reflection request.
func New(socketPath string, opts ...Option) (*Server, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if socketPath == "" {
		return nil, fmt.Errorf("%w: empty socket path", ErrGeneralServerError)
	}
	if o.removeStale {
		if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: removing stale socket %s: %w", ErrGeneralServerError, socketPath, err)
		}
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("%w: listening on %s: %w", ErrGeneralServerError, socketPath, err)
	}
	// The socket file is removed only on fatal teardown.
	listener.SetUnlinkOnClose(false)

	s := &Server{
		socketPath:  socketPath,
		listener:    listener,
		opts:        o,
		logger:      o.logger.With().Str("component", "server").Str("socket", socketPath).Logger(),
		payloads:    codec.NewPayloadCodec(o.codec),
		handlers:    make(map[string]handler),
		middlewares: o.middlewares,
		pairs:       pairing.NewTable(o.duplicatePolicy),
		done:        make(chan struct{}),
	}
	Handle(s, s.reflectMappings)
	return s, nil
}

// Addr returns the socket path.
func (s *Server) Addr() string {
	return s.socketPath
}

// Pairs returns a copy of the request → response table.
func (s *Server) Pairs() map[string]string {
	return s.pairs.Snapshot()
}

// Serve accepts connections one at a time and runs each session to
// completion before accepting the next. It returns nil after Close,
// Shutdown or cancellation of ctx.
//
// Under FailServer the first failed session stops Serve: the listener is
// closed, the socket file is removed and the session error is returned.
// Under IsolateSession the failure is logged and the next connection is
// accepted.
func (s *Server) Serve(ctx context.Context) error {
	if !s.serving.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: Serve called twice", ErrGeneralServerError)
	}
	defer close(s.done)

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	if s.opts.announce != nil {
		s.register(ctx)
		defer s.deregister()
	}

	s.logger.Info().
		Str("protocol", metadata.Protocol()).
		Stringer("failure_policy", s.opts.failurePolicy).
		Dur("loop_delay", s.opts.loopDelay).
		Msg("listening")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return s.fail(fmt.Errorf("%w: accept: %w", ErrGeneralServerError, err))
		}

		err = s.runSession(ctx, conn)
		if err != nil && !s.shutdown.Load() {
			if s.opts.failurePolicy != IsolateSession {
				return s.fail(err)
			}
			s.logger.Warn().Err(err).Msg("session failed, accepting next connection")
		}

		if s.pause(ctx) != nil || s.shutdown.Load() {
			s.Close()
			return nil
		}
	}
}

func (s *Server) runSession(ctx context.Context, conn net.Conn) error {
	s.connMu.Lock()
	if s.shutdown.Load() {
		s.connMu.Unlock()
		conn.Close()
		return nil
	}
	s.active = conn
	s.connMu.Unlock()

	defer func() {
		s.connMu.Lock()
		s.active = nil
		s.connMu.Unlock()
		conn.Close()
	}()

	s.logger.Debug().Msg("session opened")
	served, err := s.serveConn(ctx, conn)
	if err != nil {
		s.logger.Error().Err(err).Int("requests", served).Msg("session failed")
		return err
	}
	s.logger.Debug().Int("requests", served).Msg("session closed")
	return nil
}

// serveConn runs the read → dispatch → write loop until the peer closes
// the connection. Any other failure, including a dispatch failure, ends
// the session without a response frame.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) (int, error) {
	served := 0
	for {
		raw, err := protocol.ReadFrame(conn, s.opts.limits)
		if err != nil {
			if closedGracefully(err) {
				return served, nil
			}
			return served, fmt.Errorf("%w: reading request: %w", ErrSessionFailed, err)
		}

		reply, err := s.Dispatch(ctx, raw)
		if err != nil {
			return served, fmt.Errorf("%w: %w", ErrSessionFailed, err)
		}

		if err := protocol.WriteFrame(conn, reply, s.opts.limits); err != nil {
			if s.shutdown.Load() {
				return served, nil
			}
			return served, fmt.Errorf("%w: writing response: %w", ErrSessionFailed, err)
		}
		served++

		if s.pause(ctx) != nil {
			return served, nil
		}
	}
}

// closedGracefully reports whether a read error means the stream was
// closed, by the peer at a frame boundary or locally by Close.
func closedGracefully(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// pause waits for the loop delay. It returns ctx.Err() if ctx ends first.
func (s *Server) pause(ctx context.Context) error {
	if s.opts.loopDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.opts.loopDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fail tears the server down after a fatal error and removes the socket
// file.
func (s *Server) fail(err error) error {
	s.Close()
	if rmErr := os.Remove(s.socketPath); rmErr != nil && !os.IsNotExist(rmErr) {
		s.logger.Error().Err(rmErr).Msg("removing socket file")
	}
	s.logger.Error().Err(err).Msg("server stopped, socket removed")
	return err
}

func (s *Server) register(ctx context.Context) {
	a := s.opts.announce
	endpoint := registry.Endpoint{
		Path:    s.socketPath,
		Weight:  a.weight,
		Version: metadata.Version,
	}
	if err := a.registry.Register(ctx, a.service, endpoint, a.ttl); err != nil {
		s.logger.Warn().Err(err).Str("service", a.service).Msg("announcing endpoint failed")
		return
	}
	s.logger.Info().Str("service", a.service).Msg("endpoint announced")
}

func (s *Server) deregister() {
	a := s.opts.announce
	ctx, cancel := context.WithTimeout(context.Background(), deregisterTimeout)
	defer cancel()
	if err := a.registry.Deregister(ctx, a.service, s.socketPath); err != nil {
		s.logger.Warn().Err(err).Str("service", a.service).Msg("withdrawing endpoint failed")
	}
}

// Close stops the server: no further connections are accepted and the
// running session, if any, is closed. The socket file is left in place.
// Close is safe to call more than once and from any goroutine.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.connMu.Lock()
		s.shutdown.Store(true)
		if s.active != nil {
			s.active.Close()
		}
		s.connMu.Unlock()
		s.closeErr = s.listener.Close()
	})
	return s.closeErr
}

// Shutdown closes the server and waits for Serve to return, or for ctx to
// end. Without a running Serve it only closes.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Close()
	if !s.serving.Load() {
		return err
	}
	select {
	case <-s.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for the active session to finish: %w", ctx.Err())
	}
}
