// Package transport implements the client side of a courier session.
//
// A ClientTransport owns one Unix socket connection and moves one frame out
// and one frame back per call, strictly in that order:
//
//	caller ──SendAndReceive──► WriteFrame(request) ──► server
//	caller ◄──────────────────  ReadFrame(response) ◄── server
//
// There is no background reader and no request queue. Only one call may be
// in flight at a time; callers sharing a transport across goroutines must
// serialize their calls.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"ipc-courier/protocol"
)

var (
	ErrConnectionFailed       = errors.New("transport: connection failed")
	ErrNotConnected           = errors.New("transport: not connected")
	ErrUnableToSendMessage    = errors.New("transport: unable to send message")
	ErrUnableToReceiveMessage = errors.New("transport: unable to receive message")
)

// State is the connection state of a ClientTransport.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// ClientTransport is a synchronous frame session over a Unix socket.
type ClientTransport struct {
	limits protocol.Limits
	addr   string
	conn   net.Conn
}

// NewClientTransport returns a disconnected transport that enforces limits
// on every frame it writes or reads.
func NewClientTransport(limits protocol.Limits) *ClientTransport {
	return &ClientTransport{limits: limits}
}

// Connect opens the socket at addr. On failure the transport stays
// disconnected and the error wraps ErrConnectionFailed.
func (t *ClientTransport) Connect(ctx context.Context, addr string) error {
	if t.conn != nil {
		return fmt.Errorf("%w: already connected to %s", ErrConnectionFailed, t.addr)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	t.conn = conn
	t.addr = addr
	return nil
}

// State reports whether the transport holds an open connection.
func (t *ClientTransport) State() State {
	if t.conn == nil {
		return Disconnected
	}
	return Connected
}

// Addr returns the socket path of the current or last connection.
func (t *ClientTransport) Addr() string {
	return t.addr
}

// Send writes one frame.
func (t *ClientTransport) Send(payload []byte) error {
	if t.conn == nil {
		return ErrNotConnected
	}
	if err := protocol.WriteFrame(t.conn, payload, t.limits); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToSendMessage, err)
	}
	return nil
}

// Receive reads one frame. A truncated frame or a closed stream is reported
// as ErrUnableToReceiveMessage.
func (t *ClientTransport) Receive() ([]byte, error) {
	if t.conn == nil {
		return nil, ErrNotConnected
	}
	payload, err := protocol.ReadFrame(t.conn, t.limits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnableToReceiveMessage, err)
	}
	return payload, nil
}

// SendAndReceive writes payload and then reads the reply.
//
// There is no built-in timeout. Cancelling ctx closes the connection, which
// unblocks a pending write or read; the transport is disconnected afterwards
// because the stream position is no longer known.
func (t *ClientTransport) SendAndReceive(ctx context.Context, payload []byte) ([]byte, error) {
	if t.conn == nil {
		return nil, ErrNotConnected
	}

	conn := t.conn
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	reply, err := t.roundTrip(payload)
	if err != nil && ctx.Err() != nil {
		t.conn = nil
		return nil, fmt.Errorf("%w: %w", err, ctx.Err())
	}
	return reply, err
}

func (t *ClientTransport) roundTrip(payload []byte) ([]byte, error) {
	if err := t.Send(payload); err != nil {
		return nil, err
	}
	return t.Receive()
}

// Close closes the connection. Closing a disconnected transport is a no-op.
func (t *ClientTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
