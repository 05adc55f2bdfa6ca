package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"ipc-courier/internal/testutil"
	"ipc-courier/protocol"
)

// startFrameServer accepts one connection and runs serve on it.
func startFrameServer(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()
	path := testutil.SocketPath(t, "frames.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()
	return path
}

func echoFrames(conn net.Conn) {
	for {
		payload, err := protocol.ReadFrame(conn, protocol.Unbounded())
		if err != nil {
			return
		}
		reply := append([]byte("echo:"), payload...)
		if err := protocol.WriteFrame(conn, reply, protocol.Unbounded()); err != nil {
			return
		}
	}
}

func TestClientTransportSerial(t *testing.T) {
	path := startFrameServer(t, echoFrames)

	ct := NewClientTransport(protocol.Unbounded())
	if ct.State() != Disconnected {
		t.Fatal("new transport must be disconnected")
	}
	if err := ct.Connect(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	defer ct.Close()
	if ct.State() != Connected {
		t.Fatal("transport must be connected after Connect")
	}

	for _, msg := range []string{"one", "", "three:3"} {
		reply, err := ct.SendAndReceive(context.Background(), []byte(msg))
		if err != nil {
			t.Fatalf("SendAndReceive(%q): %v", msg, err)
		}
		if string(reply) != "echo:"+msg {
			t.Fatalf("reply: got %q, want %q", reply, "echo:"+msg)
		}
	}
}

func TestClientTransportConnectFailure(t *testing.T) {
	ct := NewClientTransport(protocol.Unbounded())
	missing := testutil.SocketPath(t, "absent.sock")

	err := ct.Connect(context.Background(), missing)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
	if ct.State() != Disconnected {
		t.Fatal("failed Connect must leave the transport disconnected")
	}
}

func TestClientTransportNotConnected(t *testing.T) {
	ct := NewClientTransport(protocol.Unbounded())
	if _, err := ct.SendAndReceive(context.Background(), []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := ct.Send([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected from Send, got %v", err)
	}
}

func TestClientTransportTruncatedReply(t *testing.T) {
	path := startFrameServer(t, func(conn net.Conn) {
		if _, err := protocol.ReadFrame(conn, protocol.Unbounded()); err != nil {
			return
		}
		// Header announces 10 bytes, only 2 follow before the close.
		partial := binary.NativeEndian.AppendUint32(nil, 10)
		conn.Write(append(partial, 'h', 'i'))
	})

	ct := NewClientTransport(protocol.Unbounded())
	if err := ct.Connect(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	defer ct.Close()

	_, err := ct.SendAndReceive(context.Background(), []byte("req"))
	if !errors.Is(err, ErrUnableToReceiveMessage) {
		t.Fatalf("expected ErrUnableToReceiveMessage, got %v", err)
	}
}

func TestClientTransportCancel(t *testing.T) {
	release := make(chan struct{})
	path := startFrameServer(t, func(conn net.Conn) {
		protocol.ReadFrame(conn, protocol.Unbounded())
		<-release
	})
	defer close(release)

	ct := NewClientTransport(protocol.Unbounded())
	if err := ct.Connect(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ct.SendAndReceive(ctx, []byte("stall"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if ct.State() != Disconnected {
		t.Fatal("a cancelled call must leave the transport disconnected")
	}
}
