// Package protocol implements the length-prefixed frame protocol used on the
// local socket between a courier client and server.
//
// A byte stream has no message boundaries, so every message is written as a
// fixed 4-byte length header followed by exactly that many payload bytes. The
// receiver reads the header first, then reads exactly the declared number of
// payload bytes.
//
// Frame format:
//
//	0        4
//	┌────────┬───────────────────────┐
//	│ length │      payload ...      │
//	│ uint32 │     length bytes      │
//	└────────┴───────────────────────┘
//
// The header is encoded in host byte order. Both peers share one machine, so
// the byte order never crosses an architecture boundary.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the size of the length prefix in bytes.
const HeaderSize = 4

var (
	// ErrNotEnoughBytes is returned when the stream ends before a complete
	// header or a complete payload was read.
	ErrNotEnoughBytes = errors.New("protocol: not enough bytes received")

	// ErrFrameTooLarge is returned when a frame exceeds Limits.MaxFrameSize.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

// Limits constrains the memory a single frame may claim.
type Limits struct {
	// MaxFrameSize is the largest payload accepted or written, in bytes.
	// Zero means unbounded: a peer can make the reader allocate up to 4 GiB.
	MaxFrameSize uint32
}

// Unbounded returns limits that accept any payload the header can describe.
func Unbounded() Limits {
	return Limits{}
}

func (l Limits) allows(n uint64) bool {
	return l.MaxFrameSize == 0 || n <= uint64(l.MaxFrameSize)
}

// WriteFrame writes a complete frame (header + payload) to w.
//
// Header and payload are assembled into one buffer and handed to w in a single
// Write, so a frame is either written completely or an error is returned.
// The caller must serialize calls if several goroutines share w.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes does not fit the length header", ErrFrameTooLarge, len(payload))
	}
	if !limits.allows(uint64(len(payload))) {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFrameTooLarge, len(payload), limits.MaxFrameSize)
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.NativeEndian.PutUint32(buf[:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

// ReadFrame reads one complete frame from r and returns its payload.
//
// io.EOF is returned unchanged when the stream ends cleanly before the first
// header byte, which is how a peer closes a session. A stream that ends in
// the middle of a header or payload yields ErrNotEnoughBytes.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short header", ErrNotEnoughBytes)
		}
		return nil, err
	}

	length := binary.NativeEndian.Uint32(header[:])
	if !limits.allows(uint64(length)) {
		return nil, fmt.Errorf("%w: header declares %d bytes, limit is %d", ErrFrameTooLarge, length, limits.MaxFrameSize)
	}

	payload := make([]byte, length)
	if length == 0 {
		return payload, nil
	}
	if n, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got %d of %d payload bytes", ErrNotEnoughBytes, n, length)
		}
		return nil, err
	}
	return payload, nil
}
