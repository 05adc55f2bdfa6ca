package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestWriteReadFrame(t *testing.T) {
	large := make([]byte, 10000)
	for i := range large {
		large[i] = byte(i % 256)
	}

	cases := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x7f}},
		{"large", large},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tc.payload, Unbounded()); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}

			raw := buf.Bytes()
			if len(raw) != HeaderSize+len(tc.payload) {
				t.Fatalf("frame length: got %d, want %d", len(raw), HeaderSize+len(tc.payload))
			}
			if got := binary.NativeEndian.Uint32(raw[:HeaderSize]); got != uint32(len(tc.payload)) {
				t.Fatalf("header: got %d, want %d", got, len(tc.payload))
			}
			if !bytes.Equal(raw[HeaderSize:], tc.payload) {
				t.Fatalf("payload bytes after header differ")
			}

			decoded, err := ReadFrame(&buf, Unbounded())
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(decoded, tc.payload) {
				t.Fatalf("payload mismatch: got %d bytes, want %d", len(decoded), len(tc.payload))
			}
		})
	}
}

func TestReadFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range []string{"first", "", "third:with:colons"} {
		if err := WriteFrame(&buf, []byte(p), Unbounded()); err != nil {
			t.Fatalf("WriteFrame(%q): %v", p, err)
		}
	}

	for _, want := range []string{"first", "", "third:with:colons"} {
		got, err := ReadFrame(&buf, Unbounded())
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}

	if _, err := ReadFrame(&buf, Unbounded()); err != io.EOF {
		t.Fatalf("expected io.EOF after last frame, got %v", err)
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2}), Unbounded())
	if !errors.Is(err, ErrNotEnoughBytes) {
		t.Fatalf("expected ErrNotEnoughBytes, got %v", err)
	}
}

func TestReadFrameShortBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello world"), Unbounded()); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]

	_, err := ReadFrame(bytes.NewReader(truncated), Unbounded())
	if !errors.Is(err, ErrNotEnoughBytes) {
		t.Fatalf("expected ErrNotEnoughBytes, got %v", err)
	}
}

func TestReadFrameHeaderOnly(t *testing.T) {
	header := make([]byte, HeaderSize)
	binary.NativeEndian.PutUint32(header, 5)

	_, err := ReadFrame(bytes.NewReader(header), Unbounded())
	if !errors.Is(err, ErrNotEnoughBytes) {
		t.Fatalf("expected ErrNotEnoughBytes, got %v", err)
	}
}

func TestFrameLimits(t *testing.T) {
	limits := Limits{MaxFrameSize: 8}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("0123456789"), limits); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge on write, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("rejected frame must not write bytes, wrote %d", buf.Len())
	}

	if err := WriteFrame(&buf, []byte("0123456789"), Unbounded()); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFrame(&buf, limits); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge on read, got %v", err)
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

func TestWriteFrameShortWrite(t *testing.T) {
	if err := WriteFrame(shortWriter{}, []byte("payload"), Unbounded()); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected io.ErrShortWrite, got %v", err)
	}
}
