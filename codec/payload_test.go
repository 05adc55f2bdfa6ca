package codec

import (
	"errors"
	"strings"
	"testing"

	"ipc-courier/message"
)

type pong struct {
	Value int `json:"value"`
}

func (*pong) MessageName() string { return "codec_test.Pong" }

type note struct {
	Text string `json:"text"`
	Raw  []byte `json:"raw"`
}

func (*note) MessageName() string { return "codec_test.Note" }

func init() {
	message.MustRegister(func() message.Message { return new(pong) })
	message.MustRegister(func() message.Message { return new(note) })
}

func codecs() []*PayloadCodec {
	return []*PayloadCodec{NewPayloadCodec(&CBORCodec{}), NewPayloadCodec(&JSONCodec{})}
}

func TestPayloadRoundTrip(t *testing.T) {
	for _, pc := range codecs() {
		t.Run(pc.Codec().Type().String(), func(t *testing.T) {
			payload, err := pc.Encode(&pong{Value: 7})
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !strings.HasPrefix(string(payload), "codec_test.Pong:") {
				t.Fatalf("payload not tagged: %q", payload)
			}

			var decoded pong
			if err := pc.DecodeInto(payload, &decoded); err != nil {
				t.Fatalf("DecodeInto failed: %v", err)
			}
			if decoded.Value != 7 {
				t.Fatalf("Value: got %d, want 7", decoded.Value)
			}
		})
	}
}

func TestPayloadBodyWithColons(t *testing.T) {
	for _, pc := range codecs() {
		t.Run(pc.Codec().Type().String(), func(t *testing.T) {
			original := &note{Text: "a:b::c:", Raw: []byte{':', 0, ':', 0xff}}
			payload, err := pc.Encode(original)
			if err != nil {
				t.Fatal(err)
			}

			decoded, err := pc.DecodeDynamic(payload)
			if err != nil {
				t.Fatalf("DecodeDynamic failed: %v", err)
			}
			got, ok := decoded.(*note)
			if !ok {
				t.Fatalf("DecodeDynamic returned %T", decoded)
			}
			if got.Text != original.Text || string(got.Raw) != string(original.Raw) {
				t.Fatalf("got %+v, want %+v", got, original)
			}
		})
	}
}

func TestSplitUsesFirstDelimiter(t *testing.T) {
	name, body, err := Split([]byte("pkg.Type:x:y:z"))
	if err != nil {
		t.Fatal(err)
	}
	if name != "pkg.Type" || string(body) != "x:y:z" {
		t.Fatalf("Split: got (%q, %q)", name, body)
	}

	if got := Tag("pkg.Type", []byte("x:y")); string(got) != "pkg.Type:x:y" {
		t.Fatalf("Tag: got %q", got)
	}
}

func TestPayloadMissingDelimiter(t *testing.T) {
	pc := NewPayloadCodec(nil)

	err := pc.DecodeInto([]byte("no delimiter here"), new(pong))
	var perr *Error
	if !errors.As(err, &perr) || !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
	if perr.Detail != "Received message: no delimiter here" {
		t.Fatalf("Detail: got %q", perr.Detail)
	}

	long := strings.Repeat("x", 300)
	_, err = pc.DecodeDynamic([]byte(long))
	if !errors.As(err, &perr) || perr.Kind != InvalidFormat {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
	want := "Received message: " + strings.Repeat("x", 128) + "..."
	if perr.Detail != want {
		t.Fatalf("long payload detail not truncated: %d bytes", len(perr.Detail))
	}

	exact := strings.Repeat("y", 128)
	_, err = pc.DecodeDynamic([]byte(exact))
	if !errors.As(err, &perr) || perr.Detail != "Received message: "+exact {
		t.Fatalf("128-byte payload must not be truncated, got %v", err)
	}
}

func TestPayloadTypeMismatch(t *testing.T) {
	pc := NewPayloadCodec(nil)
	payload, err := pc.Encode(&note{Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	err = pc.DecodeInto(payload, new(pong))
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected TypeMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "codec_test.Note") || !strings.Contains(err.Error(), "codec_test.Pong") {
		t.Fatalf("error must name both types: %v", err)
	}
}

func TestPayloadEmptyBody(t *testing.T) {
	pc := NewPayloadCodec(nil)

	var decoded pong
	if err := pc.DecodeInto([]byte("codec_test.Pong:"), &decoded); err != nil {
		t.Fatalf("empty body must decode, got %v", err)
	}
	if decoded.Value != 0 {
		t.Fatalf("expected default value, got %d", decoded.Value)
	}

	msg, err := pc.DecodeDynamic([]byte(message.EmptyName + ":"))
	if err != nil {
		t.Fatalf("DecodeDynamic of empty body failed: %v", err)
	}
	if _, ok := msg.(*message.Empty); !ok {
		t.Fatalf("DecodeDynamic returned %T", msg)
	}
}

func TestPayloadUnknownType(t *testing.T) {
	pc := NewPayloadCodec(nil)

	_, err := pc.DecodeDynamic(Tag("codec_test.Unregistered", nil))
	if !errors.Is(err, ErrDeserializationFailed) {
		t.Fatalf("expected DeserializationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Description for codec_test.Unregistered not found") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestPayloadCorruptBody(t *testing.T) {
	pc := NewPayloadCodec(nil)
	payload := Tag("codec_test.Pong", []byte{0xff, 0xfe, 0x00})

	_, err := pc.DecodeDynamic(payload)
	if !errors.Is(err, ErrDeserializationFailed) {
		t.Fatalf("expected DeserializationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unable to deserialize as codec_test.Pong") {
		t.Fatalf("unexpected detail: %v", err)
	}

	if err := pc.DecodeInto(payload, new(pong)); !errors.Is(err, ErrDeserializationFailed) {
		t.Fatalf("expected DeserializationFailed from DecodeInto, got %v", err)
	}
}

func TestErrorKindsDoNotCrossMatch(t *testing.T) {
	err := error(&Error{Kind: TypeMismatch, Detail: "x"})
	if errors.Is(err, ErrInvalidFormat) || errors.Is(err, ErrDeserializationFailed) {
		t.Fatal("kinds must not match each other")
	}
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatal("kind must match its sentinel")
	}
}
