package codec

import (
	"bytes"
	"fmt"

	"ipc-courier/message"
)

// Delimiter separates the type name from the encoded body in a payload.
const Delimiter byte = ':'

// previewLimit bounds how much of a payload is copied into error details.
const previewLimit = 128

// Payload is a tagged message: the canonical type name, a colon, then the
// body produced by a Codec.
type Payload []byte

// Kind classifies payload decoding failures.
type Kind int

const (
	// InvalidFormat means the payload has no delimiter.
	InvalidFormat Kind = iota + 1
	// TypeMismatch means the tag names a different type than the caller expected.
	TypeMismatch
	// DeserializationFailed means the tag names an unknown type or the body
	// could not be decoded as the tagged type.
	DeserializationFailed
)

func (k Kind) String() string {
	switch k {
	case InvalidFormat:
		return "invalid format"
	case TypeMismatch:
		return "type mismatch"
	case DeserializationFailed:
		return "deserialization failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned for every payload decoding failure. Detail carries the
// type names or a bounded preview of the offending payload.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "codec: " + e.Kind.String()
	}
	return "codec: " + e.Kind.String() + ": " + e.Detail
}

// Is matches any *Error of the same Kind when the target carries no detail,
// which lets callers write errors.Is(err, codec.ErrTypeMismatch).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Detail == "" || t.Detail == e.Detail)
}

var (
	ErrInvalidFormat         = &Error{Kind: InvalidFormat}
	ErrTypeMismatch          = &Error{Kind: TypeMismatch}
	ErrDeserializationFailed = &Error{Kind: DeserializationFailed}
)

// Tag builds a payload from a type name and an already encoded body. No
// escaping is applied.
func Tag(typeName string, body []byte) Payload {
	p := make(Payload, 0, len(typeName)+1+len(body))
	p = append(p, typeName...)
	p = append(p, Delimiter)
	return append(p, body...)
}

// Split separates a payload at its first delimiter.
func Split(p []byte) (typeName string, body []byte, err error) {
	i := bytes.IndexByte(p, Delimiter)
	if i < 0 {
		return "", nil, &Error{Kind: InvalidFormat, Detail: "Received message: " + preview(p)}
	}
	return string(p[:i]), p[i+1:], nil
}

func preview(p []byte) string {
	if len(p) > previewLimit {
		return string(p[:previewLimit]) + "..."
	}
	return string(p)
}

// PayloadCodec encodes messages into tagged payloads and decodes them back,
// either into a type the caller names or into whatever type the tag
// resolves to in the message registry.
type PayloadCodec struct {
	body Codec
}

// NewPayloadCodec returns a PayloadCodec that encodes bodies with c. A nil
// Codec selects CBOR.
func NewPayloadCodec(c Codec) *PayloadCodec {
	if c == nil {
		c = &CBORCodec{}
	}
	return &PayloadCodec{body: c}
}

// Codec returns the body codec.
func (pc *PayloadCodec) Codec() Codec {
	return pc.body
}

// Encode serializes msg and tags it with its canonical name.
func (pc *PayloadCodec) Encode(msg message.Message) (Payload, error) {
	if msg == nil {
		return nil, fmt.Errorf("codec: cannot encode a nil message")
	}
	name := msg.MessageName()
	body, err := pc.body.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("codec: encoding %s: %w", name, err)
	}
	return Tag(name, body), nil
}

// DecodeInto decodes p into dst, which must be a freshly allocated message.
// The payload's tag must equal dst's canonical name. An empty body leaves
// dst at its default values.
func (pc *PayloadCodec) DecodeInto(p []byte, dst message.Message) error {
	typeName, body, err := Split(p)
	if err != nil {
		return err
	}

	expected := dst.MessageName()
	if typeName != expected {
		return &Error{
			Kind:   TypeMismatch,
			Detail: fmt.Sprintf("Received %s but expected %s", typeName, expected),
		}
	}

	return pc.decodeBody(typeName, body, p, dst)
}

// DecodeDynamic decodes p into a new instance of the type its tag names.
func (pc *PayloadCodec) DecodeDynamic(p []byte) (message.Message, error) {
	typeName, body, err := Split(p)
	if err != nil {
		return nil, err
	}

	msg, ok := message.New(typeName)
	if !ok {
		return nil, &Error{
			Kind:   DeserializationFailed,
			Detail: fmt.Sprintf("Description for %s not found", typeName),
		}
	}

	if err := pc.decodeBody(typeName, body, p, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (pc *PayloadCodec) decodeBody(typeName string, body, p []byte, dst message.Message) error {
	if len(body) == 0 {
		return nil
	}
	if err := pc.body.Decode(body, dst); err != nil {
		return &Error{
			Kind:   DeserializationFailed,
			Detail: fmt.Sprintf("Unable to deserialize as %s. Message: %s", typeName, preview(p)),
		}
	}
	return nil
}
