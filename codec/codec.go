// Package codec turns messages into bytes and back.
//
// Two layers live here. A Codec encodes a message body (CBOR by default,
// JSON for debugging). A PayloadCodec wraps a Codec and produces the tagged
// payload that travels inside a frame:
//
//	<type-name> ':' <encoded body>
//
// The first colon separates the tag from the body. The body may contain
// further colons and arbitrary bytes.
package codec

import "fmt"

type CodecType byte

const (
	CodecTypeJSON CodecType = 0
	CodecTypeCBOR CodecType = 1
)

// Codec encodes and decodes message bodies. Implementations must be safe
// for concurrent use.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=JSON, 1=CBOR
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &CBORCodec{}
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("CodecType(%d)", byte(t))
	}
}

// ParseCodecType maps a configuration name to a CodecType.
func ParseCodecType(name string) (CodecType, error) {
	switch name {
	case "json":
		return CodecTypeJSON, nil
	case "cbor", "":
		return CodecTypeCBOR, nil
	default:
		return 0, fmt.Errorf("codec: unknown codec %q", name)
	}
}
