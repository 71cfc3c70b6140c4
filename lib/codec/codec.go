package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"
)

// Codec turns records into bytes and back. Unmarshal receives a pointer to
// the record to fill.
//
// Thread-safety: Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Codec names accepted by ByName and New
const (
	NameJSON   = "json"
	NameGoJSON = "go-json"
	NameGOB    = "gob"
)

// --------------------------------------------------------------------------
// JSON (encoding/json)
// --------------------------------------------------------------------------

// NewJSON creates a codec using the standard library json encoding
func NewJSON() Codec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return NameJSON }

// --------------------------------------------------------------------------
// go-json (drop-in compatible, faster)
// --------------------------------------------------------------------------

// NewGoJSON creates a codec using github.com/goccy/go-json.
// The output is compatible with NewJSON.
func NewGoJSON() Codec {
	return goJSONCodec{}
}

type goJSONCodec struct{}

func (goJSONCodec) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (goJSONCodec) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (goJSONCodec) Name() string                       { return NameGoJSON }

// --------------------------------------------------------------------------
// GOB
// --------------------------------------------------------------------------

// NewGOB creates a codec using Go's binary gob format.
// Every payload carries its own type information.
func NewGOB() Codec {
	return gobCodec{}
}

type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return NameGOB }

// --------------------------------------------------------------------------
// Factory
// --------------------------------------------------------------------------

// ByName returns the codec registered under name (case-insensitive)
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case NameJSON:
		return NewJSON(), nil
	case NameGoJSON, "gojson", "":
		return NewGoJSON(), nil
	case NameGOB:
		return NewGOB(), nil
	default:
		return nil, fmt.Errorf("unknown codec '%s' (expected %s, %s or %s)", name, NameJSON, NameGoJSON, NameGOB)
	}
}

// New returns the codec called name wrapped in an envelope using compression.
func New(name string, compression string) (Codec, error) {
	inner, err := ByName(name)
	if err != nil {
		return nil, err
	}
	c, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	return NewEnvelope(inner, c), nil
}
