package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the compression algorithm of an envelope payload
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1 // fast, good for hot data
	CompressionZSTD Compression = 2 // better ratio
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd" (case-insensitive, "" = none)
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression '%s' (expected none, lz4 or zstd)", s)
	}
}

// --------------------------------------------------------------------------
// Envelope
// --------------------------------------------------------------------------

// Envelope header: [version u8][compression u8][raw length u32 LE]
const (
	envelopeVersion    = 1
	envelopeHeaderSize = 6

	// MaxPayloadSize bounds the raw size of one record
	MaxPayloadSize = 256 << 20

	// lz4 blocks expand at most 255 times
	lz4MaxRatio = 255
)

// ErrCorruptEnvelope is returned for payloads that are not valid envelopes
var ErrCorruptEnvelope = errors.New("corrupt envelope")

// Envelope prefixes the output of an inner codec with a small versioned
// header and optionally compresses it. Payloads that do not shrink by at
// least 10% are stored uncompressed. Decoding reads the algorithm from the
// header, so envelopes written with any compression can be read by any
// Envelope.
type Envelope struct {
	Inner       Codec
	Compression Compression
}

// NewEnvelope wraps inner using compression c
func NewEnvelope(inner Codec, c Compression) *Envelope {
	return &Envelope{Inner: inner, Compression: c}
}

func (e *Envelope) Name() string {
	if e.Compression == CompressionNone {
		return e.Inner.Name()
	}
	return e.Inner.Name() + "+" + e.Compression.String()
}

func (e *Envelope) Marshal(v any) ([]byte, error) {
	raw, err := e.Inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxPayloadSize {
		return nil, fmt.Errorf("encoded record is %d bytes, the limit is %d", len(raw), MaxPayloadSize)
	}
	return seal(raw, e.Compression)
}

func (e *Envelope) Unmarshal(data []byte, v any) error {
	raw, err := open(data)
	if err != nil {
		return err
	}
	return e.Inner.Unmarshal(raw, v)
}

// seal compresses raw and prepends the header
func seal(raw []byte, c Compression) ([]byte, error) {
	var (
		payload = raw
		used    = CompressionNone
	)

	if c != CompressionNone && len(raw) > 0 {
		var (
			compressed []byte
			err        error
		)
		switch c {
		case CompressionLZ4:
			compressed, err = compressLZ4(raw)
		case CompressionZSTD:
			compressed = compressZSTD(raw)
		default:
			return nil, fmt.Errorf("unsupported compression %s", c)
		}
		if err != nil {
			return nil, err
		}

		// keep the raw bytes if compression doesn't help (ratio > 0.9)
		if len(compressed) > 0 && float64(len(compressed)) <= float64(len(raw))*0.9 {
			payload, used = compressed, c
		}
	}

	out := make([]byte, envelopeHeaderSize+len(payload))
	out[0] = envelopeVersion
	out[1] = byte(used)
	binary.LittleEndian.PutUint32(out[2:], uint32(len(raw)))
	copy(out[envelopeHeaderSize:], payload)
	return out, nil
}

// open validates the header and returns the raw inner payload
func open(data []byte) ([]byte, error) {
	if len(data) < envelopeHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptEnvelope, len(data))
	}
	if data[0] != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptEnvelope, data[0])
	}

	rawLen := int(binary.LittleEndian.Uint32(data[2:]))
	payload := data[envelopeHeaderSize:]
	if rawLen > MaxPayloadSize {
		return nil, fmt.Errorf("%w: raw length %d exceeds the limit of %d", ErrCorruptEnvelope, rawLen, MaxPayloadSize)
	}

	switch Compression(data[1]) {
	case CompressionNone:
		if len(payload) != rawLen {
			return nil, fmt.Errorf("%w: length mismatch (%d != %d)", ErrCorruptEnvelope, len(payload), rawLen)
		}
		return payload, nil
	case CompressionLZ4:
		if rawLen > len(payload)*lz4MaxRatio {
			return nil, fmt.Errorf("%w: lz4 raw length %d impossible for %d payload bytes", ErrCorruptEnvelope, rawLen, len(payload))
		}
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorruptEnvelope, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: lz4 length mismatch (%d != %d)", ErrCorruptEnvelope, n, rawLen)
		}
		return raw, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)
		raw, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptEnvelope, err)
		}
		if len(raw) != rawLen {
			return nil, fmt.Errorf("%w: zstd length mismatch (%d != %d)", ErrCorruptEnvelope, len(raw), rawLen)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorruptEnvelope, data[1])
	}
}

// --------------------------------------------------------------------------
// Compression helpers
// --------------------------------------------------------------------------

// compressLZ4 compresses data as one lz4 block, nil means incompressible
func compressLZ4(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return compressed[:n], nil
}

func compressZSTD(data []byte) []byte {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)
	return enc.EncodeAll(data, nil)
}

// zstd encoders and decoders are expensive to create and are pooled
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(MaxPayloadSize))
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}
