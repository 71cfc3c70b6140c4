// Package codec provides the encoding boundary of objectis: the Codec
// interface turning records into bytes and back, three implementations and a
// versioned, optionally compressed envelope.
//
// Codecs:
//   - json: encoding/json
//   - go-json: github.com/goccy/go-json, output compatible with json (default)
//   - gob: encoding/gob, self-describing binary
//
// Every payload written by objectis is an Envelope:
//
//	[version u8][compression u8][raw length u32 LE][payload]
//
// The compression byte is none (0), lz4 (1, github.com/pierrec/lz4/v4 block
// format) or zstd (2, github.com/klauspost/compress/zstd). The writer falls
// back to none when compression saves less than 10%. Readers take the
// algorithm from the header, so a client configured with one compression can
// read payloads written with another, as long as the inner codec matches.
package codec
