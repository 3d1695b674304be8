// Package frame implements the M2M v1 binary frame codec: an inspectable
// fixed + routing header followed by a Brotli-compressed, optionally
// AEAD/HMAC-sealed payload section.
package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/duskwire/m2m-go/codecerr"
	"github.com/duskwire/m2m-go/security"
)

// Prefix is the ASCII prefix identifying an M2M v1 frame on the wire.
const Prefix = "#M2M|1|"

// Schema identifies the message kind carried in a frame.
type Schema uint8

const (
	SchemaRequest           Schema = 0x01
	SchemaResponse          Schema = 0x02
	SchemaStream            Schema = 0x03
	SchemaError             Schema = 0x10
	SchemaEmbeddingRequest  Schema = 0x11
	SchemaEmbeddingResponse Schema = 0x12
)

func validSchema(s Schema) bool {
	switch s {
	case SchemaRequest, SchemaResponse, SchemaStream, SchemaError, SchemaEmbeddingRequest, SchemaEmbeddingResponse:
		return true
	default:
		return false
	}
}

// Flags bit assignments. Unassigned bits are reserved: zero on emit,
// ignored on parse. FlagCompressedRoutingHint names a reserved bit and is
// emitted as zero like the others. The set below is a starting vocabulary,
// not a closed enumeration.
const (
	FlagStreamChunk           uint32 = 1 << 0
	FlagCompressedRoutingHint uint32 = 1 << 1
)

// DefaultMaxPayloadLen is the default ceiling on payload_len (the
// decompressed original JSON length) enforced before decompression.
const DefaultMaxPayloadLen = 16 * 1024 * 1024

// BrotliQuality is the Brotli compression level used for the payload.
const BrotliQuality = 5

// FixedHeaderLen is the exact size of the fixed header in bytes.
const FixedHeaderLen = 20

// Options controls how Encode builds a frame.
type Options struct {
	Security security.Mode
	Key      *security.Key
	Flags    uint32
	Rand     security.RandSource // nonce source for AEAD; nil uses crypto/rand
	// MaxPayloadLen bounds accepted payload_len on Decode. Zero means
	// DefaultMaxPayloadLen.
	MaxPayloadLen uint32
}

func (o Options) maxPayloadLen() uint32 {
	if o.MaxPayloadLen == 0 {
		return DefaultMaxPayloadLen
	}
	return o.MaxPayloadLen
}

// Encode builds a complete M2M v1 wire message from original JSON bytes.
func Encode(jsonBytes []byte, schema Schema, opts Options) ([]byte, error) {
	if !validSchema(schema) {
		return nil, codecerr.New(codecerr.Compression, "encode", fmt.Errorf("invalid schema %#x", schema))
	}
	if !security.ValidMode(opts.Security) {
		return nil, codecerr.New(codecerr.Compression, "encode", fmt.Errorf("invalid security mode %#x", opts.Security))
	}
	if opts.Security != security.ModeNone && opts.Key == nil {
		return nil, codecerr.New(codecerr.Compression, "encode", fmt.Errorf("security mode %s requires a key", opts.Security))
	}

	routing := extractRouting(jsonBytes)
	routingBytes := routing.encode()
	if FixedHeaderLen+len(routingBytes) > math.MaxUint16 {
		return nil, codecerr.New(codecerr.Compression, "encode", fmt.Errorf("routing header of %d bytes overflows the 2-byte header_len field", len(routingBytes)))
	}

	fixed := fixedHeader{
		HeaderLen: uint16(FixedHeaderLen + len(routingBytes)),
		Schema:    schema,
		Security:  opts.Security,
		Flags:     opts.Flags & FlagStreamChunk, // reserved bits are emitted as zero
	}
	fixedBytes := fixed.encode()

	payloadSection, err := buildPayloadSection(jsonBytes)
	if err != nil {
		return nil, codecerr.New(codecerr.Compression, "encode payload", err)
	}

	securedPayload, err := sealPayload(opts, fixedBytes, routingBytes, payloadSection)
	if err != nil {
		return nil, codecerr.New(codecerr.Compression, "seal payload", err)
	}

	out := make([]byte, 0, len(Prefix)+len(fixedBytes)+len(routingBytes)+len(securedPayload))
	out = append(out, Prefix...)
	out = append(out, fixedBytes...)
	out = append(out, routingBytes...)
	out = append(out, securedPayload...)
	return out, nil
}

// Decode parses an M2M v1 wire message and returns the original JSON
// bytes. key is required unless the frame's security mode is None.
func Decode(wire []byte, key *security.Key, opts Options) ([]byte, error) {
	if len(wire) < FixedHeaderLen {
		return nil, codecerr.New(codecerr.Decompression, "decode", fmt.Errorf("truncated fixed header"))
	}
	fixed, err := decodeFixedHeader(wire[:FixedHeaderLen])
	if err != nil {
		return nil, codecerr.New(codecerr.Decompression, "decode fixed header", err)
	}
	if int(fixed.HeaderLen) < FixedHeaderLen {
		return nil, codecerr.New(codecerr.Decompression, "decode", fmt.Errorf("header_len %d < %d", fixed.HeaderLen, FixedHeaderLen))
	}
	if len(wire) < int(fixed.HeaderLen) {
		return nil, codecerr.New(codecerr.Decompression, "decode", fmt.Errorf("truncated routing header"))
	}

	routingBytes := wire[FixedHeaderLen:fixed.HeaderLen]
	if _, err := decodeRouting(routingBytes); err != nil {
		return nil, codecerr.New(codecerr.Decompression, "decode routing header", err)
	}

	securedPayload := wire[fixed.HeaderLen:]
	payloadSection, err := openPayload(fixed, key, wire[:FixedHeaderLen], routingBytes, securedPayload, opts)
	if err != nil {
		return nil, codecerr.New(codecerr.Decompression, "open payload", err)
	}

	jsonBytes, err := parsePayloadSection(payloadSection, opts.maxPayloadLen())
	if err != nil {
		return nil, codecerr.New(codecerr.Decompression, "parse payload section", err)
	}
	return jsonBytes, nil
}

// PeekRoutingHeader recovers the routing header from wire without touching
// the payload section.
func PeekRoutingHeader(wire []byte) (*RoutingHeader, error) {
	if len(wire) < FixedHeaderLen {
		return nil, codecerr.New(codecerr.Decompression, "peek", fmt.Errorf("truncated fixed header"))
	}
	fixed, err := decodeFixedHeader(wire[:FixedHeaderLen])
	if err != nil {
		return nil, codecerr.New(codecerr.Decompression, "peek", err)
	}
	if int(fixed.HeaderLen) < FixedHeaderLen || len(wire) < int(fixed.HeaderLen) {
		return nil, codecerr.New(codecerr.Decompression, "peek", fmt.Errorf("truncated routing header"))
	}
	routing, err := decodeRouting(wire[FixedHeaderLen:fixed.HeaderLen])
	if err != nil {
		return nil, codecerr.New(codecerr.Decompression, "peek", err)
	}
	return routing, nil
}

func sealPayload(opts Options, fixedBytes, routingBytes, payloadSection []byte) ([]byte, error) {
	switch opts.Security {
	case security.ModeNone:
		return payloadSection, nil
	case security.ModeHMAC:
		return security.HMACSeal(opts.Key, fixedBytes, routingBytes, payloadSection), nil
	case security.ModeAEAD:
		return security.AEADSeal(opts.Rand, opts.Key, fixedBytes, routingBytes, payloadSection)
	default:
		return nil, fmt.Errorf("unreachable security mode %d", opts.Security)
	}
}

func openPayload(fixed fixedHeader, key *security.Key, fixedBytes, routingBytes, securedPayload []byte, opts Options) ([]byte, error) {
	switch fixed.Security {
	case security.ModeNone:
		return securedPayload, nil
	case security.ModeHMAC:
		if key == nil {
			return nil, fmt.Errorf("hmac security requires a key")
		}
		return security.HMACOpen(key, fixedBytes, routingBytes, securedPayload)
	case security.ModeAEAD:
		if key == nil {
			return nil, fmt.Errorf("aead security requires a key")
		}
		return security.AEADOpen(key, fixedBytes, routingBytes, securedPayload)
	default:
		return nil, fmt.Errorf("security mode %#x out of range", fixed.Security)
	}
}

type fixedHeader struct {
	HeaderLen uint16
	Schema    Schema
	Security  security.Mode
	Flags     uint32
}

func (h fixedHeader) encode() []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.LittleEndian.PutUint16(buf[0:2], h.HeaderLen)
	buf[2] = byte(h.Schema)
	buf[3] = byte(h.Security)
	binary.LittleEndian.PutUint32(buf[4:8], h.Flags)
	// buf[8:20] reserved, left zero.
	return buf
}

func decodeFixedHeader(buf []byte) (fixedHeader, error) {
	h := fixedHeader{
		HeaderLen: binary.LittleEndian.Uint16(buf[0:2]),
		Schema:    Schema(buf[2]),
		Security:  security.Mode(buf[3]),
		Flags:     binary.LittleEndian.Uint32(buf[4:8]),
	}
	if !validSchema(h.Schema) {
		return h, fmt.Errorf("schema %#x out of range", h.Schema)
	}
	if !security.ValidMode(h.Security) {
		return h, fmt.Errorf("security mode %#x out of range", h.Security)
	}
	return h, nil
}
