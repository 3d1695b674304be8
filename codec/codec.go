// Package codec implements the dispatch engine that routes an outgoing
// JSON message to a wire codec and recognizes an incoming wire message's
// codec from its prefix. It owns no wire format itself; it composes frame,
// tokencodec, and legacy.
package codec

import (
	"fmt"

	"github.com/duskwire/m2m-go/codecerr"
	"github.com/duskwire/m2m-go/frame"
	"github.com/duskwire/m2m-go/legacy"
	"github.com/duskwire/m2m-go/security"
	"github.com/duskwire/m2m-go/tokencodec"
	"github.com/duskwire/m2m-go/tokenizer"
)

// MaxMessageSize is the parse-time ceiling on an inbound wire message.
const MaxMessageSize = 16 * 1024 * 1024

// Kind identifies which concrete codec produced or will consume a message.
type Kind int

const (
	KindFrameV1 Kind = iota
	KindTokenNative
	KindLegacyV3
	KindLegacyV2
	KindPassthrough
)

func (k Kind) String() string {
	switch k {
	case KindFrameV1:
		return "m2m-v1"
	case KindTokenNative:
		return "token-native"
	case KindLegacyV3:
		return "legacy-v3"
	case KindLegacyV2:
		return "legacy-v2"
	case KindPassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// Result reports the outcome of a round trip through a codec, alongside
// the byte counts needed to compute the achieved compression ratio.
type Result struct {
	Kind            Kind
	Data            []byte
	OriginalBytes   int
	CompressedBytes int
}

// Ratio returns CompressedBytes / OriginalBytes, or 0 if OriginalBytes is 0.
func (r Result) Ratio() float64 {
	if r.OriginalBytes == 0 {
		return 0
	}
	return float64(r.CompressedBytes) / float64(r.OriginalBytes)
}

// Engine dispatches encode requests to a configured codec and recognizes
// the codec of incoming wire messages by prefix, in the fixed priority
// order: M2M v1 frame, token-native, legacy Brotli/zlib, then passthrough.
type Engine struct {
	Tokenizers *tokenizer.Registry
}

// NewEngine builds an Engine with the given tokenizer registry. With a
// nil registry any token-native message, inbound or outbound, fails as
// InvalidCodec: the prefix is still recognized, the codec behind it is
// unavailable.
func NewEngine(tokenizers *tokenizer.Registry) *Engine {
	return &Engine{Tokenizers: tokenizers}
}

// EncodeFrame encodes jsonBytes as an M2M v1 frame.
func (e *Engine) EncodeFrame(jsonBytes []byte, schema frame.Schema, opts frame.Options) (Result, error) {
	wire, err := frame.Encode(jsonBytes, schema, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindFrameV1, Data: wire, OriginalBytes: len(jsonBytes), CompressedBytes: len(wire)}, nil
}

// EncodeTokenNative tokenizes text with the registered backend for id and
// encodes it as a token-native message.
func (e *Engine) EncodeTokenNative(id tokenizer.ID, text string) (Result, error) {
	if e.Tokenizers == nil {
		return Result{}, codecerr.New(codecerr.InvalidCodec, "encode token-native", fmt.Errorf("no tokenizer registry configured"))
	}
	wire, err := tokencodec.Encode(e.Tokenizers, id, text)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindTokenNative, Data: wire, OriginalBytes: len(text), CompressedBytes: len(wire)}, nil
}

// EncodeLegacy compresses jsonBytes with the current (v3.0) legacy envelope.
func (e *Engine) EncodeLegacy(jsonBytes []byte) (Result, error) {
	wire, err := legacy.EncodeV3(jsonBytes, frame.BrotliQuality)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindLegacyV3, Data: wire, OriginalBytes: len(jsonBytes), CompressedBytes: len(wire)}, nil
}

// Decode recognizes wire's codec by prefix and returns the recovered
// original bytes (UTF-8 JSON for frame/legacy kinds, UTF-8 text for
// token-native) alongside the recognized Kind. Input matching none of the
// recognized prefixes is returned unchanged as KindPassthrough: an
// unrecognized wire prefix is not an error.
func (e *Engine) Decode(wire []byte, key *security.Key, opts frame.Options) (Result, error) {
	if len(wire) > MaxMessageSize {
		return Result{}, codecerr.New(codecerr.Decompression, "decode", fmt.Errorf("message of %d bytes exceeds max %d", len(wire), MaxMessageSize))
	}
	switch {
	case hasFramePrefix(wire):
		body := wire[len(frame.Prefix):]
		data, err := frame.Decode(body, key, opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindFrameV1, Data: data, OriginalBytes: len(data), CompressedBytes: len(wire)}, nil

	case tokencodec.HasPrefix(wire):
		if e.Tokenizers == nil {
			return Result{}, codecerr.New(codecerr.InvalidCodec, "decode token-native", fmt.Errorf("no tokenizer registry configured"))
		}
		text, err := tokencodec.Decode(e.Tokenizers, wire)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindTokenNative, Data: []byte(text), OriginalBytes: len(text), CompressedBytes: len(wire)}, nil

	case legacy.HasPrefix(wire):
		data, err := legacy.Decode(wire)
		if err != nil {
			return Result{}, err
		}
		kind := KindLegacyV3
		if hasLegacyV2Prefix(wire) {
			kind = KindLegacyV2
		}
		return Result{Kind: kind, Data: data, OriginalBytes: len(data), CompressedBytes: len(wire)}, nil

	default:
		return Result{Kind: KindPassthrough, Data: wire, OriginalBytes: len(wire), CompressedBytes: len(wire)}, nil
	}
}

func hasFramePrefix(wire []byte) bool {
	return len(wire) >= len(frame.Prefix) && string(wire[:len(frame.Prefix)]) == frame.Prefix
}

func hasLegacyV2Prefix(wire []byte) bool {
	return len(wire) >= len(legacy.PrefixV2) && string(wire[:len(legacy.PrefixV2)]) == legacy.PrefixV2
}
