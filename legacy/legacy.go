// Package legacy implements decode compatibility for the wire formats that
// predate the M2M v1 frame codec. Current traffic is encoded with the
// "#M2M[v3.0]|DATA:" Brotli envelope; "#M2M[v2.0]|DATA:" is decode-only and
// is accepted encoded with either Brotli or zlib, trying Brotli first.
// Encoding the v2.0 format is out of scope: it exists on the wire only as
// something this codec must still be able to read.
package legacy

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/duskwire/m2m-go/codecerr"
	"github.com/duskwire/m2m-go/varint"
)

const (
	// PrefixV3 is the current legacy envelope: Brotli-only, encode+decode.
	PrefixV3 = "#M2M[v3.0]|DATA:"
	// PrefixV2 is the prior envelope: Brotli or zlib, decode-only.
	PrefixV2 = "#M2M[v2.0]|DATA:"
)

// HasPrefix reports whether wire carries a recognized legacy envelope.
func HasPrefix(wire []byte) bool {
	return bytes.HasPrefix(wire, []byte(PrefixV3)) || bytes.HasPrefix(wire, []byte(PrefixV2))
}

// EncodeV3 compresses jsonBytes with Brotli, base64-encodes the result with
// the standard padded alphabet, and wraps it in the v3.0 envelope.
func EncodeV3(jsonBytes []byte, quality int) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, quality)
	if _, err := w.Write(jsonBytes); err != nil {
		return nil, codecerr.New(codecerr.Compression, "legacy brotli encode", err)
	}
	if err := w.Close(); err != nil {
		return nil, codecerr.New(codecerr.Compression, "legacy brotli encode", err)
	}
	out := append([]byte(PrefixV3), varint.EncodeBase64(buf.Bytes())...)
	return out, nil
}

// Decode dispatches on the envelope prefix and returns the decompressed
// JSON bytes. The body is standard base64 text; for v2.0 the decoded bytes
// are tried as Brotli first and fall back to zlib.
func Decode(wire []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(wire, []byte(PrefixV3)):
		body, err := varint.DecodeBase64(string(wire[len(PrefixV3):]))
		if err != nil {
			return nil, codecerr.New(codecerr.Decompression, "legacy base64 decode", err)
		}
		return decodeBrotli(body)
	case bytes.HasPrefix(wire, []byte(PrefixV2)):
		body, err := varint.DecodeBase64(string(wire[len(PrefixV2):]))
		if err != nil {
			return nil, codecerr.New(codecerr.Decompression, "legacy base64 decode", err)
		}
		if out, err := decodeBrotli(body); err == nil {
			return out, nil
		}
		return decodeZlib(body)
	default:
		return nil, codecerr.New(codecerr.InvalidCodec, "legacy decode", fmt.Errorf("unrecognized legacy envelope"))
	}
}

func decodeBrotli(body []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(body))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, codecerr.New(codecerr.Decompression, "legacy brotli decode", err)
	}
	return out, nil
}

func decodeZlib(body []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, codecerr.New(codecerr.Decompression, "legacy zlib decode", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, codecerr.New(codecerr.Decompression, "legacy zlib decode", err)
	}
	return out, nil
}
