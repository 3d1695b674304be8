// Package tokencodec implements the token-native codec, which transmits
// tokenizer ids instead of text: #TK|<id>|<base64 varint ids> for
// text-safe channels, or a binary-safe variant without the base64 wrapper
// for channels that both peers have negotiated as binary-safe.
package tokencodec

import (
	"fmt"

	"github.com/duskwire/m2m-go/codecerr"
	"github.com/duskwire/m2m-go/tokenizer"
	"github.com/duskwire/m2m-go/varint"
)

// PrefixFor returns the "#TK|<id>|" prefix for the given tokenizer id.
func PrefixFor(id tokenizer.ID) string {
	return fmt.Sprintf("#TK|%c|", byte(id))
}

// HasPrefix reports whether wire begins with a recognized token-native
// prefix ("#TK|C|", "#TK|O|", or "#TK|L|").
func HasPrefix(wire []byte) bool {
	_, ok := parsePrefix(wire)
	return ok
}

func parsePrefix(wire []byte) (tokenizer.ID, bool) {
	if len(wire) < 6 || string(wire[0:4]) != "#TK|" || wire[5] != '|' {
		return 0, false
	}
	id := tokenizer.ID(wire[4])
	switch id {
	case tokenizer.CL100kBase, tokenizer.O200kBase, tokenizer.LlamaBPE:
		return id, true
	default:
		return 0, false
	}
}

// Encode tokenizes text with the registry's backend for id and returns
// "#TK|<id>|<base64 varint ids>".
func Encode(reg *tokenizer.Registry, id tokenizer.ID, text string) ([]byte, error) {
	backend, err := reg.Get(id)
	if err != nil {
		return nil, codecerr.New(codecerr.InvalidCodec, "encode", err)
	}
	ids, err := backend.Encode(text)
	if err != nil {
		return nil, codecerr.New(codecerr.Compression, "tokenize", err)
	}

	var varints []byte
	for _, v := range ids {
		varints = varint.AppendUint32(varints, v)
	}

	out := append([]byte(PrefixFor(id)), varint.EncodeBase64(varints)...)
	return out, nil
}

// Decode strips the prefix, base64-decodes, parses the varint stream, and
// detokenizes using the registry's backend.
func Decode(reg *tokenizer.Registry, wire []byte) (string, error) {
	id, ok := parsePrefix(wire)
	if !ok {
		return "", codecerr.New(codecerr.InvalidCodec, "decode", fmt.Errorf("unrecognized token-native prefix"))
	}
	backend, err := reg.Get(id)
	if err != nil {
		return "", codecerr.New(codecerr.InvalidCodec, "decode", err)
	}

	raw, err := varint.DecodeBase64(string(wire[6:]))
	if err != nil {
		return "", codecerr.New(codecerr.Decompression, "base64 decode", err)
	}

	ids, err := decodeVarintStream(raw)
	if err != nil {
		return "", codecerr.New(codecerr.Decompression, "varint stream", err)
	}

	text, err := backend.Decode(ids)
	if err != nil {
		return "", codecerr.New(codecerr.Decompression, "detokenize", err)
	}
	return text, nil
}

// EncodeBinary is the binary-safe variant: no base64 wrapper, a single
// tokenizer byte {0,1,2} in place of the ASCII id, then the varint stream.
// It performs no capability check: nothing in this module negotiates a
// binary-safe channel, and session.Capabilities has no field for one.
func EncodeBinary(reg *tokenizer.Registry, id tokenizer.ID, text string) ([]byte, error) {
	backend, err := reg.Get(id)
	if err != nil {
		return nil, codecerr.New(codecerr.InvalidCodec, "encode binary", err)
	}
	ids, err := backend.Encode(text)
	if err != nil {
		return nil, codecerr.New(codecerr.Compression, "tokenize", err)
	}

	binID, err := binaryIDFor(id)
	if err != nil {
		return nil, codecerr.New(codecerr.InvalidCodec, "encode binary", err)
	}

	out := []byte{binID}
	for _, v := range ids {
		out = varint.AppendUint32(out, v)
	}
	return out, nil
}

// DecodeBinary decodes the binary-safe variant produced by EncodeBinary.
func DecodeBinary(reg *tokenizer.Registry, wire []byte) (string, error) {
	if len(wire) < 1 {
		return "", codecerr.New(codecerr.Decompression, "decode binary", fmt.Errorf("empty input"))
	}
	id, err := tokenizerIDFor(wire[0])
	if err != nil {
		return "", codecerr.New(codecerr.InvalidCodec, "decode binary", err)
	}
	backend, err := reg.Get(id)
	if err != nil {
		return "", codecerr.New(codecerr.InvalidCodec, "decode binary", err)
	}

	ids, err := decodeVarintStream(wire[1:])
	if err != nil {
		return "", codecerr.New(codecerr.Decompression, "varint stream", err)
	}

	text, err := backend.Decode(ids)
	if err != nil {
		return "", codecerr.New(codecerr.Decompression, "detokenize", err)
	}
	return text, nil
}

func decodeVarintStream(buf []byte) ([]uint32, error) {
	var ids []uint32
	for len(buf) > 0 {
		v, n, err := varint.Uint32(buf)
		if err != nil {
			return nil, err
		}
		ids = append(ids, v)
		buf = buf[n:]
	}
	return ids, nil
}

func binaryIDFor(id tokenizer.ID) (byte, error) {
	switch id {
	case tokenizer.CL100kBase:
		return 0, nil
	case tokenizer.O200kBase:
		return 1, nil
	case tokenizer.LlamaBPE:
		return 2, nil
	default:
		return 0, fmt.Errorf("unknown tokenizer id %q", rune(id))
	}
}

func tokenizerIDFor(b byte) (tokenizer.ID, error) {
	switch b {
	case 0:
		return tokenizer.CL100kBase, nil
	case 1:
		return tokenizer.O200kBase, nil
	case 2:
		return tokenizer.LlamaBPE, nil
	default:
		return 0, fmt.Errorf("unknown binary tokenizer byte %d", b)
	}
}
