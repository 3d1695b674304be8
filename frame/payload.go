package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/andybalholm/brotli"
	"github.com/duskwire/m2m-go/varint"
)

// payloadSectionHeaderLen is the size of the payload_len + crc32 prefix.
const payloadSectionHeaderLen = 8

// buildPayloadSection assembles [payload_len:4][crc32:4][compressed_payload]
// from the original JSON bytes, computing the CRC before compression.
func buildPayloadSection(jsonBytes []byte) ([]byte, error) {
	if len(jsonBytes) > math.MaxUint32 {
		return nil, fmt.Errorf("payload of %d bytes exceeds uint32 length field", len(jsonBytes))
	}
	crc := varint.CRC32(jsonBytes)

	var compressed bytes.Buffer
	w := brotli.NewWriterLevel(&compressed, BrotliQuality)
	if _, err := w.Write(jsonBytes); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}

	out := make([]byte, payloadSectionHeaderLen+compressed.Len())
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(jsonBytes)))
	binary.LittleEndian.PutUint32(out[4:8], crc)
	copy(out[payloadSectionHeaderLen:], compressed.Bytes())
	return out, nil
}

// parsePayloadSection decompresses and verifies a payload section,
// enforcing maxPayloadLen both against the claimed payload_len (before any
// decompression) and against the actual decompressed stream (a
// decompression-bomb guard: the Brotli reader is never asked to produce
// more than payload_len+1 bytes).
func parsePayloadSection(section []byte, maxPayloadLen uint32) ([]byte, error) {
	if len(section) < payloadSectionHeaderLen {
		return nil, fmt.Errorf("truncated payload section")
	}
	payloadLen := binary.LittleEndian.Uint32(section[0:4])
	wantCRC := binary.LittleEndian.Uint32(section[4:8])
	compressed := section[payloadSectionHeaderLen:]

	if payloadLen > maxPayloadLen {
		return nil, fmt.Errorf("payload_len %d exceeds configured max %d", payloadLen, maxPayloadLen)
	}

	br := brotli.NewReader(bytes.NewReader(compressed))
	limited := io.LimitReader(br, int64(payloadLen)+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("brotli decompress: %w", err)
	}
	if uint32(len(data)) > payloadLen {
		return nil, fmt.Errorf("decompressed size exceeds declared payload_len (bomb)")
	}
	if uint32(len(data)) != payloadLen {
		return nil, fmt.Errorf("payload_len mismatch: decompressed %d bytes, declared %d", len(data), payloadLen)
	}
	if gotCRC := varint.CRC32(data); gotCRC != wantCRC {
		return nil, fmt.Errorf("crc32 mismatch: got %08x, want %08x", gotCRC, wantCRC)
	}
	return data, nil
}
