package varint

import (
	"encoding/base64"
	"strings"
)

// Base64Encoding is RFC 4648 standard alphabet with '=' padding.
var Base64Encoding = base64.StdEncoding

// EncodeBase64 encodes data with the standard padded alphabet.
func EncodeBase64(data []byte) string {
	return Base64Encoding.EncodeToString(data)
}

// DecodeBase64 decodes s, rejecting non-alphabet bytes and incorrect
// padding. base64.StdEncoding enforces both except for '\r' and '\n',
// which it skips; those are rejected here before decoding.
func DecodeBase64(s string) ([]byte, error) {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return nil, base64.CorruptInputError(i)
	}
	return Base64Encoding.DecodeString(s)
}
