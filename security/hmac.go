package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// HMACTagLen is the length, in bytes, of the appended HMAC-SHA256 tag.
const HMACTagLen = 32

// HMACSeal computes the HMAC-SHA256 tag over fixedHeader || routingHeader
// || payloadSection and returns payloadSection with the tag appended.
func HMACSeal(key *Key, fixedHeader, routingHeader, payloadSection []byte) []byte {
	tag := hmacTag(key, fixedHeader, routingHeader, payloadSection)
	out := make([]byte, len(payloadSection)+HMACTagLen)
	copy(out, payloadSection)
	copy(out[len(payloadSection):], tag)
	return out
}

// HMACOpen verifies and strips the trailing HMAC-SHA256 tag from sealed,
// returning the original payload section. Verification runs in constant
// time via hmac.Equal; on mismatch the error never indicates whether the
// key or the payload was at fault.
func HMACOpen(key *Key, fixedHeader, routingHeader, sealed []byte) ([]byte, error) {
	if len(sealed) < HMACTagLen {
		return nil, newErr(KindHmac, "open", fmt.Errorf("sealed data shorter than tag"))
	}
	payloadSection := sealed[:len(sealed)-HMACTagLen]
	gotTag := sealed[len(sealed)-HMACTagLen:]
	wantTag := hmacTag(key, fixedHeader, routingHeader, payloadSection)
	if !hmac.Equal(gotTag, wantTag) {
		return nil, newErr(KindHmac, "open", fmt.Errorf("tag verification failed"))
	}
	return payloadSection, nil
}

func hmacTag(key *Key, fixedHeader, routingHeader, payloadSection []byte) []byte {
	h := hmac.New(sha256.New, key.Bytes())
	h.Write(fixedHeader)
	h.Write(routingHeader)
	h.Write(payloadSection)
	return h.Sum(nil)
}
