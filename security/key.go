package security

import (
	"fmt"

	"github.com/duskwire/m2m-go/keys"
)

// MinKeyLen is the minimum key length, in bytes, for both HMAC-SHA256 and
// ChaCha20-Poly1305 as used here.
const MinKeyLen = 32

// Key wraps zeroizing key material validated for use with this security
// layer. Validation happens once, at construction, never at seal/verify
// time.
type Key struct {
	m *keys.Material
}

// NewKey validates raw and wraps it in zeroizing storage. An empty or
// short key is rejected here rather than deferred to first use.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) == 0 {
		return nil, newErr(KindKey, "construct", fmt.Errorf("key is empty"))
	}
	if len(raw) < MinKeyLen {
		return nil, newErr(KindKey, "construct", fmt.Errorf("key is %d bytes, need at least %d", len(raw), MinKeyLen))
	}
	return &Key{m: keys.NewMaterial(raw)}, nil
}

// Bytes returns the live key bytes.
func (k *Key) Bytes() []byte { return k.m.Bytes() }

// Close zeroizes the underlying key material.
func (k *Key) Close() { k.m.Close() }
