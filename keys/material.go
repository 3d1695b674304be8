// Package keys implements key material storage with guaranteed
// zeroization, agent/organization ID validation, the HKDF-SHA256 key
// derivation hierarchy, and X25519 cross-organization key exchange.
package keys

import "runtime"

// Material holds sensitive key bytes in a buffer that is volatile-zeroized
// on every exit path: explicit Close, or process garbage collection via a
// finalizer as a last-resort backstop. clear() on a byte slice is not
// subject to dead-store elimination the way a hand-rolled loop would be,
// since the compiler cannot prove the backing array is otherwise unused
// before the call returns.
type Material struct {
	b      []byte
	closed bool
}

// NewMaterial copies b into a new zeroizing buffer. The caller's b is not
// retained; zeroize it yourself if it must not persist.
func NewMaterial(b []byte) *Material {
	m := &Material{b: append([]byte(nil), b...)}
	runtime.SetFinalizer(m, (*Material).Close)
	return m
}

// Bytes returns the live key bytes. The returned slice aliases internal
// storage and becomes invalid after Close.
func (m *Material) Bytes() []byte {
	if m.closed {
		return nil
	}
	return m.b
}

// Len returns the key length in bytes.
func (m *Material) Len() int { return len(m.b) }

// Close zeroizes the buffer. Safe to call multiple times.
func (m *Material) Close() {
	if m.closed {
		return
	}
	clear(m.b)
	m.closed = true
	runtime.SetFinalizer(m, nil)
}
