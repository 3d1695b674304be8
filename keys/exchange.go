package keys

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

// crossOrgInfo is the fixed HKDF info label for cross-organization session
// key derivation following a completed X25519 exchange.
const crossOrgInfo = "m2m-session-v1"

// ExchangeError reports a failure in the X25519 key exchange step.
type ExchangeError struct {
	Op  string
	Err error
}

func (e *ExchangeError) Error() string { return fmt.Sprintf("keys: exchange: %s: %v", e.Op, e.Err) }
func (e *ExchangeError) Unwrap() error { return e.Err }

// GenerateX25519Keypair generates a fresh ephemeral X25519 keypair using r
// (typically crypto/rand.Reader).
func GenerateX25519Keypair(r io.Reader) (priv, pub [32]byte, err error) {
	if r == nil {
		r = rand.Reader
	}
	if _, err = io.ReadFull(r, priv[:]); err != nil {
		return priv, pub, &ExchangeError{Op: "generate private scalar", Err: err}
	}
	pubSlice, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, &ExchangeError{Op: "compute public key", Err: err}
	}
	copy(pub[:], pubSlice)
	return priv, pub, nil
}

// SharedSecret computes the X25519 shared secret between priv and the
// peer's public key peerPub, rejecting all-zero results (a low-order point).
func SharedSecret(priv, peerPub [32]byte) ([32]byte, error) {
	var out [32]byte
	s, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return out, &ExchangeError{Op: "x25519", Err: err}
	}
	copy(out[:], s)
	var acc byte
	for _, b := range out {
		acc |= b
	}
	if acc == 0 {
		return out, &ExchangeError{Op: "x25519", Err: fmt.Errorf("shared secret is all-zero")}
	}
	return out, nil
}

// DeriveCrossOrgSessionKey feeds an X25519 shared secret through
// HKDF-SHA256 with the fixed info label "m2m-session-v1" to produce a
// 32-byte session key.
func DeriveCrossOrgSessionKey(shared [32]byte) ([32]byte, error) {
	var out [32]byte
	derived, err := Derive(shared[:], crossOrgInfo, 32)
	if err != nil {
		return out, &ExchangeError{Op: "derive session key", Err: err}
	}
	copy(out[:], derived)
	return out, nil
}
