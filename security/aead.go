package security

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceLen is the ChaCha20-Poly1305 nonce length in bytes.
const NonceLen = chacha20poly1305.NonceSize // 12

// AEADTagLen is the Poly1305 authentication tag length in bytes.
const AEADTagLen = chacha20poly1305.Overhead // 16

// RandSource is the injected source of cryptographic randomness for nonce
// generation, defaulting to crypto/rand.Reader. Tests may override it with
// a deterministic source built with the m2mtest build tag (see
// nonce_test_source.go), which is compiled out of release builds.
type RandSource interface {
	Read(p []byte) (int, error)
}

// AEADSeal generates a fresh nonce from rnd, seals payloadSection with
// fixedHeader||routingHeader as associated data, and returns
// nonce(12) || ciphertext || tag(16).
func AEADSeal(rnd RandSource, key *Key, fixedHeader, routingHeader, payloadSection []byte) ([]byte, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	aead, err := chacha20poly1305.New(key.Bytes())
	if err != nil {
		return nil, newErr(KindAead, "construct cipher", err)
	}

	nonce := make([]byte, NonceLen, NonceLen+len(payloadSection)+AEADTagLen)
	if _, err := io.ReadFull(rnd, nonce); err != nil {
		return nil, newErr(KindNonce, "generate nonce", err)
	}

	aad := associatedData(fixedHeader, routingHeader)
	sealed := aead.Seal(nonce, nonce, payloadSection, aad)
	return sealed, nil
}

// AEADOpen extracts the nonce, verifies and decrypts wire, and returns the
// original payload section. On any failure no plaintext is returned.
func AEADOpen(key *Key, fixedHeader, routingHeader, wire []byte) ([]byte, error) {
	if len(wire) < NonceLen+AEADTagLen {
		return nil, newErr(KindAead, "open", fmt.Errorf("sealed data too short"))
	}
	aead, err := chacha20poly1305.New(key.Bytes())
	if err != nil {
		return nil, newErr(KindAead, "construct cipher", err)
	}

	nonce := wire[:NonceLen]
	ciphertext := wire[NonceLen:]
	aad := associatedData(fixedHeader, routingHeader)
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, newErr(KindAead, "open", fmt.Errorf("decryption failed"))
	}
	return plaintext, nil
}

func associatedData(fixedHeader, routingHeader []byte) []byte {
	aad := make([]byte, 0, len(fixedHeader)+len(routingHeader))
	aad = append(aad, fixedHeader...)
	aad = append(aad, routingHeader...)
	return aad
}
