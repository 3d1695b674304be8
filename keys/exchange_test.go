package keys

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestX25519ExchangeSymmetric(t *testing.T) {
	aPriv, aPub, err := GenerateX25519Keypair(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	bPriv, bPub, err := GenerateX25519Keypair(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	aShared, err := SharedSecret(aPriv, bPub)
	if err != nil {
		t.Fatal(err)
	}
	bShared, err := SharedSecret(bPriv, aPub)
	if err != nil {
		t.Fatal(err)
	}
	if aShared != bShared {
		t.Fatal("shared secrets diverged")
	}

	aKey, err := DeriveCrossOrgSessionKey(aShared)
	if err != nil {
		t.Fatal(err)
	}
	bKey, err := DeriveCrossOrgSessionKey(bShared)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(aKey[:], bKey[:]) {
		t.Fatal("derived session keys diverged")
	}
}

func TestSharedSecretRejectsZeroPoint(t *testing.T) {
	var priv, zeroPub [32]byte
	priv[0] = 1
	if _, err := SharedSecret(priv, zeroPub); err == nil {
		t.Fatal("expected error for all-zero peer public key")
	}
}
