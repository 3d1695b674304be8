package keys

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sort"

	"golang.org/x/crypto/hkdf"
)

// MaxDerivedLength is the largest output HKDF-SHA256 can produce per RFC 5869
// (255 * hash length).
const MaxDerivedLength = 8160

// DerivationLabel builds the slash-separated info label
// "m2m/v1/<org>/<agent>" or, with a non-empty purpose,
// "m2m/v1/<org>/<agent>/<purpose>". org and agent must already be validated
// with ValidateID.
func DerivationLabel(org, agent, purpose string) string {
	if purpose == "" {
		return fmt.Sprintf("m2m/v1/%s/%s", org, agent)
	}
	return fmt.Sprintf("m2m/v1/%s/%s/%s", org, agent, purpose)
}

// DeriveSessionLabel sorts a and b lexicographically and joins them with
// sid into the "<a>:<b>/<sid>" fragment used by SessionLabel, independent
// of which side calls it.
func DeriveSessionLabel(a, b, sid string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return fmt.Sprintf("%s:%s/%s", pair[0], pair[1], sid)
}

// SessionLabel builds the symmetric session derivation label
// "m2m/v1/<org>/session/<a>:<b>/<sid>", using DeriveSessionLabel so both
// peers derive the same label regardless of which side initiated.
func SessionLabel(org, a, b, sid string) string {
	return fmt.Sprintf("m2m/v1/%s/session/%s", org, DeriveSessionLabel(a, b, sid))
}

// Derive runs HKDF-SHA256 with an empty salt over master, using label as
// the info parameter, and returns length bytes of output key material.
// length must not exceed MaxDerivedLength.
func Derive(master []byte, label string, length int) ([]byte, error) {
	if length < 0 || length > MaxDerivedLength {
		return nil, fmt.Errorf("keys: derive length %d exceeds max %d", length, MaxDerivedLength)
	}
	kdf := hkdf.New(sha256.New, master, nil, []byte(label))
	out := make([]byte, length)
	if _, err := io.ReadFull(kdf, out); err != nil {
		return nil, fmt.Errorf("keys: hkdf expand: %w", err)
	}
	return out, nil
}

// DeriveAgentKey derives the purpose-specific key for (org, agent[, purpose]).
func DeriveAgentKey(master []byte, org, agent, purpose string, length int) ([]byte, error) {
	if err := ValidateID(org); err != nil {
		return nil, err
	}
	if err := ValidateID(agent); err != nil {
		return nil, err
	}
	return Derive(master, DerivationLabel(org, agent, purpose), length)
}

// DeriveSessionKey derives a symmetric session key for the ordered pair
// (a, b) under org, identical regardless of initiating side.
func DeriveSessionKey(master []byte, org, a, b, sid string, length int) ([]byte, error) {
	if err := ValidateID(org); err != nil {
		return nil, err
	}
	if err := ValidateID(a); err != nil {
		return nil, err
	}
	if err := ValidateID(b); err != nil {
		return nil, err
	}
	return Derive(master, SessionLabel(org, a, b, sid), length)
}
