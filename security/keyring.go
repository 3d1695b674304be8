package security

import (
	"fmt"

	"github.com/duskwire/m2m-go/keys"
)

// Keyring maps key ids to validated key material. It is owned by the
// caller: lookups are read-only and safe to share across concurrent codec
// calls, but adding or removing keys must happen with exclusive access,
// out of band of any in-flight seal or open.
type Keyring struct {
	byID map[string]*Key
}

// NewKeyring returns an empty Keyring.
func NewKeyring() *Keyring {
	return &Keyring{byID: make(map[string]*Key)}
}

// Add validates raw and stores it under id, zeroizing and replacing any
// key previously held under that id.
func (r *Keyring) Add(id string, raw []byte) error {
	k, err := NewKey(raw)
	if err != nil {
		return err
	}
	if old, ok := r.byID[id]; ok {
		old.Close()
	}
	r.byID[id] = k
	return nil
}

// Derive runs the HKDF hierarchy for (org, agent, purpose) over master and
// stores the resulting key under id. The intermediate bytes are zeroized
// once copied into the ring.
func (r *Keyring) Derive(id string, master []byte, org, agent, purpose string) error {
	raw, err := keys.DeriveAgentKey(master, org, agent, purpose, MinKeyLen)
	if err != nil {
		return newErr(KindKeyring, "derive", err)
	}
	err = r.Add(id, raw)
	clear(raw)
	if err != nil {
		return newErr(KindKeyring, "derive", err)
	}
	return nil
}

// Lookup returns the key stored under id.
func (r *Keyring) Lookup(id string) (*Key, error) {
	k, ok := r.byID[id]
	if !ok {
		return nil, newErr(KindKeyring, "lookup", fmt.Errorf("key %q not found", id))
	}
	return k, nil
}

// Close zeroizes every key in the ring and empties it.
func (r *Keyring) Close() {
	for _, k := range r.byID {
		k.Close()
	}
	clear(r.byID)
}
