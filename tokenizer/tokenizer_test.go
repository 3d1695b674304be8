package tokenizer

import "testing"

func TestDefaultRegistryRoundTrip(t *testing.T) {
	reg := Default()
	for _, id := range []ID{CL100kBase, O200kBase, LlamaBPE} {
		b, err := reg.Get(id)
		if err != nil {
			t.Fatalf("Get(%q): %v", rune(id), err)
		}
		text := "Hello, 世界!"
		ids, err := b.Encode(text)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := b.Decode(ids)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got != text {
			t.Fatalf("round trip: got %q, want %q", got, text)
		}
	}
}

func TestRegistryUnknownID(t *testing.T) {
	reg := Default()
	if _, err := reg.Get(ID('Z')); err != ErrUnknownID {
		t.Fatalf("expected ErrUnknownID, got %v", err)
	}
}

func TestBackendsAreIndependent(t *testing.T) {
	reg := Default()
	c, _ := reg.Get(CL100kBase)
	o, _ := reg.Get(O200kBase)
	cIDs, _ := c.Encode("A")
	oIDs, _ := o.Encode("A")
	if cIDs[0] == oIDs[0] {
		t.Fatalf("expected distinct id spaces per backend, both got %d", cIDs[0])
	}
}
