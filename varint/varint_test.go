package varint

import "testing"

func TestUint32RoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 127, 128, 300, 16384, 1 << 20, 1<<32 - 1}
	for _, v := range cases {
		buf := AppendUint32(nil, v)
		if len(buf) != SizeUint32(v) {
			t.Fatalf("SizeUint32(%d)=%d, encoded %d bytes", v, SizeUint32(v), len(buf))
		}
		got, n, err := Uint32(buf)
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if n != len(buf) {
			t.Fatalf("decode %d: consumed %d, want %d", v, n, len(buf))
		}
		if got != v {
			t.Fatalf("round-trip %d: got %d", v, got)
		}
	}
}

func TestUint32Truncated(t *testing.T) {
	buf := []byte{0x80, 0x80}
	if _, _, err := Uint32(buf); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestUint32Overflow(t *testing.T) {
	// 5 bytes that all carry the continuation bit: the stream runs past the
	// 5-byte maximum.
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80}
	if _, _, err := Uint32(buf); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}

	buf2 := []byte{0xff, 0xff, 0xff, 0xff, 0x0f}
	if _, _, err := Uint32(buf2); err != nil {
		t.Fatalf("max 5-byte varint should decode: %v", err)
	}

	buf3 := []byte{0xff, 0xff, 0xff, 0xff, 0x10}
	if _, _, err := Uint32(buf3); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow for 5th byte >= 0x10, got %v", err)
	}
}

func TestCRC32KnownValue(t *testing.T) {
	// "123456789" is the standard CRC32 check string; IEEE CRC32 = 0xCBF43926.
	if got := CRC32([]byte("123456789")); got != 0xCBF43926 {
		t.Fatalf("CRC32 check value: got %08x, want cbf43926", got)
	}
}

func TestBase64RoundTrip(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0xff, 0xfe}
	s := EncodeBase64(data)
	got, err := DecodeBase64(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestBase64RejectsInvalid(t *testing.T) {
	if _, err := DecodeBase64("not valid base64!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestPackUnpackRoles(t *testing.T) {
	roles := []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool, RoleUser}
	packed := PackRoles(roles)
	if len(packed) != 2 {
		t.Fatalf("expected 2 packed bytes for 5 roles, got %d", len(packed))
	}
	got, err := UnpackRoles(packed, len(roles))
	if err != nil {
		t.Fatal(err)
	}
	for i := range roles {
		if got[i] != roles[i] {
			t.Fatalf("role %d: got %d, want %d", i, got[i], roles[i])
		}
	}
}

func TestUnpackRolesEmpty(t *testing.T) {
	got, err := UnpackRoles(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestUnpackRolesTruncated(t *testing.T) {
	if _, err := UnpackRoles([]byte{0x00}, 5); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
