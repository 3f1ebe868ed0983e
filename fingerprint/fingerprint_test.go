package fingerprint

import "testing"

func TestStringRendering(t *testing.T) {
	tests := []struct {
		name string
		v    V0
		want string
	}{
		{"no modulus", NewV0(1, 2), "urn:decomp:match:fingerprint:0:1:2"},
		{"hex hash lowercase", NewV0(1, 10), "urn:decomp:match:fingerprint:0:1:a"},
		{"explicit non-default modulus", NewV0WithModulus(1, 10, 3), "urn:decomp:match:fingerprint:0:1:a:3"},
		{"explicit default modulus omitted", NewV0WithModulus(1, 10, DefaultModulus), "urn:decomp:match:fingerprint:0:1:a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseV0RoundTrip(t *testing.T) {
	values := []V0{
		NewV0(1, 2),
		NewV0(1, 10),
		NewV0WithModulus(1, 10, 3),
		NewV0(0x80, 0xDEADBEEF),
	}

	for _, v := range values {
		s := v.String()
		got, err := ParseV0(s)
		if err != nil {
			t.Fatalf("ParseV0(%q) returned error: %v", s, err)
		}
		if !got.Equal(v) {
			t.Errorf("ParseV0(%q) = %+v, want %+v", s, got, v)
		}
	}
}

func TestParseV0WrongPrefix(t *testing.T) {
	if _, err := ParseV0("urn:decomp:match:other:0:1:2"); err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestParseV0WrongFieldCount(t *testing.T) {
	if _, err := ParseV0("urn:decomp:match:fingerprint:0:1"); err == nil {
		t.Error("expected error for too few fields")
	}
	if _, err := ParseV0("urn:decomp:match:fingerprint:0:1:2:3:4"); err == nil {
		t.Error("expected error for too many fields")
	}
}

func TestParseV0BadNumbers(t *testing.T) {
	if _, err := ParseV0("urn:decomp:match:fingerprint:0:notanumber:2"); err == nil {
		t.Error("expected error for bad size")
	}
	if _, err := ParseV0("urn:decomp:match:fingerprint:0:1:notahexnumber"); err == nil {
		t.Error("expected error for bad hash")
	}
	if _, err := ParseV0("urn:decomp:match:fingerprint:0:1:2:notanumber"); err == nil {
		t.Error("expected error for bad modulus")
	}
}

func TestParseV0HashIsCaseInsensitiveHex(t *testing.T) {
	lower, err := ParseV0("urn:decomp:match:fingerprint:0:1:deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	upper, err := ParseV0("urn:decomp:match:fingerprint:0:1:DEADBEEF")
	if err != nil {
		t.Fatal(err)
	}
	if lower.Hash != upper.Hash {
		t.Errorf("hash parsing should be case-insensitive: %x != %x", lower.Hash, upper.Hash)
	}
}
