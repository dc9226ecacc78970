package upload

import (
	"strings"
	"testing"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"image/png", true},
		{"image/jpg", true},
		{"image/jpeg", true},
		{"IMAGE/PNG", true},
		{"image/jpeg; charset=binary", true},
		{"image/gif", false},
		{"image/svg+xml", false},
		{"application/pdf", false},
		{"text/plain", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := Allowed(tc.ct); got != tc.want {
			t.Errorf("Allowed(%q) = %v, want %v", tc.ct, got, tc.want)
		}
	}
}

func TestStoredName(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		name, err := StoredName("shoe.png")
		if err != nil {
			t.Fatal(err)
		}
		tok, base, ok := strings.Cut(name, "-")
		if !ok || base != "shoe.png" {
			t.Fatalf("name %q", name)
		}
		if len(tok) < 16 || len(tok) > 20 {
			t.Fatalf("token %q has %d digits", tok, len(tok))
		}
		for _, r := range tok {
			if r < '0' || r > '9' {
				t.Fatalf("token %q not numeric", tok)
			}
		}
		if seen[tok] {
			t.Fatalf("token %q repeated", tok)
		}
		seen[tok] = true
	}
}

func TestKindString(t *testing.T) {
	if None.String() != "none" || Accepted.String() != "accepted" || Rejected.String() != "rejected" {
		t.Fatal("unexpected kind names")
	}
}
