package password

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_RoundTrip(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	for _, pw := range []string{"secret1", "p@ss word", "ünïcødé-pässwörd", ""} {
		hash, err := h.Hash(pw)
		if err != nil {
			t.Fatalf("hash %q: %v", pw, err)
		}
		if hash == pw {
			t.Fatalf("hash must not equal plaintext")
		}
		if !h.Verify(pw, hash) {
			t.Fatalf("expected %q to verify against its hash", pw)
		}
		if h.Verify(pw+"x", hash) {
			t.Fatalf("expected different password to be rejected")
		}
	}
}

func TestBcrypt_FreshSalt(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	first, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatalf("expected different hashes for the same password")
	}
}

func TestBcrypt_MalformedHash(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	for _, hash := range []string{"", "not-a-hash", "$2a$10$short", "$2a$99$" + string(make([]byte, 53))} {
		if h.Verify("secret1", hash) {
			t.Fatalf("expected malformed hash %q to be rejected", hash)
		}
	}
}

func TestNewBcrypt_CostFallback(t *testing.T) {
	if c := NewBcrypt(0).cost; c != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", c)
	}
	if c := NewBcrypt(bcrypt.MaxCost + 1).cost; c != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", c)
	}
	if c := NewBcrypt(12).cost; c != 12 {
		t.Fatalf("expected cost 12, got %d", c)
	}
}
