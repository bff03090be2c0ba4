package internal

import (
	"encoding/hex"
	"testing"
)

func TestNewSaltLengthAndEntropy(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		salt, err := NewSalt(16)
		if err != nil {
			t.Fatalf("NewSalt failed: %v", err)
		}
		if len(salt) != 32 {
			t.Fatalf("salt length = %d", len(salt))
		}
		if _, err := hex.DecodeString(salt); err != nil {
			t.Fatalf("salt is not hex: %q", salt)
		}
		if seen[salt] {
			t.Fatalf("duplicate salt %q", salt)
		}
		seen[salt] = true
	}
}

func TestNewSaltRejectsShortLength(t *testing.T) {
	if _, err := NewSalt(8); err == nil {
		t.Fatal("expected error for short salt")
	}
}

func TestNewOTPDigits(t *testing.T) {
	for _, digits := range []int{6, 8, 10} {
		code, err := NewOTP(digits)
		if err != nil {
			t.Fatalf("NewOTP(%d) failed: %v", digits, err)
		}
		if len(code) != digits {
			t.Fatalf("NewOTP(%d) = %q", digits, code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in %q", code)
			}
		}
	}
}

func TestNewOTPRejectsBadDigitCount(t *testing.T) {
	for _, digits := range []int{0, 5, 11} {
		if _, err := NewOTP(digits); err == nil {
			t.Fatalf("NewOTP(%d): expected error", digits)
		}
	}
}

func TestHashHex(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashHex("abc"); got != want {
		t.Fatalf("HashHex(abc) = %q", got)
	}
}
