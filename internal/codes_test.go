package internal

import (
	"encoding/hex"
	"testing"
)

func TestNewVerificationCodeLengthAndAlphabet(t *testing.T) {
	for _, digits := range []int{6, 8, 10} {
		for i := 0; i < 200; i++ {
			code, err := NewVerificationCode(digits)
			if err != nil {
				t.Fatalf("NewVerificationCode(%d): %v", digits, err)
			}
			if len(code) != digits {
				t.Fatalf("expected %d digits, got %q", digits, code)
			}
			for _, c := range code {
				if c < '0' || c > '9' {
					t.Fatalf("non-digit in code %q", code)
				}
			}
		}
	}
}

func TestNewVerificationCodeRejectsBadDigits(t *testing.T) {
	for _, digits := range []int{0, 5, 11} {
		if _, err := NewVerificationCode(digits); err == nil {
			t.Fatalf("expected error for %d digits", digits)
		}
	}
}

func TestNewVerificationCodeKeepsLeadingZeros(t *testing.T) {
	seen := false
	for i := 0; i < 5000 && !seen; i++ {
		code, err := NewVerificationCode(6)
		if err != nil {
			t.Fatalf("NewVerificationCode: %v", err)
		}
		seen = code[0] == '0'
	}
	if !seen {
		t.Fatal("expected a code with a leading zero within 5000 draws")
	}
}

func TestNewResetToken(t *testing.T) {
	token, err := NewResetToken(20)
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if len(token) != 40 {
		t.Fatalf("expected 40 hex chars, got %d", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Fatalf("token is not hex: %v", err)
	}

	other, err := NewResetToken(20)
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if token == other {
		t.Fatal("expected distinct tokens")
	}
}

func TestNewResetTokenRejectsShortSize(t *testing.T) {
	if _, err := NewResetToken(8); err == nil {
		t.Fatal("expected error for 8-byte token")
	}
}
