package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// NewVerificationCode returns a uniformly random decimal code of exactly
// digits characters. Leading zeros are kept.
func NewVerificationCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid verification code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// NewResetToken returns size random bytes hex encoded.
func NewResetToken(size int) (string, error) {
	if size < 16 {
		return "", errors.New("reset token must carry at least 16 bytes")
	}

	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
