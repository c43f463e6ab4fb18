package password

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrMalformedHash is returned by Verify when the stored digest cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Hasher is satisfied by [Bcrypt], [Argon2] and [Auto].
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

// Config selects an algorithm for [New].
type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Config
}

// New builds the hasher named by cfg.Algorithm and wraps it in [Auto] so
// digests produced by the other algorithm still verify.
func New(cfg Config) (*Auto, error) {
	bc, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	switch cfg.Algorithm {
	case "", "bcrypt":
		return &Auto{primary: bc, bcrypt: bc}, nil
	case argon2ID:
		a2, err := NewArgon2(cfg.Argon2)
		if err != nil {
			return nil, err
		}
		return &Auto{primary: a2, bcrypt: bc, argon2: a2}, nil
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
}

// Auto hashes with its primary algorithm and verifies any digest whose
// format it recognizes.
type Auto struct {
	primary Hasher
	bcrypt  *Bcrypt
	argon2  *Argon2
}

// Hash delegates to the primary algorithm.
func (a *Auto) Hash(password string) (string, error) {
	return a.primary.Hash(password)
}

// Verify routes on the digest prefix.
func (a *Auto) Verify(password, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$"+argon2ID+"$"):
		if a.argon2 == nil {
			return (&Argon2{}).Verify(password, digest)
		}
		return a.argon2.Verify(password, digest)
	case strings.HasPrefix(digest, "$2"):
		return a.bcrypt.Verify(password, digest)
	default:
		return false, ErrMalformedHash
	}
}
