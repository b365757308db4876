package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/account-service/internal/config"
)

// PasswordPolicy decides how passwords are stored and compared.
type PasswordPolicy interface {
	// Prepare turns a plaintext password into its stored form.
	Prepare(plain string) (string, error)
	// Matches compares a stored value with a login attempt.
	Matches(stored, attempt string) bool
}

// NewPasswordPolicy returns the policy for mode. Plaintext keeps passwords verbatim,
// which is the historical behavior of the account document.
func NewPasswordPolicy(mode string, bcryptCost int) (PasswordPolicy, error) {
	switch mode {
	case "", config.PasswordModePlaintext:
		return plaintextPolicy{}, nil
	case config.PasswordModeBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			bcryptCost = bcrypt.DefaultCost
		}
		return bcryptPolicy{cost: bcryptCost}, nil
	default:
		return nil, fmt.Errorf("unknown password mode %q", mode)
	}
}

type plaintextPolicy struct{}

func (plaintextPolicy) Prepare(plain string) (string, error) { return plain, nil }

func (plaintextPolicy) Matches(stored, attempt string) bool { return stored == attempt }

type bcryptPolicy struct {
	cost int
}

func (p bcryptPolicy) Prepare(plain string) (string, error) {
	return HashPassword(plain, p.cost)
}

func (p bcryptPolicy) Matches(stored, attempt string) bool {
	return ComparePassword(stored, attempt) == nil
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
