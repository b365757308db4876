package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPlaintextPolicy(t *testing.T) {
	policy, err := NewPasswordPolicy("plaintext", 0)
	require.NoError(t, err)

	stored, err := policy.Prepare("pw")
	require.NoError(t, err)
	assert.Equal(t, "pw", stored)
	assert.True(t, policy.Matches("pw", "pw"))
	assert.False(t, policy.Matches("pw", "PW"))
}

func TestBcryptPolicy(t *testing.T) {
	policy, err := NewPasswordPolicy("bcrypt", bcrypt.MinCost)
	require.NoError(t, err)

	stored, err := policy.Prepare("pw")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", stored)
	assert.True(t, policy.Matches(stored, "pw"))
	assert.False(t, policy.Matches(stored, "nope"))
	assert.False(t, policy.Matches("pw", "pw"), "plaintext values never match in bcrypt mode")
}

func TestUnknownPolicy(t *testing.T) {
	_, err := NewPasswordPolicy("rot13", 0)
	assert.Error(t, err)
}
