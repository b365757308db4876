package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// appJWTTTL stays under GitHub's ten minute ceiling for app tokens.
const appJWTTTL = 9 * time.Minute

// AppTokenSigner mints the short-lived RS256 JWTs a GitHub App uses to request
// installation access tokens.
type AppTokenSigner struct {
	appID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewAppTokenSigner parses a PEM encoded RSA private key.
func NewAppTokenSigner(appID int64, privateKeyPEM []byte) (*AppTokenSigner, error) {
	if appID <= 0 {
		return nil, errors.New("github app id must be positive")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse github app private key: %w", err)
	}
	return &AppTokenSigner{appID: strconv.FormatInt(appID, 10), key: key, now: time.Now}, nil
}

// LoadAppTokenSigner reads the private key from path.
func LoadAppTokenSigner(appID int64, path string) (*AppTokenSigner, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read github app private key: %w", err)
	}
	return NewAppTokenSigner(appID, pem)
}

// Sign builds and signs a JWT for the app. iat is backdated a minute to absorb clock drift.
func (s *AppTokenSigner) Sign() (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(appJWTTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    s.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenString, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseAppToken validates a token produced by Sign against the public half of the key.
func ParseAppToken(tokenStr string, pub *rsa.PublicKey) (*jwt.RegisteredClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodRS256 {
			return nil, errors.New("unexpected signing method")
		}
		return pub, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
