package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// AlgRS256 is the only algorithm this package signs with.
var AlgRS256 = jwt.SigningMethodRS256.Alg()

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	KID() string
	Sign(claims jwt.Claims) (string, error)
}

// RS256Signer implements the Signer interface using RSA SHA-256.
type RS256Signer struct {
	keys *KeyPair
}

// NewSignerRS256 creates an RS256 signer over a loaded key pair.
func NewSignerRS256(keys *KeyPair) (*RS256Signer, error) {
	if keys == nil || keys.private == nil {
		return nil, errors.New("jwtx: nil RSA key")
	}
	return &RS256Signer{keys: keys}, nil
}

func (s *RS256Signer) KID() string { return s.keys.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *RS256Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.keys.kid
	return t.SignedString(s.keys.private)
}
