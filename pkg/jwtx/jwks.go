package jwtx

import (
	"crypto/rsa"
	"encoding/base64"
	"math/big"
)

// JWK represents a public key in JSON Web Key format (RFC 7517). Only RSA
// signing keys are published.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`

	N string `json:"n"` // modulus (base64url)
	E string `json:"e"` // exponent (base64url)
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewRSAJWK builds a JWK for an RSA public key.
func NewRSAJWK(kid, use, alg string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: use,
		Alg: alg,
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// NewJWKS collects the public halves of the given pairs, skipping duplicates
// so a pair shared between kinds is listed once.
func NewJWKS(pairs ...*KeyPair) JWKS {
	set := JWKS{Keys: make([]JWK, 0, len(pairs))}
	seen := make(map[string]struct{}, len(pairs))
	for _, kp := range pairs {
		if kp == nil {
			continue
		}
		if _, ok := seen[kp.KID()]; ok {
			continue
		}
		seen[kp.KID()] = struct{}{}
		set.Keys = append(set.Keys, kp.JWK())
	}
	return set
}
