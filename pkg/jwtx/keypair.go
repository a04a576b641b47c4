package jwtx

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPEM      = errors.New("jwtx: invalid PEM")
	ErrNotRSA          = errors.New("jwtx: not an RSA key")
	ErrKeyPairMismatch = errors.New("jwtx: public key does not match private key")
)

// KeyPair is one RSA key pair used by a single token kind. It is immutable
// once loaded.
type KeyPair struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
	kid     string
}

// ParseKeyPair loads a key pair from PEM bytes. The private key may be PKCS1
// or PKCS8; the public key may be PKIX, PKCS1 or an X.509 certificate. The
// public key must belong to the private key.
func ParseKeyPair(privatePEM, publicPEM []byte) (*KeyPair, error) {
	priv, err := parseRSAPrivateKey(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("jwtx: private key: %w", err)
	}

	pub, err := parseRSAPublicKey(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("jwtx: public key: %w", err)
	}

	if !priv.PublicKey.Equal(pub) {
		return nil, ErrKeyPairMismatch
	}

	kid, err := thumbprint(pub)
	if err != nil {
		return nil, err
	}

	return &KeyPair{private: priv, public: pub, kid: kid}, nil
}

// DecodeKeyPair loads a key pair from base64 encoded PEM blocks, which is how
// key material travels through the environment.
func DecodeKeyPair(privateB64, publicB64 string) (*KeyPair, error) {
	privPEM, err := decodeBase64(privateB64)
	if err != nil {
		return nil, fmt.Errorf("jwtx: private key base64: %w", err)
	}
	pubPEM, err := decodeBase64(publicB64)
	if err != nil {
		return nil, fmt.Errorf("jwtx: public key base64: %w", err)
	}
	return ParseKeyPair(privPEM, pubPEM)
}

// KID is a stable identifier derived from the public key.
func (k *KeyPair) KID() string { return k.kid }

// Public returns the verification key.
func (k *KeyPair) Public() *rsa.PublicKey { return k.public }

// JWK returns the public half for publishing in a JWKS.
func (k *KeyPair) JWK() JWK {
	return NewRSAJWK(k.kid, "sig", AlgRS256, k.public)
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty value")
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// parseRSAPrivateKey handles both PKCS1 and PKCS8 because otherwise we will be
// chasing a bug for longer that we would be willing to admit.
func parseRSAPrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, ErrInvalidPEM
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS8: %w", err)
		}
		rk, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrNotRSA
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("unsupported PEM type %q", block.Type)
	}
}

func parseRSAPublicKey(pemKey []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, ErrInvalidPEM
	}

	switch block.Type {
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKIX: %w", err)
		}
		rk, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, ErrNotRSA
		}
		return rk, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		rk, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, ErrNotRSA
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("unsupported PEM type %q", block.Type)
	}
}

func thumbprint(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("jwtx: marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:12]), nil
}
