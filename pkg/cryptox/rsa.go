package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// MinRSABits is the smallest modulus we are willing to sign tokens with.
const MinRSABits = 2048

// RSAKeyPair is a freshly generated key pair in PEM form.
type RSAKeyPair struct {
	PrivatePEM []byte // PKCS1 "RSA PRIVATE KEY"
	PublicPEM  []byte // PKIX "PUBLIC KEY"
}

// PrivateBase64 is the private PEM block in the base64 form the service reads
// from its environment.
func (k RSAKeyPair) PrivateBase64() string {
	return base64.StdEncoding.EncodeToString(k.PrivatePEM)
}

// PublicBase64 is the public PEM block, base64 encoded.
func (k RSAKeyPair) PublicBase64() string {
	return base64.StdEncoding.EncodeToString(k.PublicPEM)
}

// GenerateRSAKeyPair generates an RSA key with the given modulus size and
// returns both halves as PEM.
func GenerateRSAKeyPair(bits int) (RSAKeyPair, error) {
	if bits < MinRSABits {
		return RSAKeyPair{}, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return RSAKeyPair{}, fmt.Errorf("cryptox: failed to generate RSA key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return RSAKeyPair{}, fmt.Errorf("cryptox: failed to marshal public key: %w", err)
	}

	return RSAKeyPair{
		PrivatePEM: pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
		}),
		PublicPEM: pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: pubDER,
		}),
	}, nil
}
