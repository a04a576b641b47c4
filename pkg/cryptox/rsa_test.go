package cryptox_test

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/aussiebroadwan/sessiond/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateRSAKeyPair(t *testing.T) {
	kp, err := cryptox.GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	block, _ := pem.Decode(kp.PrivatePEM)
	require.NotNil(t, block)
	require.Equal(t, "RSA PRIVATE KEY", block.Type)

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	require.NoError(t, err)
	require.Equal(t, 2048, key.N.BitLen())

	pubBlock, _ := pem.Decode(kp.PublicPEM)
	require.NotNil(t, pubBlock)
	require.Equal(t, "PUBLIC KEY", pubBlock.Type)

	pub, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(pub.(*rsa.PublicKey)))
}

func TestRSAKeyPairBase64(t *testing.T) {
	kp, err := cryptox.GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	priv, err := base64.StdEncoding.DecodeString(kp.PrivateBase64())
	require.NoError(t, err)
	require.Equal(t, kp.PrivatePEM, priv)

	pub, err := base64.StdEncoding.DecodeString(kp.PublicBase64())
	require.NoError(t, err)
	require.Equal(t, kp.PublicPEM, pub)
}

func TestGenerateRSAKeyPairRejectsTooSmall(t *testing.T) {
	_, err := cryptox.GenerateRSAKeyPair(1024)
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least 2048 bits")
}
