package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func generatePEM(t *testing.T, pkcs8 bool) (privPEM, pubPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	if pkcs8 {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)
		privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	} else {
		privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

func mustKeyPair(t *testing.T) *jwtx.KeyPair {
	t.Helper()
	priv, pub := generatePEM(t, false)
	kp, err := jwtx.ParseKeyPair(priv, pub)
	require.NoError(t, err)
	return kp
}

func TestParseKeyPair(t *testing.T) {
	t.Run("PKCS1 private with PKIX public", func(t *testing.T) {
		priv, pub := generatePEM(t, false)
		kp, err := jwtx.ParseKeyPair(priv, pub)
		require.NoError(t, err)
		require.NotEmpty(t, kp.KID())
	})

	t.Run("PKCS8 private", func(t *testing.T) {
		priv, pub := generatePEM(t, true)
		_, err := jwtx.ParseKeyPair(priv, pub)
		require.NoError(t, err)
	})

	t.Run("mismatched halves are rejected", func(t *testing.T) {
		priv, _ := generatePEM(t, false)
		_, otherPub := generatePEM(t, false)
		_, err := jwtx.ParseKeyPair(priv, otherPub)
		require.ErrorIs(t, err, jwtx.ErrKeyPairMismatch)
	})

	t.Run("garbage PEM", func(t *testing.T) {
		_, pub := generatePEM(t, false)
		_, err := jwtx.ParseKeyPair([]byte("not a pem"), pub)
		require.ErrorIs(t, err, jwtx.ErrInvalidPEM)
	})

	t.Run("base64 encoded", func(t *testing.T) {
		priv, pub := generatePEM(t, false)
		kp, err := jwtx.DecodeKeyPair(
			base64.StdEncoding.EncodeToString(priv),
			base64.StdEncoding.EncodeToString(pub),
		)
		require.NoError(t, err)
		require.NotNil(t, kp.Public())
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := jwtx.DecodeKeyPair("%%%", "%%%")
		require.Error(t, err)

		_, err = jwtx.DecodeKeyPair("", "")
		require.Error(t, err)
	})
}

func TestRS256SignAndVerify(t *testing.T) {
	kp := mustKeyPair(t)
	signer, err := jwtx.NewSignerRS256(kp)
	require.NoError(t, err)
	require.Equal(t, kp.KID(), signer.KID())

	now := time.Now().UTC()
	claims := jwtx.NewPrimaryClaims("access", "user-123", "jti-1", "rjti-1", 2*time.Minute, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(token, "."))

	verifier := jwtx.NewVerifierRS256(kp, jwtx.VerifyOptions{})

	var parsed jwtx.PrimaryClaims
	require.NoError(t, verifier.Verify(token, &parsed))
	require.Equal(t, "user-123", parsed.Subject)
	require.Equal(t, "jti-1", parsed.ID)
	require.Equal(t, "rjti-1", parsed.RJTI)
	require.Equal(t, "access", parsed.TokenKind())
	require.Equal(t, parsed.IssuedAt.Time, parsed.NotBefore.Time)
	require.True(t, parsed.ExpiresAt.After(parsed.IssuedAt.Time))
}

func TestPrimaryClaimsDefaultRJTI(t *testing.T) {
	c := jwtx.NewPrimaryClaims("refresh", "u", "jti-9", "", time.Minute, time.Now())
	require.Equal(t, "jti-9", c.RJTI)
}

func TestExtendedClaimsRoundTrip(t *testing.T) {
	kp := mustKeyPair(t)
	signer, err := jwtx.NewSignerRS256(kp)
	require.NoError(t, err)

	claims := jwtx.NewExtendedClaims("session", "u1", "jti-s", time.Hour, time.Now(),
		"ada@example.com", "Ada", "https://example.com/ada.svg")
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	var parsed jwtx.ExtendedClaims
	require.NoError(t, jwtx.NewVerifierRS256(kp, jwtx.VerifyOptions{}).Verify(token, &parsed))
	require.Equal(t, "ada@example.com", parsed.Email)
	require.Equal(t, "Ada", parsed.Name)
	require.Equal(t, "https://example.com/ada.svg", parsed.PhotoURL)
}

func TestVerifyFailures(t *testing.T) {
	kp := mustKeyPair(t)
	other := mustKeyPair(t)

	signer, err := jwtx.NewSignerRS256(kp)
	require.NoError(t, err)
	otherSigner, err := jwtx.NewSignerRS256(other)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0).UTC()
	fixed := func(at time.Time) jwtx.VerifyOptions {
		return jwtx.VerifyOptions{Now: func() time.Time { return at }}
	}

	valid, err := signer.Sign(jwtx.NewPrimaryClaims("access", "u", "j", "r", time.Minute, now))
	require.NoError(t, err)

	t.Run("signed by another key", func(t *testing.T) {
		token, err := otherSigner.Sign(jwtx.NewPrimaryClaims("access", "u", "j", "r", time.Minute, now))
		require.NoError(t, err)

		var c jwtx.PrimaryClaims
		err = jwtx.NewVerifierRS256(kp, fixed(now)).Verify(token, &c)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("signed by another key without kid", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwtx.NewPrimaryClaims("access", "u", "j", "r", time.Minute, now))
		priv, _ := generatePEM(t, false)
		block, _ := pem.Decode(priv)
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		require.NoError(t, err)
		token, err := tok.SignedString(key)
		require.NoError(t, err)

		var c jwtx.PrimaryClaims
		err = jwtx.NewVerifierRS256(kp, fixed(now)).Verify(token, &c)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("expired once the clock passes exp", func(t *testing.T) {
		var c jwtx.PrimaryClaims
		err := jwtx.NewVerifierRS256(kp, fixed(now.Add(time.Minute))).Verify(valid, &c)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("leeway tolerates small skew", func(t *testing.T) {
		var c jwtx.PrimaryClaims
		opts := fixed(now.Add(time.Minute + time.Second))
		opts.Leeway = 5 * time.Second
		require.NoError(t, jwtx.NewVerifierRS256(kp, opts).Verify(valid, &c))
	})

	t.Run("not yet valid", func(t *testing.T) {
		var c jwtx.PrimaryClaims
		err := jwtx.NewVerifierRS256(kp, fixed(now.Add(-time.Hour))).Verify(valid, &c)
		require.ErrorIs(t, err, jwtx.ErrNotYetValid)
	})

	t.Run("malformed", func(t *testing.T) {
		var c jwtx.PrimaryClaims
		err := jwtx.NewVerifierRS256(kp, fixed(now)).Verify("abc.def", &c)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("alg none is refused", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwtx.NewPrimaryClaims("access", "u", "j", "r", time.Minute, now))
		token, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		var c jwtx.PrimaryClaims
		err = jwtx.NewVerifierRS256(kp, fixed(now)).Verify(token, &c)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("missing exp", func(t *testing.T) {
		claims := jwtx.NewPrimaryClaims("access", "u", "j", "r", time.Minute, now)
		claims.ExpiresAt = nil
		token, err := signer.Sign(claims)
		require.NoError(t, err)

		var c jwtx.PrimaryClaims
		err = jwtx.NewVerifierRS256(kp, fixed(now)).Verify(token, &c)
		require.ErrorIs(t, err, jwtx.ErrMissingClaim)
	})
}

func TestRemaining(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	c := jwtx.NewRegisteredClaims("u", "j", time.Minute, now)

	require.Equal(t, time.Minute, jwtx.Remaining(c, now))
	require.Equal(t, time.Duration(0), jwtx.Remaining(c, now.Add(2*time.Minute)))
	require.Equal(t, time.Duration(0), jwtx.Remaining(jwt.RegisteredClaims{}, now))
}

func TestNewJWKSDeduplicates(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)

	set := jwtx.NewJWKS(a, b, a, nil)
	require.Len(t, set.Keys, 2)
	require.Equal(t, "RSA", set.Keys[0].Kty)
	require.Equal(t, jwtx.AlgRS256, set.Keys[0].Alg)
	require.Equal(t, a.KID(), set.Keys[0].Kid)
}
