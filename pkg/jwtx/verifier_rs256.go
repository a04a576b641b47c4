package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrMissingClaim = errors.New("jwtx: required claim missing")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Verifier validates a JWT and fills claims if it's legit.
type Verifier interface {
	Verify(token string, claims jwt.Claims) error
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Leeway allows small clock skew when validating exp/nbf/iat.
	Leeway time.Duration

	// Now overrides the clock used for exp/nbf/iat. Nil means time.Now.
	Now func() time.Time
}

// RS256Verifier validates JWTs signed with one RSA key pair.
type RS256Verifier struct {
	keys   *KeyPair
	parser *jwt.Parser
}

// NewVerifierRS256 creates a verifier bound to the public half of keys.
func NewVerifierRS256(keys *KeyPair, opts VerifyOptions) *RS256Verifier {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{AlgRS256}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if opts.Leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(opts.Leeway))
	}
	if opts.Now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(opts.Now))
	}

	return &RS256Verifier{keys: keys, parser: jwt.NewParser(parserOpts...)}
}

// Verify checks signature, algorithm and the time window, decoding into
// claims. Errors wrap one of the package sentinels.
func (v *RS256Verifier) Verify(tokenStr string, claims jwt.Claims) error {
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		// A kid is optional, but when present it has to be ours
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != v.keys.kid {
			return nil, ErrUnknownKID
		}
		return v.keys.public, nil
	})
	if err != nil {
		return mapParseError(err)
	}

	if !token.Valid {
		return ErrInvalidClaim
	}
	return nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return fmt.Errorf("%w: %w", ErrInvalidSig, ErrUnknownKID)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: %w", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %w", ErrMissingClaim, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidClaim, err)
	}
}
