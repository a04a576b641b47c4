// Package token is the token lifecycle engine: it builds and signs claims
// for every token kind, verifies them against the credential registry, and
// rotates or revokes refresh families.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/sessiond/internal/session/domain"
	"github.com/aussiebroadwan/sessiond/internal/session/metrics"
	"github.com/aussiebroadwan/sessiond/internal/session/registry"
	"github.com/aussiebroadwan/sessiond/internal/session/store"
	"github.com/aussiebroadwan/sessiond/pkg/httpx"
	"github.com/aussiebroadwan/sessiond/pkg/idx"
	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
)

// ExpiryGrace is added to now when pruning a user's ledger rows, so rows
// about to expire are swept too.
const ExpiryGrace = 30 * time.Second

// Keys holds one RSA pair per signing slot. Reauth tokens reuse Access.
type Keys struct {
	Access  *jwtx.KeyPair
	Refresh *jwtx.KeyPair
	Session *jwtx.KeyPair
}

type TTLs struct {
	Access  time.Duration
	Refresh time.Duration
	Session time.Duration
}

// DefaultTTLs mirrors the jwtx defaults.
func DefaultTTLs() TTLs {
	return TTLs{
		Access:  jwtx.DefaultAccessTokenTTL,
		Refresh: jwtx.DefaultRefreshTokenTTL,
		Session: jwtx.DefaultSessionTokenTTL,
	}
}

// Config is built once at startup and never mutated.
type Config struct {
	Keys   Keys
	TTLs   TTLs
	Leeway time.Duration
}

// Params are the inputs to Create. Which fields matter depends on the kind:
// Access needs RJTI and may carry a pre-minted AJTI, Session uses the display
// fields, Refresh only needs Subject.
type Params struct {
	Subject string
	RJTI    string
	AJTI    string

	Email    string
	Name     string
	PhotoURL string
}

// Response is the tagged result of Create and Refresh.
type Response struct {
	Kind      Kind
	Token     string
	JTI       string
	RJTI      string
	AJTI      string
	ExpiresAt time.Time
}

type Option func(*Service)

// WithClock replaces time.Now for claim construction and verification.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service implements every token kind over one policy table.
type Service struct {
	ttls      TTLs
	registry  registry.Registry
	ledger    store.Sessions
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	signers   [slotCount]jwtx.Signer
	verifiers [slotCount]jwtx.Verifier
	jwks      jwtx.JWKS
}

// NewService validates the key material and builds one signer and verifier
// per slot. A missing pair or non-positive ttl is an ErrCreation.
func NewService(cfg Config, reg registry.Registry, ledger store.Sessions, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		ttls:     cfg.TTLs,
		registry: reg,
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.TTLs.Access <= 0 || cfg.TTLs.Refresh <= 0 || cfg.TTLs.Session <= 0 {
		return nil, newError(ErrCreation, "new service", 0, errors.New("ttls must be positive"))
	}

	pairs := [slotCount]*jwtx.KeyPair{
		slotAccess:  cfg.Keys.Access,
		slotRefresh: cfg.Keys.Refresh,
		slotSession: cfg.Keys.Session,
	}
	for slot, kp := range pairs {
		signer, err := jwtx.NewSignerRS256(kp)
		if err != nil {
			return nil, newError(ErrCreation, "new service", 0, fmt.Errorf("key slot %d: %w", slot, err))
		}
		s.signers[slot] = signer
		s.verifiers[slot] = jwtx.NewVerifierRS256(kp, jwtx.VerifyOptions{Leeway: cfg.Leeway, Now: s.now})
	}
	s.jwks = jwtx.NewJWKS(cfg.Keys.Access, cfg.Keys.Session)

	return s, nil
}

// JWKS lists the public keys other services need: access (and reauth) and
// session. Refresh tokens are only ever verified here.
func (s *Service) JWKS() jwtx.JWKS {
	return s.jwks
}

// TTL returns the configured lifetime for kind.
func (s *Service) TTL(kind Kind) time.Duration {
	p, ok := policyFor(kind)
	if !ok {
		return 0
	}
	return p.ttl(s.ttls)
}

// Create builds, signs and records a token of the given kind.
//
// Refresh writes both registry bindings in one batch and then the ledger row.
// Access writes access:<ajti> unless p.AJTI is already set, in which case the
// binding is assumed to exist from the Refresh that minted it.
func (s *Service) Create(ctx context.Context, kind Kind, p Params) (Response, error) {
	const op = "create"

	if _, ok := policyFor(kind); !ok {
		return Response{}, newError(ErrCreation, op, kind, errors.New("unknown kind"))
	}
	if p.Subject == "" {
		return Response{}, newError(ErrCreation, op, kind, errors.New("subject required"))
	}

	var (
		res Response
		err error
	)
	switch kind {
	case KindAccess:
		res, err = s.createAccess(ctx, p)
	case KindRefresh:
		res, err = s.createRefresh(ctx, p)
	case KindSession:
		res, err = s.createSession(p)
	case KindReauth:
		res, err = s.createReauth(p)
	}
	if err != nil {
		return Response{}, err
	}

	s.metrics.TokenIssued(kind.String())
	return res, nil
}

func (s *Service) createAccess(ctx context.Context, p Params) (Response, error) {
	const op = "create"

	if p.RJTI == "" {
		return Response{}, newError(ErrCreation, op, KindAccess, errors.New("rjti required"))
	}

	ajti := p.AJTI
	if ajti == "" {
		ajti = s.newID()
	}

	res, err := s.signPrimary(KindAccess, p.Subject, ajti, p.RJTI)
	if err != nil {
		return Response{}, err
	}

	if p.AJTI == "" {
		if err := s.registry.Set(ctx, registry.AccessKey(ajti), p.RJTI, s.ttls.Access); err != nil {
			return Response{}, newError(ErrStore, op, KindAccess, err)
		}
	}

	res.AJTI = ajti
	return res, nil
}

func (s *Service) createRefresh(ctx context.Context, p Params) (Response, error) {
	const op = "create"

	rjti := s.newID()
	ajti := s.newID()

	res, err := s.signPrimary(KindRefresh, p.Subject, rjti, rjti)
	if err != nil {
		return Response{}, err
	}

	err = s.registry.Exec(ctx,
		registry.Set(registry.RefreshKey(rjti), ajti, s.ttls.Refresh),
		registry.Set(registry.AccessKey(ajti), rjti, s.ttls.Access),
	)
	if err != nil {
		return Response{}, newError(ErrStore, op, KindRefresh, err)
	}

	_, err = s.ledger.InsertSession(ctx, domain.Session{
		ID:        rjti,
		UserID:    p.Subject,
		ExpiresAt: res.ExpiresAt,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		// Roll the bindings back so no refresh token outlives a missing row.
		cleanup := context.WithoutCancel(ctx)
		if derr := s.registry.Delete(cleanup, registry.RefreshKey(rjti), registry.AccessKey(ajti)); derr != nil {
			s.logger.Error("failed to roll back refresh bindings",
				slog.String("rjti", rjti),
				slog.String("error", derr.Error()))
		}
		return Response{}, newError(ErrStore, op, KindRefresh, err)
	}

	res.AJTI = ajti
	return res, nil
}

func (s *Service) createSession(p Params) (Response, error) {
	jti := s.newID()
	now := s.now()

	claims := jwtx.NewExtendedClaims(KindSession.String(), p.Subject, jti, s.ttls.Session, now, p.Email, p.Name, p.PhotoURL)
	raw, err := s.signers[slotSession].Sign(&claims)
	if err != nil {
		return Response{}, newError(ErrCreation, "create", KindSession, err)
	}

	return Response{
		Kind:      KindSession,
		Token:     raw,
		JTI:       jti,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) createReauth(p Params) (Response, error) {
	return s.signPrimary(KindReauth, p.Subject, s.newID(), p.RJTI)
}

// newID mints a token id stamped with the engine clock, so it sorts with iat.
func (s *Service) newID() string {
	return idx.NewAt(s.now().UTC()).String()
}

func (s *Service) signPrimary(kind Kind, subject, jti, rjti string) (Response, error) {
	pol, _ := policyFor(kind)

	claims := jwtx.NewPrimaryClaims(kind.String(), subject, jti, rjti, pol.ttl(s.ttls), s.now())
	raw, err := s.signers[pol.slot].Sign(&claims)
	if err != nil {
		return Response{}, newError(ErrCreation, "sign", kind, err)
	}

	return Response{
		Kind:      kind,
		Token:     raw,
		JTI:       claims.ID,
		RJTI:      claims.RJTI,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Decode checks signature, time window, kind and claim shape. It never
// touches the registry.
func (s *Service) Decode(kind Kind, raw string) (jwtx.KindedClaims, error) {
	const op = "decode"

	pol, ok := policyFor(kind)
	if !ok {
		return nil, newError(ErrValidation, op, kind, errors.New("unknown kind"))
	}

	var claims jwtx.KindedClaims
	if pol.extended {
		claims = &jwtx.ExtendedClaims{}
	} else {
		claims = &jwtx.PrimaryClaims{}
	}

	if err := s.verifiers[pol.slot].Verify(raw, claims); err != nil {
		return nil, newError(categorizeVerify(err), op, kind, err)
	}

	if claims.TokenKind() != kind.String() {
		return nil, newError(ErrValidation, op, kind, fmt.Errorf("token kind %q not accepted", claims.TokenKind()))
	}

	if err := checkShape(claims); err != nil {
		return nil, newError(categorizeShape(err), op, kind, err)
	}

	return claims, nil
}

var (
	errMissingSubject = errors.New("sub missing")
	errMissingID      = errors.New("jti missing")
	errMissingRJTI    = errors.New("rjti missing")
	errBadID          = errors.New("jti is not a token id")
	errBadRJTI        = errors.New("rjti is not a token id")
)

func checkShape(c jwtx.KindedClaims) error {
	var sub, jti, rjti string
	primary := false
	switch v := c.(type) {
	case *jwtx.PrimaryClaims:
		sub, jti, rjti, primary = v.Subject, v.ID, v.RJTI, true
	case *jwtx.ExtendedClaims:
		sub, jti = v.Subject, v.ID
	}

	switch {
	case sub == "":
		return errMissingSubject
	case jti == "":
		return errMissingID
	case primary && rjti == "":
		return errMissingRJTI
	case !idx.Valid(jti):
		return errBadID
	case primary && !idx.Valid(rjti):
		return errBadRJTI
	}
	return nil
}

func categorizeShape(err error) error {
	if errors.Is(err, errBadID) || errors.Is(err, errBadRJTI) {
		return ErrInvalidFormat
	}
	return ErrMissingClaims
}

// Verify decodes raw and applies the kind's registry policy. Access tokens
// must still be bound to the family in their rjti claim; refresh tokens must
// still have a live family.
func (s *Service) Verify(ctx context.Context, kind Kind, raw string) (jwtx.KindedClaims, error) {
	claims, err := s.verify(ctx, kind, raw)
	s.metrics.TokenVerified(kind.String(), verifyResult(err))
	return claims, err
}

func (s *Service) verify(ctx context.Context, kind Kind, raw string) (jwtx.KindedClaims, error) {
	const op = "verify"

	claims, err := s.Decode(kind, raw)
	if err != nil {
		return nil, err
	}

	pol, _ := policyFor(kind)
	if pol.check == checkNone {
		return claims, nil
	}

	pc := claims.(*jwtx.PrimaryClaims)
	switch pol.check {
	case checkAccessBinding:
		bound, err := s.registry.Get(ctx, registry.AccessKey(pc.ID))
		if err != nil {
			return nil, registryError(op, kind, err, "access token revoked")
		}
		if bound != pc.RJTI {
			return nil, newError(ErrValidation, op, kind, errors.New("access token not bound to its refresh family"))
		}

	case checkRefreshLive:
		if pc.ID != pc.RJTI {
			return nil, newError(ErrInvalidFormat, op, kind, errors.New("refresh jti and rjti differ"))
		}
		bound, err := s.registry.Get(ctx, registry.RefreshKey(pc.RJTI))
		if err != nil {
			return nil, registryError(op, kind, err, "refresh token revoked")
		}
		if bound == "" {
			return nil, newError(ErrValidation, op, kind, errors.New("refresh token has no binding"))
		}
	}

	return claims, nil
}

func registryError(op string, kind Kind, err error, notFound string) error {
	if errors.Is(err, registry.ErrNotFound) {
		return newError(ErrValidation, op, kind, fmt.Errorf("%s: %w", notFound, err))
	}
	return newError(ErrStore, op, kind, err)
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case IsUnauthorized(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

func (s *Service) verifyPrimary(ctx context.Context, kind Kind, raw string) (*jwtx.PrimaryClaims, error) {
	c, err := s.Verify(ctx, kind, raw)
	if err != nil {
		return nil, err
	}
	return c.(*jwtx.PrimaryClaims), nil
}

func (s *Service) VerifyAccess(ctx context.Context, raw string) (*jwtx.PrimaryClaims, error) {
	return s.verifyPrimary(ctx, KindAccess, raw)
}

func (s *Service) VerifyRefresh(ctx context.Context, raw string) (*jwtx.PrimaryClaims, error) {
	return s.verifyPrimary(ctx, KindRefresh, raw)
}

func (s *Service) VerifyReauth(ctx context.Context, raw string) (*jwtx.PrimaryClaims, error) {
	return s.verifyPrimary(ctx, KindReauth, raw)
}

func (s *Service) VerifySession(ctx context.Context, raw string) (*jwtx.ExtendedClaims, error) {
	c, err := s.Verify(ctx, KindSession, raw)
	if err != nil {
		return nil, err
	}
	return c.(*jwtx.ExtendedClaims), nil
}

// AccessVerifier adapts VerifyAccess for httpx.AuthnMiddleware.
func (s *Service) AccessVerifier() httpx.TokenVerifier {
	return httpx.TokenVerifierFunc(s.VerifyAccess)
}

// ReauthVerifier adapts VerifyReauth for httpx.ReauthMiddleware.
func (s *Service) ReauthVerifier() httpx.TokenVerifier {
	return httpx.TokenVerifierFunc(s.VerifyReauth)
}

// Refresh rotates the family rjti onto a freshly minted access token. The
// previous access token stops verifying as soon as this returns.
func (s *Service) Refresh(ctx context.Context, subject, rjti string) (Response, error) {
	res, err := s.refresh(ctx, subject, rjti)
	if err != nil {
		s.metrics.Rotated(verifyResult(err))
		return Response{}, err
	}
	s.metrics.Rotated(metrics.ResultOK)
	s.metrics.TokenIssued(KindAccess.String())
	return res, nil
}

func (s *Service) refresh(ctx context.Context, subject, rjti string) (Response, error) {
	const op = "refresh"

	if subject == "" || rjti == "" {
		return Response{}, newError(ErrCreation, op, KindAccess, errors.New("subject and rjti required"))
	}

	ajti := s.newID()
	res, err := s.signPrimary(KindAccess, subject, ajti, rjti)
	if err != nil {
		return Response{}, err
	}

	if _, err := s.registry.Rebind(ctx, rjti, ajti, s.ttls.Access); err != nil {
		return Response{}, registryError(op, KindAccess, err, "refresh token revoked")
	}

	res.AJTI = ajti
	return res, nil
}

// Revoke deletes the family rjti from the registry and its ledger row. A
// family that is already gone is an ErrValidation "token not found"; its
// ledger row is still deleted so a retry after a failed ledger delete
// leaves nothing behind.
func (s *Service) Revoke(ctx context.Context, rjti string) error {
	const op = "revoke"

	if _, err := s.registry.Unbind(ctx, rjti); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			if derr := s.ledger.DeleteSession(ctx, rjti); derr != nil {
				s.logger.Error("failed to delete ledger row of revoked family", "rjti", rjti, "error", derr)
			}
		}
		return registryError(op, KindRefresh, err, "token not found")
	}
	s.metrics.Revoked(metrics.ScopeSingle, 1)

	if err := s.ledger.DeleteSession(ctx, rjti); err != nil {
		s.logger.Error("family revoked but ledger row kept", "rjti", rjti, "error", err)
		return newError(ErrStore, op, KindRefresh, err)
	}
	return nil
}

// RevokeAll revokes every live family of a user and deletes all of the
// user's ledger rows. It returns how many families were still live in the
// registry.
func (s *Service) RevokeAll(ctx context.Context, userID string) (int, error) {
	const op = "revoke all"

	rows, err := s.ledger.ListUserSessions(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, newError(ErrStore, op, KindRefresh, err)
	}

	revoked := 0
	for _, row := range rows {
		_, err := s.registry.Unbind(ctx, row.ID)
		switch {
		case err == nil:
			revoked++
		case errors.Is(err, registry.ErrNotFound):
		default:
			s.metrics.Revoked(metrics.ScopeAll, revoked)
			return revoked, newError(ErrStore, op, KindRefresh, err)
		}
	}
	s.metrics.Revoked(metrics.ScopeAll, revoked)

	if _, err := s.ledger.DeleteUserSessions(ctx, userID); err != nil {
		return revoked, newError(ErrStore, op, KindRefresh, err)
	}
	return revoked, nil
}

// DeleteExpired prunes the user's ledger rows that expire within
// ExpiryGrace of now.
func (s *Service) DeleteExpired(ctx context.Context, userID string) (int64, error) {
	n, err := s.ledger.DeleteExpiredUserSessions(ctx, userID, s.now().UTC().Add(ExpiryGrace))
	if err != nil {
		return 0, newError(ErrStore, "delete expired", KindRefresh, err)
	}
	return n, nil
}

// Sessions lists the user's live ledger rows, newest first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := s.ledger.ListUserSessions(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, newError(ErrStore, "list sessions", KindRefresh, err)
	}
	return rows, nil
}
