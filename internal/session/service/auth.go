package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/sessiond/internal/session/domain"
	"github.com/aussiebroadwan/sessiond/internal/session/store"
	"github.com/aussiebroadwan/sessiond/internal/session/token"
	"github.com/aussiebroadwan/sessiond/pkg/cryptox"
	"github.com/aussiebroadwan/sessiond/pkg/idx"
	"github.com/aussiebroadwan/sessiond/pkg/slogx"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxNameLength     = 64
	MaxEmailLength    = 254

	defaultCleanupTimeout = 3 * time.Second
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrEmailTaken         = errors.New("email_taken")
	ErrUserNotFound       = errors.New("user_not_found")

	// ErrSessionMismatch means the refresh token presented belongs to a
	// different user than the access token.
	ErrSessionMismatch = errors.New("session_mismatch")
)

// AuthService is the account and session surface behind the HTTP handlers.
type AuthService struct {
	Store          store.Store
	Tokens         *token.Service
	Logger         *slog.Logger
	CleanupTimeout time.Duration

	wg sync.WaitGroup
}

type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// UpdateProfileInput carries optional changes. Nil fields are kept.
type UpdateProfileInput struct {
	Name  *string
	Email *string
}

// SessionView is one active login of the user.
type SessionView struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	Current   bool
}

// Register creates an account. Emails are stored lower-cased.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return domain.User{}, err
	}
	if n := utf8.RuneCountInString(in.Password); n < MinPasswordLength || n > MaxPasswordLength {
		return domain.User{}, ErrInvalidRequest
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", u.ID))
	return u, nil
}

// Login checks the password and issues a full token bundle. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, domain.IssuedTokens, error) {
	log := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, domain.IssuedTokens{}, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cryptox.BurnPasswordCheck(password)
			return domain.User{}, domain.IssuedTokens{}, ErrInvalidCredentials
		}
		return domain.User{}, domain.IssuedTokens{}, err
	}

	if cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		log.Info("login rejected", slog.String("user_id", user.ID))
		return domain.User{}, domain.IssuedTokens{}, ErrInvalidCredentials
	}

	issued, err := s.Tokens.Issue(ctx, user.Profile())
	if err != nil {
		return domain.User{}, domain.IssuedTokens{}, err
	}

	s.pruneExpired(ctx, user.ID)

	log.Info("user logged in", slog.String("user_id", user.ID), slog.String("rjti", issued.RJTI))
	return user, issued, nil
}

// pruneExpired drops the user's stale ledger rows in the background.
func (s *AuthService) pruneExpired(ctx context.Context, userID string) {
	timeout := s.CleanupTimeout
	if timeout <= 0 {
		timeout = defaultCleanupTimeout
	}
	log := slogx.FromContext(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		n, err := s.Tokens.DeleteExpired(cctx, userID)
		if err != nil {
			log.Error("failed to delete expired sessions", slog.String("user_id", userID), slog.String("error", err.Error()))
			return
		}
		if n > 0 {
			log.Debug("deleted expired sessions", slog.String("user_id", userID), slog.Int64("count", n))
		}
	}()
}

// Wait blocks until background cleanup started by Login has finished.
func (s *AuthService) Wait() {
	s.wg.Wait()
}

// Refresh verifies the refresh token and rotates its family onto a new
// access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (token.Response, error) {
	claims, err := s.Tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return token.Response{}, err
	}
	return s.Tokens.Refresh(ctx, claims.Subject, claims.RJTI)
}

// Logout revokes the family of the given refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.Tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.Tokens.Revoke(ctx, claims.RJTI); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user logged out", slog.String("user_id", claims.Subject), slog.String("rjti", claims.RJTI))
	return nil
}

// Reauth re-checks the password of an authenticated user and mints a
// short-lived step-up token tied to the caller's refresh family.
func (s *AuthService) Reauth(ctx context.Context, userID, rjti, password string) (token.Response, error) {
	if password == "" {
		return token.Response{}, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cryptox.BurnPasswordCheck(password)
			return token.Response{}, ErrInvalidCredentials
		}
		return token.Response{}, err
	}

	if cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		return token.Response{}, ErrInvalidCredentials
	}

	return s.Tokens.Create(ctx, token.KindReauth, token.Params{Subject: user.ID, RJTI: rjti})
}

func (s *AuthService) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Profile{}, ErrUserNotFound
		}
		return domain.Profile{}, err
	}
	return u.Profile(), nil
}

// UpdateProfile applies the non-nil fields of in.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (domain.Profile, error) {
	var result domain.Profile

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if in.Name != nil {
			if u.Name, err = normalizeName(*in.Name); err != nil {
				return err
			}
		}
		if in.Email != nil {
			if u.Email, err = normalizeEmail(*in.Email); err != nil {
				return err
			}
		}

		if err := tx.Users().UpdateUser(ctx, u.ID, u.Name, u.Email); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}

		result = u.Profile()
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return result, nil
}

// DeleteAccount revokes every family of the user and removes the account.
// refreshToken must belong to userID.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, refreshToken string) error {
	claims, err := s.Tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if claims.Subject != userID {
		return ErrSessionMismatch
	}

	n, err := s.Tokens.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.Store.Users().DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	slogx.FromContext(ctx).Info("user deleted", slog.String("user_id", userID), slog.Int("revoked", n))
	return nil
}

// Sessions lists the user's active logins, marking the one identified by
// currentRJTI.
func (s *AuthService) Sessions(ctx context.Context, userID, currentRJTI string) ([]SessionView, error) {
	rows, err := s.Tokens.Sessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]SessionView, 0, len(rows))
	for _, r := range rows {
		out = append(out, SessionView{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
			Current:   r.ID == currentRJTI,
		})
	}
	return out, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > MaxEmailLength || !strings.Contains(email, "@") {
		return "", ErrInvalidRequest
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidRequest
	}
	return email, nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxNameLength {
		return "", ErrInvalidRequest
	}
	return name, nil
}
