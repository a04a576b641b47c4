package token

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/sessiond/internal/session/domain"
	"golang.org/x/sync/errgroup"
)

// Issue mints the login bundle for a user: a refresh family, the access
// token already bound to it, and a session display token.
//
// The access token reuses the ajti the refresh create bound, so it performs
// no registry write of its own. The session token is independent and is
// signed concurrently. If anything fails after the family was written, the
// family is revoked before returning.
func (s *Service) Issue(ctx context.Context, user domain.Profile) (domain.IssuedTokens, error) {
	var (
		refresh Response
		access  Response
		session Response
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		session, err = s.Create(gctx, KindSession, Params{
			Subject:  user.ID,
			Email:    user.Email,
			Name:     user.Name,
			PhotoURL: user.PhotoURL,
		})
		return err
	})

	g.Go(func() error {
		var err error
		refresh, err = s.Create(gctx, KindRefresh, Params{Subject: user.ID})
		if err != nil {
			return err
		}
		access, err = s.Create(gctx, KindAccess, Params{
			Subject: user.ID,
			RJTI:    refresh.RJTI,
			AJTI:    refresh.AJTI,
		})
		return err
	})

	if err := g.Wait(); err != nil {
		if refresh.RJTI != "" {
			if rerr := s.Revoke(context.WithoutCancel(ctx), refresh.RJTI); rerr != nil {
				s.logger.Error("failed to revoke partially issued family",
					slog.String("rjti", refresh.RJTI),
					slog.String("error", rerr.Error()))
			}
		}
		return domain.IssuedTokens{}, err
	}

	return domain.IssuedTokens{
		RefreshToken:     refresh.Token,
		RJTI:             refresh.RJTI,
		RefreshExpiresAt: refresh.ExpiresAt,
		AccessToken:      access.Token,
		AJTI:             access.AJTI,
		AccessExpiresAt:  access.ExpiresAt,
		SessionToken:     session.Token,
		SessionExpiresAt: session.ExpiresAt,
	}, nil
}
