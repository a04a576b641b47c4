package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sessiond/internal/session/domain"
	"github.com/aussiebroadwan/sessiond/internal/session/store/drivers/sqlite/gen"
)

type sessionsRepo struct {
	q *gen.Queries
}

func (r *sessionsRepo) InsertSession(ctx context.Context, s domain.Session) (domain.Session, error) {
	row := domain.Session{
		ID:        s.ID,
		UserID:    s.UserID,
		ExpiresAt: utc(s.ExpiresAt),
		CreatedAt: utc(s.CreatedAt),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	err := r.q.InsertSession(ctx, gen.InsertSessionParams{
		ID:        row.ID,
		UserID:    row.UserID,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	})
	if err != nil {
		return domain.Session{}, mapConstraint(err)
	}
	return row, nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	return r.q.DeleteSession(ctx, id)
}

func (r *sessionsRepo) ListUserSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.q.ListUserSessions(ctx, gen.ListUserSessionsParams{
		UserID:    userID,
		ExpiresAt: utc(now),
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapSession(row))
	}
	return out, nil
}

func (r *sessionsRepo) DeleteExpiredUserSessions(ctx context.Context, userID string, threshold time.Time) (int64, error) {
	return r.q.DeleteExpiredUserSessions(ctx, gen.DeleteExpiredUserSessionsParams{
		UserID:    userID,
		ExpiresAt: utc(threshold),
	})
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, threshold time.Time) (int64, error) {
	return r.q.DeleteExpiredSessions(ctx, utc(threshold))
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	return r.q.DeleteUserSessions(ctx, userID)
}
