package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/sessiond/internal/session/domain"
	"github.com/jackc/pgx/v5"
)

type sessionsRepo struct {
	q querier
}

func (r *sessionsRepo) InsertSession(ctx context.Context, s domain.Session) (domain.Session, error) {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var out domain.Session
	err := r.q.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, expires_at, created_at`,
		s.ID, s.UserID, s.ExpiresAt.UTC(), createdAt.UTC(),
	).Scan(&out.ID, &out.UserID, &out.ExpiresAt, &out.CreatedAt)
	if err != nil {
		return domain.Session{}, mapConstraint(err)
	}
	return normalize(out), nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *sessionsRepo) ListUserSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, expires_at, created_at
		FROM sessions
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC, id DESC`,
		userID, now.UTC(),
	)
	if err != nil {
		return nil, err
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Session, error) {
		var s domain.Session
		err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
		return normalize(s), err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionsRepo) DeleteExpiredUserSessions(ctx context.Context, userID string, threshold time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1 AND expires_at <= $2`, userID, threshold.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, threshold time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, threshold.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func normalize(s domain.Session) domain.Session {
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return s
}
