package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessiond/internal/session/domain"
	"github.com/aussiebroadwan/sessiond/internal/session/store"
	"github.com/aussiebroadwan/sessiond/internal/session/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessiond/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func createUser(t *testing.T, st store.Store, email string) domain.User {
	t.Helper()

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$argon2id$fake",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(t.Context(), u))
	return u
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.Ping(t.Context()))
}

func TestUsers(t *testing.T) {
	st := newTestStore(t)
	ctx := t.Context()

	u := createUser(t, st, "ada@example.com")

	t.Run("get by id and email", func(t *testing.T) {
		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Email, got.Email)
		require.Equal(t, u.Name, got.Name)
		require.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Millisecond)

		got, err = st.Users().GetUserByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := st.Users().GetUserByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = st.Users().GetUserByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := u
		dup.ID = idx.New().String()
		require.ErrorIs(t, st.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)
	})

	t.Run("update", func(t *testing.T) {
		require.NoError(t, st.Users().UpdateUser(ctx, u.ID, "Ada L", "ada.l@example.com"))

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "Ada L", got.Name)
		require.Equal(t, "ada.l@example.com", got.Email)

		require.ErrorIs(t, st.Users().UpdateUser(ctx, "nope", "x", "x@example.com"), store.ErrNotFound)

		other := createUser(t, st, "grace@example.com")
		err = st.Users().UpdateUser(ctx, other.ID, "Grace", "ada.l@example.com")
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})
}

func TestSessionsLedger(t *testing.T) {
	st := newTestStore(t)
	ctx := t.Context()
	ledger := st.Sessions()

	u := createUser(t, st, "ledger@example.com")
	now := time.Now().UTC()

	live, err := ledger.InsertSession(ctx, domain.Session{ID: idx.New().String(), UserID: u.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now})
	require.NoError(t, err)
	soon, err := ledger.InsertSession(ctx, domain.Session{ID: idx.New().String(), UserID: u.ID, ExpiresAt: now.Add(10 * time.Second), CreatedAt: now.Add(time.Millisecond)})
	require.NoError(t, err)
	_, err = ledger.InsertSession(ctx, domain.Session{ID: idx.New().String(), UserID: u.ID, ExpiresAt: now.Add(-time.Minute), CreatedAt: now})
	require.NoError(t, err)

	t.Run("duplicate id", func(t *testing.T) {
		_, err := ledger.InsertSession(ctx, live)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("unknown user violates foreign key", func(t *testing.T) {
		_, err := ledger.InsertSession(ctx, domain.Session{ID: idx.New().String(), UserID: "ghost", ExpiresAt: now.Add(time.Hour)})
		require.Error(t, err)
	})

	t.Run("list returns only unexpired rows newest first", func(t *testing.T) {
		rows, err := ledger.ListUserSessions(ctx, u.ID, now)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, soon.ID, rows[0].ID)
		require.Equal(t, live.ID, rows[1].ID)
	})

	t.Run("delete expired with grace", func(t *testing.T) {
		n, err := ledger.DeleteExpiredUserSessions(ctx, u.ID, now.Add(30*time.Second))
		require.NoError(t, err)
		require.EqualValues(t, 2, n) // dead and soon

		rows, err := ledger.ListUserSessions(ctx, u.ID, now)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, live.ID, rows[0].ID)
	})

	t.Run("delete single row is idempotent", func(t *testing.T) {
		require.NoError(t, ledger.DeleteSession(ctx, live.ID))
		require.NoError(t, ledger.DeleteSession(ctx, live.ID))

		rows, err := ledger.ListUserSessions(ctx, u.ID, now)
		require.NoError(t, err)
		require.Empty(t, rows)
	})
}

func TestDeleteExpiredSessionsAcrossUsers(t *testing.T) {
	st := newTestStore(t)
	ctx := t.Context()
	now := time.Now().UTC()

	a := createUser(t, st, "a@example.com")
	b := createUser(t, st, "b@example.com")

	for _, uid := range []string{a.ID, b.ID} {
		_, err := st.Sessions().InsertSession(ctx, domain.Session{ID: idx.New().String(), UserID: uid, ExpiresAt: now.Add(-time.Second)})
		require.NoError(t, err)
		_, err = st.Sessions().InsertSession(ctx, domain.Session{ID: idx.New().String(), UserID: uid, ExpiresAt: now.Add(time.Hour)})
		require.NoError(t, err)
	}

	n, err := st.Sessions().DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = st.Sessions().DeleteUserSessions(ctx, a.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestDeleteUserCascadesToSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := t.Context()

	u := createUser(t, st, "cascade@example.com")
	_, err := st.Sessions().InsertSession(ctx, domain.Session{ID: idx.New().String(), UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, st.Users().DeleteUser(ctx, u.ID))
	require.ErrorIs(t, st.Users().DeleteUser(ctx, u.ID), store.ErrNotFound)

	rows, err := st.Sessions().ListUserSessions(ctx, u.ID, time.Now())
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestWithTx(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, st, "tx@example.com")

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := st.WithTx(ctx, func(tx store.Tx) error {
			require.NoError(t, tx.Users().UpdateUser(ctx, u.ID, "Changed", u.Email))
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "Test User", got.Name)
	})

	t.Run("commit on success", func(t *testing.T) {
		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().UpdateUser(ctx, u.ID, "Committed", u.Email)
		})
		require.NoError(t, err)

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "Committed", got.Name)
	})
}
