package service_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/sessiond/internal/session/domain"
	"github.com/aussiebroadwan/sessiond/internal/session/service"
	"github.com/aussiebroadwan/sessiond/internal/session/sessiontest"
	"github.com/aussiebroadwan/sessiond/pkg/idx"
	"github.com/aussiebroadwan/sessiond/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingSweep(t *testing.T) {
	st := sessiontest.Store(t)
	ctx := t.Context()
	u := sessiontest.CreateUser(t, st, "sweep@example.com")

	now := time.Now().UTC()
	for _, exp := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		_, err := st.Sessions().InsertSession(ctx, domain.Session{ID: idx.New().String(), UserID: u.ID, ExpiresAt: exp})
		require.NoError(t, err)
	}

	hk := service.NewHousekeepingService(st.Sessions(), slogx.Discard(), 0)
	require.Equal(t, time.Hour, hk.Interval)
	require.EqualValues(t, 2, hk.Sweep())
	require.Zero(t, hk.Sweep())

	rows, err := st.Sessions().ListUserSessions(ctx, u.ID, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestHousekeepingStartStop(t *testing.T) {
	st := sessiontest.Store(t)
	ctx := t.Context()
	u := sessiontest.CreateUser(t, st, "loop@example.com")

	_, err := st.Sessions().InsertSession(ctx, domain.Session{ID: idx.New().String(), UserID: u.ID, ExpiresAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	hk := service.NewHousekeepingService(st.Sessions(), slogx.Discard(), time.Hour)
	hk.Start()
	hk.Stop()

	n, err := st.Sessions().DeleteExpiredSessions(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, n, "the startup sweep should have removed the row")
}
