// Package sessiontest builds the in-memory collaborators shared by the
// session tests: RSA key pairs, a miniredis-backed registry, a migrated
// sqlite store and a token service wired to both.
package sessiontest

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/sessiond/internal/session/domain"
	"github.com/aussiebroadwan/sessiond/internal/session/registry"
	"github.com/aussiebroadwan/sessiond/internal/session/store"
	"github.com/aussiebroadwan/sessiond/internal/session/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessiond/internal/session/token"
	"github.com/aussiebroadwan/sessiond/pkg/cryptox"
	"github.com/aussiebroadwan/sessiond/pkg/idx"
	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
	"github.com/aussiebroadwan/sessiond/pkg/slogx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var (
	keysOnce sync.Once
	keys     [3]cryptox.RSAKeyPair
	keysErr  error
)

// RawKeys returns three PEM key pairs generated once per test binary, in
// access, refresh, session order.
func RawKeys(t testing.TB) [3]cryptox.RSAKeyPair {
	t.Helper()
	keysOnce.Do(func() {
		for i := range keys {
			keys[i], keysErr = cryptox.GenerateRSAKeyPair(cryptox.MinRSABits)
			if keysErr != nil {
				return
			}
		}
	})
	require.NoError(t, keysErr)
	return keys
}

// Keys returns the parsed form of RawKeys.
func Keys(t testing.TB) token.Keys {
	t.Helper()
	raw := RawKeys(t)

	pairs := make([]*jwtx.KeyPair, len(raw))
	for i, k := range raw {
		kp, err := jwtx.ParseKeyPair(k.PrivatePEM, k.PublicPEM)
		require.NoError(t, err)
		pairs[i] = kp
	}
	return token.Keys{Access: pairs[0], Refresh: pairs[1], Session: pairs[2]}
}

// Pepper points password hashing at a pepper file private to the test.
func Pepper(t testing.TB) {
	t.Helper()
	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))
	require.NoError(t, cryptox.LoadPepper())
}

// Registry starts a miniredis server and returns a registry bound to it.
func Registry(t testing.TB) (*registry.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	reg := registry.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { _ = reg.Close() })
	return reg, mr
}

// Store opens a migrated in-memory sqlite store.
func Store(t testing.TB) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t testing.TB, st store.Store, email string) domain.User {
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

// Env is a token service plus the stores behind it.
type Env struct {
	Tokens   *token.Service
	Registry *registry.Redis
	Redis    *miniredis.Miniredis
	Store    *sqlite.Store
}

// NewEnv wires a token service over fresh in-memory stores.
func NewEnv(t testing.TB, opts ...token.Option) *Env {
	t.Helper()

	reg, mr := Registry(t)
	st := Store(t)

	svc, err := token.NewService(token.Config{
		Keys: Keys(t),
		TTLs: token.DefaultTTLs(),
	}, reg, st.Sessions(), slogx.Discard(), opts...)
	require.NoError(t, err)

	return &Env{Tokens: svc, Registry: reg, Redis: mr, Store: st}
}
