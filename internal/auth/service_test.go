package auth

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/dto"
	"github.com/rishad7060/tillagent/internal/event"
	"github.com/rishad7060/tillagent/internal/model"
	"github.com/rishad7060/tillagent/internal/remote"
	"github.com/rishad7060/tillagent/internal/store"
)

type fakeBackOffice struct {
	pingErr  error
	loginRes *remote.LoginResult
	loginErr error
}

func (f *fakeBackOffice) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeBackOffice) Login(ctx context.Context, username, pin string) (*remote.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginRes, nil
}

func (f *fakeBackOffice) GetCurrentSession(ctx context.Context) (*model.RegistrySession, error) {
	return nil, remote.ErrNoOpenSession
}
func (f *fakeBackOffice) OpenSession(ctx context.Context, req remote.OpenSessionRequest) (*model.RegistrySession, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBackOffice) CloseSession(ctx context.Context, id int64, req remote.CloseSessionRequest) (*model.RegistrySession, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBackOffice) GetPendingRefunds(ctx context.Context, sessionID int64) ([]model.RefundSummary, error) {
	return nil, nil
}
func (f *fakeBackOffice) Submit(ctx context.Context, op *model.PendingOperation) error { return nil }

func newService(t *testing.T, backend *fakeBackOffice) (*Service, store.CacheRepository) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	cache := store.NewCacheRepository(db)
	oracle := connectivity.NewOracle(backend, time.Second)
	return NewService(cache, backend, oracle, event.NewNotifier()), cache
}

func TestOnlineLoginCachesUserForOfflineUnlock(t *testing.T) {
	backend := &fakeBackOffice{loginRes: &remote.LoginResult{
		User:        model.User{ID: "u-1", Username: "maria", Role: "cashier"},
		Permissions: model.Permissions{"registry.close": true},
		Token:       "jwt-token",
	}}
	svc, cache := newService(t, backend)
	ctx := context.Background()

	user, perms, err := svc.Login(ctx, dto.LoginRequest{Username: "maria", PIN: "4321"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", user.Token)
	assert.True(t, perms["registry.close"])
	assert.NotEmpty(t, user.PINHash, "the PIN hash enables offline unlock later")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte("4321")))

	cached, ok := cache.GetUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "maria", cached.Username)
}

func TestOnlineLoginRejectionIsNotRetriedOffline(t *testing.T) {
	backend := &fakeBackOffice{loginErr: &remote.RequestError{StatusCode: http.StatusUnauthorized}}
	svc, cache := newService(t, backend)
	ctx := context.Background()

	// A previously cached operator must not let a wrong PIN through when the
	// server explicitly said no.
	hash, _ := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	require.NoError(t, cache.SaveUser(ctx, &model.User{Username: "maria", PINHash: string(hash)}))

	_, _, err := svc.Login(ctx, dto.LoginRequest{Username: "maria", PIN: "4321"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestOfflineUnlockAgainstCachedHash(t *testing.T) {
	backend := &fakeBackOffice{pingErr: errors.New("dial tcp: connection refused")}
	svc, cache := newService(t, backend)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, cache.SaveUser(ctx, &model.User{ID: "u-1", Username: "maria", PINHash: string(hash)}))
	require.NoError(t, cache.SavePermissions(ctx, model.Permissions{"order.create": true}))

	user, perms, err := svc.Login(ctx, dto.LoginRequest{Username: "maria", PIN: "4321"})
	require.NoError(t, err)
	assert.Equal(t, "maria", user.Username)
	assert.True(t, perms["order.create"])

	_, _, err = svc.Login(ctx, dto.LoginRequest{Username: "maria", PIN: "9999"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, dto.LoginRequest{Username: "jose", PIN: "4321"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestOfflineLoginWithoutCacheFails(t *testing.T) {
	backend := &fakeBackOffice{pingErr: errors.New("dial tcp: connection refused")}
	svc, _ := newService(t, backend)

	_, _, err := svc.Login(context.Background(), dto.LoginRequest{Username: "maria", PIN: "4321"})
	assert.ErrorIs(t, err, ErrOfflineNoCache)
}

func TestTokenExpired(t *testing.T) {
	svc, _ := newService(t, &fakeBackOffice{})

	signedAt := func(exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
		s, err := tok.SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	assert.True(t, svc.TokenExpired(nil))
	assert.True(t, svc.TokenExpired(&model.User{}))
	assert.True(t, svc.TokenExpired(&model.User{Token: "not-a-jwt"}))
	assert.True(t, svc.TokenExpired(&model.User{Token: signedAt(time.Now().Add(-time.Minute))}))
	assert.False(t, svc.TokenExpired(&model.User{Token: signedAt(time.Now().Add(time.Hour))}))

	// No exp claim: the server decides.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u-1"})
	s, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)
	assert.False(t, svc.TokenExpired(&model.User{Token: s}))
}

func TestLogoutClearsCacheOnly(t *testing.T) {
	svc, cache := newService(t, &fakeBackOffice{})
	ctx := context.Background()

	require.NoError(t, cache.SaveUser(ctx, &model.User{ID: "u-1", Username: "maria"}))
	require.NoError(t, svc.Logout(ctx))

	_, ok := cache.GetUser(ctx)
	assert.False(t, ok)
}
