// Package auth handles the operator session on the terminal: online login
// passthrough, offline unlock against the cached PIN hash, and the
// session-expired cleanup. It deliberately knows nothing about permissions
// semantics — the permission set is cached and replayed verbatim.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/dto"
	"github.com/rishad7060/tillagent/internal/event"
	"github.com/rishad7060/tillagent/internal/model"
	"github.com/rishad7060/tillagent/internal/remote"
	"github.com/rishad7060/tillagent/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrOfflineNoCache means offline login was attempted but no operator has
// ever logged in on this terminal, so there is nothing to verify against.
var ErrOfflineNoCache = errors.New("offline and no cached operator on this terminal")

// Service owns login/logout and the session-expired signal.
type Service struct {
	cache    store.CacheRepository
	client   remote.Client
	oracle   *connectivity.Oracle
	notifier *event.Notifier
}

func NewService(cache store.CacheRepository, client remote.Client, oracle *connectivity.Oracle, notifier *event.Notifier) *Service {
	return &Service{cache: cache, client: client, oracle: oracle, notifier: notifier}
}

// Login authenticates the operator. Online: passthrough to the back office,
// then cache the user (with a locally computed bcrypt hash of the PIN so the
// till can be unlocked during an outage) and the permission snapshot.
// Offline: verify against the cached hash — the only credentials check
// possible without the server.
func (s *Service) Login(ctx context.Context, req dto.LoginRequest) (*model.User, model.Permissions, error) {
	if s.oracle.CheckActualConnectivity(ctx) {
		return s.loginOnline(ctx, req)
	}
	return s.loginOffline(ctx, req)
}

func (s *Service) loginOnline(ctx context.Context, req dto.LoginRequest) (*model.User, model.Permissions, error) {
	result, err := s.client.Login(ctx, req.Username, req.PIN)
	if err != nil {
		if remote.IsUnauthorized(err) || remote.IsPermanent(err) {
			return nil, nil, ErrInvalidCredentials
		}
		// Transport died mid-login — fall back to the offline path.
		log.Warn().Err(err).Msg("auth: online login unreachable, trying offline unlock")
		return s.loginOffline(ctx, req)
	}

	user := result.User
	user.Token = result.Token
	if hash, hashErr := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost); hashErr == nil {
		user.PINHash = string(hash)
	} else {
		log.Error().Err(hashErr).Msg("auth: failed to hash PIN for offline unlock")
	}

	if err := s.cache.SaveUser(ctx, &user); err != nil {
		log.Error().Err(err).Msg("auth: failed to cache user")
	}
	if err := s.cache.SavePermissions(ctx, result.Permissions); err != nil {
		log.Error().Err(err).Msg("auth: failed to cache permissions")
	}
	log.Info().Str("username", user.Username).Msg("auth: online login")
	return &user, result.Permissions, nil
}

func (s *Service) loginOffline(ctx context.Context, req dto.LoginRequest) (*model.User, model.Permissions, error) {
	cached, ok := s.cache.GetUser(ctx)
	if !ok {
		return nil, nil, ErrOfflineNoCache
	}
	if cached.Username != req.Username || cached.PINHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cached.PINHash), []byte(req.PIN)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	perms, _ := s.cache.GetPermissions(ctx)
	log.Info().Str("username", cached.Username).Msg("auth: offline unlock")
	return cached, perms, nil
}

// Logout clears the session cache. The outbox is untouched: pending
// operations are real business transactions and survive any operator change.
func (s *Service) Logout(ctx context.Context) error {
	return s.cache.ClearAll(ctx)
}

// TokenExpired inspects the cached back-office token's exp claim. The
// signature is the server's to verify; the agent only needs to know whether
// presenting this token is pointless.
func (s *Service) TokenExpired(user *model.User) bool {
	if user == nil || user.Token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(user.Token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false // no exp claim — let the server decide
	}
	return exp.Before(time.Now())
}

// SessionExpired is the auth:session-expired signal: clear the session cache
// and force re-login, but PRESERVE the outbox — unsynced operations are
// unsaved business transactions and are never casualties of an expired token.
func (s *Service) SessionExpired(ctx context.Context) {
	if err := s.cache.ClearAll(ctx); err != nil {
		log.Error().Err(err).Msg("auth: session-expired cache clear failed")
	}
	s.notifier.Publish(event.SessionExpired, nil)
	log.Warn().Msg("auth: session expired — cache cleared, outbox preserved")
}
