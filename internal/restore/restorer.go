// Package restore reconstructs in-memory state when the till UI (re)loads.
//
// The order is deliberate and must not be "simplified":
//
//	cache first → synchronous flag second → asynchronous probe third →
//	server fetch last.
//
// A refresh during a real outage must never block on a network timeout
// before showing usable UI, and must never show a login screen when a cached
// operator exists.
package restore

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/rishad7060/tillagent/internal/auth"
	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/event"
	"github.com/rishad7060/tillagent/internal/model"
	"github.com/rishad7060/tillagent/internal/registry"
	"github.com/rishad7060/tillagent/internal/store"
	"github.com/rishad7060/tillagent/internal/sync"
)

// Modes the UI can be restored into.
const (
	ModeOnline        = "online"
	ModeOffline       = "offline"
	ModeLoginRequired = "login_required"
)

// State is the restoration outcome handed to the UI.
type State struct {
	Mode        string                 `json:"mode"`
	User        *model.User            `json:"user,omitempty"`
	Session     *model.RegistrySession `json:"session,omitempty"`
	Permissions model.Permissions      `json:"permissions,omitempty"`
	PendingSync store.PendingCounts    `json:"pendingSync"`
}

// Restorer runs the page-load flow.
type Restorer struct {
	cache    store.CacheRepository
	oracle   *connectivity.Oracle
	registry *registry.Controller
	authSvc  *auth.Service
	syncMgr  *sync.Manager
	notifier *event.Notifier
}

func NewRestorer(
	cache store.CacheRepository,
	oracle *connectivity.Oracle,
	reg *registry.Controller,
	authSvc *auth.Service,
	syncMgr *sync.Manager,
	notifier *event.Notifier,
) *Restorer {
	return &Restorer{
		cache:    cache,
		oracle:   oracle,
		registry: reg,
		authSvc:  authSvc,
		syncMgr:  syncMgr,
		notifier: notifier,
	}
}

// Run executes the restoration state machine once.
func (r *Restorer) Run(ctx context.Context) *State {
	state := &State{}
	if counts, err := r.syncMgr.PendingCount(ctx); err == nil {
		state.PendingSync = counts
	}

	// 1. Cache first, before any network is touched.
	user, ok := r.cache.GetUser(ctx)
	if !ok {
		// The only path that shows a login prompt.
		state.Mode = ModeLoginRequired
		return state
	}

	// 2. Optimistic restore from the cache — no login-screen flash while
	// connectivity is still being decided.
	state.User = user
	if session, found := r.cache.GetRegistrySession(ctx); found {
		state.Session = session
	}
	if perms, found := r.cache.GetPermissions(ctx); found {
		state.Permissions = perms
	}

	// 3. Fast flag. False is trustworthy: commit to offline, skip all
	// verification, the cached snapshot is authoritative for this page life.
	if !r.oracle.IsOnline() {
		state.Mode = ModeOffline
		log.Info().Msg("restore: offline flag — restored from cache, no network attempted")
		return state
	}

	// 4. The flag's "online" is only a claim — verify with the real probe.
	if !r.oracle.CheckActualConnectivity(ctx) {
		state.Mode = ModeOffline
		log.Info().Msg("restore: probe failed despite online flag — treating as offline")
		return state
	}

	// Connected. An expired token means the server will refuse everything:
	// raise the session-expired signal (cache cleared, outbox kept).
	if r.authSvc.TokenExpired(user) {
		r.authSvc.SessionExpired(ctx)
		return &State{Mode: ModeLoginRequired, PendingSync: state.PendingSync}
	}

	// 5. Server fetch last: replace the snapshot with the authoritative
	// answer.
	session, source, err := r.registry.CheckCurrent(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("restore: authoritative session fetch failed, keeping cached snapshot")
	} else if source == registry.SourceServer {
		state.Session = session
	}

	state.Mode = ModeOnline
	r.notifier.Publish(event.WentOnline, nil)
	return state
}
