package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rishad7060/tillagent/internal/alert"
	"github.com/rishad7060/tillagent/internal/auth"
	"github.com/rishad7060/tillagent/internal/config"
	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/event"
	"github.com/rishad7060/tillagent/internal/registry"
	"github.com/rishad7060/tillagent/internal/remote"
	"github.com/rishad7060/tillagent/internal/restore"
	"github.com/rishad7060/tillagent/internal/router"
	"github.com/rishad7060/tillagent/internal/store"
	"github.com/rishad7060/tillagent/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogger(cfg.Env)

	db, err := store.Open(cfg.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DataPath).Msg("failed to open local store")
	}

	cache := store.NewCacheRepository(db)
	outbox := store.NewOutboxRepository(db)

	// The back office client reads the auth token from the cached user so a
	// restart keeps working without a fresh login.
	tokenSource := func() string {
		user, ok := cache.GetUser(context.Background())
		if !ok {
			return ""
		}
		return user.Token
	}
	client := remote.New(
		cfg.BackendURL,
		cfg.DeviceID,
		time.Duration(cfg.BackendTimeoutSeconds)*time.Second,
		tokenSource,
	)

	oracle := connectivity.NewOracle(client, time.Duration(cfg.ProbeTimeoutSeconds)*time.Second)
	notifier := event.NewNotifier()
	oracle.Subscribe(func(online bool) {
		if online {
			notifier.Publish(event.WentOnline, nil)
		} else {
			notifier.Publish(event.WentOffline, nil)
		}
	})

	mailer := alert.NewMailer(cfg)

	syncMgr := sync.NewManager(outbox, client, oracle, notifier, mailer, cfg.DeviceID, cfg.SyncAlertAttempts)

	notesThreshold, err := decimal.NewFromString(cfg.VarianceNotesThreshold)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.VarianceNotesThreshold).
			Msg("invalid VARIANCE_NOTES_THRESHOLD")
	}

	reg := registry.NewController(cache, client, oracle, syncMgr, notifier, mailer, notesThreshold)
	authSvc := auth.NewService(cache, client, oracle, notifier)
	restorer := restore.NewRestorer(cache, oracle, reg, authSvc, syncMgr, notifier)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncMgr.StartLoop(ctx, time.Duration(cfg.SyncIntervalSeconds)*time.Second)

	engine := router.New(cfg, router.Deps{
		DB:       db,
		Cache:    cache,
		Outbox:   outbox,
		Oracle:   oracle,
		SyncMgr:  syncMgr,
		Registry: reg,
		AuthSvc:  authSvc,
		Restorer: restorer,
		Notifier: notifier,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("device", cfg.DeviceID).Msg("tillagent listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("stopped")
}

func setupLogger(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
