package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rishad7060/tillagent/internal/auth"
	"github.com/rishad7060/tillagent/internal/config"
	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/event"
	"github.com/rishad7060/tillagent/internal/handler"
	"github.com/rishad7060/tillagent/internal/middleware"
	"github.com/rishad7060/tillagent/internal/registry"
	"github.com/rishad7060/tillagent/internal/restore"
	"github.com/rishad7060/tillagent/internal/store"
	"github.com/rishad7060/tillagent/internal/sync"
)

// Deps is everything the router wires to routes. The composition root
// (cmd/tillagent) builds them; tests build fakes.
type Deps struct {
	DB       *gorm.DB
	Cache    store.CacheRepository
	Outbox   store.OutboxRepository
	Oracle   *connectivity.Oracle
	SyncMgr  *sync.Manager
	Registry *registry.Controller
	AuthSvc  *auth.Service
	Restorer *restore.Restorer
	Notifier *event.Notifier
}

// New returns the configured Gin engine for the local UI API.
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())

	registryH := handler.NewRegistryHandler(d.Registry, d.Cache)
	operationsH := handler.NewOperationsHandler(d.Registry, d.Cache)
	syncH := handler.NewSyncHandler(d.SyncMgr, d.Oracle)
	sessionH := handler.NewSessionHandler(d.AuthSvc, d.Restorer)

	r.GET("/health", handler.Health(d.DB, d.Oracle, d.Outbox))

	v1 := r.Group("/v1")
	{
		v1.GET("/restore", sessionH.Restore)
		v1.POST("/session/login", sessionH.Login)
		v1.POST("/session/logout", sessionH.Logout)

		reg := v1.Group("/registry")
		{
			// Explicit, rate-limited re-fetch; totals changes are pushed on
			// /v1/events instead of being polled.
			reg.GET("/current", middleware.RateLimiter(30, time.Minute), registryH.Current)
			reg.POST("/open", registryH.Open)
			reg.POST("/close", registryH.Close)
		}

		v1.POST("/orders", operationsH.CreateOrder)
		v1.POST("/cash-transactions", operationsH.CreateCashTransaction)
		v1.POST("/refunds", operationsH.CreateRefund)

		syncGroup := v1.Group("/sync")
		{
			syncGroup.GET("/status", syncH.Status)
			syncGroup.POST("/run", syncH.Run)
			syncGroup.GET("/pending", syncH.ListPending)
			syncGroup.DELETE("/pending/:id", syncH.DeletePending)
		}

		v1.GET("/events", handler.Events(d.Notifier))
	}

	return r
}
