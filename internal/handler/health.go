package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/store"
)

// Health reports agent liveness: the durable store must answer, the back
// office is allowed to be down (that is what the outbox is for).
func Health(db *gorm.DB, oracle *connectivity.Oracle, outbox store.OutboxRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		storeStatus := "ok"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			storeStatus = "error"
		}

		pending := int64(-1)
		if counts, err := outbox.Count(ctx); err == nil {
			pending = counts.Total
		}

		status := http.StatusOK
		if storeStatus != "ok" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":      status == http.StatusOK,
			"store":   storeStatus,
			"online":  oracle.IsOnline(),
			"pending": pending,
		})
	}
}
