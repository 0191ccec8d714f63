package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rishad7060/tillagent/internal/apierror"
)

// refreshEntry tracks calls within a sliding window.
type refreshEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

var (
	refreshMap   = make(map[string]*refreshEntry)
	refreshMapMu sync.Mutex
)

// RateLimiter limits a route to max calls per window per client. The UI must
// not fall back into poll-after-every-keystroke against the session-summary
// endpoint; totals updates are pushed on the event stream instead.
func RateLimiter(max int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + c.FullPath()

		refreshMapMu.Lock()
		entry, exists := refreshMap[key]
		if !exists {
			entry = &refreshEntry{}
			refreshMap[key] = entry
		}
		refreshMapMu.Unlock()

		entry.mu.Lock()
		defer entry.mu.Unlock()

		now := time.Now()
		if now.After(entry.windowEnd) {
			entry.count = 0
			entry.windowEnd = now.Add(window)
		}

		entry.count++
		if entry.count > max {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				apierror.New("too many refreshes — subscribe to /v1/events for totals updates"))
			return
		}
		c.Next()
	}
}
