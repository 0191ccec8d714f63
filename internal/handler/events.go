package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/rishad7060/tillagent/internal/event"
)

// Events streams agent notifications to the UI as server-sent events. This
// replaces polling the session summary after every order: the UI re-fetches
// totals only when a totals.changed event arrives.
func Events(notifier *event.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, cancel := notifier.Subscribe()
		defer cancel()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent(ev.Type, ev)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
