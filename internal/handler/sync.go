package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rishad7060/tillagent/internal/apierror"
	"github.com/rishad7060/tillagent/internal/connectivity"
	"github.com/rishad7060/tillagent/internal/sync"
)

// SyncHandler exposes outbox introspection and the blocking "sync all now".
type SyncHandler struct {
	mgr    *sync.Manager
	oracle *connectivity.Oracle
}

func NewSyncHandler(mgr *sync.Manager, oracle *connectivity.Oracle) *SyncHandler {
	return &SyncHandler{mgr: mgr, oracle: oracle}
}

// Status is the non-blocking pending count.
func (h *SyncHandler) Status(c *gin.Context) {
	counts, err := h.mgr.PendingCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending": counts,
		"online":  h.oracle.IsOnline(),
	})
}

// Run triggers a blocking full sync pass. The verified probe runs first: a
// manual sync against a dead backend should answer fast, not time out per item.
func (h *SyncHandler) Run(c *gin.Context) {
	if !h.oracle.CheckActualConnectivity(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, apierror.NewCode("OFFLINE", "back office unreachable — operations kept in the outbox"))
		return
	}
	result, err := h.mgr.SyncAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListPending returns the raw outbox for the review screen.
func (h *SyncHandler) ListPending(c *gin.Context) {
	ops, err := h.mgr.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}

// DeletePending removes one outbox entry. This exists for supervisors
// dealing with a permanently rejected operation; the agent itself never
// discards anything.
func (h *SyncHandler) DeletePending(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, apierror.New("missing operation id"))
		return
	}
	if err := h.mgr.RemovePending(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}
