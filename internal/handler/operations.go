package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rishad7060/tillagent/internal/apierror"
	"github.com/rishad7060/tillagent/internal/dto"
	"github.com/rishad7060/tillagent/internal/registry"
	"github.com/rishad7060/tillagent/internal/store"
)

// OperationsHandler records sales, cash movements and refund requests. All
// three go through the same durable outbox path: written locally first,
// replayed immediately when online.
type OperationsHandler struct {
	ctrl  *registry.Controller
	cache store.CacheRepository
}

func NewOperationsHandler(ctrl *registry.Controller, cache store.CacheRepository) *OperationsHandler {
	return &OperationsHandler{ctrl: ctrl, cache: cache}
}

func (h *OperationsHandler) operator(c *gin.Context) (string, bool) {
	user, ok := h.cache.GetUser(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("no operator logged in on this terminal"))
		return "", false
	}
	return user.ID, true
}

// CreateCashTransaction appends a cash in/out ledger entry.
func (h *OperationsHandler) CreateCashTransaction(c *gin.Context) {
	var req dto.CashTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operator, ok := h.operator(c)
	if !ok {
		return
	}
	resp, err := h.ctrl.RecordCashTransaction(c.Request.Context(), operator, req)
	if err != nil {
		writeRegistryError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// CreateOrder queues an order. The order's business shape is the back
// office's contract; the agent validates only that a body was supplied.
func (h *OperationsHandler) CreateOrder(c *gin.Context) {
	h.createOpaque(c, func(ctx *gin.Context, operator string, payload map[string]interface{}) (*dto.QueuedResponse, error) {
		return h.ctrl.RecordOrder(ctx.Request.Context(), operator, payload)
	})
}

// CreateRefund queues a refund request.
func (h *OperationsHandler) CreateRefund(c *gin.Context) {
	h.createOpaque(c, func(ctx *gin.Context, operator string, payload map[string]interface{}) (*dto.QueuedResponse, error) {
		return h.ctrl.RecordRefund(ctx.Request.Context(), operator, payload)
	})
}

func (h *OperationsHandler) createOpaque(
	c *gin.Context,
	record func(*gin.Context, string, map[string]interface{}) (*dto.QueuedResponse, error),
) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return
	}
	if len(payload) == 0 {
		c.JSON(http.StatusBadRequest, apierror.New("empty payload"))
		return
	}
	operator, ok := h.operator(c)
	if !ok {
		return
	}
	resp, err := record(c, operator, payload)
	if err != nil {
		writeRegistryError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}
