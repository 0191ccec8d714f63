package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rishad7060/tillagent/internal/apierror"
	"github.com/rishad7060/tillagent/internal/dto"
	"github.com/rishad7060/tillagent/internal/registry"
	"github.com/rishad7060/tillagent/internal/store"
)

// RegistryHandler exposes the drawer lifecycle to the till UI.
type RegistryHandler struct {
	ctrl  *registry.Controller
	cache store.CacheRepository
}

func NewRegistryHandler(ctrl *registry.Controller, cache store.CacheRepository) *RegistryHandler {
	return &RegistryHandler{ctrl: ctrl, cache: cache}
}

// operator resolves the logged-in operator from the session cache. Every
// money operation requires one.
func (h *RegistryHandler) operator(c *gin.Context) (string, bool) {
	user, ok := h.cache.GetUser(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("no operator logged in on this terminal"))
		return "", false
	}
	return user.ID, true
}

// Current returns the freshest session snapshot with expected cash and the
// pending-sync state. X-Data-Source tells the UI whether it is looking at
// the server's answer or a degraded cached one.
func (h *RegistryHandler) Current(c *gin.Context) {
	summary, err := h.ctrl.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, apierror.New(err.Error()))
		return
	}
	c.Header("X-Data-Source", summary.Source)
	if summary.Session == nil {
		c.JSON(http.StatusNotFound, summary)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Open opens a new session or attaches to the existing shared one.
func (h *RegistryHandler) Open(c *gin.Context) {
	var req dto.OpenRegistryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operator, ok := h.operator(c)
	if !ok {
		return
	}

	session, attached, err := h.ctrl.Open(c.Request.Context(), operator, req)
	if err != nil {
		writeRegistryError(c, err)
		return
	}
	status := http.StatusCreated
	if attached {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"session": session, "attached": attached})
}

// Close runs the gated close flow. Rejections carry a specific code and, for
// pending refunds, the list of blockers.
func (h *RegistryHandler) Close(c *gin.Context) {
	var req dto.CloseRegistryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operator, ok := h.operator(c)
	if !ok {
		return
	}

	closed, err := h.ctrl.Close(c.Request.Context(), operator, req)
	if err != nil {
		writeRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, closed)
}
