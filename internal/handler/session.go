package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rishad7060/tillagent/internal/apierror"
	"github.com/rishad7060/tillagent/internal/auth"
	"github.com/rishad7060/tillagent/internal/dto"
	"github.com/rishad7060/tillagent/internal/restore"
)

// SessionHandler covers operator login/logout and the restoration flow.
type SessionHandler struct {
	authSvc  *auth.Service
	restorer *restore.Restorer
}

func NewSessionHandler(authSvc *auth.Service, restorer *restore.Restorer) *SessionHandler {
	return &SessionHandler{authSvc: authSvc, restorer: restorer}
}

// Restore runs the page-load flow and returns the state the UI should boot
// into. Offline with a cached operator never touches the network and never
// demands a login.
func (h *SessionHandler) Restore(c *gin.Context) {
	c.JSON(http.StatusOK, h.restorer.Run(c.Request.Context()))
}

// Login authenticates online when possible, otherwise unlocks offline
// against the cached PIN hash. The response never says which path was taken
// beyond the mode field — credentials failures look identical either way.
func (h *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user, perms, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, apierror.New("invalid credentials"))
		case errors.Is(err, auth.ErrOfflineNoCache):
			c.JSON(http.StatusServiceUnavailable, apierror.New("offline and no cached operator — connectivity required for first login"))
		default:
			c.JSON(http.StatusBadGateway, apierror.New(err.Error()))
		}
		return
	}
	// The PIN hash and token stay on the device.
	sanitized := *user
	sanitized.PINHash = ""
	sanitized.Token = ""
	c.JSON(http.StatusOK, gin.H{"user": sanitized, "permissions": perms})
}

// Logout clears the session cache; the outbox survives.
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.authSvc.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}
