// Package api exposes one CRM instance over HTTP.
//
// The server follows a single-session model: the identity logged in through
// /api/session is the actor for every request.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/celerix-dev/celerix-crm/internal/app"
	"github.com/celerix-dev/celerix-crm/internal/crm"
	"github.com/celerix-dev/celerix-crm/internal/session"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

type Handler struct {
	App    *app.App
	Logger *zap.Logger
	// Now is overridable for tests.
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) log() *zap.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return zap.NewNop()
}

// RequireIdentity rejects requests made while nobody is logged in.
func (h *Handler) RequireIdentity(c *gin.Context) {
	id, ok := h.App.Identity()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

func identity(c *gin.Context) schema.Identity {
	return c.MustGet(identityKey).(schema.Identity)
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
}

// writeError maps store errors to status codes. A persist failure means the
// change is live in memory but not on disk yet.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, crm.ErrPersist), errors.Is(err, session.ErrPersist):
		h.log().Warn("write not persisted", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   err.Error(),
			"pending": h.App.CRM.Pending(),
		})
	case errors.Is(err, crm.ErrInvalidActivityType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, crm.ErrNoActiveIdentity):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.App.Login(c.Request.Context(), input.Email, input.Password)
	if !ok {
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	id, _ := h.App.Identity()
	c.JSON(http.StatusOK, id)
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, identity(c))
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.App.Logout(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) GetTheme(c *gin.Context) {
	dark, err := h.App.Theme.IsDark(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dark": dark})
}

func (h *Handler) SetTheme(c *gin.Context) {
	var input struct {
		Dark *bool `json:"dark" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.App.Theme.SetDark(c.Request.Context(), *input.Dark); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dark": *input.Dark})
}

func (h *Handler) GetPersistence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pending": h.App.CRM.Pending()})
}

func (h *Handler) RetryPersistence(c *gin.Context) {
	if err := h.App.CRM.Retry(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": h.App.CRM.Pending()})
}
