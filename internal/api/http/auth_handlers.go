package http

import (
	"net/http"
	"sort"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/api/middleware"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/auth"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Login signs in with a provider and returns a bearer token
func (h *Handlers) Login(c *gin.Context) {
	var req types.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}

	done := h.metrics.TrackAuth(req.Provider)
	sess, err := h.auth.Login(c.Request.Context(), req.Provider, auth.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      sess.Token,
		"identity":   sess.Identity,
		"expires_at": sess.ExpiresAt,
	})
}

// Logout revokes the caller's token. Guest workspaces are closed with it
// since no later login can reach them.
func (h *Handlers) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.auth.Logout(ctx, middleware.Token(c)); err != nil {
		h.fail(c, err)
		return
	}

	if identity, ok := middleware.Identity(c); ok && identity.Guest {
		if err := h.workspaces.Close(ctx, string(identity.UserID)); err != nil {
			h.logger.Warn("close guest workspace", zap.String("user", string(identity.UserID)), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Session returns the signed-in identity
func (h *Handlers) Session(c *gin.Context) {
	identity, _ := middleware.Identity(c)
	providers := h.auth.Providers()
	sort.Strings(providers)

	c.JSON(http.StatusOK, gin.H{
		"identity":  identity,
		"providers": providers,
	})
}
