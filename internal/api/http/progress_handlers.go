package http

import (
	"net/http"
	"strings"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/workspace"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// ListNotifications returns the caller's notifications, newest first
func (h *Handlers) ListNotifications(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	owner := w.Owner().ID
	c.JSON(http.StatusOK, gin.H{
		"notifications": h.progress.Notifications(owner),
		"unread":        h.progress.Unread(owner),
	})
}

// MarkRead marks one notification as read
func (h *Handlers) MarkRead(c *gin.Context) {
	nid, ok := pathID(c, "id")
	if !ok {
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	n, err := h.progress.MarkRead(c.Request.Context(), w.Owner(), id.NotificationID(nid))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

// GetStats returns XP, level, streak and session statistics
func (h *Handlers) GetStats(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	owner := w.Owner().ID
	c.JSON(http.StatusOK, gin.H{
		"stats":   h.progress.Stats(owner),
		"summary": h.progress.Summary(owner),
	})
}

// GetSettings returns the caller's settings
func (h *Handlers) GetSettings(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": w.Settings()})
}

// UpdateSettings applies a settings patch
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var patch types.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	settings, err := h.workspaces.UpdateSettings(c.Request.Context(), w, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// ExportSettings downloads the settings as json, yaml or toml
func (h *Handlers) ExportSettings(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	data, contentType, err := workspace.ExportSettings(w.Settings(), format)
	if err != nil {
		h.fail(c, err)
		return
	}
	if format == "yml" {
		format = "yaml"
	}
	c.Header("Content-Disposition", `attachment; filename="studydesk-settings.`+format+`"`)
	c.Data(http.StatusOK, contentType, data)
}
