package http

import (
	"net/http"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/panels"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/workspace"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// GetWorkspace returns the caller's workspace view
func (h *Handlers) GetWorkspace(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspace": w.View()})
}

// ListPresets lists the layout presets
func (h *Handlers) ListPresets(c *gin.Context) {
	names := panels.Names()
	presets := make([]types.LayoutPreset, 0, len(names))
	for _, name := range names {
		presets = append(presets, panels.Preset(name))
	}
	c.JSON(http.StatusOK, gin.H{
		"presets": presets,
		"default": panels.DefaultName(),
	})
}

// panelOp parses the :panel param and runs op on the caller's workspace.
// Operations suppressed by focus lock answer 200 with applied false.
func (h *Handlers) panelOp(c *gin.Context, op func(*workspace.Workspace, types.PanelType) (workspace.View, bool)) {
	t, err := types.ParsePanelType(c.Param("panel"))
	if err != nil {
		h.fail(c, err)
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	view, applied := op(w, t)
	c.JSON(http.StatusOK, gin.H{"applied": applied, "workspace": view})
}

// TogglePanel opens or closes a panel
func (h *Handlers) TogglePanel(c *gin.Context) {
	h.panelOp(c, func(w *workspace.Workspace, t types.PanelType) (workspace.View, bool) {
		return w.TogglePanel(c.Request.Context(), t)
	})
}

// BringToFront raises a panel
func (h *Handlers) BringToFront(c *gin.Context) {
	h.panelOp(c, func(w *workspace.Workspace, t types.PanelType) (workspace.View, bool) {
		return w.BringToFront(c.Request.Context(), t)
	})
}

// ToggleMaximize maximises or restores a panel
func (h *Handlers) ToggleMaximize(c *gin.Context) {
	h.panelOp(c, func(w *workspace.Workspace, t types.PanelType) (workspace.View, bool) {
		return w.ToggleMaximize(c.Request.Context(), t)
	})
}

// UpdateGeometry moves or resizes a panel
func (h *Handlers) UpdateGeometry(c *gin.Context) {
	t, err := types.ParsePanelType(c.Param("panel"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var patch types.GeometryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	view, applied, err := w.UpdateGeometry(c.Request.Context(), t, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": applied, "workspace": view})
}

// ApplyPreset lays out the workspace from a named preset. Unknown names
// fall back to the default preset; "preset" names the one used.
func (h *Handlers) ApplyPreset(c *gin.Context) {
	name := c.Param("name")
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	view, applied := w.ApplyPreset(c.Request.Context(), name)
	c.JSON(http.StatusOK, gin.H{
		"applied":   applied,
		"preset":    panels.Preset(name).Name,
		"workspace": view,
	})
}

// Lock engages focus lock
func (h *Handlers) Lock(c *gin.Context) {
	var req types.LockRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	lockPanel := types.PanelFocus
	if req.LockPanel != "" {
		t, err := types.ParsePanelType(req.LockPanel)
		if err != nil {
			h.fail(c, err)
			return
		}
		lockPanel = t
	}
	var companion types.PanelType
	if req.Companion != "" {
		t, err := types.ParsePanelType(req.Companion)
		if err != nil {
			h.fail(c, err)
			return
		}
		companion = t
	}

	w, ok := h.workspace(c)
	if !ok {
		return
	}
	view, applied := w.Lock(c.Request.Context(), lockPanel, companion)
	c.JSON(http.StatusOK, gin.H{"applied": applied, "workspace": view})
}

// Unlock releases focus lock
func (h *Handlers) Unlock(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	view, applied := w.Unlock(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"applied": applied, "workspace": view})
}

// GetTimer returns the session state
func (h *Handlers) GetTimer(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": w.Session()})
}

// StartTimer starts a focus or break session
func (h *Handlers) StartTimer(c *gin.Context) {
	var req types.TimerStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	var companion types.PanelType
	if req.Companion != "" {
		t, err := types.ParsePanelType(req.Companion)
		if err != nil {
			h.fail(c, err)
			return
		}
		companion = t
	}

	w, ok := h.workspace(c)
	if !ok {
		return
	}
	view, err := w.StartTimer(c.Request.Context(), types.SessionMode(req.Mode), req.Duration, req.Lock, companion)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspace": view})
}

// StopTimer stops the running session
func (h *Handlers) StopTimer(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspace": w.StopTimer(c.Request.Context())})
}
