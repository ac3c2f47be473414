package http

import (
	"net/http"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/content"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
)

// pathID validates an id path param, writing a 400 on failure
func pathID(c *gin.Context, name string) (string, bool) {
	v := c.Param(name)
	if err := utils.ValidateID(v, name, true); err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return v, true
}

func optionalPageID(s *string) (*id.PageID, error) {
	if s == nil {
		return nil, nil
	}
	if *s != "" {
		if err := utils.ValidateID(*s, "parent_id", true); err != nil {
			return nil, err
		}
	}
	pid := id.PageID(*s)
	return &pid, nil
}

// ListPages lists the caller's pages
func (h *Handlers) ListPages(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": h.notes.Pages(w.Owner().ID)})
}

// CreatePage creates a page, optionally under a parent
func (h *Handlers) CreatePage(c *gin.Context) {
	var req types.PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := utils.ValidateTitle(req.Title); err != nil {
		badRequest(c, err.Error())
		return
	}
	parent, err := optionalPageID(req.ParentID)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	done := h.metrics.TrackNotes("create_page")
	page, err := h.notes.CreatePage(c.Request.Context(), w.Owner(), req.Title, req.Icon, parent)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"page": page})
}

// GetPage returns a page with its ordered blocks
func (h *Handlers) GetPage(c *gin.Context) {
	pageID, ok := pathID(c, "id")
	if !ok {
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	owner := w.Owner().ID
	page, err := h.notes.Page(owner, id.PageID(pageID))
	if err != nil {
		h.fail(c, err)
		return
	}
	blocks, err := h.notes.Blocks(owner, page.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "blocks": blocks})
}

// UpdatePage changes page metadata
func (h *Handlers) UpdatePage(c *gin.Context) {
	pageID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req types.PagePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Title != nil {
		if err := utils.ValidateTitle(*req.Title); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	parent, err := optionalPageID(req.ParentID)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	done := h.metrics.TrackNotes("update_page")
	page, err := h.notes.UpdatePage(c.Request.Context(), w.Owner(), id.PageID(pageID), content.PageUpdate{
		Title:    req.Title,
		Icon:     req.Icon,
		ParentID: parent,
	})
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// DeletePage deletes a page with its blocks and subpages
func (h *Handlers) DeletePage(c *gin.Context) {
	pageID, ok := pathID(c, "id")
	if !ok {
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	done := h.metrics.TrackNotes("delete_page")
	err := h.notes.DeletePage(c.Request.Context(), w.Owner(), id.PageID(pageID))
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "page_id": pageID})
}

// AddBlock appends or inserts a block into a page
func (h *Handlers) AddBlock(c *gin.Context) {
	pageID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req types.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	done := h.metrics.TrackNotes("add_block")
	block, err := h.notes.AddBlock(c.Request.Context(), w.Owner(), id.PageID(pageID),
		types.BlockType(req.Type), req.Content, req.Index)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"block": block})
}

// UpdateBlock changes a block
func (h *Handlers) UpdateBlock(c *gin.Context) {
	blockID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req types.BlockPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	u := content.BlockUpdate{Content: req.Content, Properties: req.Properties}
	if req.Type != nil {
		bt := types.BlockType(*req.Type)
		u.Type = &bt
	}

	done := h.metrics.TrackNotes("update_block")
	block, err := h.notes.UpdateBlock(c.Request.Context(), w.Owner(), id.BlockID(blockID), u)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"block": block})
}

// DeleteBlock removes a block from its page
func (h *Handlers) DeleteBlock(c *gin.Context) {
	blockID, ok := pathID(c, "id")
	if !ok {
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	done := h.metrics.TrackNotes("delete_block")
	err := h.notes.DeleteBlock(c.Request.Context(), w.Owner(), id.BlockID(blockID))
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "block_id": blockID})
}

// MoveBlock repositions a block within its page
func (h *Handlers) MoveBlock(c *gin.Context) {
	pageID, ok := pathID(c, "id")
	if !ok {
		return
	}
	blockID, ok := pathID(c, "blockId")
	if !ok {
		return
	}
	var req types.MoveBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	done := h.metrics.TrackNotes("move_block")
	page, err := h.notes.MoveBlock(c.Request.Context(), w.Owner(), id.PageID(pageID), id.BlockID(blockID), req.Index)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}
