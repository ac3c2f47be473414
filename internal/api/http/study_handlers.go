package http

import (
	"net/http"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
)

// Study responses always answer 200 once the page is known; an unavailable
// or failing provider is reported in the inline status.

// Quiz generates a multiple-choice quiz over a page
func (h *Handlers) Quiz(c *gin.Context) {
	var req types.QuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := utils.ValidateID(req.PageID, "page_id", true); err != nil {
		badRequest(c, err.Error())
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	done := h.metrics.TrackStudy("quiz")
	quiz, err := h.study.GenerateQuiz(c.Request.Context(), w.Owner().ID, id.PageID(req.PageID), req.Questions)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quiz": quiz})
}

// Summary summarises a page
func (h *Handlers) Summary(c *gin.Context) {
	var req types.SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := utils.ValidateID(req.PageID, "page_id", true); err != nil {
		badRequest(c, err.Error())
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	done := h.metrics.TrackStudy("summary")
	sum, err := h.study.Summarize(c.Request.Context(), w.Owner().ID, id.PageID(req.PageID))
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum})
}

// Chat answers a free-form study question
func (h *Handlers) Chat(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := utils.ValidateMessage(req.Message); err != nil {
		badRequest(c, err.Error())
		return
	}

	done := h.metrics.TrackStudy("chat")
	reply := h.study.Chat(c.Request.Context(), req.Message)
	done(nil)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
