package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/importer"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
)

// ImportPage creates a page from an uploaded HTML, Markdown or text
// document. The document is either the multipart "file" field or the raw
// request body; title and parent_id come from the query string or form.
func (h *Handlers) ImportPage(c *gin.Context) {
	title := c.Query("title")
	if title == "" {
		title = c.PostForm("title")
	}
	if err := utils.ValidateTitle(title); err != nil {
		badRequest(c, err.Error())
		return
	}
	parentID := c.Query("parent_id")
	if parentID == "" {
		parentID = c.PostForm("parent_id")
	}
	var parentArg *string
	if parentID != "" {
		parentArg = &parentID
	}
	parent, err := optionalPageID(parentArg)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	data, err := readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	done := h.metrics.TrackNotes("import")
	page, blocks, err := h.notes.Import(c.Request.Context(), w.Owner(), data, title, parent)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"page": page, "blocks": blocks})
}

func readUpload(c *gin.Context) ([]byte, error) {
	var r io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: missing file field", importer.ErrEmpty)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, importer.MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > importer.MaxDocumentSize {
		return nil, importer.ErrTooLarge
	}
	return data, nil
}
