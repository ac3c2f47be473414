package types

import (
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
)

// BlockType is the kind of a content block
type BlockType string

const (
	BlockText   BlockType = "text"
	BlockH1     BlockType = "h1"
	BlockH2     BlockType = "h2"
	BlockH3     BlockType = "h3"
	BlockTodo   BlockType = "todo"
	BlockBullet BlockType = "bullet"
	BlockCode   BlockType = "code"
)

// Valid reports whether b is a known block type
func (b BlockType) Valid() bool {
	switch b {
	case BlockText, BlockH1, BlockH2, BlockH3, BlockTodo, BlockBullet, BlockCode:
		return true
	}
	return false
}

// Page is a notes page; BlockIDs holds its blocks in display order
type Page struct {
	ID        id.PageID    `json:"id"`
	Title     string       `json:"title"`
	Icon      string       `json:"icon,omitempty"`
	BlockIDs  []id.BlockID `json:"block_ids"`
	ParentID  *id.PageID   `json:"parent_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Block is a unit of page content; it belongs to exactly one page
type Block struct {
	ID         id.BlockID     `json:"id"`
	PageID     id.PageID      `json:"page_id"`
	Type       BlockType      `json:"type"`
	Content    string         `json:"content"`
	Properties map[string]any `json:"properties,omitempty"`
}
