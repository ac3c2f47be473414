package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/importer"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/richtext"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"go.uber.org/zap"
)

// Entity kinds as persisted
const (
	PageKind  = "page"
	BlockKind = "block"
)

// DefaultTitle names pages created without a title
const DefaultTitle = "Untitled"

var (
	ErrPageNotFound     = errors.New("page not found")
	ErrBlockNotFound    = errors.New("block not found")
	ErrInvalidBlockType = errors.New("invalid block type")
	ErrInvalidParent    = errors.New("invalid parent page")
)

// Notes manipulates the page/block graph of every owner
type Notes struct {
	pages     *persistence.Gateway[types.Page]
	blocks    *persistence.Gateway[types.Block]
	sanitizer *richtext.Sanitizer
	logger    *zap.Logger
	now       func() time.Time
	locks     persistence.KeyedMutex
}

// New creates the notes graph over the shared persistence tiers
func New(tiers persistence.Tiers) *Notes {
	logger := tiers.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := tiers.Now
	if now == nil {
		now = time.Now
	}
	return &Notes{
		pages:     persistence.NewFor(tiers, PageKind, func(p *types.Page) string { return string(p.ID) }),
		blocks:    persistence.NewFor(tiers, BlockKind, func(b *types.Block) string { return string(b.ID) }),
		sanitizer: richtext.NewSanitizer(),
		logger:    logger.Named("content"),
		now:       now,
	}
}

// Load hydrates an owner's pages and blocks
func (n *Notes) Load(ctx context.Context, owner persistence.Owner) error {
	if err := n.pages.Load(ctx, owner); err != nil {
		return err
	}
	return n.blocks.Load(ctx, owner)
}

// Adopt merges pages and blocks recovered from a snapshot. Blocks whose
// page is unknown are skipped.
func (n *Notes) Adopt(owner persistence.Owner, pages []types.Page, blocks []types.Block, at time.Time) int {
	unlock := n.locks.Lock(owner.ID)
	defer unlock()

	added := n.pages.Adopt(owner, pages, at)

	var keep []types.Block
	for _, b := range blocks {
		if _, ok := n.pages.Get(owner.ID, string(b.PageID)); ok {
			keep = append(keep, b)
		}
	}
	added += n.blocks.Adopt(owner, keep, at)
	return added
}

// Forget drops an owner's graph from memory
func (n *Notes) Forget(ownerID string) {
	n.pages.Forget(ownerID)
	n.blocks.Forget(ownerID)
}

// Reconcile replays the owner's pending page and block writes
func (n *Notes) Reconcile(ctx context.Context, ownerID string) (int, error) {
	pages, err := n.pages.Reconcile(ctx, ownerID)
	if err != nil {
		return pages, err
	}
	blocks, err := n.blocks.Reconcile(ctx, ownerID)
	return pages + blocks, err
}

// Gateways exposes the underlying gateways for reconcilers and health
func (n *Notes) Gateways() (*persistence.Gateway[types.Page], *persistence.Gateway[types.Block]) {
	return n.pages, n.blocks
}

// CreatePage creates a page, optionally under a parent
func (n *Notes) CreatePage(ctx context.Context, owner persistence.Owner, title, icon string, parent *id.PageID) (types.Page, error) {
	unlock := n.locks.Lock(owner.ID)
	defer unlock()

	if parent != nil {
		if _, ok := n.pages.Get(owner.ID, string(*parent)); !ok {
			return types.Page{}, fmt.Errorf("%w: %s", ErrInvalidParent, *parent)
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}

	now := n.now()
	page := types.Page{
		ID:        id.NewPageID(),
		Title:     title,
		Icon:      icon,
		BlockIDs:  []id.BlockID{},
		ParentID:  parent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return n.pages.Create(ctx, owner, page)
}

// PageUpdate changes page metadata. A non-nil ParentID of "" moves the
// page to the root.
type PageUpdate struct {
	Title    *string
	Icon     *string
	ParentID *id.PageID
}

// UpdatePage applies a metadata update
func (n *Notes) UpdatePage(ctx context.Context, owner persistence.Owner, pageID id.PageID, u PageUpdate) (types.Page, error) {
	unlock := n.locks.Lock(owner.ID)
	defer unlock()

	if _, ok := n.pages.Get(owner.ID, string(pageID)); !ok {
		return types.Page{}, ErrPageNotFound
	}
	if u.ParentID != nil && *u.ParentID != "" {
		if err := n.checkParent(owner.ID, pageID, *u.ParentID); err != nil {
			return types.Page{}, err
		}
	}

	page, err := n.pages.Update(ctx, owner, string(pageID), func(p *types.Page) error {
		if u.Title != nil {
			p.Title = strings.TrimSpace(*u.Title)
			if p.Title == "" {
				p.Title = DefaultTitle
			}
		}
		if u.Icon != nil {
			p.Icon = *u.Icon
		}
		if u.ParentID != nil {
			if *u.ParentID == "" {
				p.ParentID = nil
			} else {
				parent := *u.ParentID
				p.ParentID = &parent
			}
		}
		p.UpdatedAt = n.now()
		return nil
	})
	return page, mapErr(err, ErrPageNotFound)
}

// checkParent rejects unknown parents and cycles
func (n *Notes) checkParent(ownerID string, pageID, parentID id.PageID) error {
	for cur := parentID; cur != ""; {
		if cur == pageID {
			return fmt.Errorf("%w: %s is a descendant of %s", ErrInvalidParent, parentID, pageID)
		}
		p, ok := n.pages.Get(ownerID, string(cur))
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidParent, cur)
		}
		if p.ParentID == nil {
			break
		}
		cur = *p.ParentID
	}
	return nil
}

// DeletePage deletes a page and its blocks. Child pages move to the
// deleted page's parent.
func (n *Notes) DeletePage(ctx context.Context, owner persistence.Owner, pageID id.PageID) error {
	unlock := n.locks.Lock(owner.ID)
	defer unlock()

	page, ok := n.pages.Get(owner.ID, string(pageID))
	if !ok {
		return ErrPageNotFound
	}
	if err := n.pages.Delete(ctx, owner, string(pageID)); err != nil {
		return mapErr(err, ErrPageNotFound)
	}

	var errs []error
	for _, bid := range page.BlockIDs {
		if err := n.blocks.Delete(ctx, owner, string(bid)); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	// blocks that claim the page without being listed
	for _, b := range n.blocks.List(owner.ID) {
		if b.PageID == pageID {
			if err := n.blocks.Delete(ctx, owner, string(b.ID)); err != nil && !errors.Is(err, persistence.ErrNotFound) {
				errs = append(errs, err)
			}
		}
	}

	for _, child := range n.pages.List(owner.ID) {
		if child.ParentID == nil || *child.ParentID != pageID {
			continue
		}
		_, err := n.pages.Update(ctx, owner, string(child.ID), func(p *types.Page) error {
			p.ParentID = page.ParentID
			p.UpdatedAt = n.now()
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("delete page %s: %w", pageID, errors.Join(errs...))
	}
	return nil
}

// AddBlock inserts a block at index; a nil or out-of-range index appends
func (n *Notes) AddBlock(ctx context.Context, owner persistence.Owner, pageID id.PageID, typ types.BlockType, content string, index *int) (types.Block, error) {
	if !typ.Valid() {
		return types.Block{}, fmt.Errorf("%w: %q", ErrInvalidBlockType, typ)
	}
	if err := richtext.Validate(content); err != nil {
		return types.Block{}, err
	}

	unlock := n.locks.Lock(owner.ID)
	defer unlock()

	if _, ok := n.pages.Get(owner.ID, string(pageID)); !ok {
		return types.Block{}, ErrPageNotFound
	}

	block := types.Block{
		ID:      id.NewBlockID(),
		PageID:  pageID,
		Type:    typ,
		Content: n.clean(typ, content),
	}
	if typ == types.BlockTodo {
		block.Properties = map[string]any{"checked": false}
	}

	// the block exists before any page references it
	block, err := n.blocks.Create(ctx, owner, block)
	if err != nil {
		return types.Block{}, err
	}

	_, err = n.pages.Update(ctx, owner, string(pageID), func(p *types.Page) error {
		p.BlockIDs = insertAt(p.BlockIDs, block.ID, index)
		p.UpdatedAt = n.now()
		return nil
	})
	if err != nil {
		if derr := n.blocks.Delete(ctx, owner, string(block.ID)); derr != nil {
			n.logger.Warn("roll back block", zap.String("block", string(block.ID)), zap.Error(derr))
		}
		return types.Block{}, mapErr(err, ErrPageNotFound)
	}
	return block, nil
}

// BlockUpdate changes block content; nil fields are left untouched.
// Properties are merged; a nil value removes a key.
type BlockUpdate struct {
	Type       *types.BlockType
	Content    *string
	Properties map[string]any
}

// UpdateBlock applies an update to a block
func (n *Notes) UpdateBlock(ctx context.Context, owner persistence.Owner, blockID id.BlockID, u BlockUpdate) (types.Block, error) {
	if u.Type != nil && !u.Type.Valid() {
		return types.Block{}, fmt.Errorf("%w: %q", ErrInvalidBlockType, *u.Type)
	}
	if u.Content != nil {
		if err := richtext.Validate(*u.Content); err != nil {
			return types.Block{}, err
		}
	}

	unlock := n.locks.Lock(owner.ID)
	defer unlock()

	block, err := n.blocks.Update(ctx, owner, string(blockID), func(b *types.Block) error {
		if u.Type != nil {
			b.Type = *u.Type
		}
		if u.Content != nil {
			b.Content = n.clean(b.Type, *u.Content)
		}
		for k, v := range u.Properties {
			if b.Properties == nil {
				b.Properties = make(map[string]any)
			}
			if v == nil {
				delete(b.Properties, k)
			} else {
				b.Properties[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return types.Block{}, mapErr(err, ErrBlockNotFound)
	}
	n.touch(ctx, owner, block.PageID)
	return block, nil
}

// DeleteBlock removes a block from its page and deletes it
func (n *Notes) DeleteBlock(ctx context.Context, owner persistence.Owner, blockID id.BlockID) error {
	unlock := n.locks.Lock(owner.ID)
	defer unlock()

	block, ok := n.blocks.Get(owner.ID, string(blockID))
	if !ok {
		return ErrBlockNotFound
	}

	// unreference first so no page ever lists a missing block
	if _, ok := n.pages.Get(owner.ID, string(block.PageID)); ok {
		_, err := n.pages.Update(ctx, owner, string(block.PageID), func(p *types.Page) error {
			p.BlockIDs = remove(p.BlockIDs, blockID)
			p.UpdatedAt = n.now()
			return nil
		})
		if err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return err
		}
	}
	return mapErr(n.blocks.Delete(ctx, owner, string(blockID)), ErrBlockNotFound)
}

// MoveBlock repositions a block within its page
func (n *Notes) MoveBlock(ctx context.Context, owner persistence.Owner, pageID id.PageID, blockID id.BlockID, index int) (types.Page, error) {
	unlock := n.locks.Lock(owner.ID)
	defer unlock()

	page, err := n.pages.Update(ctx, owner, string(pageID), func(p *types.Page) error {
		rest := remove(p.BlockIDs, blockID)
		if len(rest) == len(p.BlockIDs) {
			return ErrBlockNotFound
		}
		p.BlockIDs = insertAt(rest, blockID, &index)
		p.UpdatedAt = n.now()
		return nil
	})
	return page, mapErr(err, ErrPageNotFound)
}

// Page returns one page
func (n *Notes) Page(ownerID string, pageID id.PageID) (types.Page, error) {
	p, ok := n.pages.Get(ownerID, string(pageID))
	if !ok {
		return types.Page{}, ErrPageNotFound
	}
	return p, nil
}

// Pages returns every page of an owner in creation order
func (n *Notes) Pages(ownerID string) []types.Page {
	return n.pages.List(ownerID)
}

// Blocks returns a page's blocks in display order
func (n *Notes) Blocks(ownerID string, pageID id.PageID) ([]types.Block, error) {
	p, ok := n.pages.Get(ownerID, string(pageID))
	if !ok {
		return nil, ErrPageNotFound
	}
	out := make([]types.Block, 0, len(p.BlockIDs))
	for _, bid := range p.BlockIDs {
		b, ok := n.blocks.Get(ownerID, string(bid))
		if !ok {
			n.logger.Warn("page lists missing block",
				zap.String("page", string(pageID)), zap.String("block", string(bid)))
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// AllBlocks returns every block of an owner
func (n *Notes) AllBlocks(ownerID string) []types.Block {
	return n.blocks.List(ownerID)
}

// PlainText flattens a page to text: the title, then one line per block
func (n *Notes) PlainText(ownerID string, pageID id.PageID) (string, error) {
	p, ok := n.pages.Get(ownerID, string(pageID))
	if !ok {
		return "", ErrPageNotFound
	}
	blocks, _ := n.Blocks(ownerID, pageID)

	lines := make([]string, 0, len(blocks)+1)
	lines = append(lines, p.Title)
	for _, b := range blocks {
		text := richtext.PlainText(b.Content)
		if b.Type == types.BlockCode {
			text = strings.TrimSpace(b.Content)
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// clean sanitizes markup; code blocks are stored verbatim and rendered as text
func (n *Notes) clean(typ types.BlockType, content string) string {
	if typ == types.BlockCode {
		return content
	}
	return n.sanitizer.Sanitize(content)
}

// touch bumps a page's UpdatedAt after one of its blocks changed
func (n *Notes) touch(ctx context.Context, owner persistence.Owner, pageID id.PageID) {
	_, err := n.pages.Update(ctx, owner, string(pageID), func(p *types.Page) error {
		p.UpdatedAt = n.now()
		return nil
	})
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		n.logger.Warn("touch page", zap.String("page", string(pageID)), zap.Error(err))
	}
}

func insertAt(ids []id.BlockID, bid id.BlockID, index *int) []id.BlockID {
	if index == nil || *index < 0 || *index >= len(ids) {
		return append(ids, bid)
	}
	i := *index
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = bid
	return ids
}

func remove(ids []id.BlockID, bid id.BlockID) []id.BlockID {
	out := make([]id.BlockID, 0, len(ids))
	for _, x := range ids {
		if x != bid {
			out = append(out, x)
		}
	}
	return out
}

// mapErr turns a gateway not-found into the package sentinel
func mapErr(err, notFound error) error {
	if err != nil && errors.Is(err, persistence.ErrNotFound) {
		return notFound
	}
	return err
}

// Import decodes a document and creates a page holding its blocks. An
// empty title falls back to the document's own title.
func (n *Notes) Import(ctx context.Context, owner persistence.Owner, data []byte, title string, parent *id.PageID) (types.Page, []types.Block, error) {
	doc, err := importer.Decode(data)
	if err != nil {
		return types.Page{}, nil, fmt.Errorf("import: %w", err)
	}
	if strings.TrimSpace(title) == "" {
		title = doc.Title
	}

	page, err := n.CreatePage(ctx, owner, title, "", parent)
	if err != nil {
		return types.Page{}, nil, err
	}

	blocks := make([]types.Block, 0, len(doc.Blocks))
	for _, ib := range doc.Blocks {
		b, err := n.AddBlock(ctx, owner, page.ID, ib.Type, ib.Content, nil)
		if err != nil {
			return page, blocks, fmt.Errorf("import block %d: %w", len(blocks), err)
		}
		if ib.Checked {
			b, err = n.UpdateBlock(ctx, owner, b.ID, BlockUpdate{Properties: map[string]any{"checked": true}})
			if err != nil {
				return page, blocks, fmt.Errorf("import block %d: %w", len(blocks), err)
			}
		}
		blocks = append(blocks, b)
	}

	page, err = n.Page(owner.ID, page.ID)
	if err != nil {
		return types.Page{}, nil, err
	}
	n.logger.Info("document imported",
		zap.String("owner", owner.ID),
		zap.String("page", string(page.ID)),
		zap.String("format", doc.Format),
		zap.Int("blocks", len(blocks)))
	return page, blocks, nil
}
