package content

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingStore struct {
	*persistence.MemoryStore
	fail atomic.Bool
}

var errDown = errors.New("remote down")

func (s *failingStore) Put(ctx context.Context, rec persistence.Record) error {
	if s.fail.Load() {
		return errDown
	}
	return s.MemoryStore.Put(ctx, rec)
}

func (s *failingStore) Delete(ctx context.Context, kind, owner, id string) error {
	if s.fail.Load() {
		return errDown
	}
	return s.MemoryStore.Delete(ctx, kind, owner, id)
}

type fixture struct {
	notes  *Notes
	remote *failingStore
	local  *persistence.MemoryStore
	owner  persistence.Owner
	tiers  persistence.Tiers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	remote := &failingStore{MemoryStore: persistence.NewMemoryStore()}
	local := persistence.NewMemoryStore()
	tiers := persistence.Tiers{Remote: remote, Local: local, Logger: zaptest.NewLogger(t)}
	return &fixture{
		notes:  New(tiers),
		remote: remote,
		local:  local,
		owner:  persistence.Owner{ID: "usr_test"},
		tiers:  tiers,
	}
}

func (f *fixture) page(t *testing.T, title string) types.Page {
	t.Helper()
	p, err := f.notes.CreatePage(context.Background(), f.owner, title, "", nil)
	require.NoError(t, err)
	return p
}

func (f *fixture) block(t *testing.T, pageID id.PageID, content string) types.Block {
	t.Helper()
	b, err := f.notes.AddBlock(context.Background(), f.owner, pageID, types.BlockText, content, nil)
	require.NoError(t, err)
	return b
}

// assertIntegrity checks that every listed block exists and belongs to its page
func (f *fixture) assertIntegrity(t *testing.T) {
	t.Helper()
	seen := map[id.BlockID]id.PageID{}
	for _, p := range f.notes.Pages(f.owner.ID) {
		for _, bid := range p.BlockIDs {
			b, ok := f.notes.blocks.Get(f.owner.ID, string(bid))
			require.True(t, ok, "page %s lists missing block %s", p.ID, bid)
			assert.Equal(t, p.ID, b.PageID)
			_, dup := seen[bid]
			assert.False(t, dup, "block %s listed twice", bid)
			seen[bid] = p.ID
		}
	}
}

func TestCreatePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.notes.CreatePage(ctx, f.owner, "  ", "📘", nil)
	require.NoError(t, err)
	assert.True(t, id.HasPrefix(string(p.ID), id.PagePrefix))
	assert.Equal(t, DefaultTitle, p.Title)
	assert.Equal(t, "📘", p.Icon)
	assert.NotNil(t, p.BlockIDs)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, persistence.TierRemote, f.notes.pages.Tier(f.owner.ID, string(p.ID)))

	child, err := f.notes.CreatePage(ctx, f.owner, "Child", "", &p.ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, p.ID, *child.ParentID)

	missing := id.PageID("pg_missing")
	_, err = f.notes.CreatePage(ctx, f.owner, "Orphan", "", &missing)
	assert.ErrorIs(t, err, ErrInvalidParent)
}

func TestCreatePageWithRemoteDown(t *testing.T) {
	f := newFixture(t)
	f.remote.fail.Store(true)

	p, err := f.notes.CreatePage(context.Background(), f.owner, "Biology", "🧬", nil)
	require.NoError(t, err)

	got, err := f.notes.Page(f.owner.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Biology", got.Title)
	assert.Equal(t, "🧬", got.Icon)
	assert.Equal(t, p.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())

	recs, err := f.local.List(context.Background(), PageKind, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, string(p.ID), recs[0].ID)
	assert.Equal(t, persistence.TierLocal, f.notes.pages.Tier(f.owner.ID, string(p.ID)))
}

func TestAddBlockOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.page(t, "Notes")

	a := f.block(t, p.ID, "a")
	c := f.block(t, p.ID, "c")
	zero := 1
	b, err := f.notes.AddBlock(ctx, f.owner, p.ID, types.BlockText, "b", &zero)
	require.NoError(t, err)
	first := 0
	h, err := f.notes.AddBlock(ctx, f.owner, p.ID, types.BlockH1, "Title", &first)
	require.NoError(t, err)
	far := 99
	z, err := f.notes.AddBlock(ctx, f.owner, p.ID, types.BlockText, "z", &far)
	require.NoError(t, err)

	got, err := f.notes.Page(f.owner.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []id.BlockID{h.ID, a.ID, b.ID, c.ID, z.ID}, got.BlockIDs)

	blocks, err := f.notes.Blocks(f.owner.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 5)
	assert.Equal(t, "Title", blocks[0].Content)
	assert.Equal(t, p.ID, blocks[0].PageID)
	f.assertIntegrity(t)
}

func TestAddBlockErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.page(t, "Notes")

	_, err := f.notes.AddBlock(ctx, f.owner, p.ID, types.BlockType("table"), "", nil)
	assert.ErrorIs(t, err, ErrInvalidBlockType)

	_, err = f.notes.AddBlock(ctx, f.owner, "pg_missing", types.BlockText, "", nil)
	assert.ErrorIs(t, err, ErrPageNotFound)
	assert.Empty(t, f.notes.AllBlocks(f.owner.ID))
}

func TestTodoBlockProperties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.page(t, "Tasks")

	b, err := f.notes.AddBlock(ctx, f.owner, p.ID, types.BlockTodo, "read chapter 3", nil)
	require.NoError(t, err)
	assert.Equal(t, false, b.Properties["checked"])

	b, err = f.notes.UpdateBlock(ctx, f.owner, b.ID, BlockUpdate{Properties: map[string]any{"checked": true}})
	require.NoError(t, err)
	assert.Equal(t, true, b.Properties["checked"])
}

func TestContentIsSanitized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.page(t, "Notes")

	b, err := f.notes.AddBlock(ctx, f.owner, p.ID, types.BlockText, `<b>ok</b><script>alert(1)</script>`, nil)
	require.NoError(t, err)
	assert.Contains(t, b.Content, "<b>ok</b>")
	assert.NotContains(t, b.Content, "script")

	code, err := f.notes.AddBlock(ctx, f.owner, p.ID, types.BlockCode, "if a < b {}", nil)
	require.NoError(t, err)
	assert.Equal(t, "if a < b {}", code.Content)

	text, err := f.notes.PlainText(f.owner.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Notes\nok\nif a < b {}", text)
}

func TestUpdateBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.page(t, "Notes")
	b := f.block(t, p.ID, "draft")

	h2 := types.BlockH2
	content := "Final"
	got, err := f.notes.UpdateBlock(ctx, f.owner, b.ID, BlockUpdate{Type: &h2, Content: &content})
	require.NoError(t, err)
	assert.Equal(t, types.BlockH2, got.Type)
	assert.Equal(t, "Final", got.Content)

	bad := types.BlockType("nope")
	_, err = f.notes.UpdateBlock(ctx, f.owner, b.ID, BlockUpdate{Type: &bad})
	assert.ErrorIs(t, err, ErrInvalidBlockType)

	_, err = f.notes.UpdateBlock(ctx, f.owner, "blk_missing", BlockUpdate{Content: &content})
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestDeleteBlockRemovesReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.page(t, "Notes")
	a := f.block(t, p.ID, "a")
	b := f.block(t, p.ID, "b")

	require.NoError(t, f.notes.DeleteBlock(ctx, f.owner, a.ID))

	got, _ := f.notes.Page(f.owner.ID, p.ID)
	assert.Equal(t, []id.BlockID{b.ID}, got.BlockIDs)
	_, ok := f.notes.blocks.Get(f.owner.ID, string(a.ID))
	assert.False(t, ok)

	assert.ErrorIs(t, f.notes.DeleteBlock(ctx, f.owner, a.ID), ErrBlockNotFound)
	f.assertIntegrity(t)
}

func TestDeletePageCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.page(t, "Root")
	mid, err := f.notes.CreatePage(ctx, f.owner, "Mid", "", &root.ID)
	require.NoError(t, err)
	leaf, err := f.notes.CreatePage(ctx, f.owner, "Leaf", "", &mid.ID)
	require.NoError(t, err)
	b1 := f.block(t, mid.ID, "one")
	f.block(t, mid.ID, "two")
	kept := f.block(t, leaf.ID, "leaf block")

	require.NoError(t, f.notes.DeletePage(ctx, f.owner, mid.ID))

	_, err = f.notes.Page(f.owner.ID, mid.ID)
	assert.ErrorIs(t, err, ErrPageNotFound)
	_, ok := f.notes.blocks.Get(f.owner.ID, string(b1.ID))
	assert.False(t, ok, "blocks are deleted with their page")
	assert.Len(t, f.notes.AllBlocks(f.owner.ID), 1)
	assert.Equal(t, kept.ID, f.notes.AllBlocks(f.owner.ID)[0].ID)

	got, err := f.notes.Page(f.owner.ID, leaf.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, root.ID, *got.ParentID, "children move up to the grandparent")

	remoteBlocks, err := f.remote.List(ctx, BlockKind, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, remoteBlocks, 1)

	assert.ErrorIs(t, f.notes.DeletePage(ctx, f.owner, mid.ID), ErrPageNotFound)
	f.assertIntegrity(t)
}

func TestMoveBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.page(t, "Notes")
	a := f.block(t, p.ID, "a")
	b := f.block(t, p.ID, "b")
	c := f.block(t, p.ID, "c")

	got, err := f.notes.MoveBlock(ctx, f.owner, p.ID, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []id.BlockID{c.ID, a.ID, b.ID}, got.BlockIDs)

	got, err = f.notes.MoveBlock(ctx, f.owner, p.ID, c.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []id.BlockID{a.ID, b.ID, c.ID}, got.BlockIDs)

	other := f.page(t, "Other")
	x := f.block(t, other.ID, "x")
	_, err = f.notes.MoveBlock(ctx, f.owner, p.ID, x.ID, 0)
	assert.ErrorIs(t, err, ErrBlockNotFound)

	_, err = f.notes.MoveBlock(ctx, f.owner, "pg_missing", x.ID, 0)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestUpdatePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.page(t, "A")
	b, err := f.notes.CreatePage(ctx, f.owner, "B", "", &a.ID)
	require.NoError(t, err)

	title := "Renamed"
	got, err := f.notes.UpdatePage(ctx, f.owner, a.ID, PageUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	_, err = f.notes.UpdatePage(ctx, f.owner, a.ID, PageUpdate{ParentID: &b.ID})
	assert.ErrorIs(t, err, ErrInvalidParent, "a page cannot move under its descendant")

	root := id.PageID("")
	got, err = f.notes.UpdatePage(ctx, f.owner, b.ID, PageUpdate{ParentID: &root})
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	_, err = f.notes.UpdatePage(ctx, f.owner, "pg_missing", PageUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestIntegrityUnderRandomEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	var pages []id.PageID
	var blocks []id.BlockID
	for i := 0; i < 300; i++ {
		f.remote.fail.Store(rng.Intn(4) == 0)

		switch op := rng.Intn(6); {
		case op == 0 || len(pages) == 0:
			p, err := f.notes.CreatePage(ctx, f.owner, "p", "", nil)
			require.NoError(t, err)
			pages = append(pages, p.ID)
		case op <= 2:
			idx := rng.Intn(5)
			b, err := f.notes.AddBlock(ctx, f.owner, pages[rng.Intn(len(pages))], types.BlockText, "x", &idx)
			if err == nil {
				blocks = append(blocks, b.ID)
			}
		case op == 3 && len(blocks) > 0:
			_ = f.notes.DeleteBlock(ctx, f.owner, blocks[rng.Intn(len(blocks))])
		case op == 4 && len(blocks) > 0:
			bid := blocks[rng.Intn(len(blocks))]
			if b, ok := f.notes.blocks.Get(f.owner.ID, string(bid)); ok {
				_, _ = f.notes.MoveBlock(ctx, f.owner, b.PageID, bid, rng.Intn(5))
			}
		case op == 5:
			_ = f.notes.DeletePage(ctx, f.owner, pages[rng.Intn(len(pages))])
		}
		f.assertIntegrity(t)
	}
}

func TestLoadAfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.page(t, "Persisted")
	f.block(t, p.ID, "hello")

	f.remote.fail.Store(true)
	pending := f.page(t, "Offline")

	restarted := New(f.tiers)
	f.remote.fail.Store(false)
	require.NoError(t, restarted.Load(ctx, f.owner))

	assert.Len(t, restarted.Pages(f.owner.ID), 2)
	blocks, err := restarted.Blocks(f.owner.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "hello", blocks[0].Content)

	n, err := restarted.Reconcile(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	pages, _ := restarted.Gateways()
	assert.Equal(t, persistence.TierRemote, pages.Tier(f.owner.ID, string(pending.ID)))
}

func TestAdoptSkipsOrphanBlocks(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	p := types.Page{ID: "pg_01HZZZZZZZZZZZZZZZZZZZZZZZ", Title: "Snap", BlockIDs: []id.BlockID{"blk_1"}}
	blocks := []types.Block{
		{ID: "blk_1", PageID: p.ID, Type: types.BlockText, Content: "kept"},
		{ID: "blk_2", PageID: "pg_gone", Type: types.BlockText, Content: "orphan"},
	}

	assert.Equal(t, 2, f.notes.Adopt(f.owner, []types.Page{p}, blocks, now))
	assert.Len(t, f.notes.AllBlocks(f.owner.ID), 1)
	f.assertIntegrity(t)
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := "# Enzymes\n\nProteins that speed up reactions.\n\n- [x] Lock and key\n- Induced fit\n"
	page, blocks, err := f.notes.Import(ctx, f.owner, []byte(doc), "", nil)
	require.NoError(t, err)

	assert.Equal(t, "Enzymes", page.Title)
	require.Len(t, blocks, 4)
	require.Len(t, page.BlockIDs, 4)
	for i, b := range blocks {
		assert.Equal(t, b.ID, page.BlockIDs[i])
		assert.Equal(t, page.ID, b.PageID)
	}
	assert.Equal(t, types.BlockTodo, blocks[2].Type)
	assert.Equal(t, true, blocks[2].Properties["checked"])
	assert.Equal(t, types.BlockBullet, blocks[3].Type)

	stored, err := f.notes.Blocks(f.owner.ID, page.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestImportTitleOverrideAndParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, err := f.notes.CreatePage(ctx, f.owner, "Biology", "", nil)
	require.NoError(t, err)

	page, _, err := f.notes.Import(ctx, f.owner, []byte("just some text"), "Scratch", &parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Scratch", page.Title)
	require.NotNil(t, page.ParentID)
	assert.Equal(t, parent.ID, *page.ParentID)
}

func TestImportRejectsBinary(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.notes.Import(context.Background(), f.owner, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}, "", nil)
	assert.Error(t, err)
	assert.Empty(t, f.notes.Pages(f.owner.ID))
}
