package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Tier marks which store holds an entity's latest write
type Tier int

const (
	TierNone Tier = iota
	TierRemote
	TierLocal
)

func (t Tier) String() string {
	switch t {
	case TierRemote:
		return "remote"
	case TierLocal:
		return "local"
	default:
		return "none"
	}
}

// Config configures a Gateway
type Config[T any] struct {
	// Kind names the entity kind in store keys, logs and metrics
	Kind string
	// ID extracts the entity id
	ID func(*T) string
	// Remote is the authoritative tier; nil keeps everything local
	Remote Store
	// Local is the durable fallback tier
	Local Store
	// Breaker guards remote calls; nil calls the remote directly
	Breaker *resilience.Breaker
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	// Now stamps mutations; defaults to time.Now
	Now func() time.Time
}

type entry struct {
	body      []byte
	tier      Tier
	deleted   bool
	updatedAt time.Time
}

type ownerState struct {
	guest   bool
	entries map[string]*entry
}

// Gateway is the write-through persistence gateway for one entity kind
type Gateway[T any] struct {
	kind    string
	idOf    func(*T) string
	remote  Store
	local   Store
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
	locks   KeyedMutex

	mu     sync.RWMutex
	owners map[string]*ownerState
}

// New creates a gateway. Kind, ID and Local are required.
func New[T any](cfg Config[T]) *Gateway[T] {
	if cfg.Kind == "" || cfg.ID == nil || cfg.Local == nil {
		panic("persistence: Kind, ID and Local are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gateway[T]{
		kind:    cfg.Kind,
		idOf:    cfg.ID,
		remote:  cfg.Remote,
		local:   cfg.Local,
		breaker: cfg.Breaker,
		logger:  cfg.Logger.With(zap.String("kind", cfg.Kind)),
		metrics: cfg.Metrics,
		now:     cfg.Now,
		owners:  make(map[string]*ownerState),
	}
}

// Kind returns the entity kind
func (g *Gateway[T]) Kind() string {
	return g.kind
}

// Create stores a new entity, or replaces one with the same id
func (g *Gateway[T]) Create(ctx context.Context, owner Owner, v T) (T, error) {
	id := g.idOf(&v)
	if id == "" {
		var zero T
		return zero, &Error{Op: "create", Kind: g.kind, Err: ErrMissingID}
	}
	body, err := sonic.Marshal(&v)
	if err != nil {
		var zero T
		return zero, &Error{Op: "create", Kind: g.kind, ID: id, Err: fmt.Errorf("encode: %w", err)}
	}

	unlock := g.locks.Lock(owner.ID + "/" + id)
	defer unlock()

	rec, prev := g.put(owner, id, body, false)
	return v, g.persist(ctx, "create", owner, rec, prev)
}

// Update applies patch to a copy of the stored entity and persists the result.
// An error from patch aborts the update and is returned unchanged.
func (g *Gateway[T]) Update(ctx context.Context, owner Owner, id string, patch func(*T) error) (T, error) {
	var zero T

	unlock := g.locks.Lock(owner.ID + "/" + id)
	defer unlock()

	v, ok := g.Get(owner.ID, id)
	if !ok {
		return zero, &Error{Op: "update", Kind: g.kind, ID: id, Err: ErrNotFound}
	}
	if err := patch(&v); err != nil {
		return zero, err
	}
	body, err := sonic.Marshal(&v)
	if err != nil {
		return zero, &Error{Op: "update", Kind: g.kind, ID: id, Err: fmt.Errorf("encode: %w", err)}
	}

	rec, prev := g.put(owner, id, body, false)
	return v, g.persist(ctx, "update", owner, rec, prev)
}

// Delete removes an entity
func (g *Gateway[T]) Delete(ctx context.Context, owner Owner, id string) error {
	unlock := g.locks.Lock(owner.ID + "/" + id)
	defer unlock()

	if _, ok := g.Get(owner.ID, id); !ok {
		return &Error{Op: "delete", Kind: g.kind, ID: id, Err: ErrNotFound}
	}

	rec, prev := g.put(owner, id, nil, true)
	return g.persist(ctx, "delete", owner, rec, prev)
}

// Get returns a copy of an entity
func (g *Gateway[T]) Get(ownerID, id string) (T, bool) {
	var v T

	g.mu.RLock()
	var body []byte
	if st, ok := g.owners[ownerID]; ok {
		if e, ok := st.entries[id]; ok && !e.deleted {
			body = e.body
		}
	}
	g.mu.RUnlock()

	if body == nil {
		return v, false
	}
	if err := sonic.Unmarshal(body, &v); err != nil {
		g.logger.Error("decode entity", zap.String("id", id), zap.Error(err))
		return v, false
	}
	return v, true
}

// List returns copies of every live entity of an owner, ordered by id
func (g *Gateway[T]) List(ownerID string) []T {
	g.mu.RLock()
	st, ok := g.owners[ownerID]
	if !ok {
		g.mu.RUnlock()
		return nil
	}
	ids := make([]string, 0, len(st.entries))
	bodies := make(map[string][]byte, len(st.entries))
	for id, e := range st.entries {
		if !e.deleted {
			ids = append(ids, id)
			bodies[id] = e.body
		}
	}
	g.mu.RUnlock()

	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		var v T
		if err := sonic.Unmarshal(bodies[id], &v); err != nil {
			g.logger.Error("decode entity", zap.String("id", id), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out
}

// Tier reports which store holds the latest write of an entity
func (g *Gateway[T]) Tier(ownerID, id string) Tier {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if st, ok := g.owners[ownerID]; ok {
		if e, ok := st.entries[id]; ok {
			return e.tier
		}
	}
	return TierNone
}

// Pending counts entities of an owner held only by the local tier
func (g *Gateway[T]) Pending(ownerID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st, ok := g.owners[ownerID]
	if !ok {
		return 0
	}
	n := 0
	for _, e := range st.entries {
		if e.tier == TierLocal {
			n++
		}
	}
	return n
}

// put records a mutation in memory and returns the record to persist with a
// copy of the entry it replaced, nil when the id was new
func (g *Gateway[T]) put(owner Owner, id string, body []byte, deleted bool) (Record, *entry) {
	now := g.now()

	g.mu.Lock()
	st := g.ownerLocked(owner)
	var prev *entry
	e, ok := st.entries[id]
	if ok {
		saved := *e
		prev = &saved
	} else {
		e = &entry{}
		st.entries[id] = e
	}
	e.body = body
	e.deleted = deleted
	e.updatedAt = now
	g.mu.Unlock()

	return Record{
		Kind:      g.kind,
		Owner:     owner.ID,
		ID:        id,
		Body:      body,
		Deleted:   deleted,
		UpdatedAt: now,
	}, prev
}

// restore puts back the entry a failed mutation replaced
func (g *Gateway[T]) restore(ownerID, id string, prev *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.owners[ownerID]
	if !ok {
		return
	}
	if prev == nil {
		delete(st.entries, id)
		return
	}
	st.entries[id] = prev
}

func (g *Gateway[T]) ownerLocked(owner Owner) *ownerState {
	st, ok := g.owners[owner.ID]
	if !ok {
		st = &ownerState{guest: owner.Guest, entries: make(map[string]*entry)}
		g.owners[owner.ID] = st
	}
	return st
}

// persist writes a mutation remote-first and falls back to the local tier.
// When neither tier takes it the mutation is rolled back to prev.
func (g *Gateway[T]) persist(ctx context.Context, op string, owner Owner, rec Record, prev *entry) error {
	if g.remote != nil && !owner.Guest {
		err := g.remoteWrite(ctx, op, rec)
		if err == nil {
			prev := g.settle(owner.ID, rec.ID, TierRemote, rec.Deleted)
			if prev == TierLocal {
				g.dropLocal(ctx, rec)
			}
			g.recordWrite(op, TierRemote)
			return nil
		}
		g.logger.Warn("remote write failed, using local tier",
			zap.String("op", op),
			zap.String("owner", rec.Owner),
			zap.String("id", rec.ID),
			zap.Error(err))
	}

	if err := g.local.Put(ctx, rec); err != nil {
		g.restore(owner.ID, rec.ID, prev)
		g.recordWrite(op, TierNone)
		g.logger.Error("local write failed",
			zap.String("op", op),
			zap.String("owner", rec.Owner),
			zap.String("id", rec.ID),
			zap.Error(err))
		return &Error{Op: op, Kind: g.kind, ID: rec.ID, Err: err}
	}
	g.settle(owner.ID, rec.ID, TierLocal, false)
	g.recordWrite(op, TierLocal)
	return nil
}

func (g *Gateway[T]) remoteWrite(ctx context.Context, op string, rec Record) error {
	start := time.Now()
	write := func(ctx context.Context) error {
		if rec.Deleted {
			return g.remote.Delete(ctx, rec.Kind, rec.Owner, rec.ID)
		}
		return g.remote.Put(ctx, rec)
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Do(ctx, write)
	} else {
		err = write(ctx)
	}
	if g.metrics != nil {
		g.metrics.ObserveRemote(op, time.Since(start))
	}
	return err
}

// settle sets the tier of an entity and returns the previous one. A delete
// confirmed by the remote tier drops the entity entirely.
func (g *Gateway[T]) settle(ownerID, id string, tier Tier, forget bool) Tier {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.owners[ownerID]
	if !ok {
		return TierNone
	}
	e, ok := st.entries[id]
	if !ok {
		return TierNone
	}
	prev := e.tier
	if forget {
		delete(st.entries, id)
	} else {
		e.tier = tier
	}
	if g.metrics != nil {
		n := 0
		for _, e := range st.entries {
			if e.tier == TierLocal {
				n++
			}
		}
		g.metrics.SetGatewayPending(g.kind, n)
	}
	return prev
}

func (g *Gateway[T]) dropLocal(ctx context.Context, rec Record) {
	if err := g.local.Delete(ctx, rec.Kind, rec.Owner, rec.ID); err != nil {
		g.logger.Warn("drop stale local record", zap.String("id", rec.ID), zap.Error(err))
	}
}

func (g *Gateway[T]) recordWrite(op string, tier Tier) {
	if g.metrics != nil {
		g.metrics.RecordGatewayWrite(g.kind, op, tier.String())
	}
}

// Load hydrates an owner's entities: the remote tier first, then pending
// local mutations on top. It fails only when neither tier can be read.
func (g *Gateway[T]) Load(ctx context.Context, owner Owner) error {
	entries := make(map[string]*entry)

	var remoteErr error
	if g.remote != nil && !owner.Guest {
		list := func(ctx context.Context) ([]Record, error) {
			return g.remote.List(ctx, g.kind, owner.ID)
		}
		var recs []Record
		if g.breaker != nil {
			recs, remoteErr = resilience.Call(ctx, g.breaker, list)
		} else {
			recs, remoteErr = list(ctx)
		}
		if remoteErr != nil {
			g.logger.Warn("remote load failed, using local tier",
				zap.String("owner", owner.ID), zap.Error(remoteErr))
		}
		for _, r := range recs {
			entries[r.ID] = &entry{body: r.Body, tier: TierRemote, updatedAt: r.UpdatedAt}
		}
	}

	pending, err := g.local.List(ctx, g.kind, owner.ID)
	if err != nil {
		if remoteErr != nil || g.remote == nil || owner.Guest {
			return &Error{Op: "load", Kind: g.kind, Err: errors.Join(remoteErr, err)}
		}
		g.logger.Warn("local load failed", zap.String("owner", owner.ID), zap.Error(err))
	}
	for _, r := range pending {
		entries[r.ID] = &entry{body: r.Body, tier: TierLocal, deleted: r.Deleted, updatedAt: r.UpdatedAt}
	}

	g.mu.Lock()
	g.owners[owner.ID] = &ownerState{guest: owner.Guest, entries: entries}
	g.mu.Unlock()
	return nil
}

// Adopt inserts entities recovered from elsewhere (a local snapshot) that the
// gateway does not know yet. They are marked TierLocal so Reconcile pushes them.
func (g *Gateway[T]) Adopt(owner Owner, items []T, at time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.ownerLocked(owner)
	n := 0
	for i := range items {
		id := g.idOf(&items[i])
		if id == "" {
			continue
		}
		if _, ok := st.entries[id]; ok {
			continue
		}
		body, err := sonic.Marshal(&items[i])
		if err != nil {
			g.logger.Error("encode adopted entity", zap.String("id", id), zap.Error(err))
			continue
		}
		st.entries[id] = &entry{body: body, tier: TierLocal, updatedAt: at}
		n++
	}
	return n
}

// Forget drops an owner's entities from memory
func (g *Gateway[T]) Forget(ownerID string) {
	g.mu.Lock()
	delete(g.owners, ownerID)
	g.mu.Unlock()
}

// Reconcile replays an owner's local-only entities to the remote tier.
// It stops at the first remote failure and returns how many were replayed.
func (g *Gateway[T]) Reconcile(ctx context.Context, ownerID string) (int, error) {
	if g.remote == nil {
		return 0, nil
	}

	g.mu.RLock()
	st, ok := g.owners[ownerID]
	if !ok || st.guest {
		g.mu.RUnlock()
		return 0, nil
	}
	var ids []string
	for id, e := range st.entries {
		if e.tier == TierLocal {
			ids = append(ids, id)
		}
	}
	g.mu.RUnlock()
	sort.Strings(ids)

	replayed := 0
	for _, id := range ids {
		ok, err := g.replay(ctx, ownerID, id)
		if err != nil {
			if g.metrics != nil {
				g.metrics.RecordReconciled(g.kind, "failed")
			}
			return replayed, fmt.Errorf("reconcile %s %q: %w", g.kind, id, err)
		}
		if ok {
			replayed++
			if g.metrics != nil {
				g.metrics.RecordReconciled(g.kind, "replayed")
			}
		}
	}
	return replayed, nil
}

func (g *Gateway[T]) replay(ctx context.Context, ownerID, id string) (bool, error) {
	unlock := g.locks.Lock(ownerID + "/" + id)
	defer unlock()

	g.mu.RLock()
	var rec Record
	pending := false
	if st, ok := g.owners[ownerID]; ok {
		if e, ok := st.entries[id]; ok && e.tier == TierLocal {
			pending = true
			rec = Record{
				Kind:      g.kind,
				Owner:     ownerID,
				ID:        id,
				Body:      e.body,
				Deleted:   e.deleted,
				UpdatedAt: e.updatedAt,
			}
		}
	}
	g.mu.RUnlock()

	// settled by a newer write since Reconcile took its list
	if !pending {
		return false, nil
	}

	if err := g.remoteWrite(ctx, "reconcile", rec); err != nil {
		return false, err
	}
	g.settle(ownerID, id, TierRemote, rec.Deleted)
	g.dropLocal(ctx, rec)
	return true, nil
}

// Tiers are the stores and guards shared by every gateway of a process
type Tiers struct {
	Remote  Store
	Local   Store
	Breaker *resilience.Breaker
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Now     func() time.Time
}

// NewFor creates a gateway for one entity kind over shared tiers
func NewFor[T any](t Tiers, kind string, idOf func(*T) string) *Gateway[T] {
	return New(Config[T]{
		Kind:    kind,
		ID:      idOf,
		Remote:  t.Remote,
		Local:   t.Local,
		Breaker: t.Breaker,
		Logger:  t.Logger,
		Metrics: t.Metrics,
		Now:     t.Now,
	})
}
