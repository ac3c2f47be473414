// Package progress turns completed sessions into XP, levels and streaks,
// and keeps the user's notification feed.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

const (
	StatsKind        = "stats"
	NotificationKind = "notification"

	// XPPerLevel is the XP needed for each level after the first
	XPPerLevel = 500
	// RecentWindow bounds the focus durations kept for summaries
	RecentWindow = 50

	statsID = "stats"
	dayFmt  = "2006-01-02"
)

// ErrNotificationNotFound is returned for unknown notification ids
var ErrNotificationNotFound = errors.New("notification not found")

type statsRecord struct {
	ID string `json:"id"`
	types.Stats
}

// Summary describes focus session lengths in seconds
type Summary struct {
	Sessions  int     `json:"sessions"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Longest   int     `json:"longest"`
	TotalTime int     `json:"total_time"`
}

// Tracker owns stats and notifications for every user
type Tracker struct {
	stats         *persistence.Gateway[statsRecord]
	notifications *persistence.Gateway[types.Notification]
	logger        *zap.Logger
	now           func() time.Time
	loc           *time.Location
	locks         persistence.KeyedMutex
}

// Option configures a Tracker
type Option func(*Tracker)

// WithLocation sets the zone that decides calendar days for streaks
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

// New creates a tracker over the shared persistence tiers
func New(tiers persistence.Tiers, opts ...Option) *Tracker {
	logger := tiers.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := tiers.Now
	if now == nil {
		now = time.Now
	}
	t := &Tracker{
		stats: persistence.NewFor(tiers, StatsKind, func(s *statsRecord) string { return s.ID }),
		notifications: persistence.NewFor(tiers, NotificationKind, func(n *types.Notification) string {
			return string(n.ID)
		}),
		logger: logger.Named("progress"),
		now:    now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Level returns the level reached with xp
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return 1 + xp/XPPerLevel
}

// Load hydrates an owner's stats and notifications
func (t *Tracker) Load(ctx context.Context, owner persistence.Owner) error {
	return errors.Join(t.stats.Load(ctx, owner), t.notifications.Load(ctx, owner))
}

// Forget drops an owner from memory
func (t *Tracker) Forget(ownerID string) {
	t.stats.Forget(ownerID)
	t.notifications.Forget(ownerID)
}

// Reconcile replays pending writes for an owner
func (t *Tracker) Reconcile(ctx context.Context, ownerID string) (int, error) {
	a, err := t.stats.Reconcile(ctx, ownerID)
	if err != nil {
		return a, err
	}
	b, err := t.notifications.Reconcile(ctx, ownerID)
	return a + b, err
}

// Adopt restores stats and notifications from a snapshot if the owner has none
func (t *Tracker) Adopt(owner persistence.Owner, stats types.Stats, notes []types.Notification, at time.Time) int {
	n := 0
	if stats.XP > 0 || stats.SessionsCompleted > 0 {
		n += t.stats.Adopt(owner, []statsRecord{{ID: statsID, Stats: stats}}, at)
	}
	return n + t.notifications.Adopt(owner, notes, at)
}

// Stats returns an owner's stats
func (t *Tracker) Stats(ownerID string) types.Stats {
	rec, ok := t.stats.Get(ownerID, statsID)
	if !ok {
		return types.Stats{Level: 1}
	}
	return rec.Stats
}

// Record applies a workspace event. Only session_complete changes progress;
// it returns the follow-up events to broadcast.
func (t *Tracker) Record(ctx context.Context, owner persistence.Owner, ev types.Event) ([]types.Event, error) {
	if ev.Kind != types.EventSessionComplete {
		return nil, nil
	}

	unlock := t.locks.Lock(owner.ID)
	defer unlock()

	at := ev.At
	if at.IsZero() {
		at = t.now()
	}
	before := t.Stats(owner.ID)
	after := t.apply(before, ev, at)

	rec := statsRecord{ID: statsID, Stats: after}
	if _, err := t.stats.Create(ctx, owner, rec); err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}

	events := []types.Event{{Kind: types.EventStatsChanged, Data: after, At: at}}

	title, body := "Break over", "Ready for the next focus session?"
	if ev.Mode == types.ModeFocus {
		title = "Focus session complete"
		body = fmt.Sprintf("+%d XP · %d min focused", ev.AwardedXP, ev.Duration/60)
	}
	n, err := t.notifyLocked(ctx, owner, title, body, "session", at)
	if err != nil {
		return events, err
	}
	events = append(events, types.Event{Kind: types.EventNotification, Data: n, At: at})

	if after.Level > before.Level {
		n, err := t.notifyLocked(ctx, owner, fmt.Sprintf("Level %d reached", after.Level), "", "level", at)
		if err != nil {
			return events, err
		}
		events = append(events, types.Event{Kind: types.EventNotification, Data: n, At: at})
	}

	t.logger.Debug("session recorded",
		zap.String("owner", owner.ID),
		zap.String("mode", string(ev.Mode)),
		zap.Int("xp", after.XP),
		zap.Int("streak", after.Streak))
	return events, nil
}

func (t *Tracker) apply(s types.Stats, ev types.Event, at time.Time) types.Stats {
	s.XP += ev.AwardedXP
	s.Level = Level(s.XP)
	s.SessionsCompleted++

	switch ev.Mode {
	case types.ModeFocus:
		s.FocusSeconds += ev.Duration
		s.RecentFocus = append(append([]int(nil), s.RecentFocus...), ev.Duration)
		if len(s.RecentFocus) > RecentWindow {
			s.RecentFocus = s.RecentFocus[len(s.RecentFocus)-RecentWindow:]
		}
	case types.ModeBreak:
		s.BreakSeconds += ev.Duration
	}

	day := at.In(t.loc)
	today := day.Format(dayFmt)
	switch s.LastSessionDay {
	case today:
	case day.AddDate(0, 0, -1).Format(dayFmt):
		s.Streak++
	default:
		s.Streak = 1
	}
	s.LastSessionDay = today
	return s
}

// Summary computes focus length statistics over recent sessions
func (t *Tracker) Summary(ownerID string) Summary {
	s := t.Stats(ownerID)
	out := Summary{Sessions: len(s.RecentFocus), TotalTime: s.FocusSeconds}
	if len(s.RecentFocus) == 0 {
		return out
	}

	xs := make([]float64, len(s.RecentFocus))
	for i, d := range s.RecentFocus {
		xs[i] = float64(d)
		if d > out.Longest {
			out.Longest = d
		}
	}
	if len(xs) == 1 {
		out.Mean = xs[0]
		return out
	}
	out.Mean, out.StdDev = stat.MeanStdDev(xs, nil)
	return out
}

// Notify adds a notification to an owner's feed
func (t *Tracker) Notify(ctx context.Context, owner persistence.Owner, title, body, kind string) (types.Notification, error) {
	unlock := t.locks.Lock(owner.ID)
	defer unlock()
	return t.notifyLocked(ctx, owner, title, body, kind, t.now())
}

func (t *Tracker) notifyLocked(ctx context.Context, owner persistence.Owner, title, body, kind string, at time.Time) (types.Notification, error) {
	n := types.Notification{
		ID:        id.NewNotificationID(),
		Title:     title,
		Body:      body,
		Kind:      kind,
		CreatedAt: at,
	}
	return t.notifications.Create(ctx, owner, n)
}

// Notifications returns an owner's feed, newest first
func (t *Tracker) Notifications(ownerID string) []types.Notification {
	list := t.notifications.List(ownerID)
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list
}

// Unread counts unread notifications
func (t *Tracker) Unread(ownerID string) int {
	n := 0
	for _, x := range t.notifications.List(ownerID) {
		if !x.Read {
			n++
		}
	}
	return n
}

// MarkRead marks a notification as read
func (t *Tracker) MarkRead(ctx context.Context, owner persistence.Owner, nid id.NotificationID) (types.Notification, error) {
	n, err := t.notifications.Update(ctx, owner, string(nid), func(n *types.Notification) error {
		n.Read = true
		return nil
	})
	if errors.Is(err, persistence.ErrNotFound) {
		return types.Notification{}, ErrNotificationNotFound
	}
	return n, err
}
