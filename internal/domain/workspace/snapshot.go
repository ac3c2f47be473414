package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// SnapshotVersion is bumped when the snapshot layout changes incompatibly
const SnapshotVersion = 1

// SnapshotStore keeps opaque snapshots in the local durable tier. A
// missing snapshot is reported with an error matching persistence.ErrNotFound.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, key string, data []byte) error
	LoadSnapshot(ctx context.Context, key string) ([]byte, error)
}

// Snapshot is a user's durable state as saved locally
type Snapshot struct {
	Version       int                  `json:"version"`
	Identity      types.Identity       `json:"identity"`
	Settings      types.Settings       `json:"settings"`
	Stats         types.Stats          `json:"stats"`
	Pages         []types.Page         `json:"pages"`
	Blocks        []types.Block        `json:"blocks"`
	Notifications []types.Notification `json:"notifications,omitempty"`
	SavedAt       time.Time            `json:"saved_at"`
}

// SnapshotKey returns the storage key of a user's snapshot
func SnapshotKey(userID string) string {
	return fmt.Sprintf("studydesk:v%d:%s", SnapshotVersion, userID)
}

// Capture builds the snapshot of a workspace
func (m *Manager) Capture(w *Workspace) Snapshot {
	ownerID := w.Owner().ID
	return Snapshot{
		Version:       SnapshotVersion,
		Identity:      w.Identity(),
		Settings:      w.Settings(),
		Stats:         m.progress.Stats(ownerID),
		Pages:         m.notes.Pages(ownerID),
		Blocks:        m.notes.AllBlocks(ownerID),
		Notifications: m.progress.Notifications(ownerID),
		SavedAt:       m.now(),
	}
}

// SaveSnapshot writes a workspace snapshot to the snapshot store
func (m *Manager) SaveSnapshot(ctx context.Context, w *Workspace) error {
	if m.snapshots == nil {
		return nil
	}
	snap := m.Capture(w)
	data, err := sonic.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotKey(string(snap.Identity.UserID))
	if err := m.snapshots.SaveSnapshot(ctx, key, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if m.metrics != nil {
		m.metrics.IncSnapshotsSaved()
	}
	m.logger.Debug("snapshot saved",
		zap.String("key", key),
		zap.Int("pages", len(snap.Pages)),
		zap.Int("blocks", len(snap.Blocks)))
	return nil
}

// loadSnapshot returns the user's snapshot; a missing or unreadable one is
// reported as absent
func (m *Manager) loadSnapshot(ctx context.Context, userID string) (Snapshot, bool) {
	if m.snapshots == nil {
		return Snapshot{}, false
	}
	key := SnapshotKey(userID)
	data, err := m.snapshots.LoadSnapshot(ctx, key)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			m.logger.Warn("snapshot unreadable", zap.String("key", key), zap.Error(err))
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		m.logger.Warn("snapshot corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return Snapshot{}, false
	}
	if snap.Version != SnapshotVersion || string(snap.Identity.UserID) != userID {
		m.logger.Warn("snapshot mismatch, ignoring",
			zap.String("key", key), zap.Int("version", snap.Version))
		return Snapshot{}, false
	}
	if m.metrics != nil {
		m.metrics.IncSnapshotsLoaded()
	}
	return snap, true
}
