package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/panels"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// SettingsKind is the persisted entity kind of settings
const SettingsKind = "settings"

const settingsID = "settings"

// Settings bounds
const (
	MaxFocusMinutes = 180
	MaxBreakMinutes = 60
)

var (
	ErrInvalidSettings = errors.New("invalid settings")
	ErrUnknownFormat   = errors.New("unknown export format")
)

var themes = map[string]bool{"light": true, "dark": true, "system": true}

type settingsRecord struct {
	ID string `json:"id"`
	types.Settings
}

// ApplyPatch returns s with the patch applied, or ErrInvalidSettings
func ApplyPatch(s types.Settings, p types.SettingsPatch) (types.Settings, error) {
	if p.Theme != nil {
		theme := strings.ToLower(strings.TrimSpace(*p.Theme))
		if !themes[theme] {
			return s, fmt.Errorf("%w: theme %q", ErrInvalidSettings, *p.Theme)
		}
		s.Theme = theme
	}
	if p.Language != nil {
		lang := strings.TrimSpace(*p.Language)
		if lang == "" || len(lang) > 16 {
			return s, fmt.Errorf("%w: language %q", ErrInvalidSettings, *p.Language)
		}
		s.Language = lang
	}
	if p.FocusMinutes != nil {
		if *p.FocusMinutes < 1 || *p.FocusMinutes > MaxFocusMinutes {
			return s, fmt.Errorf("%w: focus_minutes must be 1-%d", ErrInvalidSettings, MaxFocusMinutes)
		}
		s.FocusMinutes = *p.FocusMinutes
	}
	if p.BreakMinutes != nil {
		if *p.BreakMinutes < 1 || *p.BreakMinutes > MaxBreakMinutes {
			return s, fmt.Errorf("%w: break_minutes must be 1-%d", ErrInvalidSettings, MaxBreakMinutes)
		}
		s.BreakMinutes = *p.BreakMinutes
	}
	if p.LockOnStart != nil {
		s.LockOnStart = *p.LockOnStart
	}
	if p.CompanionPanel != nil {
		if *p.CompanionPanel == "" {
			s.CompanionPanel = ""
		} else {
			t, err := types.ParsePanelType(*p.CompanionPanel)
			if err != nil {
				return s, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
			}
			s.CompanionPanel = t
		}
	}
	if p.DefaultPreset != nil {
		preset, ok := panels.Lookup(*p.DefaultPreset)
		if !ok {
			return s, fmt.Errorf("%w: unknown preset %q", ErrInvalidSettings, *p.DefaultPreset)
		}
		s.DefaultPreset = preset.Name
	}
	return s, nil
}

// UpdateSettings validates and persists a settings patch
func (m *Manager) UpdateSettings(ctx context.Context, w *Workspace, p types.SettingsPatch) (types.Settings, error) {
	owner := w.Owner()
	unlock := m.locks.Lock(owner.ID)
	defer unlock()

	next, err := ApplyPatch(w.Settings(), p)
	if err != nil {
		return types.Settings{}, err
	}
	if _, err := m.settings.Create(ctx, owner, settingsRecord{ID: settingsID, Settings: next}); err != nil {
		return types.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	w.setSettings(next)
	return next, nil
}

func (m *Manager) loadSettings(owner persistence.Owner) (types.Settings, bool) {
	rec, ok := m.settings.Get(owner.ID, settingsID)
	if !ok {
		return types.DefaultSettings(), false
	}
	return rec.Settings, true
}

// ExportSettings encodes settings as json, yaml or toml. It returns the
// encoded document and its content type.
func ExportSettings(s types.Settings, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", "json":
		data, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
		return data, "application/json", err
	case "yaml", "yml":
		data, err := yaml.Marshal(s)
		return data, "application/yaml", err
	case "toml":
		data, err := toml.Marshal(s)
		return data, "application/toml", err
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
