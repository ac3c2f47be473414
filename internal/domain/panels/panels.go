package panels

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/goccy/go-yaml"
)

//go:embed presets.yaml
var presetsYAML []byte

// ErrIncompleteCatalog is returned when the registry or a preset misses a panel
var ErrIncompleteCatalog = errors.New("incomplete panel catalog")

type catalog struct {
	Default  string                                `yaml:"default"`
	Registry map[types.PanelType]types.PresetEntry `yaml:"registry"`
	Presets  []types.LayoutPreset                  `yaml:"presets"`
}

var (
	registry    map[types.PanelType]types.PresetEntry
	presets     map[string]types.LayoutPreset
	names       []string
	defaultName string
)

func init() {
	c, err := parseCatalog(presetsYAML)
	if err != nil {
		panic(fmt.Sprintf("panels: %v", err))
	}

	registry = c.Registry
	presets = make(map[string]types.LayoutPreset, len(c.Presets))
	for _, p := range c.Presets {
		presets[strings.ToLower(p.Name)] = p
		names = append(names, p.Name)
	}
	sort.Strings(names)
	defaultName = c.Default
}

// parseCatalog decodes and validates a registry + preset catalog
func parseCatalog(data []byte) (*catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}

	if err := checkComplete("registry", c.Registry); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(c.Presets))
	for _, p := range c.Presets {
		key := strings.ToLower(p.Name)
		if key == "" {
			return nil, fmt.Errorf("%w: preset without a name", ErrIncompleteCatalog)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		seen[key] = true

		if err := checkComplete("preset "+p.Name, p.Panels); err != nil {
			return nil, err
		}
	}

	if !seen[strings.ToLower(c.Default)] {
		return nil, fmt.Errorf("%w: default preset %q is not defined", ErrIncompleteCatalog, c.Default)
	}

	return &c, nil
}

func checkComplete(where string, entries map[types.PanelType]types.PresetEntry) error {
	for t := range entries {
		if !t.Valid() {
			return fmt.Errorf("%s: %w: %q", where, types.ErrUnknownPanel, t)
		}
	}
	for _, t := range types.AllPanels() {
		e, ok := entries[t]
		if !ok {
			return fmt.Errorf("%w: %s has no geometry for %q", ErrIncompleteCatalog, where, t)
		}
		if e.Width < 0 || e.Height < 0 {
			return fmt.Errorf("%s: negative size for %q", where, t)
		}
	}
	return nil
}

// DefaultPanelState returns the registry state of a panel with a zero z-index.
// Panics if t is not registered.
func DefaultPanelState(t types.PanelType) types.PanelState {
	e, ok := registry[t]
	if !ok {
		panic(fmt.Sprintf("panels: unregistered panel %q", t))
	}
	return types.PanelState{
		ID:       t,
		IsOpen:   e.IsOpen,
		Geometry: e.Geometry,
	}
}

// Lookup returns the named preset, matched case-insensitively
func Lookup(name string) (types.LayoutPreset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return types.LayoutPreset{}, false
	}
	return clone(p), true
}

// Preset returns the named preset or the default preset when name is unknown
func Preset(name string) types.LayoutPreset {
	if p, ok := Lookup(name); ok {
		return p
	}
	return Default()
}

// Default returns the default preset
func Default() types.LayoutPreset {
	return clone(presets[strings.ToLower(defaultName)])
}

// DefaultName returns the name of the default preset
func DefaultName() string {
	return defaultName
}

// Names returns all preset names, sorted
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func clone(p types.LayoutPreset) types.LayoutPreset {
	out := types.LayoutPreset{
		Name:   p.Name,
		Panels: make(map[types.PanelType]types.PresetEntry, len(p.Panels)),
	}
	for k, v := range p.Panels {
		out.Panels[k] = v
	}
	return out
}
