// Package panels holds the panel registry and the named layout presets.
//
// The registry assigns every PanelType a default geometry and visibility.
// Presets are complete layouts: each one assigns every registered panel.
// Both are compiled into the binary from presets.yaml and validated when
// the package initialises; an incomplete preset is a build defect and
// panics at startup.
//
// Preset lookup is permissive. An unknown name resolves to the default
// preset (Studio) instead of failing, since layout choice is cosmetic.
//
// Example Usage:
//
//	p := panels.Preset("cinema")   // case-insensitive
//	_ = panels.Preset("nope")      // falls back to Studio
//	st := panels.DefaultPanelState(types.PanelNotes)
package panels
