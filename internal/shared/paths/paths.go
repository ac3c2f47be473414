package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Directory and file names under the data root
const (
	LocalDir   = "local"
	RemoteFile = "remote.db"
	ExportsDir = "exports"
)

// Layout resolves the files of one data directory
type Layout struct {
	Root string
}

// New returns the layout rooted at root
func New(root string) Layout {
	if root == "" {
		root = "."
	}
	return Layout{Root: filepath.Clean(root)}
}

// Local returns the local durable tier directory
func (l Layout) Local() string {
	return filepath.Join(l.Root, LocalDir)
}

// RemoteDB returns the sqlite file used when no remote URL is configured
func (l Layout) RemoteDB() string {
	return filepath.Join(l.Root, RemoteFile)
}

// Exports returns the directory settings exports are written to
func (l Layout) Exports() string {
	return filepath.Join(l.Root, ExportsDir)
}

// Export returns the export file of a user in the given format
func (l Layout) Export(userID, format string) (string, error) {
	if err := ValidateName(userID); err != nil {
		return "", err
	}
	return filepath.Join(l.Exports(), userID+"."+format), nil
}

// StandardDirectories returns all directories that should exist
func (l Layout) StandardDirectories() []string {
	return []string{l.Root, l.Local(), l.Exports()}
}

// Ensure creates the standard directories
func (l Layout) Ensure() error {
	for _, dir := range l.StandardDirectories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Contains reports whether path lies inside the data root
func (l Layout) Contains(path string) bool {
	rel, err := filepath.Rel(l.Root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && (len(rel) < 3 || rel[:3] != ".."+string(filepath.Separator))
}

// ValidateName checks if a name is safe for path construction
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("name cannot be an absolute path")
	}
	if filepath.Clean(name) != name || filepath.Base(name) != name {
		return fmt.Errorf("name contains invalid path components")
	}
	return nil
}
