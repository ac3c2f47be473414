package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	l := New("/var/lib/studydesk/")

	assert.Equal(t, "/var/lib/studydesk", l.Root)
	assert.Equal(t, "/var/lib/studydesk/local", l.Local())
	assert.Equal(t, "/var/lib/studydesk/remote.db", l.RemoteDB())
	assert.Equal(t, "/var/lib/studydesk/exports", l.Exports())

	assert.Equal(t, ".", New("").Root)
}

func TestExport(t *testing.T) {
	l := New("/data")

	p, err := l.Export("usr_01", "toml")
	require.NoError(t, err)
	assert.Equal(t, "/data/exports/usr_01.toml", p)

	for _, bad := range []string{"", "../escape", "/abs", "a/b"} {
		_, err := l.Export(bad, "json")
		assert.Error(t, err, bad)
	}
}

func TestContains(t *testing.T) {
	l := New("/data")

	assert.True(t, l.Contains("/data/local/000001.vlog"))
	assert.True(t, l.Contains("/data"))
	assert.False(t, l.Contains("/data/../etc/passwd"))
	assert.False(t, l.Contains("/etc"))
	assert.True(t, l.Contains("/data/..hidden"))
}

func TestEnsure(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "studydesk"))
	require.NoError(t, l.Ensure())

	for _, dir := range l.StandardDirectories() {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
