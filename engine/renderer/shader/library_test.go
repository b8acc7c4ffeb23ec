package shader

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryLoadsFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"mesh.wgsl": &fstest.MapFile{Data: []byte("fn vs_main() {}")},
	}
	lib := NewLibrary(fsys)

	src, err := lib.Load("mesh.wgsl")
	require.NoError(t, err)
	assert.Equal(t, "fn vs_main() {}", src)

	_, err = lib.Load("missing.wgsl")
	require.Error(t, err)
	assert.ErrorContains(t, err, "missing.wgsl")
}

func TestLibraryRegisterWinsOverFS(t *testing.T) {
	fsys := fstest.MapFS{
		"mesh.wgsl": &fstest.MapFile{Data: []byte("from disk")},
	}
	lib := NewLibrary(fsys)
	lib.Register("mesh.wgsl", "from code")

	src, err := lib.Load("mesh.wgsl")
	require.NoError(t, err)
	assert.Equal(t, "from code", src)
}

func TestLibraryWithoutFS(t *testing.T) {
	lib := NewLibrary(nil)
	lib.Register("inline", "fn main() {}")

	src, err := lib.Load("inline")
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", src)

	_, err = lib.Load("other")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown shader fragment")
}

func TestLibraryWatchInvalidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	lib := NewLibrary(os.DirFS(dir))
	t.Cleanup(func() { lib.Close() })

	src, err := lib.Load("mesh.wgsl")
	require.NoError(t, err)
	assert.Equal(t, "v1", src)

	changed := make(chan string, 8)
	require.NoError(t, lib.Watch(dir, func(name string) { changed <- name }))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	select {
	case name := <-changed:
		assert.Equal(t, "mesh.wgsl", name)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the edit")
	}

	assert.Eventually(t, func() bool {
		src, err := lib.Load("mesh.wgsl")
		return err == nil && src == "v2"
	}, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, lib.Generation(), uint64(1))
}
