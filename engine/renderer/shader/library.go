// library.go holds the named WGSL fragment store. Materials load their
// templated source through a Library so fragments can come from embedded
// files in release builds and from a watched directory during development,
// where edits invalidate the cache and notify the owner to rebuild.
package shader

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/calder-gfx/calder/common"
)

// Library caches named WGSL fragments loaded from a file system. An
// optional watcher invalidates edited fragments and bumps a generation
// counter so callers can cheaply detect that anything changed.
type Library struct {
	mu         sync.RWMutex
	fsys       fs.FS
	fragments  map[string]string
	generation uint64

	watcher  *fsnotify.Watcher
	onChange func(name string)
}

// NewLibrary creates a fragment library over the given file system. A nil
// fsys is valid for libraries filled purely via Register.
//
// Parameters:
//   - fsys: source of fragment files, keyed by path
//
// Returns:
//   - *Library: the empty library
func NewLibrary(fsys fs.FS) *Library {
	return &Library{
		fsys:      fsys,
		fragments: make(map[string]string),
	}
}

// Register stores a fragment under a name, replacing any cached content.
//
// Parameters:
//   - name: fragment name
//   - source: templated WGSL text
func (l *Library) Register(name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fragments[name] = source
}

// Load returns the named fragment, reading it from the file system on a
// cache miss.
//
// Parameters:
//   - name: fragment name, which doubles as the file path
//
// Returns:
//   - string: the fragment text
//   - error: unknown fragment or read failure
func (l *Library) Load(name string) (string, error) {
	l.mu.RLock()
	source, ok := l.fragments[name]
	l.mu.RUnlock()
	if ok {
		return source, nil
	}
	if l.fsys == nil {
		return "", fmt.Errorf("unknown shader fragment %q", name)
	}
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return "", fmt.Errorf("load shader fragment %q: %w", name, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fragments[name] = string(data)
	return string(data), nil
}

// Generation returns a counter that advances whenever a watched fragment
// changes on disk.
func (l *Library) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.generation
}

// Watch starts watching a directory for fragment edits. A created or
// written file invalidates its cache entry, bumps the generation and
// invokes onChange with the fragment name relative to dir.
//
// Parameters:
//   - dir: directory to watch, non-recursively
//   - onChange: callback run on the watcher goroutine, may be nil
//
// Returns:
//   - error: watcher creation or registration failure
func (l *Library) Watch(dir string, onChange func(name string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create shader watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch shader dir %q: %w", dir, err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.onChange = onChange
	l.mu.Unlock()

	go l.run(dir, watcher)
	return nil
}

func (l *Library) run(dir string, watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name, err := filepath.Rel(dir, event.Name)
			if err != nil {
				name = filepath.Base(event.Name)
			}
			l.invalidate(name)
			common.LogDebug("shader fragment %q changed on disk", name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			common.LogWarn("shader watcher: %v", err)
		}
	}
}

func (l *Library) invalidate(name string) {
	l.mu.Lock()
	delete(l.fragments, name)
	l.generation++
	onChange := l.onChange
	l.mu.Unlock()
	if onChange != nil {
		onChange(name)
	}
}

// Close stops the watcher, if one is running.
//
// Returns:
//   - error: watcher shutdown failure
func (l *Library) Close() error {
	l.mu.Lock()
	watcher := l.watcher
	l.watcher = nil
	l.mu.Unlock()
	if watcher == nil {
		return nil
	}
	return watcher.Close()
}
