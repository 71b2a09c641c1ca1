package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/changelens/internal/logger"
)

// DefaultDebounce is the quiet period before a batch of events is emitted.
const DefaultDebounce = 2 * time.Second

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("filesystem: watcher closed")

// Watcher reports batches of changed paths under a folder.
// Bursts of events are coalesced until the folder is quiet for the
// debounce period.
type Watcher struct {
	root     string
	debounce time.Duration

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

// NewWatcher creates a watcher for root. A zero debounce uses DefaultDebounce.
func NewWatcher(root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{root: root, debounce: debounce}
}

// Watch starts watching root and its sub-folders. Each value received is
// the sorted set of paths touched since the previous batch. The channel is
// closed when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan []string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWatcherClosed
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := addRecursive(fsw, w.root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.root, err)
	}
	w.watchers = append(w.watchers, fsw)

	out := make(chan []string, 1)
	go w.loop(ctx, fsw, out)
	return out, nil
}

// Close stops every active watch. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	var errs []error
	for _, fsw := range w.watchers {
		errs = append(errs, fsw.Close())
	}
	w.watchers = nil
	return errors.Join(errs...)
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- []string) {
	defer close(out)
	defer fsw.Close()

	pending := make(map[string]struct{})
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(fsw, event) {
				continue
			}
			pending[event.Name] = struct{}{}
			fire = time.After(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("Watch error under %s: %v", w.root, err)

		case <-fire:
			fire = nil
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			clear(pending)

			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// relevant filters hidden paths and permission-only events, and starts
// watching directories created after Watch was called.
func (w *Watcher) relevant(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if rel, err := filepath.Rel(w.root, event.Name); err == nil && isHidden(rel) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(fsw, event.Name); err != nil {
				logger.Warn("Cannot watch %s: %v", event.Name, err)
			}
		}
	}
	return true
}

// addRecursive watches dir and every non-hidden directory below it.
func addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
