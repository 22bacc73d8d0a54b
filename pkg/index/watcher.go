package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchedDirs are the FileStore areas whose edits invalidate the index.
var watchedDirs = []string{"goals", "archive"}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long the watcher waits after the last change before
	// rebuilding (default: 200ms).
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher rebuilds the index whenever goal documents under a FileStore root
// are created, edited, renamed or removed, so hand edits show up in queries.
// Bursts of changes are coalesced into one rebuild.
type Watcher struct {
	root     string
	rebuild  func(context.Context) error
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher prepares a watcher on root. rebuild is called after each burst
// of changes; it is expected to take the store lock itself.
func NewWatcher(root string, rebuild func(context.Context) error, opts WatcherOptions) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		root:     root,
		rebuild:  rebuild,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		fsw:      fsw,
	}, nil
}

// Run watches until ctx is done. The root itself is watched so that goal
// areas created after start are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("failed to create store root: %w", err)
	}
	if err := w.fsw.Add(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	for _, dir := range watchedDirs {
		w.addIfDir(filepath.Join(w.root, dir))
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := 0

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.isAreaDir(event.Name) && event.Has(fsnotify.Create) {
				w.addIfDir(event.Name)
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			pending++
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			w.logger.Debug("goal records changed, rebuilding index", "changes", pending)
			pending = 0
			if err := w.rebuild(ctx); err != nil {
				w.logger.Warn("index rebuild failed", "error", err)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) addIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("failed to watch directory", "path", path, "error", err)
	}
}

func (w *Watcher) isAreaDir(path string) bool {
	for _, dir := range watchedDirs {
		if path == filepath.Join(w.root, dir) {
			return true
		}
	}
	return false
}

// relevant reports whether path is a goal document in a watched area.
// Temporary files of in-progress writes are skipped.
func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, ".yaml") {
		return false
	}
	return w.isAreaDir(filepath.Dir(path))
}
