// Package watcher keeps editor buffers in sync with files on disk.
//
// A FileWatcher follows a fixed set of files. Each file is watched through
// its parent directory so editors that save by renaming a temporary file
// over the target are still noticed. Bursts of events are coalesced per
// path and delivered once the files have been quiet for the debounce
// delay.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/livepen/internal/logging"
	"github.com/conneroisu/livepen/internal/validation"
)

// Kind classifies a change to a watched file.
type Kind int

const (
	// Written covers creates and writes.
	Written Kind = iota
	// Removed covers removes and renames away from the path.
	Removed
)

func (k Kind) String() string {
	switch k {
	case Written:
		return "written"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is the last change seen for a path during one quiet period.
type Change struct {
	Path string
	Kind Kind
}

// ChangeHandler receives one debounced batch of changes.
type ChangeHandler func(ctx context.Context, changes []Change) error

// FileWatcher reports debounced changes to individual files.
type FileWatcher struct {
	fs     *fsnotify.Watcher
	delay  time.Duration
	logger logging.Logger

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
}

// NewFileWatcher creates a watcher that waits delay after the last event
// before delivering a batch.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &FileWatcher{
		fs:     fs,
		delay:  delay,
		logger: logger.WithComponent("watcher"),
		files:  make(map[string]bool),
		dirs:   make(map[string]bool),
	}, nil
}

// Watch adds an existing regular file.
func (fw *FileWatcher) Watch(path string) error {
	if err := validation.ValidatePath(path); err != nil {
		return err
	}

	abs := absClean(path)
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	dir := filepath.Dir(abs)
	if !fw.dirs[dir] {
		if err := fw.fs.Add(dir); err != nil {
			return err
		}
		fw.dirs[dir] = true
	}
	fw.files[abs] = true
	return nil
}

// Files returns the absolute paths being watched, sorted.
func (fw *FileWatcher) Files() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	files := make([]string, 0, len(fw.files))
	for f := range fw.files {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

// Start delivers batches to handler until ctx is done or Stop is called.
// Handler errors are logged.
func (fw *FileWatcher) Start(ctx context.Context, handler ChangeHandler) {
	changes := make(chan Change, 64)
	go fw.translate(ctx, changes)
	go debounce(ctx, changes, fw.delay, func(batch []Change) {
		if err := handler(ctx, batch); err != nil {
			fw.logger.Warn(ctx, err, "File change handler failed", "changes", len(batch))
		}
	})
}

// Stop closes the underlying fsnotify watcher.
func (fw *FileWatcher) Stop() error {
	return fw.fs.Close()
}

func (fw *FileWatcher) translate(ctx context.Context, out chan<- Change) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.fs.Events:
			if !ok {
				return
			}
			change, watched := fw.classify(ev)
			if !watched {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fw.fs.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

// classify maps an fsnotify event onto a Change for a watched file.
// Sibling files and attribute-only events are ignored.
func (fw *FileWatcher) classify(ev fsnotify.Event) (Change, bool) {
	path := absClean(ev.Name)

	fw.mu.Lock()
	watched := fw.files[path]
	fw.mu.Unlock()

	if !watched || ev.Op == fsnotify.Chmod {
		return Change{}, false
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return Change{Path: path, Kind: Removed}, true
	}
	return Change{Path: path, Kind: Written}, true
}

// debounce collects changes from in until delay passes without another
// one, then calls flush with the last change per path in first-seen order.
// It returns when ctx is done or in is closed; pending changes are dropped.
func debounce(ctx context.Context, in <-chan Change, delay time.Duration, flush func([]Change)) {
	var (
		order []string
		last  = make(map[string]Kind)
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-in:
			if !ok {
				return
			}
			if _, seen := last[c.Path]; !seen {
				order = append(order, c.Path)
			}
			last[c.Path] = c.Kind
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			batch := make([]Change, len(order))
			for i, p := range order {
				batch[i] = Change{Path: p, Kind: last[p]}
			}
			order = order[:0]
			clear(last)
			flush(batch)
		}
	}
}

func absClean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
