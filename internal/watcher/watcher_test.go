package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "written", Written.String())
	assert.Equal(t, "removed", Removed.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func collect(ctx context.Context, in <-chan Change, delay time.Duration) <-chan []Change {
	out := make(chan []Change, 4)
	go debounce(ctx, in, delay, func(batch []Change) { out <- batch })
	return out
}

func TestDebounceGroupsBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Change)
	out := collect(ctx, in, 50*time.Millisecond)

	in <- Change{Path: "a", Kind: Removed}
	in <- Change{Path: "b", Kind: Written}
	in <- Change{Path: "a", Kind: Written}

	select {
	case batch := <-out:
		assert.Equal(t, []Change{{Path: "a", Kind: Written}, {Path: "b", Kind: Written}}, batch)
	case <-time.After(time.Second):
		t.Fatal("debounce did not flush")
	}

	select {
	case extra := <-out:
		t.Fatalf("unexpected second flush: %v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebounceSeparateQuietPeriods(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Change)
	out := collect(ctx, in, 20*time.Millisecond)

	in <- Change{Path: "a"}
	first := <-out
	in <- Change{Path: "a", Kind: Removed}
	second := <-out

	assert.Equal(t, []Change{{Path: "a", Kind: Written}}, first)
	assert.Equal(t, []Change{{Path: "a", Kind: Removed}}, second)
}

func TestDebounceStopsOnClose(t *testing.T) {
	in := make(chan Change)
	done := make(chan struct{})
	go func() {
		debounce(context.Background(), in, time.Hour, func([]Change) {})
		close(done)
	}()

	in <- Change{Path: "a"}
	close(in)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounce did not return")
	}
}

func TestFileWatcherWatch(t *testing.T) {
	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	dir := t.TempDir()
	file := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	assert.NoError(t, fw.Watch(file))
	assert.NoError(t, fw.Watch(filepath.Join(dir, ".", "page.html")))
	assert.Error(t, fw.Watch(dir))
	assert.Error(t, fw.Watch(filepath.Join(dir, "missing.html")))
	assert.Error(t, fw.Watch("../outside.html"))

	assert.Equal(t, []string{file}, fw.Files())
}

func TestFileWatcherReportsWatchedFilesOnly(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	fw, err := NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()
	require.NoError(t, fw.Watch(file))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []Change, 8)
	fw.Start(ctx, func(_ context.Context, changes []Change) error {
		batches <- changes
		return nil
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.html"), []byte("y"), 0o600))
	require.NoError(t, os.WriteFile(file, []byte("z"), 0o600))

	select {
	case batch := <-batches:
		require.NotEmpty(t, batch)
		for _, c := range batch {
			assert.Equal(t, file, c.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}

// recordingSink collects values pushed by BufferSync.
type recordingSink struct {
	mu      sync.Mutex
	markup  []string
	configs []string
}

func (r *recordingSink) SetMarkup(_ context.Context, v string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markup = append(r.markup, v)
	return nil
}

func (r *recordingSink) SetStyleConfig(_ context.Context, v string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, v)
	return nil
}

func (r *recordingSink) last() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var m, c string
	if len(r.markup) > 0 {
		m = r.markup[len(r.markup)-1]
	}
	if len(r.configs) > 0 {
		c = r.configs[len(r.configs)-1]
	}
	return m, c
}

func TestBufferSyncLoadAndWatch(t *testing.T) {
	dir := t.TempDir()
	markup := filepath.Join(dir, "page.html")
	cfg := filepath.Join(dir, "tailwind.config.js")
	require.NoError(t, os.WriteFile(markup, []byte("<p>one</p>"), 0o600))
	require.NoError(t, os.WriteFile(cfg, []byte("module.exports = {}"), 0o600))

	sink := &recordingSink{}
	s, err := NewBufferSync(BufferFiles{Markup: markup, StyleConfig: cfg}, 30*time.Millisecond, sink, nil)
	require.NoError(t, err)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Load(ctx))
	m, c := sink.last()
	assert.Equal(t, "<p>one</p>", m)
	assert.Equal(t, "module.exports = {}", c)

	require.NoError(t, s.Start(ctx))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(markup, []byte("<p>two</p>"), 0o600))
	require.Eventually(t, func() bool {
		m, _ := sink.last()
		return m == "<p>two</p>"
	}, 2*time.Second, 10*time.Millisecond)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	_, c = sink.last()
	assert.Equal(t, "module.exports = {}", c)
}

func TestBufferSyncMissingFile(t *testing.T) {
	sink := &recordingSink{}
	s, err := NewBufferSync(BufferFiles{Markup: filepath.Join(t.TempDir(), "nope.html")}, 10*time.Millisecond, sink, nil)
	require.NoError(t, err)
	defer s.Stop()

	assert.Error(t, s.Load(context.Background()))
}

func TestBufferSyncRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.html")
	require.NoError(t, os.WriteFile(path, make([]byte, MaxBufferFileSize+1), 0o600))

	s, err := NewBufferSync(BufferFiles{Markup: path}, 10*time.Millisecond, &recordingSink{}, nil)
	require.NoError(t, err)
	defer s.Stop()

	assert.Error(t, s.Load(context.Background()))
}

func TestBufferSyncNoFiles(t *testing.T) {
	s, err := NewBufferSync(BufferFiles{}, 10*time.Millisecond, &recordingSink{}, nil)
	require.NoError(t, err)
	defer s.Stop()

	assert.NoError(t, s.Load(context.Background()))
	assert.NoError(t, s.Start(context.Background()))
}
