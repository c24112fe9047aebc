package watcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/logging"
)

// MaxBufferFileSize bounds how much of a backing file is loaded.
const MaxBufferFileSize = 1 << 20

// BufferSink receives buffer contents read from disk.
type BufferSink interface {
	SetMarkup(ctx context.Context, value string) error
	SetStyleConfig(ctx context.Context, value string) error
}

// BufferFiles names the files backing the editor buffers. Empty names
// are not watched.
type BufferFiles struct {
	Markup      string
	StyleConfig string
}

// BufferSync feeds external edits of the backing files into a sink.
type BufferSync struct {
	files    BufferFiles
	sink     BufferSink
	watcher  *FileWatcher
	logger   logging.Logger
	markup   string
	styleCfg string
}

// NewBufferSync prepares a watcher for the configured files.
func NewBufferSync(files BufferFiles, debounce time.Duration, sink BufferSink, logger logging.Logger) (*BufferSync, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	fw, err := NewFileWatcher(debounce, logger)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeInternalError, "failed to create file watcher")
	}

	s := &BufferSync{
		files:   files,
		sink:    sink,
		watcher: fw,
		logger:  logger.WithComponent("buffersync"),
	}
	if files.Markup != "" {
		s.markup = absClean(files.Markup)
	}
	if files.StyleConfig != "" {
		s.styleCfg = absClean(files.StyleConfig)
	}
	return s, nil
}

// Load reads both files and pushes their contents to the sink.
func (s *BufferSync) Load(ctx context.Context) error {
	if s.markup != "" {
		if err := s.push(ctx, s.markup); err != nil {
			return err
		}
	}
	if s.styleCfg != "" {
		if err := s.push(ctx, s.styleCfg); err != nil {
			return err
		}
	}
	return nil
}

// Start watches the files until ctx is done.
func (s *BufferSync) Start(ctx context.Context) error {
	for _, p := range []string{s.markup, s.styleCfg} {
		if p == "" {
			continue
		}
		if err := s.watcher.Watch(p); err != nil {
			return errors.WrapIO(err, errors.ErrCodeFileNotFound, "cannot watch "+p).WithFile(p)
		}
	}

	files := s.watcher.Files()
	if len(files) == 0 {
		return nil
	}
	s.logger.Info(ctx, "Watching buffer files", "paths", files)
	s.watcher.Start(ctx, s.handle)
	return nil
}

// Stop releases the underlying watcher.
func (s *BufferSync) Stop() error {
	return s.watcher.Stop()
}

func (s *BufferSync) handle(ctx context.Context, changes []Change) error {
	var firstErr error
	for _, c := range changes {
		if c.Kind == Removed {
			// Keep the buffer; a save-by-rename recreates the file.
			continue
		}
		if err := s.push(ctx, c.Path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *BufferSync) push(ctx context.Context, path string) error {
	data, err := readBounded(path)
	if err != nil {
		return err
	}

	s.logger.Debug(ctx, "Buffer file loaded", "path", path, "bytes", len(data))

	switch absClean(path) {
	case s.markup:
		return s.sink.SetMarkup(ctx, data)
	case s.styleCfg:
		return s.sink.SetStyleConfig(ctx, data)
	}
	return nil
}

func readBounded(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.WrapIO(err, errors.ErrCodeFileNotFound, "cannot read buffer file").WithFile(path)
	}
	if info.Size() > MaxBufferFileSize {
		return "", errors.NewValidationError(errors.ErrCodeInvalidPath,
			fmt.Sprintf("buffer file is larger than %d bytes", MaxBufferFileSize)).WithFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.WrapIO(err, errors.ErrCodeFileNotFound, "cannot read buffer file").WithFile(path)
	}
	return string(data), nil
}
