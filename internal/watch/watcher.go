package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/labstack/gommon/log"
)

// File calls onChange after path is written, created or renamed into place.
// Bursts of events within debounce collapse into one call. The directory is
// watched rather than the file so editors that replace the file are seen.
type File struct {
	path     string
	debounce time.Duration
	onChange func()
	logger   *log.Logger
}

// NewFile prepares a watcher; call Run to start it.
func NewFile(path string, debounce time.Duration, logger *log.Logger, onChange func()) *File {
	return &File{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}
}

// Run blocks until ctx is done or the watcher fails.
func (f *File) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}
	f.logger.Infof("Watching %s for changes", f.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			f.logger.Debugf("Source event: %s", event)
			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				timer.Reset(f.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			f.onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warnf("Watcher error: %v", err)
		}
	}
}
