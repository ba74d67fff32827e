package eval

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// watchedExts are the file types that can change an evaluation.
var watchedExts = map[string]bool{".txt": true, ".json": true, ".yaml": true, ".yml": true}

// WatchOptions configures Watch.
type WatchOptions struct {
	Debounce time.Duration
	Logger   *slog.Logger

	// Ignore, when set, drops events for paths it returns true for.
	Ignore func(path string) bool
}

// Watch calls fn once, then again each time the sample, gold or prediction
// files in dir change. Bursts of events are coalesced by the debounce window.
// Calls to fn never overlap: events that arrive while fn runs schedule another
// call after it returns. Watch blocks until ctx is done.
func Watch(ctx context.Context, dir string, opts WatchOptions, fn func(context.Context)) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fn(ctx)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, opts.Ignore) {
				continue
			}
			logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)

		case <-timer.C:
			logger.Info("samples changed, re-running evaluation", "dir", dir)
			fn(ctx)
		}
	}
}

func relevant(event fsnotify.Event, ignore func(string) bool) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	if !watchedExts[strings.ToLower(filepath.Ext(event.Name))] {
		return false
	}
	return ignore == nil || !ignore(event.Name)
}
