package profile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
)

// DefaultSettleDelay is how long the file must stay unchanged before it is reloaded.
const DefaultSettleDelay = 250 * time.Millisecond

// Watcher reloads a profiles file whenever it changes on disk.
type Watcher struct {
	onChange    func([]alarm.Profile)
	path        string
	settleDelay time.Duration
}

// NewWatcher creates a watcher for the profiles file at path.
// onChange receives every successfully parsed version of the file.
func NewWatcher(path string, onChange func([]alarm.Profile)) *Watcher {
	return &Watcher{
		onChange:    onChange,
		path:        filepath.Clean(path),
		settleDelay: DefaultSettleDelay,
	}
}

// WithSettleDelay overrides the settle delay.
func (w *Watcher) WithSettleDelay(delay time.Duration) *Watcher {
	w.settleDelay = delay

	return w
}

// Run watches until the context is done.
// The parent directory is watched so that editors replacing the file are noticed.
// Files that fail to parse are logged and the previous profiles stay in effect.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	//nolint:errcheck // Nothing useful to do with a close error on shutdown.
	defer fsWatcher.Close()

	if err = fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	ctx = logger.WithKV(logger.WithName(ctx, "profiles"), "path", w.path)
	logger.Info(ctx, "Watching alarm profiles")

	settle := time.NewTimer(w.settleDelay)
	settle.Stop()

	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != w.path ||
				!event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}

			logger.DebugKV(ctx, "Profiles file changed", "op", event.Op.String())
			settle.Reset(w.settleDelay)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}

			logger.ErrorKV(ctx, "Profiles watcher failed", "error", err)
		case <-settle.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	profiles, err := Load(w.path)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to reload alarm profiles, keeping the previous ones", "error", err)

		return
	}

	logger.InfoKV(ctx, "Alarm profiles reloaded", "count", len(profiles))

	w.onChange(profiles)
}

// Watch runs a watcher with the default settle delay until the context is done.
func Watch(ctx context.Context, path string, onChange func([]alarm.Profile)) error {
	return NewWatcher(path, onChange).Run(ctx)
}
