package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ibmi-agents/db2i-go/domain/config"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// Watcher reloads a catalog file when it changes on disk.
type Watcher struct {
	path     string
	loader   *Loader
	debounce time.Duration
	onChange func(*config.Catalog)
	onError  func(error)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long writes must settle before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler receives reload failures. The previous catalog stays active.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// NewWatcher creates a Watcher that calls onChange with each valid reload.
func NewWatcher(path string, loader *Loader, onChange func(*config.Catalog), opts ...WatcherOption) *Watcher {
	if loader == nil {
		loader = NewLoader()
	}
	w := &Watcher{
		path:     path,
		loader:   loader,
		debounce: 250 * time.Millisecond,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. The parent directory is watched so
// editors that replace the file by rename are seen.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}
	logging.Info().Add(logging.Str("path", abs)).Msg("watching catalog")

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.fail(fmt.Errorf("watch %s: %w", abs, err))

		case <-fire:
			fire = nil
			cat, err := w.loader.LoadFile(abs)
			if err != nil {
				w.fail(err)
				continue
			}
			logging.Info().Add(logging.Str("path", abs)).Msg("catalog reloaded")
			if w.onChange != nil {
				w.onChange(cat)
			}
		}
	}
}

func (w *Watcher) fail(err error) {
	logging.Warn().Add(logging.ErrorField(err)).Msg("catalog reload failed")
	if w.onError != nil {
		w.onError(err)
	}
}
