package settings

import (
	"context"
	"log/slog"
	"time"
)

// Watcher polls the settings database for changes and delivers the
// reloaded Settings to a callback after a debounce quiet period. This is
// the explicit subscription the core components use for mode-switch
// handling.
//
// Change detection reads MAX(updated_at) rather than PRAGMA data_version:
// data_version only advances for commits made on other connections, and
// the watcher shares the store's connection pool with the writers it must
// observe.
type Watcher struct {
	store    *Store
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger
}

// WatchOptions tunes the poll loop.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a detected change before the
	// callback fires. Default: 300ms.
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewWatcher creates a Watcher over the store.
func NewWatcher(store *Store, opts WatchOptions) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		store:    store,
		interval: opts.Interval,
		debounce: opts.Debounce,
		logger:   opts.Logger,
	}
}

// Run blocks until ctx is cancelled, invoking onChange with fresh settings
// after every detected change. A failed reload is logged and retried on the
// next poll cycle; the version does not advance so the change is not lost.
func (w *Watcher) Run(ctx context.Context, onChange func(Settings)) {
	version, err := w.stamp(ctx)
	if err != nil {
		w.logger.Warn("settings: initial stamp read failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		v, err := w.stamp(ctx)
		if err != nil {
			w.logger.Warn("settings: stamp poll failed", "error", err)
			continue
		}
		if v == version {
			continue
		}

		// Debounce: wait for writes to settle, absorbing further bumps.
		if !w.settle(ctx, &v) {
			return
		}

		cur, err := w.store.Get(ctx)
		if err != nil {
			w.logger.Warn("settings: reload failed", "error", err)
			continue
		}
		version = v
		w.logger.Info("settings: changed",
			"reading_mode", cur.ReadingMode,
			"reading_target", cur.ReadingTargetLang,
			"writing_enabled", cur.WritingEnabled)
		onChange(cur)
	}
}

// settle waits the debounce window, re-reading the stamp until it stops
// moving. Returns false when ctx is cancelled.
func (w *Watcher) settle(ctx context.Context, v *int64) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.debounce):
		}
		next, err := w.stamp(ctx)
		if err != nil || next == *v {
			return true
		}
		*v = next
	}
}

func (w *Watcher) stamp(ctx context.Context) (int64, error) {
	var v int64
	err := w.store.DB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(updated_at), 0) FROM settings").Scan(&v)
	return v, err
}
