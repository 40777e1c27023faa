package compose

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chatglot/chatglot/settings"
	"github.com/chatglot/chatglot/translate"
)

// Status is the transient state shown near the compose box during a
// writing translation.
type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// StatusReporter surfaces the writing flow's outcome to the user without
// touching the chat itself.
type StatusReporter interface {
	ShowStatus(ctx context.Context, st Status, msg string) error
}

// WriterConfig for creating a Writer.
type WriterConfig struct {
	Injector *Injector
	Engine   translate.Engine
	Status   StatusReporter
	Logger   *slog.Logger

	Enabled    bool
	TargetLang string
	Shortcut   settings.Shortcut

	// StatusClear is how long a terminal status stays visible.
	StatusClear time.Duration
}

// Writer translates the compose box in place when the configured shortcut
// fires. Keydowns arrive from the page event forwarder; everything else
// is driven from here.
type Writer struct {
	inj    *Injector
	engine translate.Engine
	status StatusReporter
	logger *slog.Logger
	clear  time.Duration

	mu         sync.Mutex
	enabled    bool
	targetLang string
	shortcut   settings.Shortcut

	busy atomic.Bool
}

// NewWriter creates a Writer.
func NewWriter(cfg WriterConfig) *Writer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StatusClear <= 0 {
		cfg.StatusClear = 2 * time.Second
	}
	return &Writer{
		inj:        cfg.Injector,
		engine:     cfg.Engine,
		status:     cfg.Status,
		logger:     cfg.Logger,
		clear:      cfg.StatusClear,
		enabled:    cfg.Enabled,
		targetLang: cfg.TargetLang,
		shortcut:   cfg.Shortcut,
	}
}

// Configure applies a settings change.
func (w *Writer) Configure(enabled bool, targetLang string, sc settings.Shortcut) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = enabled
	w.targetLang = targetLang
	w.shortcut = sc
}

// OnKeydown handles one forwarded key event. It reports whether the event
// matched the shortcut (and so should be swallowed by the page). The
// translation itself runs asynchronously.
func (w *Writer) OnKeydown(ctx context.Context, ev settings.KeyEvent) bool {
	w.mu.Lock()
	enabled, sc := w.enabled, w.shortcut
	w.mu.Unlock()
	if !enabled || !sc.Matches(ev) {
		return false
	}
	go w.Translate(ctx)
	return true
}

// Translate reads the compose box, translates it and injects the result.
// Failures surface through the status indicator only; the compose box is
// never cleared on error.
func (w *Writer) Translate(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		w.logger.Debug("compose: writing translation already in flight")
		return
	}
	defer w.busy.Store(false)

	w.mu.Lock()
	targetLang := w.targetLang
	w.mu.Unlock()

	text, err := w.inj.drv.Text(ctx)
	if err != nil {
		w.logger.Warn("compose: read compose box", "error", err)
		w.show(ctx, StatusError, "could not read compose box")
		return
	}
	if text == "" {
		w.show(ctx, StatusWarning, "nothing to translate")
		return
	}

	w.show(ctx, StatusLoading, "")

	res, err := w.engine.Translate(ctx, translate.Request{
		Text:          text,
		TargetLang:    targetLang,
		CheckIfNeeded: true,
	})
	if err != nil {
		w.logger.Warn("compose: translate", "error", err)
		w.show(ctx, StatusError, "translation failed")
		return
	}
	if res.Skipped {
		w.logger.Debug("compose: translation skipped", "reason", res.SkipReason)
		w.show(ctx, StatusWarning, res.SkipReason)
		return
	}

	if err := w.inj.Inject(ctx, res.Text); err != nil {
		w.logger.Warn("compose: inject translation", "error", err)
		w.show(ctx, StatusError, "could not update compose box")
		return
	}
	w.show(ctx, StatusSuccess, "")
}

func (w *Writer) show(ctx context.Context, st Status, msg string) {
	if w.status == nil {
		return
	}
	if err := w.status.ShowStatus(ctx, st, msg); err != nil {
		w.logger.Debug("compose: show status", "error", err)
	}
}
