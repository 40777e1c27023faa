// Package compose replaces the content of a rich-text compose editor
// without breaking the editor's internal model. Editors of this kind keep
// a parallel representation of their text and only update it in response
// to input events, so direct DOM text assignment is unsafe; the injector
// simulates primitive input instead and verifies convergence after each
// stage.
package compose

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Driver is the primitive input surface of the host editor. Every call is
// a single black-box action against the page; implementations decide how
// the action is delivered (trusted CDP events, synthetic DOM events).
type Driver interface {
	// Focus moves input focus to the editor element.
	Focus(ctx context.Context) error
	// Text returns the editor's current text, concatenated from its
	// internal leaf nodes when present, raw element text otherwise.
	Text(ctx context.Context) (string, error)
	// SelectAll selects the editor's entire contents.
	SelectAll(ctx context.Context) error
	// Backspace simulates one backspace key sequence.
	Backspace(ctx context.Context) error
	// InsertRune simulates one full key sequence inserting r.
	InsertRune(ctx context.Context, r rune) error
	// Paste dispatches a single paste event carrying text as clipboard
	// data, replacing the current selection.
	Paste(ctx context.Context, text string) error
}

var (
	// ErrBusy is returned when an injection is already in flight.
	ErrBusy = errors.New("compose: injection in flight")
	// ErrMismatch is returned when the editor text still differs from the
	// target after the full fallback chain. The compose box is left in
	// its last-attempted state.
	ErrMismatch = errors.New("compose: editor text did not converge")
)

// Config for creating an Injector.
type Config struct {
	Driver Driver
	Logger *slog.Logger

	// SettleDelay is waited after focusing before reading the editor.
	SettleDelay time.Duration
	// KeyDelay separates consecutive simulated keystrokes.
	KeyDelay time.Duration
	// CleanupBudget bounds the extra backspaces of the per-char clear's
	// second pass.
	CleanupBudget int
}

// Injector drives the editor through the Driver. A single editor element
// is exclusively mutated during an injection; concurrent calls are
// rejected, not queued.
type Injector struct {
	drv      Driver
	logger   *slog.Logger
	settle   time.Duration
	keyDelay time.Duration
	cleanup  int

	inflight atomic.Bool
}

// New creates an Injector.
func New(cfg Config) *Injector {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 100 * time.Millisecond
	}
	if cfg.KeyDelay <= 0 {
		cfg.KeyDelay = 5 * time.Millisecond
	}
	if cfg.CleanupBudget <= 0 {
		cfg.CleanupBudget = 32
	}
	return &Injector{
		drv:      cfg.Driver,
		logger:   cfg.Logger,
		settle:   cfg.SettleDelay,
		keyDelay: cfg.KeyDelay,
		cleanup:  cfg.CleanupBudget,
	}
}

// Busy reports whether an injection is currently in flight.
func (inj *Injector) Busy() bool { return inj.inflight.Load() }

// Inject replaces the editor's entire content with text. Every stage is
// best-effort: a stage that fails to converge falls through to the next,
// and a persistent mismatch is returned as ErrMismatch with the compose
// box left in its last-attempted state. Inject never panics the flow on
// a driver error.
func (inj *Injector) Inject(ctx context.Context, text string) error {
	if !inj.inflight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer inj.inflight.Store(false)

	if err := inj.drv.Focus(ctx); err != nil {
		inj.logger.Warn("compose: focus editor", "error", err)
	}
	if err := inj.sleep(ctx, inj.settle); err != nil {
		return err
	}

	current, err := inj.drv.Text(ctx)
	if err != nil {
		inj.logger.Warn("compose: read editor", "error", err)
		current = ""
	}
	if current == text {
		inj.logger.Debug("compose: editor already holds target text")
		return nil
	}

	if err := inj.clear(ctx, current); err != nil {
		return err
	}
	if err := inj.typeText(ctx, text); err != nil {
		return err
	}

	got, err := inj.drv.Text(ctx)
	if err == nil && got == text {
		inj.logger.Debug("compose: injected", "chars", len([]rune(text)))
		return nil
	}

	// Key simulation did not converge. Last resort: synthetic paste.
	inj.logger.Warn("compose: key simulation mismatch, falling back to paste",
		"got_len", len(got), "want_len", len(text))
	if err := inj.paste(ctx, text); err != nil {
		inj.logger.Warn("compose: paste fallback", "error", err)
	}

	got, err = inj.drv.Text(ctx)
	if err != nil {
		inj.logger.Warn("compose: verify after paste", "error", err)
		return ErrMismatch
	}
	if got != text {
		inj.logger.Warn("compose: editor text did not converge",
			"got_len", len(got), "want_len", len(text))
		return ErrMismatch
	}
	inj.logger.Debug("compose: injected via paste", "chars", len([]rune(text)))
	return nil
}

// clear empties the editor. It first tries a selection-based clear (select
// all, one backspace) and verifies; if characters remain it falls back to
// one backspace per character of the original text, checked incrementally,
// plus one bounded cleanup pass.
func (inj *Injector) clear(ctx context.Context, current string) error {
	if current == "" {
		return nil
	}

	if err := inj.drv.SelectAll(ctx); err != nil {
		inj.logger.Warn("compose: select all", "error", err)
	} else if err := inj.drv.Backspace(ctx); err != nil {
		inj.logger.Warn("compose: selection clear", "error", err)
	}

	left, err := inj.drv.Text(ctx)
	if err != nil {
		inj.logger.Warn("compose: verify clear", "error", err)
		left = current
	}
	if left == "" {
		return nil
	}

	budget := len([]rune(current)) + inj.cleanup
	for i := 0; i < budget && left != ""; i++ {
		if err := inj.drv.Backspace(ctx); err != nil {
			inj.logger.Warn("compose: backspace", "error", err)
			break
		}
		if err := inj.sleep(ctx, inj.keyDelay); err != nil {
			return err
		}
		left, err = inj.drv.Text(ctx)
		if err != nil {
			inj.logger.Warn("compose: verify clear", "error", err)
			break
		}
	}
	if left != "" {
		inj.logger.Warn("compose: editor not empty after clear", "left", len([]rune(left)))
	}
	return nil
}

// typeText inserts text one rune at a time with a small delay between
// keystrokes. The editor listens to input events, not to text assignment,
// so each rune goes through a full key sequence.
func (inj *Injector) typeText(ctx context.Context, text string) error {
	for _, r := range text {
		if err := inj.drv.InsertRune(ctx, r); err != nil {
			inj.logger.Warn("compose: insert rune", "rune", string(r), "error", err)
			return nil
		}
		if err := inj.sleep(ctx, inj.keyDelay); err != nil {
			return err
		}
	}
	return nil
}

func (inj *Injector) paste(ctx context.Context, text string) error {
	if err := inj.drv.SelectAll(ctx); err != nil {
		return err
	}
	if err := inj.drv.Backspace(ctx); err != nil {
		return err
	}
	return inj.drv.Paste(ctx, text)
}

func (inj *Injector) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
