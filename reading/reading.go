// Package reading orchestrates message translation presentation: either
// auto-replacing text as messages arrive, or attaching click-to-reveal
// toggles. It owns no DOM access; all page mutation goes through the
// Actuator interface so the strategies stay testable against fakes.
package reading

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chatglot/chatglot/message"
	"github.com/chatglot/chatglot/settings"
	"github.com/chatglot/chatglot/translate"
)

// ToggleState is the presentation state of a click-mode control.
type ToggleState string

const (
	// ToggleShow offers "show translation".
	ToggleShow ToggleState = "show"
	// ToggleRestore offers "show original" while the translation is visible.
	ToggleRestore ToggleState = "restore"
	// ToggleBusy disables the control during an in-flight request.
	ToggleBusy ToggleState = "busy"
	// ToggleError flags a failed request; reverts to ToggleShow after a delay.
	ToggleError ToggleState = "error"
)

// Actuator mutates the live page on behalf of the orchestrator. All methods
// are best-effort: an error means the element vanished or the page is gone,
// and the orchestrator logs and moves on.
type Actuator interface {
	// SetText replaces the visible text of the region addressed by key.
	SetText(ctx context.Context, key, text string) error
	// SetHTML replaces the region's inner markup. Used to restore captured
	// originals exactly and to display rendered rich translations.
	SetHTML(ctx context.Context, key, html string) error
	// EnsureToggle attaches a toggle control to the region if absent.
	EnsureToggle(ctx context.Context, key string) error
	// SetToggleState updates a control's presentation state.
	SetToggleState(ctx context.Context, key string, state ToggleState) error
	// RemoveToggles removes every toggle control from the page.
	RemoveToggles(ctx context.Context) error
}

// Config assembles an Orchestrator.
type Config struct {
	States   *message.Table
	Engine   translate.Engine
	Actuator Actuator
	Logger   *slog.Logger

	Mode       settings.Mode
	TargetLang string

	// ErrorRevert is how long a failed toggle shows its error state.
	// Default: 3s.
	ErrorRevert time.Duration
}

// Orchestrator dispatches extracted messages to the active presentation
// strategy and services toggle activations from the page.
type Orchestrator struct {
	states *message.Table
	engine translate.Engine
	act    Actuator
	logger *slog.Logger

	errorRevert time.Duration

	mu         sync.Mutex
	mode       settings.Mode
	targetLang string
	// regions remembers every discovered content region by key, so a mode
	// switch can re-run setup for content already on screen.
	regions map[string]message.Content
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ErrorRevert <= 0 {
		cfg.ErrorRevert = 3 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = settings.ModeAuto
	}
	return &Orchestrator{
		states:      cfg.States,
		engine:      cfg.Engine,
		act:         cfg.Actuator,
		logger:      cfg.Logger,
		errorRevert: cfg.ErrorRevert,
		mode:        cfg.Mode,
		targetLang:  cfg.TargetLang,
		regions:     make(map[string]message.Content),
	}
}

// Handle processes one extracted message: each content region goes through
// the active strategy. Safe to call from the watcher's event loop; network
// calls run in their own goroutines.
func (o *Orchestrator) Handle(ctx context.Context, rec *message.Record) {
	o.mu.Lock()
	mode := o.mode
	for _, c := range rec.Contents {
		o.regions[c.Key] = c
	}
	contents := rec.Contents
	o.mu.Unlock()

	for _, c := range contents {
		switch mode {
		case settings.ModeAuto:
			go o.autoTranslate(ctx, c)
		case settings.ModeClick:
			o.setupToggle(ctx, c)
		}
	}
}

// OnToggle services a toggle activation forwarded from the page.
func (o *Orchestrator) OnToggle(ctx context.Context, key string) {
	o.mu.Lock()
	c, known := o.regions[key]
	target := o.targetLang
	o.mu.Unlock()
	if !known {
		o.logger.Debug("reading: toggle for unknown region", "key", key)
		return
	}

	st := o.states.Get(key)
	if st.Busy {
		return
	}

	if st.Translated {
		// Restore path: no network call, the captured bytes go back.
		o.states.Update(key, func(s *message.State) { s.Translated = false })
		o.restore(ctx, key, st)
		o.toggleState(ctx, key, ToggleShow)
		return
	}

	gen := o.states.Generation()
	o.states.Update(key, func(s *message.State) { s.Busy = true })
	o.toggleState(ctx, key, ToggleBusy)

	go func() {
		res, err := o.engine.Translate(ctx, translate.Request{
			Text:          c.Payload(),
			TargetLang:    target,
			SourceLang:    "auto",
			CheckIfNeeded: true,
		})

		if o.states.Generation() != gen {
			// Mode switched while in flight: toggles may be gone. Discard.
			o.states.Update(key, func(s *message.State) { s.Busy = false })
			return
		}

		switch {
		case err != nil:
			o.logger.Warn("reading: toggle translation failed", "key", key, "error", err)
			o.toggleState(ctx, key, ToggleError)
			time.AfterFunc(o.errorRevert, func() {
				o.states.Update(key, func(s *message.State) { s.Busy = false })
				o.toggleState(context.Background(), key, ToggleShow)
			})

		case res.Skipped:
			o.logger.Debug("reading: toggle skipped", "key", key, "reason", res.SkipReason)
			o.states.Update(key, func(s *message.State) { s.Busy = false })
			o.toggleState(ctx, key, ToggleShow)

		default:
			o.states.Update(key, func(s *message.State) {
				s.Busy = false
				s.Translated = true
				s.OriginalText = c.Text
				s.OriginalHTML = c.HTML
				s.SourceLang = res.SourceLang
				s.TargetLang = res.TargetLang
			})
			o.present(ctx, c, res.Text)
			o.toggleState(ctx, key, ToggleRestore)
		}
	}()
}

// SetMode handles a settings change. All translated regions are restored to
// their original text before the new mode's setup runs; stale auto flags are
// cleared and click controls removed when leaving click mode.
func (o *Orchestrator) SetMode(ctx context.Context, mode settings.Mode, targetLang string) {
	o.mu.Lock()
	prev := o.mode
	o.mode = mode
	o.targetLang = targetLang
	regions := make([]message.Content, 0, len(o.regions))
	for _, c := range o.regions {
		regions = append(regions, c)
	}
	o.mu.Unlock()

	// Invalidate in-flight results first, then restore visible text. A
	// target-language change without a mode change takes the same path.
	o.states.NextGeneration()

	for key, st := range o.states.Translated() {
		o.restore(ctx, key, st)
		o.states.Update(key, func(s *message.State) {
			s.Translated = false
			s.Busy = false
		})
	}
	o.states.ClearAuto()

	if prev == settings.ModeClick && mode != settings.ModeClick {
		if err := o.act.RemoveToggles(ctx); err != nil {
			o.logger.Warn("reading: remove toggles failed", "error", err)
		}
		o.states.ClearClickSetup()
	}

	o.logger.Info("reading: mode switched", "from", prev, "to", mode, "target", targetLang)

	for _, c := range regions {
		switch mode {
		case settings.ModeAuto:
			go o.autoTranslate(ctx, c)
		case settings.ModeClick:
			o.setupToggle(ctx, c)
		}
	}
}

// Reset forgets all regions. Called when the watcher reattaches after a
// navigation: the old document's keys are dead.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.regions = make(map[string]message.Content)
	o.mu.Unlock()
	o.states.Reset()
}

// Stats reports region counts for the control surface.
func (o *Orchestrator) Stats() (known, translated int) {
	o.mu.Lock()
	known = len(o.regions)
	o.mu.Unlock()
	translated = len(o.states.Translated())
	return known, translated
}

// autoTranslate is the auto strategy for one region: translate and replace
// in place, exactly once per region.
func (o *Orchestrator) autoTranslate(ctx context.Context, c message.Content) {
	first := false
	o.states.Update(c.Key, func(s *message.State) {
		if !s.AutoProcessed {
			s.AutoProcessed = true
			first = true
		}
	})
	if !first {
		return
	}

	o.mu.Lock()
	target := o.targetLang
	o.mu.Unlock()
	gen := o.states.Generation()

	res, err := o.engine.Translate(ctx, translate.Request{
		Text:          c.Payload(),
		TargetLang:    target,
		SourceLang:    "auto",
		CheckIfNeeded: true,
	})

	if o.states.Generation() != gen {
		return // mode or target changed mid-flight
	}

	switch {
	case err != nil:
		// Chat text is left untouched; errors never surface into the page.
		o.logger.Warn("reading: auto translation failed", "key", c.Key, "error", err)

	case res.Skipped:
		o.logger.Debug("reading: auto skipped", "key", c.Key, "reason", res.SkipReason)

	default:
		o.states.Update(c.Key, func(s *message.State) {
			s.Translated = true
			s.OriginalText = c.Text
			s.OriginalHTML = c.HTML
			s.SourceLang = res.SourceLang
			s.TargetLang = res.TargetLang
		})
		o.present(ctx, c, res.Text)
	}
}

// setupToggle is the click strategy setup for one region: idempotent
// control attachment.
func (o *Orchestrator) setupToggle(ctx context.Context, c message.Content) {
	first := false
	o.states.Update(c.Key, func(s *message.State) {
		if !s.ClickSetupDone {
			s.ClickSetupDone = true
			first = true
		}
	})
	if !first {
		return
	}
	if err := o.act.EnsureToggle(ctx, c.Key); err != nil {
		o.logger.Warn("reading: ensure toggle failed", "key", c.Key, "error", err)
		o.states.Update(c.Key, func(s *message.State) { s.ClickSetupDone = false })
	}
}

// present shows a translation result: rich regions get their Markdown
// rendered back to HTML, plain regions get text.
func (o *Orchestrator) present(ctx context.Context, c message.Content, translated string) {
	if c.Markdown != "" {
		if htmlOut := message.RenderMarkdown(translated); htmlOut != "" {
			if err := o.act.SetHTML(ctx, c.Key, htmlOut); err != nil {
				o.logger.Warn("reading: set html failed", "key", c.Key, "error", err)
			}
			return
		}
	}
	o.actuate(ctx, c.Key, translated)
}

// restore puts the captured original back, exact markup when it was
// captured, plain text otherwise.
func (o *Orchestrator) restore(ctx context.Context, key string, st message.State) {
	if st.OriginalHTML != "" {
		err := o.act.SetHTML(ctx, key, st.OriginalHTML)
		if err == nil {
			return
		}
		o.logger.Warn("reading: restore html failed", "key", key, "error", err)
	}
	o.actuate(ctx, key, st.OriginalText)
}

func (o *Orchestrator) actuate(ctx context.Context, key, text string) {
	if err := o.act.SetText(ctx, key, text); err != nil {
		o.logger.Warn("reading: set text failed", "key", key, "error", err)
	}
}

func (o *Orchestrator) toggleState(ctx context.Context, key string, st ToggleState) {
	if err := o.act.SetToggleState(ctx, key, st); err != nil {
		o.logger.Warn("reading: set toggle state failed", "key", key, "state", st, "error", err)
	}
}
