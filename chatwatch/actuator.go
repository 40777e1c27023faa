package chatwatch

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/chatglot/chatglot/compose"
	"github.com/chatglot/chatglot/reading"
)

// PageActuator mutates the live page through the injected runtime's helper
// API. It implements reading.Actuator and compose.StatusReporter. Calls
// made while the runtime is not installed (between navigations) fail, and
// callers treat that as the region having vanished.
type PageActuator struct {
	page *rod.Page
}

// NewPageActuator creates an actuator for page.
func NewPageActuator(page *rod.Page) *PageActuator {
	return &PageActuator{page: page}
}

func (a *PageActuator) SetText(ctx context.Context, key, text string) error {
	return a.call(ctx, `(key, text) =>
		window.__chatglot ? window.__chatglot.setText(key, text) : false`,
		key, text)
}

func (a *PageActuator) SetHTML(ctx context.Context, key, html string) error {
	return a.call(ctx, `(key, html) =>
		window.__chatglot ? window.__chatglot.setHTML(key, html) : false`,
		key, html)
}

func (a *PageActuator) EnsureToggle(ctx context.Context, key string) error {
	return a.call(ctx, `(key) =>
		window.__chatglot ? window.__chatglot.ensureToggle(key) : false`,
		key)
}

func (a *PageActuator) SetToggleState(ctx context.Context, key string, st reading.ToggleState) error {
	return a.call(ctx, `(key, state) =>
		window.__chatglot ? window.__chatglot.setToggleState(key, state) : false`,
		key, string(st))
}

func (a *PageActuator) RemoveToggles(ctx context.Context) error {
	return a.call(ctx, `() =>
		window.__chatglot ? window.__chatglot.removeToggles() : false`)
}

func (a *PageActuator) ShowStatus(ctx context.Context, st compose.Status, msg string) error {
	return a.call(ctx, `(state, msg) =>
		window.__chatglot ? window.__chatglot.showStatus(state, msg) : false`,
		string(st), msg)
}

func (a *PageActuator) call(ctx context.Context, js string, args ...any) error {
	res, err := a.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return fmt.Errorf("chatwatch: page call: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("chatwatch: page helper refused call (runtime or element gone)")
	}
	return nil
}
