// Package chatwatch observes a live chat page for message elements. It
// injects a page runtime (MutationObserver plus addressing helpers) into
// the chat container, streams serialized message candidates back over a
// CDP binding, and hands extracted records to a consumer. Container loss
// and SPA navigation restart discovery; destruction is the only terminal
// state.
package chatwatch

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/chatglot/chatglot/message"
	"github.com/chatglot/chatglot/selector"
	"github.com/chatglot/chatglot/settings"
)

//go:embed observer.js
var observerJS []byte

const defaultBinding = "__chatglot_binding"

// Events are the consumer callbacks. Nil callbacks are skipped.
type Events struct {
	// OnRecord receives each newly extracted message.
	OnRecord func(ctx context.Context, rec *message.Record)
	// OnToggle receives clicks on injected toggle controls (region key).
	OnToggle func(ctx context.Context, key string)
	// OnKeydown receives shortcut keydowns forwarded from the page.
	OnKeydown func(ctx context.Context, ev settings.KeyEvent)
	// OnNavigate fires when the page moves to a different URL, after the
	// observer has been torn down and before discovery restarts.
	OnNavigate func(ctx context.Context, url string)
}

// Config for creating a Watcher.
type Config struct {
	Page      *rod.Page
	Selectors *selector.Registry
	Extractor *message.Extractor
	Events    Events
	Logger    *slog.Logger

	// Shortcut is pushed into the page runtime so matching keydowns are
	// swallowed there and forwarded here.
	Shortcut settings.Shortcut

	// ContainerPoll is the search interval while no container exists.
	// Default: 1.5s.
	ContainerPoll time.Duration
	// URLPoll is the location change check interval while observing.
	// Default: 2s.
	URLPoll time.Duration

	DebounceWindow time.Duration
	DebounceMax    int
}

// Watcher is the page-side observation loop. It alternates between two
// states: searching for the chat container, and observing it.
type Watcher struct {
	page   *rod.Page
	sel    *selector.Registry
	ext    *message.Extractor
	events Events
	logger *slog.Logger

	containerPoll time.Duration
	urlPoll       time.Duration

	rawCh chan candidate
	navCh chan string
	deb   *debouncer

	shortcutMu sync.Mutex
	shortcut   settings.Shortcut

	cancelMu sync.Mutex
	cancel   context.CancelFunc
	destroy  sync.Once
}

// New creates a Watcher. Call Run to start observing.
func New(cfg Config) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ContainerPoll <= 0 {
		cfg.ContainerPoll = 1500 * time.Millisecond
	}
	if cfg.URLPoll <= 0 {
		cfg.URLPoll = 2 * time.Second
	}

	w := &Watcher{
		page:          cfg.Page,
		sel:           cfg.Selectors,
		ext:           cfg.Extractor,
		events:        cfg.Events,
		logger:        cfg.Logger,
		containerPoll: cfg.ContainerPoll,
		urlPoll:       cfg.URLPoll,
		rawCh:         make(chan candidate, 1024),
		navCh:         make(chan string, 4),
	}
	w.deb = newDebouncer(debounceConfig{
		Window:    cfg.DebounceWindow,
		MaxBuffer: cfg.DebounceMax,
	}, nil)
	w.shortcut = cfg.Shortcut
	return w
}

// Run drives the watcher until ctx is cancelled or Destroy is called.
// It binds once, then loops: search container, install runtime, observe,
// teardown on navigation, repeat.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelMu.Lock()
	w.cancel = cancel
	w.cancelMu.Unlock()
	defer cancel()

	if err := w.bind(ctx); err != nil {
		return err
	}

	for {
		if err := w.search(ctx); err != nil {
			return err
		}
		if err := w.install(ctx); err != nil {
			w.logger.Warn("chatwatch: install runtime", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.containerPoll):
			}
			continue
		}

		url, err := w.observe(ctx)
		if err != nil {
			return err
		}

		// Navigation: tear down and rediscover.
		w.teardownPage(ctx)
		w.logger.Info("chatwatch: navigation, rediscovering container", "url", url)
		if w.events.OnNavigate != nil {
			w.events.OnNavigate(ctx, url)
		}
	}
}

// Destroy stops the watcher and removes injected page artifacts. Safe to
// call repeatedly and concurrently with Run.
func (w *Watcher) Destroy() {
	w.destroy.Do(func() {
		ctx, cancelEval := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelEval()
		w.teardownPage(ctx)

		w.cancelMu.Lock()
		if w.cancel != nil {
			w.cancel()
		}
		w.cancelMu.Unlock()
	})
}

// SetShortcut updates the in-page shortcut filter.
func (w *Watcher) SetShortcut(ctx context.Context, sc settings.Shortcut) error {
	w.shortcutMu.Lock()
	w.shortcut = sc
	w.shortcutMu.Unlock()

	raw, _ := json.Marshal(sc)
	_, err := w.page.Context(ctx).Eval(`(s) => {
		if (window.__chatglot) window.__chatglot.setShortcut(s);
	}`, json.RawMessage(raw))
	if err != nil {
		return fmt.Errorf("chatwatch: set shortcut: %w", err)
	}
	return nil
}

// bind registers the CDP binding and starts the listener goroutine.
func (w *Watcher) bind(ctx context.Context) error {
	err := proto.RuntimeAddBinding{Name: defaultBinding}.Call(w.page)
	if err != nil {
		return fmt.Errorf("chatwatch: add binding: %w", err)
	}

	go w.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != defaultBinding {
			return
		}
		envs, err := parseEnvelopes(e.Payload)
		if err != nil {
			w.logger.Warn("chatwatch: bad binding payload", "error", err)
			return
		}
		for _, env := range envs {
			w.dispatch(ctx, env)
		}
	})()

	return nil
}

// dispatch routes one envelope. Candidates go through the debounce loop;
// user events fire immediately.
func (w *Watcher) dispatch(ctx context.Context, env Envelope) {
	switch env.Type {
	case envMutation, envScan:
		select {
		case w.rawCh <- candidate{Key: env.Key, HTML: env.HTML, Seq: env.Seq}:
		default:
			w.logger.Warn("chatwatch: candidate channel full, dropping", "key", env.Key)
		}

	case envToggle:
		if w.events.OnToggle != nil {
			w.events.OnToggle(ctx, env.Key)
		}

	case envKeydown:
		if w.events.OnKeydown != nil {
			w.events.OnKeydown(ctx, settings.KeyEvent{
				Ctrl:  env.Ctrl,
				Shift: env.Shift,
				Alt:   env.Alt,
				Key:   env.KeyName,
			})
		}

	case envNavigate:
		select {
		case w.navCh <- env.URL:
		default:
		}

	default:
		w.logger.Debug("chatwatch: unknown envelope type", "type", env.Type)
	}
}

// search polls until the chat container exists.
func (w *Watcher) search(ctx context.Context) error {
	containerCSS := w.sel.CSS(selector.Scroller)
	ticker := time.NewTicker(w.containerPoll)
	defer ticker.Stop()

	for {
		found, err := w.containerPresent(ctx, containerCSS)
		if err != nil {
			w.logger.Warn("chatwatch: container check", "error", err)
		} else if found {
			w.logger.Info("chatwatch: container found")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) containerPresent(ctx context.Context, css string) (bool, error) {
	res, err := w.page.Context(ctx).Eval(`(q) => !!document.querySelector(q)`, css)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// runtimeConfig is what the injected runtime reads before starting. The
// group selector rides along with the message selector so group-start
// containers without a list-item wrapper are still discovered.
func (w *Watcher) runtimeConfig() map[string]any {
	w.shortcutMu.Lock()
	sc := w.shortcut
	w.shortcutMu.Unlock()

	return map[string]any{
		"binding":   defaultBinding,
		"container": w.sel.CSS(selector.Scroller),
		"message":   w.sel.CSS(selector.Message),
		"group":     w.sel.CSS(selector.Group),
		"content":   w.sel.CSS(selector.Content),
		"reply":     w.sel.CSS(selector.Reply),
		"shortcut":  sc,
	}
}

// install pushes config, injects the runtime, starts observation and
// requests the initial full scan of already-present messages.
func (w *Watcher) install(ctx context.Context) error {
	raw, err := json.Marshal(w.runtimeConfig())
	if err != nil {
		return fmt.Errorf("chatwatch: marshal config: %w", err)
	}

	if _, err := w.page.Context(ctx).Eval(`(c) => { window.__chatglot_config = c; }`, json.RawMessage(raw)); err != nil {
		return fmt.Errorf("chatwatch: push config: %w", err)
	}
	if _, err := w.page.Context(ctx).Eval(string(observerJS)); err != nil {
		return fmt.Errorf("chatwatch: inject runtime: %w", err)
	}
	if _, err := w.page.Context(ctx).Eval(`() => {
		window.__chatglot.observe();
		window.__chatglot.scan();
	}`); err != nil {
		return fmt.Errorf("chatwatch: start observation: %w", err)
	}

	w.logger.Info("chatwatch: runtime installed")
	return nil
}

// observe is the main loop while the container is alive. It returns the
// new URL when the page navigates, or ctx.Err() on cancellation.
func (w *Watcher) observe(ctx context.Context) (string, error) {
	lastURL, err := w.currentURL(ctx)
	if err != nil {
		w.logger.Warn("chatwatch: read location", "error", err)
	}

	flush := func(batch []candidate) { w.handleBatch(ctx, batch) }
	w.deb.flushFn = flush

	urlTicker := time.NewTicker(w.urlPoll)
	defer urlTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.deb.flush()
			return "", ctx.Err()

		case c := <-w.rawCh:
			w.deb.add(c)

		case <-w.deb.timerC():
			w.deb.flush()

		case url := <-w.navCh:
			if url != lastURL {
				w.deb.flush()
				return url, nil
			}

		case <-urlTicker.C:
			url, err := w.currentURL(ctx)
			if err != nil {
				w.logger.Warn("chatwatch: read location", "error", err)
				continue
			}
			if url != lastURL {
				w.deb.flush()
				return url, nil
			}
		}
	}
}

func (w *Watcher) currentURL(ctx context.Context) (string, error) {
	res, err := w.page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// handleBatch parses each candidate's HTML and extracts records in batch
// order, which the page runtime keeps in DOM-insertion order.
func (w *Watcher) handleBatch(ctx context.Context, batch []candidate) {
	for _, c := range batch {
		node, err := parseFragment(c.HTML)
		if err != nil {
			w.logger.Warn("chatwatch: parse candidate", "key", c.Key, "error", err)
			continue
		}
		rec, ok := w.ext.Extract(node)
		if !ok {
			continue
		}
		w.logger.Debug("chatwatch: message extracted",
			"id", rec.ID, "key", rec.Key, "regions", len(rec.Contents))
		if w.events.OnRecord != nil {
			w.events.OnRecord(ctx, rec)
		}
	}
}

// teardownPage removes injected page artifacts, best-effort.
func (w *Watcher) teardownPage(ctx context.Context) {
	_, err := w.page.Context(ctx).Eval(`() => {
		if (window.__chatglot) window.__chatglot.destroy();
	}`)
	if err != nil {
		w.logger.Debug("chatwatch: teardown", "error", err)
	}
}

// parseFragment parses one serialized element as a body-context fragment
// and returns its first element node.
func parseFragment(raw string) (*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(raw), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, fmt.Errorf("no element in fragment")
}
