package chatwatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chatglot/chatglot/message"
	"github.com/chatglot/chatglot/selector"
	"github.com/chatglot/chatglot/settings"
)

func TestDebounceCollapsesPerKey(t *testing.T) {
	var batches [][]candidate
	d := newDebouncer(debounceConfig{Window: time.Hour}, func(b []candidate) {
		batches = append(batches, b)
	})

	d.add(candidate{Key: "cg-1", HTML: "<li>old</li>", Seq: 1})
	d.add(candidate{Key: "cg-2", HTML: "<li>b</li>", Seq: 2})
	d.add(candidate{Key: "cg-1", HTML: "<li>new</li>", Seq: 3})
	d.flush()

	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches))
	}
	b := batches[0]
	if len(b) != 2 {
		t.Fatalf("batch size = %d, want 2", len(b))
	}
	if b[0].Key != "cg-1" || b[1].Key != "cg-2" {
		t.Errorf("order = %q, %q; want first-seen order", b[0].Key, b[1].Key)
	}
	if b[0].HTML != "<li>new</li>" {
		t.Errorf("cg-1 HTML = %q, want latest observation", b[0].HTML)
	}
}

func TestDebounceFlushesOnFullBuffer(t *testing.T) {
	var flushed int
	d := newDebouncer(debounceConfig{Window: time.Hour, MaxBuffer: 2}, func(b []candidate) {
		flushed = len(b)
	})

	if d.add(candidate{Key: "a"}) {
		t.Fatal("first add must not flush")
	}
	if !d.add(candidate{Key: "b"}) {
		t.Fatal("buffer-filling add must flush")
	}
	if flushed != 2 {
		t.Errorf("flushed %d candidates, want 2", flushed)
	}
}

func TestDebounceEmptyFlushIsNoop(t *testing.T) {
	d := newDebouncer(debounceConfig{}, func(b []candidate) {
		t.Error("flush callback fired with empty buffer")
	})
	d.flush()
}

func TestParseEnvelopes(t *testing.T) {
	payload := `[
		{"type":"mutation","key":"cg-3","html":"<li>x</li>","seq":7},
		{"type":"keydown","ctrl":true,"keyName":"i"},
		{"type":"navigate","url":"https://chat.example/channels/2"}
	]`
	envs, err := parseEnvelopes(payload)
	if err != nil {
		t.Fatalf("parseEnvelopes: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("envelopes = %d, want 3", len(envs))
	}
	if envs[0].Type != envMutation || envs[0].Key != "cg-3" || envs[0].Seq != 7 {
		t.Errorf("mutation envelope = %+v", envs[0])
	}
	if !envs[1].Ctrl || envs[1].KeyName != "i" {
		t.Errorf("keydown envelope = %+v", envs[1])
	}
	if envs[2].URL != "https://chat.example/channels/2" {
		t.Errorf("navigate envelope = %+v", envs[2])
	}

	if _, err := parseEnvelopes(`{"not":"an array"}`); err == nil {
		t.Error("object payload must fail")
	}
}

func candidateHTML(key, text string) string {
	return fmt.Sprintf(`<li class="messageListItem_b6e5e8" data-cg-key=%q>`+
		`<div class="contents_f9f2ca">`+
		`<div id="message-content-%s" class="messageContent_f9f2ca">%s</div>`+
		`</div></li>`, key, key, text)
}

func newTestWatcher(events Events) (*Watcher, *message.Table) {
	reg := selector.New(nil)
	states := message.NewTable()
	return New(Config{
		Selectors: reg,
		Extractor: message.NewExtractor(reg, states),
		Events:    events,
	}), states
}

func TestRuntimeConfigScansBothGranularities(t *testing.T) {
	w, _ := newTestWatcher(Events{})
	cfg := w.runtimeConfig()

	msg, _ := cfg["message"].(string)
	group, _ := cfg["group"].(string)
	if msg == "" {
		t.Fatal("message selector missing from runtime config")
	}
	if group == "" {
		t.Fatal("group selector missing from runtime config")
	}
	if msg == group {
		t.Error("message and group selectors must target different elements")
	}
	for _, key := range []string{"binding", "container", "content", "reply"} {
		if s, _ := cfg[key].(string); s == "" {
			t.Errorf("runtime config %q is empty", key)
		}
	}
}

func TestHandleBatchExtractsRecords(t *testing.T) {
	var records []*message.Record
	w, _ := newTestWatcher(Events{
		OnRecord: func(ctx context.Context, rec *message.Record) {
			records = append(records, rec)
		},
	})

	w.handleBatch(context.Background(), []candidate{
		{Key: "cg-1", HTML: candidateHTML("cg-1", "hola")},
		{Key: "cg-2", HTML: candidateHTML("cg-2", "merhaba")},
	})

	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Text != "hola" || records[1].Text != "merhaba" {
		t.Errorf("texts = %q, %q", records[0].Text, records[1].Text)
	}
	if records[0].Key != "cg-1" {
		t.Errorf("record key = %q, want cg-1", records[0].Key)
	}
}

func TestHandleBatchAcceptsGroupContainers(t *testing.T) {
	var records []*message.Record
	w, _ := newTestWatcher(Events{
		OnRecord: func(ctx context.Context, rec *message.Record) {
			records = append(records, rec)
		},
	})

	// A group-start container without a list-item wrapper.
	frag := `<div class="groupStart_d5deea" data-cg-key="g1">` +
		`<div id="message-content-g1" class="messageContent_f9f2ca">first of group</div></div>`
	w.handleBatch(context.Background(), []candidate{{Key: "g1", HTML: frag, Seq: 1}})

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Text != "first of group" {
		t.Errorf("Text = %q", records[0].Text)
	}
	if records[0].Key != "g1" {
		t.Errorf("Key = %q, want g1", records[0].Key)
	}
}

func TestHandleBatchSkipsAlreadyProcessed(t *testing.T) {
	var records int
	w, _ := newTestWatcher(Events{
		OnRecord: func(ctx context.Context, rec *message.Record) { records++ },
	})

	batch := []candidate{{Key: "cg-1", HTML: candidateHTML("cg-1", "hola")}}
	w.handleBatch(context.Background(), batch)
	w.handleBatch(context.Background(), batch)

	if records != 1 {
		t.Errorf("records emitted = %d, want 1 (reprocessing guarded)", records)
	}
}

func TestHandleBatchSkipsUnparseableAndEmpty(t *testing.T) {
	var records int
	w, _ := newTestWatcher(Events{
		OnRecord: func(ctx context.Context, rec *message.Record) { records++ },
	})

	w.handleBatch(context.Background(), []candidate{
		{Key: "cg-1", HTML: ""},
		{Key: "cg-2", HTML: candidateHTML("cg-2", "")},
		{Key: "cg-3", HTML: candidateHTML("cg-3", "ok")},
	})

	if records != 1 {
		t.Errorf("records emitted = %d, want 1", records)
	}
}

func TestDispatchRoutesUserEvents(t *testing.T) {
	var toggles []string
	var keys []settings.KeyEvent
	w, _ := newTestWatcher(Events{
		OnToggle: func(ctx context.Context, key string) { toggles = append(toggles, key) },
		OnKeydown: func(ctx context.Context, ev settings.KeyEvent) {
			keys = append(keys, ev)
		},
	})
	ctx := context.Background()

	w.dispatch(ctx, Envelope{Type: envToggle, Key: "cg-1:main"})
	w.dispatch(ctx, Envelope{Type: envKeydown, Ctrl: true, KeyName: "i"})
	w.dispatch(ctx, Envelope{Type: envNavigate, URL: "https://chat.example/x"})
	w.dispatch(ctx, Envelope{Type: "unknown"})

	if len(toggles) != 1 || toggles[0] != "cg-1:main" {
		t.Errorf("toggles = %v", toggles)
	}
	if len(keys) != 1 || !keys[0].Ctrl || keys[0].Key != "i" {
		t.Errorf("keydowns = %v", keys)
	}
	select {
	case url := <-w.navCh:
		if url != "https://chat.example/x" {
			t.Errorf("nav url = %q", url)
		}
	default:
		t.Error("navigate envelope not queued")
	}
}

func TestDispatchQueuesCandidates(t *testing.T) {
	w, _ := newTestWatcher(Events{})
	w.dispatch(context.Background(), Envelope{Type: envScan, Key: "cg-9", HTML: "<li></li>", Seq: 1})

	select {
	case c := <-w.rawCh:
		if c.Key != "cg-9" {
			t.Errorf("candidate key = %q", c.Key)
		}
	default:
		t.Error("scan envelope not queued as candidate")
	}
}
