package settings

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openFileStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// A Put issued through the same store the watcher polls must be detected:
// the watcher and the writer share one connection pool.
func TestWatcherSeesPutThroughSameStore(t *testing.T) {
	st := openFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := st.Get(ctx); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}

	w := NewWatcher(st, WatchOptions{
		Interval: 20 * time.Millisecond,
		Debounce: 20 * time.Millisecond,
	})
	got := make(chan Settings, 1)
	go w.Run(ctx, func(s Settings) {
		select {
		case got <- s:
		default:
		}
	})

	// Let the watcher take its baseline stamp before writing.
	time.Sleep(100 * time.Millisecond)

	next := Defaults()
	next.ReadingMode = ModeClick
	next.ReadingTargetLang = "de"
	if err := st.Put(ctx, next); err != nil {
		t.Fatalf("Put: %v", err)
	}

	select {
	case s := <-got:
		if s.ReadingMode != ModeClick || s.ReadingTargetLang != "de" {
			t.Errorf("delivered settings = %+v", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("settings change never detected")
	}
}

func TestWatcherAbsorbsWriteBursts(t *testing.T) {
	st := openFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := st.Get(ctx); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}

	w := NewWatcher(st, WatchOptions{
		Interval: 20 * time.Millisecond,
		Debounce: 50 * time.Millisecond,
	})
	got := make(chan Settings, 8)
	go w.Run(ctx, func(s Settings) { got <- s })

	time.Sleep(100 * time.Millisecond)

	// Rapid consecutive writes settle into one delivery of the last value.
	for _, lang := range []string{"fr", "es", "tr"} {
		next := Defaults()
		next.ReadingTargetLang = lang
		if err := st.Put(ctx, next); err != nil {
			t.Fatalf("Put %s: %v", lang, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case s := <-got:
		if s.ReadingTargetLang != "tr" {
			t.Errorf("delivered lang = %q, want %q (last write)", s.ReadingTargetLang, "tr")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("burst never delivered")
	}

	select {
	case s := <-got:
		t.Errorf("burst delivered more than once: extra %+v", s)
	case <-time.After(200 * time.Millisecond):
	}
}
