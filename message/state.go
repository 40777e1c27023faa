package message

import "sync"

// State is the processing state of one content region. It replaces the
// dataset flags a content script would scribble onto host elements: the
// table is the single source of truth for dedup and toggle bookkeeping.
type State struct {
	// Processed guards extraction idempotence: once set, repeated mutation
	// callbacks for the same region are no-ops.
	Processed bool
	// AutoProcessed marks regions already handled by the auto strategy.
	AutoProcessed bool
	// ClickSetupDone marks regions that already carry a toggle control.
	ClickSetupDone bool
	// Translated is true while the translated text is visible.
	Translated bool
	// Busy is true while a translation request is in flight for the region.
	Busy bool

	// Set when Translated. OriginalHTML holds the region's pre-translation
	// inner markup; restores prefer it over OriginalText so structure comes
	// back exactly.
	OriginalText string
	OriginalHTML string
	SourceLang   string
	TargetLang   string

	// Generation is the mode generation the state was last touched under.
	// Results arriving after a mode switch compare generations and discard.
	Generation uint64
}

// Table maps region keys to processing state. Safe for concurrent use:
// mutation batches, timer retries, and user toggles interleave, and these
// flags are the sole re-processing guard.
type Table struct {
	mu         sync.Mutex
	states     map[string]*State
	generation uint64
}

// NewTable returns an empty state table at generation zero.
func NewTable() *Table {
	return &Table{states: make(map[string]*State)}
}

// Get returns the state for key, creating a zero state on first access.
func (t *Table) Get(key string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.lookup(key)
}

// Update applies fn to the state for key under the table lock and returns
// the updated copy. fn sees and may mutate the live state.
func (t *Table) Update(key string, fn func(*State)) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.lookup(key)
	fn(st)
	return *st
}

// MarkProcessed sets the Processed flag and reports whether this call was
// the first to do so. The check-and-set is atomic: two interleaved mutation
// callbacks for the same region yield exactly one true.
func (t *Table) MarkProcessed(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.lookup(key)
	if st.Processed {
		return false
	}
	st.Processed = true
	st.Generation = t.generation
	return true
}

// Generation returns the current mode generation.
func (t *Table) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// NextGeneration bumps the mode generation, invalidating in-flight results.
func (t *Table) NextGeneration() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	return t.generation
}

// Translated returns the keys of all regions currently showing translated
// text, with their states.
func (t *Table) Translated() map[string]State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]State)
	for k, st := range t.states {
		if st.Translated {
			out[k] = *st
		}
	}
	return out
}

// ClearAuto drops AutoProcessed on every state, so a later switch back to
// auto mode re-translates visible messages.
func (t *Table) ClearAuto() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range t.states {
		st.AutoProcessed = false
	}
}

// ClearClickSetup drops ClickSetupDone on every state. Called when leaving
// click mode together with toggle removal.
func (t *Table) ClearClickSetup() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range t.states {
		st.ClickSetupDone = false
	}
}

// Reset drops all state. Called when the watcher reattaches after an SPA
// navigation, since the previous DOM lifetime's keys are meaningless in the new
// document.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[string]*State)
}

// Len reports the number of tracked regions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

func (t *Table) lookup(key string) *State {
	st, ok := t.states[key]
	if !ok {
		st = &State{Generation: t.generation}
		t.states[key] = st
	}
	return st
}
