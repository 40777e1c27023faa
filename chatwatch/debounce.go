package chatwatch

import "time"

// candidate is one message element awaiting extraction: its page key and
// its serialized HTML at observation time.
type candidate struct {
	Key  string
	HTML string
	Seq  uint64
}

// debounceConfig controls candidate batching.
type debounceConfig struct {
	// Window is the debounce time. Default: 250ms.
	Window time.Duration
	// MaxBuffer flushes immediately when this many candidates accumulate.
	// Default: 200.
	MaxBuffer int
}

func (dc *debounceConfig) defaults() {
	if dc.Window <= 0 {
		dc.Window = 250 * time.Millisecond
	}
	if dc.MaxBuffer <= 0 {
		dc.MaxBuffer = 200
	}
}

// debouncer collects candidates and emits them as a batch when the window
// expires or the buffer fills. Within a buffer, repeated observations of
// the same key are collapsed to the latest HTML while keeping the key's
// first-seen position, so batches preserve DOM-insertion order.
type debouncer struct {
	cfg     debounceConfig
	order   []string
	byKey   map[string]candidate
	timer   *time.Timer
	timerCh <-chan time.Time
	flushFn func([]candidate)
}

func newDebouncer(cfg debounceConfig, flushFn func([]candidate)) *debouncer {
	cfg.defaults()
	return &debouncer{
		cfg:     cfg,
		byKey:   make(map[string]candidate),
		flushFn: flushFn,
	}
}

// add pushes a candidate into the buffer. Returns true if an immediate
// flush was triggered.
func (d *debouncer) add(c candidate) bool {
	if _, seen := d.byKey[c.Key]; !seen {
		d.order = append(d.order, c.Key)
	}
	d.byKey[c.Key] = c

	if len(d.order) >= d.cfg.MaxBuffer {
		d.flush()
		return true
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.cfg.Window)
	d.timerCh = d.timer.C
	return false
}

// timerC returns the channel that fires when the debounce window expires.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

// flush emits the buffered candidates in first-seen order, then resets.
func (d *debouncer) flush() {
	if len(d.order) == 0 {
		return
	}

	batch := make([]candidate, 0, len(d.order))
	for _, key := range d.order {
		batch = append(batch, d.byKey[key])
	}
	d.flushFn(batch)

	d.order = d.order[:0]
	clear(d.byKey)
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
}
