package engine

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go-sostenuto/debug"
	"go-sostenuto/midi"
)

// DefaultLineCap is the number of log lines kept on screen.
const DefaultLineCap = 500

// LogUpdate is one batch of formatted log text for the display. Apply it in
// order: clear if Reset, append Text, then drop Trim lines from the top.
type LogUpdate struct {
	Text  string
	Lines int
	Trim  int
	Reset bool
}

// merge folds next into u so a slow display skips frames instead of lines.
func (u LogUpdate) merge(next LogUpdate) LogUpdate {
	if next.Reset {
		return next
	}
	u.Text += next.Text
	u.Lines += next.Lines
	u.Trim += next.Trim
	return u
}

// FormatRecord renders one record as "hh:mm:ss.mmm  -  description (source)".
func FormatRecord(r LogRecord) string {
	t := r.Time
	if t < 0 {
		t = 0
	}
	h := int(t / time.Hour)
	m := int(t/time.Minute) % 60
	s := int(t/time.Second) % 60
	ms := int(t/time.Millisecond) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d  -  %s (%s)", h, m, s, ms, midi.Describe(r.Event), r.Source)
}

// Drainer moves log records from the queue to the display at a fixed rate.
// All formatting happens here, never on the routing path.
type Drainer struct {
	queue    *LogQueue
	lineCap  int
	interval time.Duration
	enabled  func() bool
	updates  chan LogUpdate

	batch       []LogRecord
	lines       int // lines the display currently holds
	pending     *LogUpdate
	wasEnabled  bool
	lastDropped uint64

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewDrainer drains queue every interval. enabled reports whether logging
// is on; when it turns off the queue is discarded and the display reset.
func NewDrainer(queue *LogQueue, lineCap int, interval time.Duration, enabled func() bool) *Drainer {
	if lineCap <= 0 {
		lineCap = DefaultLineCap
	}
	if interval <= 0 {
		interval = time.Second / 30
	}
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Drainer{
		queue:      queue,
		lineCap:    lineCap,
		interval:   interval,
		enabled:    enabled,
		updates:    make(chan LogUpdate, 16),
		wasEnabled: true,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Updates delivers batches for the display.
func (d *Drainer) Updates() <-chan LogUpdate { return d.updates }

// Start runs the drain loop until Stop.
func (d *Drainer) Start() {
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-ticker.C:
				d.Tick()
			}
		}
	}()
}

// Stop ends the drain loop and waits for it.
func (d *Drainer) Stop() {
	d.once.Do(func() {
		close(d.stop)
	})
	select {
	case <-d.done:
	case <-time.After(time.Second):
		debug.Log("log", "drainer stop timed out")
	}
}

// Tick performs one drain pass. It is called by the loop; tests call it
// directly.
func (d *Drainer) Tick() {
	if dropped := d.queue.Dropped(); dropped != d.lastDropped {
		debug.Log("log", "queue full, %d records dropped", dropped-d.lastDropped)
		d.lastDropped = dropped
	}

	if !d.enabled() {
		d.queue.Discard()
		if d.wasEnabled {
			d.wasEnabled = false
			d.lines = 0
			d.emit(LogUpdate{Reset: true})
		}
		d.flush()
		return
	}
	d.wasEnabled = true

	d.batch = d.queue.Drain(d.batch[:0])
	if len(d.batch) > 0 {
		d.emit(d.build(d.batch))
		clear(d.batch)
	}
	d.flush()
}

// build formats a batch and works out how much the display must trim.
func (d *Drainer) build(batch []LogRecord) LogUpdate {
	slices.SortStableFunc(batch, func(a, b LogRecord) int {
		return cmp.Compare(a.Time, b.Time)
	})

	excess := d.lines + len(batch) - d.lineCap
	if excess > d.lineCap/2 {
		// Far over the cap: start over with the newest lines only.
		if len(batch) > d.lineCap {
			batch = batch[len(batch)-d.lineCap:]
		}
		d.lines = len(batch)
		return LogUpdate{Text: format(batch), Lines: len(batch), Reset: true}
	}

	u := LogUpdate{Text: format(batch), Lines: len(batch)}
	d.lines += len(batch)
	if excess > 0 {
		u.Trim = excess
		d.lines -= excess
	}
	return u
}

func format(batch []LogRecord) string {
	var b strings.Builder
	for _, r := range batch {
		b.WriteString(FormatRecord(r))
		b.WriteByte('\n')
	}
	return b.String()
}

// emit queues u behind any update the display has not taken yet. A pending
// update never holds more than lineCap lines: once it would, it becomes a
// reset carrying only the newest lines.
func (d *Drainer) emit(u LogUpdate) {
	if d.pending != nil {
		u = d.pending.merge(u)
	}
	if u.Lines > d.lineCap {
		u = LogUpdate{Text: lastLines(u.Text, d.lineCap), Lines: d.lineCap, Reset: true}
	}
	d.pending = &u
}

// lastLines returns the final n newline-terminated lines of text.
func lastLines(text string, n int) string {
	for i := len(text) - 2; i >= 0; i-- {
		if text[i] == '\n' {
			n--
			if n == 0 {
				return text[i+1:]
			}
		}
	}
	return text
}

// flush hands the pending update to the display if it has room; otherwise
// it waits for the next tick and is merged with whatever comes next.
func (d *Drainer) flush() {
	if d.pending == nil {
		return
	}
	select {
	case d.updates <- *d.pending:
		d.pending = nil
	default:
	}
}

// Lines is the line count the display holds once every update is applied.
func (d *Drainer) Lines() int { return d.lines }

// LogBuffer applies LogUpdates to a list of lines. The TUI log pane uses it.
type LogBuffer struct {
	lines []string
}

// Apply performs one update.
func (b *LogBuffer) Apply(u LogUpdate) {
	if u.Reset {
		b.lines = b.lines[:0]
	}
	if u.Text != "" {
		b.lines = append(b.lines, strings.Split(strings.TrimSuffix(u.Text, "\n"), "\n")...)
	}
	if u.Trim > 0 {
		if u.Trim >= len(b.lines) {
			b.lines = b.lines[:0]
		} else {
			b.lines = slices.Delete(b.lines, 0, u.Trim)
		}
	}
}

func (b *LogBuffer) Len() int { return len(b.lines) }

func (b *LogBuffer) Lines() []string { return b.lines }

func (b *LogBuffer) String() string { return strings.Join(b.lines, "\n") }

func (b *LogBuffer) Reset() { b.lines = b.lines[:0] }
