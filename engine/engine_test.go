package engine

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go-sostenuto/config"
	"go-sostenuto/midi"
)

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogQueue = 0
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}

func drainSources(t *testing.T, e *Engine) []string {
	t.Helper()
	var sources []string
	for _, r := range e.logs.Drain(nil) {
		sources = append(sources, r.Source)
	}
	return sources
}

func TestInputEventLoggedUnderSourceAndSink(t *testing.T) {
	e, _ := newTestEngine(t)

	e.OnRawEvent(noteOn(60), testInput)

	got := drainSources(t, e)
	want := []string{testInput, "Test Out"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("log sources %v want %v", got, want)
	}
}

func TestHeldLocalNoteOffLoggedAsHeld(t *testing.T) {
	e, _ := newTestEngine(t)
	kb := NewVirtualKeyboard(e, 1, 0, 66)

	kb.NoteOn(60)
	kb.Pedal(true)
	e.logs.Discard()

	kb.NoteOff(60)
	got := drainSources(t, e)
	if len(got) != 1 || got[0] != SourceHeldBySostenuto {
		t.Fatalf("log sources %v", got)
	}

	kb.Pedal(false)
	got = drainSources(t, e)
	want := []string{SourcePedalButton, SourceSostenutoRelease}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("release log sources %v want %v", got, want)
	}
}

func TestLoggingDisabledRecordsNothing(t *testing.T) {
	e, sink := newTestEngine(t, func(c *config.Config) { c.LoggingEnabled = false })

	e.OnRawEvent(noteOn(60), testInput)
	if e.logs.Len() != 0 {
		t.Fatalf("records queued while logging disabled")
	}
	if len(sink.Events()) != 1 {
		t.Fatalf("routing should not depend on logging")
	}

	e.SetLoggingEnabled(true)
	e.OnRawEvent(noteOff(60), testInput)
	if e.logs.Len() != 2 {
		t.Fatalf("queued %d", e.logs.Len())
	}
}

func TestEventsAreTimestamped(t *testing.T) {
	e, sink := newTestEngine(t)
	time.Sleep(2 * time.Millisecond)
	e.OnRawEvent(noteOn(60), testInput)
	if ev := sink.Events()[0]; ev.Time <= 0 {
		t.Fatalf("event not stamped: %v", ev.Time)
	}
}

func TestDeferrableEventsGoThroughWorkers(t *testing.T) {
	e, sink := newTestEngine(t)

	e.OnRawEvent(midi.NewControlChange(0, 7, 100, 0), testInput)
	e.OnRawEvent(programChange(5), testInput)

	waitFor(t, "deferred forwarding", func() bool { return len(sink.Events()) == 2 })
	if st := e.Stats(); st.Deferred != 2 {
		t.Fatalf("deferred %d", st.Deferred)
	}
	if e.Router().PedalDown() {
		t.Fatalf("volume change moved the pedal")
	}
}

func TestCustomSostenutoController(t *testing.T) {
	e, sink := newTestEngine(t, func(c *config.Config) {
		c.SostenutoController = 64
		c.Threshold = 100
	})

	e.OnRawEvent(noteOn(60), testInput)
	e.OnRawEvent(midi.NewControlChange(0, 64, 99, 0), testInput)
	if e.Router().PedalDown() {
		t.Fatalf("99 is below the configured threshold")
	}
	e.OnRawEvent(midi.NewControlChange(0, 64, 100, 0), testInput)
	e.OnRawEvent(noteOff(60), testInput)
	if offs := sink.noteOffs(); len(offs) != 0 {
		t.Fatalf("note-off forwarded under custom pedal: %v", offs)
	}
}

func TestChangesSignalCoalesces(t *testing.T) {
	e, _ := newTestEngine(t)

	e.OnRawEvent(noteOn(60), testInput)
	e.OnRawEvent(noteOn(62), testInput)
	e.OnRawEvent(pedal(127), testInput)

	select {
	case <-e.Changes():
	default:
		t.Fatalf("no change signal")
	}
	select {
	case <-e.Changes():
		t.Fatalf("change signals were not coalesced")
	default:
	}
}

type closeRecorder struct {
	order *[]string
	name  string
	err   error
}

func (c closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestCloseOrderAndErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workers = 2
	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	e.Start()

	var order []string
	sink := newRecordingSink()
	e.SetSink(sink)
	e.AddInput(closeRecorder{order: &order, name: "in-a"})
	e.AddInput(closeRecorder{order: &order, name: "in-b", err: errors.New("boom")})

	e.OnRawEvent(noteOn(60), testInput)
	e.OnRawEvent(pedal(127), testInput)

	err = e.Close()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected input close error, got %v", err)
	}
	if strings.Join(order, ",") != "in-a,in-b" {
		t.Fatalf("close order %v", order)
	}
	if !sink.closed {
		t.Fatalf("sink not closed")
	}
	if e.Sink() != nil {
		t.Fatalf("sink still attached")
	}
	snap := e.Snapshot()
	if snap.PedalDown || !snap.Held.Empty() {
		t.Fatalf("state not cleared: %+v", snap)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	// Late events after teardown are swallowed.
	e.OnRawEvent(noteOn(61), testInput)
	e.OnRawEvent(programChange(1), testInput)
}

func TestConcurrentSourcesLeaveConsistentState(t *testing.T) {
	e, sink := newTestEngine(t)
	kb := NewVirtualKeyboard(e, 1, 0, 66)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(base uint8) {
			defer wg.Done()
			for i := 0; i < 400; i++ {
				note := base + uint8(i%12)
				e.OnRawEvent(noteOn(note), testInput)
				switch i % 5 {
				case 0:
					e.OnRawEvent(pedal(127), testInput)
				case 1:
					e.OnRawEvent(programChange(uint8(i%128)), testInput)
				case 2:
					kb.NoteOn(int(note) + 12)
					kb.NoteOff(int(note) + 12)
				case 3:
					e.OnRawEvent(pedal(0), testInput)
				case 4:
					e.SetLoggingEnabled(i%2 == 0)
				}
				e.OnRawEvent(noteOff(note), testInput)
			}
		}(uint8(30 + g*24))
	}
	wg.Wait()
	e.OnRawEvent(pedal(0), testInput)

	snap := e.Snapshot()
	if snap.PedalDown || !snap.Held.Empty() || !snap.Live.Empty() {
		t.Fatalf("state after all keys up: pedal=%v held=%v live=%v",
			snap.PedalDown, snap.Held.Notes(), snap.Live.Notes())
	}

	// Every note that sounded must end with a note-off on the wire.
	var sounding [midi.NumNotes]bool
	for _, ev := range sink.Events() {
		switch {
		case ev.IsNoteOn():
			sounding[ev.Note] = true
		case ev.IsNoteOff():
			sounding[ev.Note] = false
		}
	}
	for note, on := range sounding {
		if on {
			t.Fatalf("note %d left sounding", note)
		}
	}
}
