package engine

import (
	"sync"
	"testing"
	"time"

	"go-sostenuto/config"
	"go-sostenuto/midi"
)

// recordingSink keeps every event it is sent.
type recordingSink struct {
	mu     sync.Mutex
	name   string
	events []midi.Event
	err    error
	closed bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{name: "Test Out"}
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(e midi.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.closed {
		return midi.ErrSinkUnavailable
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Events() []midi.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]midi.Event, len(s.events))
	copy(out, s.events)
	return out
}

// noteOffs lists the notes of every note-off sent.
func (s *recordingSink) noteOffs() []uint8 {
	var notes []uint8
	for _, e := range s.Events() {
		if e.IsNoteOff() {
			notes = append(notes, e.Note)
		}
	}
	return notes
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func newTestEngine(t *testing.T, mutate ...func(*config.Config)) (*Engine, *recordingSink) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Workers = 2
	for _, m := range mutate {
		m(cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	sink := newRecordingSink()
	e.SetSink(sink)
	t.Cleanup(func() { _ = e.Close() })
	return e, sink
}

const testInput = "Test In (Input)"

func noteOn(note uint8) midi.Event  { return midi.NewNoteOn(0, note, 100, 0) }
func noteOff(note uint8) midi.Event { return midi.NewNoteOff(0, note, 0) }
func pedal(value uint8) midi.Event  { return midi.NewControlChange(0, 66, value, 0) }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
