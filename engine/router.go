package engine

import (
	"sync"
	"time"

	"go-sostenuto/midi"
)

// Outcome says what the router did with one event.
type Outcome int

const (
	// Ignored events changed nothing on the wire.
	Ignored Outcome = iota
	// Forwarded events were accepted by the sink.
	Forwarded
	// Suppressed note-offs were absorbed by the sostenuto hold.
	Suppressed
	// Dropped events were meant for the sink but it refused them.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Forwarded:
		return "forwarded"
	case Suppressed:
		return "suppressed"
	case Dropped:
		return "dropped"
	default:
		return "ignored"
	}
}

// Snapshot is a copy of the router state for display.
type Snapshot struct {
	PedalDown bool
	Held      HoldSet
	Live      HoldSet // reference channel
}

// Router is the time-critical path. One mutex serializes every change to
// the hold set, pedal state and key state; the sink is written while it is
// held, which is fine because sinks never block.
type Router struct {
	mu               sync.Mutex
	held             HoldSet
	keys             KeyState
	pedalDown        bool
	applyingExternal bool // set for the duration of one input-sourced event

	sostenutoCC uint8
	threshold   uint8
	refChannel  uint8 // 0-15

	out    *output
	now    func() time.Duration
	notify func()
}

func newRouter(sostenutoCC, threshold, refChannel uint8, out *output, now func() time.Duration, notify func()) *Router {
	if notify == nil {
		notify = func() {}
	}
	return &Router{
		sostenutoCC: sostenutoCC,
		threshold:   threshold,
		refChannel:  refChannel,
		out:         out,
		now:         now,
		notify:      notify,
	}
}

// HandleInput applies an event that arrived from an input port. The caller
// has already logged it.
func (r *Router) HandleInput(ev midi.Event) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applyingExternal = true
	defer func() { r.applyingExternal = false }()

	switch {
	case ev.IsNoteOn():
		r.keys.Press(ev.Channel, ev.Note)
		r.keyChanged(ev, "")
		return r.forward(ev)

	case ev.IsNoteOff():
		r.keys.Release(ev.Channel, ev.Note)
		r.keyChanged(ev, "")
		if r.held.IsHeld(ev.Note) {
			r.out.stats.Suppressed.Add(1)
			return Suppressed
		}
		return r.forward(ev)

	case ev.IsController(r.sostenutoCC):
		r.setPedal(ev.Value >= r.threshold)
		return r.forward(ev)
	}
	return Ignored
}

// HandleLocal applies an event from the on-screen controller. Notes are
// forwarded through the keyboard listener, the pedal through the state
// machine.
func (r *Router) HandleLocal(ev midi.Event, source string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case ev.IsNoteOn():
		r.keys.Press(ev.Channel, ev.Note)
		return r.keyChanged(ev, source)

	case ev.IsNoteOff():
		r.keys.Release(ev.Channel, ev.Note)
		return r.keyChanged(ev, source)

	case ev.IsController(r.sostenutoCC):
		r.out.record(ev, source)
		r.setPedal(ev.Value >= r.threshold)
		if _, err := r.out.send(ev); err != nil {
			return Dropped
		}
		return Forwarded
	}
	return Ignored
}

// keyChanged is the virtual keyboard's listener. Changes made while an
// input event is being applied are only mirrored: the input path forwards
// those itself, so the keyboard must not echo them.
func (r *Router) keyChanged(ev midi.Event, source string) Outcome {
	r.notify()
	if r.applyingExternal {
		r.out.stats.EchoesIgnored.Add(1)
		return Ignored
	}

	if ev.IsNoteOff() && r.held.IsHeld(ev.Note) {
		if source == SourceOnScreenKeyboard {
			source = SourceHeldBySostenuto
		} else {
			source += " (Held by Sostenuto)"
		}
		r.out.record(ev, source)
		r.out.stats.Suppressed.Add(1)
		return Suppressed
	}

	r.out.record(ev, source)
	return r.forward(ev)
}

// setPedal runs the pedal state machine. Values that do not cross the
// threshold leave the state alone.
func (r *Router) setPedal(down bool) {
	if down == r.pedalDown {
		return
	}
	r.pedalDown = down
	if down {
		r.held.Union(r.keys.Live(r.refChannel))
	} else {
		r.release()
	}
	r.notify()
}

// release sends a note-off for every held note whose key is up, lowest
// note first, and empties the hold set.
func (r *Router) release() {
	r.held.Drain(func(note uint8) {
		if r.keys.IsLive(r.refChannel, note) {
			return
		}
		off := midi.NewNoteOff(r.refChannel, note, r.now())
		if _, err := r.out.send(off); err == nil {
			r.out.stats.Synthetic.Add(1)
			r.out.record(off, SourceSostenutoRelease)
		}
	})
	r.held.ClearAll()
}

func (r *Router) forward(ev midi.Event) Outcome {
	if err := r.out.forward(ev); err != nil {
		return Dropped
	}
	return Forwarded
}

// PedalDown reports the pedal state.
func (r *Router) PedalDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pedalDown
}

// IsHeld reports whether note is currently held by the pedal.
func (r *Router) IsHeld(note uint8) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held.IsHeld(note)
}

// Snapshot copies the state for display.
func (r *Router) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		PedalDown: r.pedalDown,
		Held:      r.held,
		Live:      r.keys.Live(r.refChannel),
	}
}

// reset clears all state; used at teardown.
func (r *Router) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.held.ClearAll()
	r.keys.Reset()
	r.pedalDown = false
}
