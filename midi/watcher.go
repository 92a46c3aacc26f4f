package midi

import (
	"context"
	"time"

	"go-sostenuto/debug"
)

// PortEvent is emitted when a port appears or disappears.
type PortEvent struct {
	Type  PortEventType
	Name  string
	Input bool
}

type PortEventType int

const (
	PortAppeared PortEventType = iota
	PortVanished
)

func (t PortEventType) String() string {
	if t == PortVanished {
		return "vanished"
	}
	return "appeared"
}

// Watcher polls the driver for port changes so a device unplugged and
// plugged back in can be picked up again.
type Watcher struct {
	pollRate time.Duration
	scan     func(time.Duration) (Ports, error)
	ins      map[string]bool
	outs     map[string]bool
	primed   bool // baseline taken
	events   chan PortEvent
}

// NewWatcher creates a watcher polling at pollRate (default one second).
func NewWatcher(pollRate time.Duration) *Watcher {
	if pollRate <= 0 {
		pollRate = time.Second
	}
	return &Watcher{
		pollRate: pollRate,
		scan:     ScanPorts,
		ins:      make(map[string]bool),
		outs:     make(map[string]bool),
		events:   make(chan PortEvent, 16),
	}
}

// Events returns the channel of port changes. It is closed when Run returns.
func (w *Watcher) Events() <-chan PortEvent {
	return w.events
}

// Run polls until ctx is done (blocking - run in goroutine). The first
// successful scan is the baseline and reports nothing.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)

	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	ports, err := w.scan(DefaultScanTimeout)
	if err != nil {
		// CoreMIDI is hung - skip this scan
		debug.LogEvery(10, "ports", "scan failed: %v", err)
		return
	}
	for _, ev := range w.diff(ports.InNames(), ports.OutNames()) {
		select {
		case w.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// diff updates the known port sets and returns what changed since the
// previous scan.
func (w *Watcher) diff(ins, outs []string) []PortEvent {
	events := diffSet(w.ins, ins, true)
	events = append(events, diffSet(w.outs, outs, false)...)
	if !w.primed {
		w.primed = true
		return nil
	}
	return events
}

func diffSet(known map[string]bool, now []string, input bool) []PortEvent {
	var events []PortEvent
	seen := make(map[string]bool, len(now))
	for _, name := range now {
		seen[name] = true
		if !known[name] {
			known[name] = true
			events = append(events, PortEvent{Type: PortAppeared, Name: name, Input: input})
		}
	}
	for name := range known {
		if !seen[name] {
			delete(known, name)
			events = append(events, PortEvent{Type: PortVanished, Name: name, Input: input})
		}
	}
	return events
}
