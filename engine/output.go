package engine

import (
	"errors"
	"sync/atomic"
	"time"

	"go-sostenuto/midi"
)

var (
	ErrSinkUnavailable = midi.ErrSinkUnavailable
	ErrQueueFull       = midi.ErrQueueFull
	ErrOutOfRangeNote  = errors.New("note out of range")
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")
	ErrOffloadClosed   = errors.New("worker pool closed")
)

// Log sources that originate inside the engine.
const (
	SourceOnScreenKeyboard = "On-Screen Keyboard"
	SourceHeldBySostenuto  = "On-Screen Keyboard (Held by Sostenuto)"
	SourcePedalButton      = "Pedal Button"
	SourceSostenutoRelease = "Sostenuto Release"
)

// Stats are the engine's loss and throughput counters.
type Stats struct {
	Forwarded       atomic.Uint64
	Suppressed      atomic.Uint64
	Synthetic       atomic.Uint64
	Deferred        atomic.Uint64
	SinkUnavailable atomic.Uint64
	SinkFailures    atomic.Uint64
	EchoesIgnored   atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats plus queue losses.
type StatsSnapshot struct {
	Forwarded       uint64
	Suppressed      uint64
	Synthetic       uint64
	Deferred        uint64
	SinkUnavailable uint64
	SinkFailures    uint64
	EchoesIgnored   uint64
	LogDrops        uint64
	OffloadDrops    uint64
}

type sinkBox struct {
	sink midi.Sink
}

// output is shared by the router and the workers: the current sink, the
// log queue and the counters.
type output struct {
	sink    atomic.Pointer[sinkBox]
	logs    *LogQueue
	logging atomic.Bool
	stats   *Stats
}

func newOutput(logs *LogQueue, stats *Stats) *output {
	return &output{logs: logs, stats: stats}
}

func (o *output) setSink(s midi.Sink) midi.Sink {
	var next *sinkBox
	if s != nil {
		next = &sinkBox{sink: s}
	}
	prev := o.sink.Swap(next)
	if prev == nil {
		return nil
	}
	return prev.sink
}

func (o *output) currentSink() midi.Sink {
	if box := o.sink.Load(); box != nil {
		return box.sink
	}
	return nil
}

// send hands ev to the sink without logging. It returns the sink name for
// the caller's log record.
func (o *output) send(ev midi.Event) (string, error) {
	box := o.sink.Load()
	if box == nil {
		o.stats.SinkUnavailable.Add(1)
		return "", ErrSinkUnavailable
	}
	if err := box.sink.Send(ev); err != nil {
		if errors.Is(err, ErrSinkUnavailable) {
			o.stats.SinkUnavailable.Add(1)
		} else {
			o.stats.SinkFailures.Add(1)
		}
		return "", err
	}
	o.stats.Forwarded.Add(1)
	return box.sink.Name(), nil
}

// forward sends ev and, on success, logs it under the sink's name.
func (o *output) forward(ev midi.Event) error {
	name, err := o.send(ev)
	if err != nil {
		return err
	}
	o.record(ev, name)
	return nil
}

// record enqueues a log line. Best effort: a full queue drops it.
func (o *output) record(ev midi.Event, source string) {
	if !o.logging.Load() {
		return
	}
	o.logs.TryPush(LogRecord{Event: ev, Source: source, Time: ev.Time})
}

// clock measures monotonic time since engine start.
type clock struct {
	start time.Time
}

func (c clock) now() time.Duration {
	return time.Since(c.start)
}
