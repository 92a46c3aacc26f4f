package engine

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"go-sostenuto/config"
	"go-sostenuto/debug"
	"go-sostenuto/midi"

	"go.uber.org/multierr"
)

// Engine wires the realtime router, the worker offload and the log drainer
// behind the midi.Receiver interface.
type Engine struct {
	cfg     *config.Config
	clock   clock
	stats   Stats
	logs    *LogQueue
	out     *output
	router  *Router
	offload *Offload
	drainer *Drainer

	changes chan struct{}

	mu      sync.Mutex
	inputs  []io.Closer
	started bool
	closed  bool
}

var _ midi.Receiver = (*Engine)(nil)

// New builds an engine from cfg. Nothing runs until Start.
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		clock:   clock{start: time.Now()},
		logs:    NewLogQueue(cfg.LogQueue),
		changes: make(chan struct{}, 1),
	}
	e.out = newOutput(e.logs, &e.stats)
	e.out.logging.Store(cfg.LoggingEnabled)
	e.router = newRouter(
		uint8(cfg.SostenutoController),
		uint8(cfg.Threshold),
		uint8(cfg.ReferenceChannel-1),
		e.out,
		e.clock.now,
		e.notify,
	)
	e.offload = NewOffload(cfg.WorkerCount(), cfg.OffloadQueue, cfg.OffloadPolicy, e.runDeferred)
	e.drainer = NewDrainer(e.logs, cfg.LogLineCap, cfg.DrainInterval(), e.out.logging.Load)

	debug.Log("engine", "created: cc=%d threshold=%d channel=%d workers=%d",
		cfg.SostenutoController, cfg.Threshold, cfg.ReferenceChannel, cfg.WorkerCount())
	return e, nil
}

// Start begins draining the log.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true
	e.drainer.Start()
}

// SetSink replaces the output sink and returns the previous one, which the
// caller owns. A nil sink makes every send fail with ErrSinkUnavailable.
func (e *Engine) SetSink(s midi.Sink) midi.Sink {
	prev := e.out.setSink(s)
	if s != nil {
		debug.Log("engine", "sink set to %s", s.Name())
	}
	return prev
}

// Sink returns the current sink, or nil.
func (e *Engine) Sink() midi.Sink { return e.out.currentSink() }

// AddInput hands an open input to the engine so Close stops it first.
func (e *Engine) AddInput(in io.Closer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, in)
}

// RemoveInput closes an input previously added, e.g. one whose device was
// unplugged.
func (e *Engine) RemoveInput(in io.Closer) error {
	e.mu.Lock()
	idx := slices.Index(e.inputs, in)
	if idx >= 0 {
		e.inputs = slices.Delete(e.inputs, idx, idx+1)
	}
	e.mu.Unlock()

	if idx < 0 {
		return nil
	}
	return in.Close()
}

// Now is the engine's monotonic clock.
func (e *Engine) Now() time.Duration { return e.clock.now() }

// OnRawEvent receives an event from an input port. It never blocks.
func (e *Engine) OnRawEvent(ev midi.Event, source string) {
	ev.Time = e.clock.now()
	e.out.record(ev, source)

	if midi.Classify(ev, e.router.sostenutoCC) == midi.RealTime {
		e.router.HandleInput(ev)
		return
	}
	e.submitDeferred(ev, source)
}

// OnLocalEvent receives an event from the on-screen controller.
func (e *Engine) OnLocalEvent(ev midi.Event, source string) {
	ev.Time = e.clock.now()

	if midi.Classify(ev, e.router.sostenutoCC) == midi.RealTime {
		e.router.HandleLocal(ev, source)
		return
	}
	e.out.record(ev, source)
	e.submitDeferred(ev, source)
}

func (e *Engine) submitDeferred(ev midi.Event, source string) {
	if err := e.offload.Submit(ev, source); err != nil {
		debug.LogEvery(100, "engine", "deferred %s dropped: %v", midi.Describe(ev), err)
		return
	}
	e.stats.Deferred.Add(1)
}

func (e *Engine) runDeferred(ev midi.Event, source string) {
	if midi.Classify(ev, e.router.sostenutoCC) == midi.RealTime {
		return
	}
	if err := e.out.forward(ev); err != nil {
		debug.LogEvery(100, "engine", "forward %s from %s: %v", midi.Describe(ev), source, err)
	}
}

func (e *Engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

// Changes signals, coalesced, that the pedal or key state moved.
func (e *Engine) Changes() <-chan struct{} { return e.changes }

// LogUpdates delivers formatted log batches.
func (e *Engine) LogUpdates() <-chan LogUpdate { return e.drainer.Updates() }

// SetLoggingEnabled turns the event log on or off. Turning it off discards
// pending records and resets the display on the next drain.
func (e *Engine) SetLoggingEnabled(on bool) {
	e.out.logging.Store(on)
	debug.Log("engine", "logging enabled=%v", on)
}

func (e *Engine) LoggingEnabled() bool { return e.out.logging.Load() }

// Snapshot copies the router state.
func (e *Engine) Snapshot() Snapshot { return e.router.Snapshot() }

// Router exposes the realtime path, mainly for tests.
func (e *Engine) Router() *Router { return e.router }

// Stats returns the current counters.
func (e *Engine) Stats() StatsSnapshot {
	return StatsSnapshot{
		Forwarded:       e.stats.Forwarded.Load(),
		Suppressed:      e.stats.Suppressed.Load(),
		Synthetic:       e.stats.Synthetic.Load(),
		Deferred:        e.stats.Deferred.Load(),
		SinkUnavailable: e.stats.SinkUnavailable.Load(),
		SinkFailures:    e.stats.SinkFailures.Load(),
		EchoesIgnored:   e.stats.EchoesIgnored.Load(),
		LogDrops:        e.logs.Dropped(),
		OffloadDrops:    e.offload.Dropped(),
	}
}

// Close tears down in order: inputs, workers, drainer, state, sink. The
// sink goes last so in-flight work can still reach it.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	inputs := e.inputs
	e.inputs = nil
	started := e.started
	e.mu.Unlock()

	var err error
	for _, in := range inputs {
		err = multierr.Append(err, in.Close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(e.cfg.ShutdownTimeout))
	defer cancel()
	if shutdownErr := e.offload.Shutdown(ctx); shutdownErr != nil {
		debug.Log("engine", "%v", shutdownErr)
		err = multierr.Append(err, shutdownErr)
	}

	if started {
		e.drainer.Stop()
	}
	e.logs.Discard()
	e.router.reset()

	if s := e.out.setSink(nil); s != nil {
		if closeErr := s.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close sink: %w", closeErr))
		}
	}

	st := e.Stats()
	debug.Log("engine", "closed: forwarded=%d suppressed=%d synthetic=%d logDrops=%d offloadDrops=%d",
		st.Forwarded, st.Suppressed, st.Synthetic, st.LogDrops, st.OffloadDrops)
	return err
}
