package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go-sostenuto/config"
	"go-sostenuto/midi"
)

// DefaultOffloadQueueSize is the number of queued deferrable tasks.
const DefaultOffloadQueueSize = 256

type task struct {
	ev     midi.Event
	source string
}

// Offload runs non-time-critical forwarding on a fixed pool of goroutines
// so the input callback never does unbounded work. Task order across
// workers is not preserved; each event carries its own timestamp.
type Offload struct {
	tasks  chan task
	policy config.OffloadPolicy
	handle func(ev midi.Event, source string)

	mu     sync.RWMutex // guards closed against close(tasks)
	closed bool
	abort  atomic.Bool
	wg     sync.WaitGroup

	dropped   atomic.Uint64
	completed atomic.Uint64
}

// NewOffload starts workers goroutines consuming a queue of size tasks.
func NewOffload(workers, size int, policy config.OffloadPolicy, handle func(ev midi.Event, source string)) *Offload {
	if workers < 2 {
		workers = 2
	}
	if size <= 0 {
		size = DefaultOffloadQueueSize
	}
	if policy == "" {
		policy = config.RejectNew
	}
	o := &Offload{
		tasks:  make(chan task, size),
		policy: policy,
		handle: handle,
	}
	o.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go o.worker()
	}
	return o
}

func (o *Offload) worker() {
	defer o.wg.Done()
	for t := range o.tasks {
		if o.abort.Load() {
			o.dropped.Add(1)
			continue
		}
		o.handle(t.ev, t.source)
		o.completed.Add(1)
	}
}

// Submit queues ev without blocking. When the queue is full the configured
// policy decides what is lost; the loss is counted either way.
func (o *Offload) Submit(ev midi.Event, source string) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrOffloadClosed
	}

	t := task{ev: ev, source: source}
	select {
	case o.tasks <- t:
		return nil
	default:
	}

	if o.policy == config.DropOldest {
		select {
		case <-o.tasks:
			o.dropped.Add(1)
		default:
		}
		select {
		case o.tasks <- t:
			return nil
		default:
		}
	}

	o.dropped.Add(1)
	return ErrQueueFull
}

// Shutdown stops intake and waits for queued tasks to finish. If ctx ends
// first the remaining tasks are skipped and ErrShutdownTimeout is returned.
func (o *Offload) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.tasks)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		o.abort.Store(true)
		return fmt.Errorf("%w: %d tasks pending", ErrShutdownTimeout, len(o.tasks))
	}
}

// Pending is the number of queued tasks.
func (o *Offload) Pending() int { return len(o.tasks) }

// Dropped counts tasks lost to saturation or an aborted shutdown.
func (o *Offload) Dropped() uint64 { return o.dropped.Load() }

// Completed counts tasks run to completion.
func (o *Offload) Completed() uint64 { return o.completed.Load() }
