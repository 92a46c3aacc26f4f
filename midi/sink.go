package midi

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go-sostenuto/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.bug.st/serial"
)

var (
	// ErrSinkUnavailable is returned when no output is connected or the
	// output has been closed.
	ErrSinkUnavailable = errors.New("sink unavailable")
	// ErrQueueFull is returned when a bounded queue has no free slot.
	ErrQueueFull = errors.New("queue full")
)

// Sink is an output collaborator. Send must never block for longer than a
// slot reservation: a congested sink drops the event and says so.
type Sink interface {
	Name() string
	Send(e Event) error
	Close() error
}

// DefaultOutboxSize is the number of events a sink buffers before dropping.
const DefaultOutboxSize = 256

const flushTimeout = time.Second

// outbox decouples callers from the device write. A single goroutine owns
// the device handle; callers only ever do a non-blocking channel send.
type outbox struct {
	name  string
	queue chan Event
	write func(Event) error
	close func() error
	done  chan struct{}

	mu     sync.RWMutex // guards closed against close(queue)
	closed bool

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func newOutbox(name string, size int, write func(Event) error, closeFn func() error) *outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	o := &outbox{
		name:  name,
		queue: make(chan Event, size),
		write: write,
		close: closeFn,
		done:  make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *outbox) run() {
	defer close(o.done)
	for ev := range o.queue {
		if err := o.write(ev); err != nil {
			o.failed.Add(1)
			debug.LogEvery(100, "sink", "%s: write failed: %v", o.name, err)
			continue
		}
		o.sent.Add(1)
	}
}

func (o *outbox) Name() string { return o.name }

func (o *outbox) Send(e Event) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrSinkUnavailable
	}
	select {
	case o.queue <- e:
		return nil
	default:
		o.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close stops intake, flushes what is queued (bounded by flushTimeout) and
// releases the device.
func (o *outbox) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	select {
	case <-o.done:
	case <-time.After(flushTimeout):
		debug.Log("sink", "%s: flush timed out, %d events pending", o.name, len(o.queue))
	}
	if o.close == nil {
		return nil
	}
	if err := o.close(); err != nil {
		return fmt.Errorf("close %s: %w", o.name, err)
	}
	return nil
}

// Sent, Dropped and Failed report the outbox counters.
func (o *outbox) Sent() uint64    { return o.sent.Load() }
func (o *outbox) Dropped() uint64 { return o.dropped.Load() }
func (o *outbox) Failed() uint64  { return o.failed.Load() }

// PortSink sends events to a MIDI output port.
type PortSink struct {
	*outbox
}

// OpenPortSink opens outPort for sending. The port is closed with the sink.
func OpenPortSink(outPort drivers.Out, size int) (*PortSink, error) {
	send, err := gomidi.SendTo(outPort)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	write := func(e Event) error {
		msg := e.Message()
		if len(msg) == 0 {
			return nil
		}
		return send(msg)
	}
	return &PortSink{outbox: newOutbox(outPort.String(), size, write, outPort.Close)}, nil
}

// DefaultSerialBaud is the DIN MIDI bit rate.
const DefaultSerialBaud = 31250

// SerialSink writes raw MIDI bytes to a serial device, for DIN adapters and
// microcontroller bridges.
type SerialSink struct {
	*outbox
}

// OpenSerialSink opens the named serial device at baud.
func OpenSerialSink(device string, baud, size int) (*SerialSink, error) {
	if baud <= 0 {
		baud = DefaultSerialBaud
	}
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	debug.Log("sink", "serial port %s opened at %d baud", device, baud)
	return &SerialSink{outbox: newSerialOutbox(device, size, port)}, nil
}

func newSerialOutbox(name string, size int, port serial.Port) *outbox {
	write := func(e Event) error {
		data := e.Bytes()
		if len(data) == 0 {
			return nil
		}
		_, err := port.Write(data)
		return err
	}
	return newOutbox(name, size, write, port.Close)
}
