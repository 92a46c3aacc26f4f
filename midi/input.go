package midi

import (
	"fmt"

	"go-sostenuto/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Receiver is the capability the routing core exposes to event sources.
// Input ports call OnRawEvent; the on-screen controller calls OnLocalEvent.
type Receiver interface {
	OnRawEvent(e Event, source string)
	OnLocalEvent(e Event, source string)
}

// Input listens on a MIDI input port and hands every message to a Receiver.
type Input struct {
	name     string
	source   string
	inPort   drivers.In
	stopFunc func()
}

// OpenInput starts listening on inPort. The callback runs on the driver's
// goroutine and must stay short, so it only converts and hands off.
func OpenInput(inPort drivers.In, r Receiver) (*Input, error) {
	in := &Input{
		name:   inPort.String(),
		source: inPort.String() + " (Input)",
		inPort: inPort,
	}

	stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
		r.OnRawEvent(FromMessage(msg, 0), in.source)
	}, gomidi.HandleError(func(listenErr error) {
		debug.Log("input", "%s: listener error: %v", in.name, listenErr)
	}))
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	in.stopFunc = stop
	debug.Log("input", "listening on %s", in.name)
	return in, nil
}

func (in *Input) Name() string {
	return in.name
}

// Source is the tag attached to log records from this input.
func (in *Input) Source() string {
	return in.source
}

// Close stops the listener and releases the port.
func (in *Input) Close() error {
	if in.stopFunc != nil {
		in.stopFunc()
		in.stopFunc = nil
	}
	if err := in.inPort.Close(); err != nil {
		return fmt.Errorf("close input %s: %w", in.name, err)
	}
	return nil
}
