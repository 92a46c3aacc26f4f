package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// ErrPortScanTimeout is returned when the driver does not answer a port
// listing in time (CoreMIDI can hang).
var ErrPortScanTimeout = errors.New("midi port scan timed out")

// DefaultScanTimeout bounds a single port listing.
const DefaultScanTimeout = 3 * time.Second

// Ports is a snapshot of the available MIDI ports.
type Ports struct {
	Ins  []drivers.In
	Outs []drivers.Out
}

// ScanPorts lists ports with a timeout.
func ScanPorts(timeout time.Duration) (Ports, error) {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}

	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{Ins: gomidi.GetInPorts(), Outs: gomidi.GetOutPorts()}
	}()

	select {
	case p := <-ch:
		return p, nil
	case <-time.After(timeout):
		return Ports{}, ErrPortScanTimeout
	}
}

// InNames returns the input port names in driver order.
func (p Ports) InNames() []string {
	names := make([]string, len(p.Ins))
	for i, in := range p.Ins {
		names[i] = in.String()
	}
	return names
}

// OutNames returns the output port names in driver order.
func (p Ports) OutNames() []string {
	names := make([]string, len(p.Outs))
	for i, out := range p.Outs {
		names[i] = out.String()
	}
	return names
}

// FindIn returns the input whose name equals name, or failing that the
// first one containing it (case-insensitive).
func (p Ports) FindIn(name string) (drivers.In, error) {
	idx := matchPort(p.InNames(), name)
	if idx < 0 {
		return nil, fmt.Errorf("input %q not found (have %v)", name, p.InNames())
	}
	return p.Ins[idx], nil
}

// FindOut is FindIn for outputs.
func (p Ports) FindOut(name string) (drivers.Out, error) {
	idx := matchPort(p.OutNames(), name)
	if idx < 0 {
		return nil, fmt.Errorf("output %q not found (have %v)", name, p.OutNames())
	}
	return p.Outs[idx], nil
}

func matchPort(names []string, name string) int {
	if name == "" {
		return -1
	}
	for i, n := range names {
		if n == name {
			return i
		}
	}
	for i, n := range names {
		if containsCI(n, name) {
			return i
		}
	}
	return -1
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// CloseDriver releases the registered MIDI driver.
func CloseDriver() {
	gomidi.CloseDriver()
}
