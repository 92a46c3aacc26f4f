package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-sostenuto/config"
	"go-sostenuto/debug"
	"go-sostenuto/engine"
	"go-sostenuto/midi"
	"go-sostenuto/tui"
)

// connector opens the configured ports and reopens them when the device
// comes back after being unplugged.
type connector struct {
	eng *engine.Engine
	cfg *config.Config

	mu     sync.Mutex
	input  *midi.Input
	output midi.Sink
	cancel context.CancelFunc
}

func newConnector(eng *engine.Engine, cfg *config.Config) *connector {
	return &connector{eng: eng, cfg: cfg}
}

// connect opens whatever is configured. A missing MIDI port is not fatal
// since it may be plugged in later; a serial device that fails to open is.
func (c *connector) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Ports.Serial != "" {
		sink, err := midi.OpenSerialSink(c.cfg.Ports.Serial, c.cfg.Ports.SerialBaud, c.cfg.SinkQueue)
		if err != nil {
			return err
		}
		c.setOutput(sink)
	}

	if c.cfg.Ports.Input == "" && c.cfg.Ports.Output == "" {
		return nil
	}
	ports, err := midi.ScanPorts(midi.DefaultScanTimeout)
	if err != nil {
		debug.Log("ports", "initial scan: %v", err)
		return nil
	}
	if err := c.openInput(ports); err != nil {
		debug.Log("ports", "%v", err)
	}
	if c.output == nil {
		if err := c.openOutput(ports); err != nil {
			debug.Log("ports", "%v", err)
		}
	}
	return nil
}

func (c *connector) openInput(ports midi.Ports) error {
	if c.cfg.Ports.Input == "" || c.input != nil {
		return nil
	}
	port, err := ports.FindIn(c.cfg.Ports.Input)
	if err != nil {
		return err
	}
	in, err := midi.OpenInput(port, c.eng)
	if err != nil {
		return err
	}
	c.input = in
	c.eng.AddInput(in)
	return nil
}

func (c *connector) openOutput(ports midi.Ports) error {
	if c.cfg.Ports.Output == "" || c.output != nil {
		return nil
	}
	port, err := ports.FindOut(c.cfg.Ports.Output)
	if err != nil {
		return err
	}
	sink, err := midi.OpenPortSink(port, c.cfg.SinkQueue)
	if err != nil {
		return err
	}
	c.setOutput(sink)
	return nil
}

func (c *connector) setOutput(s midi.Sink) {
	c.output = s
	if prev := c.eng.SetSink(s); prev != nil {
		if err := prev.Close(); err != nil {
			debug.Log("ports", "close %s: %v", prev.Name(), err)
		}
	}
}

func (c *connector) ports() tui.Ports {
	c.mu.Lock()
	defer c.mu.Unlock()
	var p tui.Ports
	if c.input != nil {
		p.Input = c.input.Name()
	}
	if c.output != nil {
		p.Output = c.output.Name()
	}
	return p
}

// watch starts polling for port changes. Serial output is not watched.
func (c *connector) watch() *midi.Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	w := midi.NewWatcher(time.Second)
	go w.Run(ctx)
	return w
}

func (c *connector) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// handlePort reacts to a port change and returns the new connection state
// with a status line for the UI.
func (c *connector) handlePort(ev midi.PortEvent) (tui.Ports, string) {
	status := c.apply(ev)
	return c.ports(), status
}

func (c *connector) apply(ev midi.PortEvent) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	kind := "output"
	if ev.Input {
		kind = "input"
	}

	switch {
	case ev.Type == midi.PortVanished && ev.Input && c.input != nil && c.input.Name() == ev.Name:
		if err := c.eng.RemoveInput(c.input); err != nil {
			debug.Log("ports", "%v", err)
		}
		c.input = nil
		return fmt.Sprintf("input %s disconnected", ev.Name)

	case ev.Type == midi.PortVanished && !ev.Input && c.output != nil && c.output.Name() == ev.Name:
		c.setOutput(nil)
		return fmt.Sprintf("output %s disconnected", ev.Name)

	case ev.Type == midi.PortAppeared && wants(c.cfg.Ports.Input, ev, true) && c.input == nil,
		ev.Type == midi.PortAppeared && wants(c.cfg.Ports.Output, ev, false) && c.output == nil:
		ports, err := midi.ScanPorts(midi.DefaultScanTimeout)
		if err != nil {
			return err.Error()
		}
		if ev.Input {
			err = c.openInput(ports)
		} else {
			err = c.openOutput(ports)
		}
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s %s connected", kind, ev.Name)
	}

	return fmt.Sprintf("%s %s %s", kind, ev.Name, ev.Type)
}

func wants(configured string, ev midi.PortEvent, input bool) bool {
	if configured == "" || ev.Input != input {
		return false
	}
	return ev.Name == configured || strings.Contains(strings.ToLower(ev.Name), strings.ToLower(configured))
}
