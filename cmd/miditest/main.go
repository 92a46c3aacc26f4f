package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-sostenuto/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	defer midi.CloseDriver()

	switch os.Args[1] {
	case "list":
		listPorts()
	case "scenario":
		sendScenario(arg(2))
	case "monitor":
		monitor(arg(2))
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func arg(i int) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return ""
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list             - List all MIDI ports")
	fmt.Println("  scenario <out>   - Play the sostenuto check sequence to an output")
	fmt.Println("  monitor <in>     - Print every message arriving on an input")
	fmt.Println("  poll             - Poll for device changes")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ports, err := midi.ScanPorts(midi.DefaultScanTimeout)
	if err != nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, name := range ports.InNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range ports.OutNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

// sendScenario plays C E G, engages the pedal, lifts E, then releases the
// pedal while C and G are still down. A router in between should let
// exactly one note-off for E through, on pedal release.
func sendScenario(name string) {
	if name == "" {
		usage()
		return
	}
	ports, err := midi.ScanPorts(midi.DefaultScanTimeout)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	out, err := ports.FindOut(name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}
	fmt.Printf("Using output: %s\n", out.String())

	steps := []struct {
		desc string
		msg  gomidi.Message
	}{
		{"note on C3", gomidi.NoteOn(0, 60, 100)},
		{"note on E3", gomidi.NoteOn(0, 64, 100)},
		{"note on G3", gomidi.NoteOn(0, 67, 100)},
		{"sostenuto down", gomidi.ControlChange(0, midi.DefaultSostenutoCC, 127)},
		{"note off E3 (should be held)", gomidi.NoteOff(0, 64)},
		{"sostenuto up (E3 released)", gomidi.ControlChange(0, midi.DefaultSostenutoCC, 0)},
		{"note off C3", gomidi.NoteOff(0, 60)},
		{"note off G3", gomidi.NoteOff(0, 67)},
	}
	for _, s := range steps {
		fmt.Printf("Sending: %s\n", s.desc)
		if err := send(s.msg); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		time.Sleep(300 * time.Millisecond)
	}
	fmt.Println("Done!")
}

type printer struct{}

func (printer) OnRawEvent(e midi.Event, source string) {
	fmt.Printf("[%s] %s (%s)\n", time.Now().Format("15:04:05.000"), midi.Describe(e), source)
}

func (printer) OnLocalEvent(e midi.Event, source string) {}

func monitor(name string) {
	if name == "" {
		usage()
		return
	}
	ports, err := midi.ScanPorts(midi.DefaultScanTimeout)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	port, err := ports.FindIn(name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	in, err := midi.OpenInput(port, printer{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer in.Close()

	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", in.Name())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-ctx.Done()
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a device to test. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w := midi.NewWatcher(2 * time.Second)
	go w.Run(ctx)

	for ev := range w.Events() {
		kind := "output"
		if ev.Input {
			kind = "input"
		}
		fmt.Printf("[%s] %s %s %s\n", time.Now().Format("15:04:05"), kind, ev.Name, ev.Type)
	}
}
