package midi

import (
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types (status byte with the channel nibble cleared)
const (
	Unknown        uint8 = 0x00
	NoteOff        uint8 = 0x80
	NoteOn         uint8 = 0x90
	PolyAfterTouch uint8 = 0xA0
	CC             uint8 = 0xB0
	ProgramChange  uint8 = 0xC0
	AfterTouch     uint8 = 0xD0
	PitchBend      uint8 = 0xE0
	SysEx          uint8 = 0xF0
)

// NumNotes is the number of addressable note slots.
const NumNotes = 128

// Event is a classified copy of one wire message.
type Event struct {
	Type       uint8 // NoteOn, NoteOff, CC, ...
	Channel    uint8 // 0-15
	Note       uint8 // key for note and poly aftertouch messages
	Velocity   uint8
	Controller uint8
	Value      uint8 // controller value, program number or pressure
	Bend       int16 // relative pitch bend (-8192..8191)

	// Raw holds the original bytes for events that came off the wire.
	// Synthetic events leave it nil.
	Raw gomidi.Message

	// Time is the offset from engine start at which the event was created.
	Time time.Duration
}

// FromMessage converts a gomidi message into an Event stamped with at.
func FromMessage(msg gomidi.Message, at time.Duration) Event {
	ev := Event{Raw: msg, Time: at}

	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		ev.Type, ev.Channel, ev.Note, ev.Velocity = NoteOn, ch, key, vel
	case msg.GetNoteOff(&ch, &key, &vel):
		ev.Type, ev.Channel, ev.Note, ev.Velocity = NoteOff, ch, key, vel
	case msg.GetNoteEnd(&ch, &key):
		// note on with velocity 0
		ev.Type, ev.Channel, ev.Note = NoteOff, ch, key
	case msg.GetControlChange(&ch, &cc, &val):
		ev.Type, ev.Channel, ev.Controller, ev.Value = CC, ch, cc, val
	case msg.GetProgramChange(&ch, &val):
		ev.Type, ev.Channel, ev.Value = ProgramChange, ch, val
	case msg.GetPitchBend(&ch, &rel, &abs):
		ev.Type, ev.Channel, ev.Bend = PitchBend, ch, rel
	case msg.GetAfterTouch(&ch, &val):
		ev.Type, ev.Channel, ev.Value = AfterTouch, ch, val
	case msg.GetPolyAfterTouch(&ch, &key, &val):
		ev.Type, ev.Channel, ev.Note, ev.Value = PolyAfterTouch, ch, key, val
	case len(msg) > 0 && msg[0] == 0xF0:
		ev.Type = SysEx
	default:
		ev.Type = Unknown
	}
	return ev
}

// NewNoteOn builds a synthetic note-on event.
func NewNoteOn(channel, note, velocity uint8, at time.Duration) Event {
	return Event{Type: NoteOn, Channel: channel, Note: note, Velocity: velocity, Time: at}
}

// NewNoteOff builds a synthetic note-off event.
func NewNoteOff(channel, note uint8, at time.Duration) Event {
	return Event{Type: NoteOff, Channel: channel, Note: note, Time: at}
}

// NewControlChange builds a synthetic controller event.
func NewControlChange(channel, controller, value uint8, at time.Duration) Event {
	return Event{Type: CC, Channel: channel, Controller: controller, Value: value, Time: at}
}

// Message returns the wire form of the event. Events that came off the
// wire are sent back byte for byte.
func (e Event) Message() gomidi.Message {
	if len(e.Raw) > 0 {
		return e.Raw
	}
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(e.Channel, e.Note)
	case CC:
		return gomidi.ControlChange(e.Channel, e.Controller, e.Value)
	case ProgramChange:
		return gomidi.ProgramChange(e.Channel, e.Value)
	case PitchBend:
		return gomidi.Pitchbend(e.Channel, e.Bend)
	case AfterTouch:
		return gomidi.AfterTouch(e.Channel, e.Value)
	case PolyAfterTouch:
		return gomidi.PolyAfterTouch(e.Channel, e.Note, e.Value)
	}
	return nil
}

// Bytes returns the raw wire bytes (nil for an unencodable event).
func (e Event) Bytes() []byte {
	return []byte(e.Message())
}

func (e Event) IsNoteOn() bool  { return e.Type == NoteOn }
func (e Event) IsNoteOff() bool { return e.Type == NoteOff }

// IsController reports whether e is a control change for controller cc.
func (e Event) IsController(cc uint8) bool {
	return e.Type == CC && e.Controller == cc
}
