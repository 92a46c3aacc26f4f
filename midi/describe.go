package midi

import (
	"fmt"
	"strconv"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// middle C (note 60) is rendered as C3
const middleCOctave = 3

// NoteName returns the sharp spelling of a note with its octave, e.g. "C3".
func NoteName(note uint8) string {
	if note >= NumNotes {
		return "?" + strconv.Itoa(int(note))
	}
	octave := int(note)/12 + middleCOctave - 5
	return noteNames[note%12] + strconv.Itoa(octave)
}

var controllerNames = [128]string{
	0:   "Bank Select",
	1:   "Modulation Wheel (coarse)",
	2:   "Breath controller (coarse)",
	4:   "Foot Pedal (coarse)",
	5:   "Portamento Time (coarse)",
	6:   "Data Entry (coarse)",
	7:   "Volume (coarse)",
	8:   "Balance (coarse)",
	10:  "Pan position (coarse)",
	11:  "Expression (coarse)",
	12:  "Effect Control 1 (coarse)",
	13:  "Effect Control 2 (coarse)",
	16:  "General Purpose Slider 1",
	17:  "General Purpose Slider 2",
	18:  "General Purpose Slider 3",
	19:  "General Purpose Slider 4",
	32:  "Bank Select (fine)",
	33:  "Modulation Wheel (fine)",
	34:  "Breath controller (fine)",
	36:  "Foot Pedal (fine)",
	37:  "Portamento Time (fine)",
	38:  "Data Entry (fine)",
	39:  "Volume (fine)",
	40:  "Balance (fine)",
	42:  "Pan position (fine)",
	43:  "Expression (fine)",
	44:  "Effect Control 1 (fine)",
	45:  "Effect Control 2 (fine)",
	64:  "Hold Pedal (on/off)",
	65:  "Portamento (on/off)",
	66:  "Sostenuto Pedal (on/off)",
	67:  "Soft Pedal (on/off)",
	68:  "Legato Pedal (on/off)",
	69:  "Hold 2 Pedal (on/off)",
	70:  "Sound Variation",
	71:  "Sound Timbre",
	72:  "Sound Release Time",
	73:  "Sound Attack Time",
	74:  "Sound Brightness",
	75:  "Sound Control 6",
	76:  "Sound Control 7",
	77:  "Sound Control 8",
	78:  "Sound Control 9",
	79:  "Sound Control 10",
	80:  "General Purpose Button 1 (on/off)",
	81:  "General Purpose Button 2 (on/off)",
	82:  "General Purpose Button 3 (on/off)",
	83:  "General Purpose Button 4 (on/off)",
	91:  "Reverb Level",
	92:  "Tremolo Level",
	93:  "Chorus Level",
	94:  "Celeste Level",
	95:  "Phaser Level",
	96:  "Data Button increment",
	97:  "Data Button decrement",
	98:  "Non-registered Parameter (fine)",
	99:  "Non-registered Parameter (coarse)",
	100: "Registered Parameter (fine)",
	101: "Registered Parameter (coarse)",
	120: "All Sound Off",
	121: "All Controllers Off",
	122: "Local Keyboard (on/off)",
	123: "All Notes Off",
	124: "Omni Mode Off",
	125: "Omni Mode On",
	126: "Mono Operation",
	127: "Poly Operation",
}

// ControllerName returns the conventional name of a controller, or "[n]"
// when it has none.
func ControllerName(cc uint8) string {
	if int(cc) < len(controllerNames) && controllerNames[cc] != "" {
		return controllerNames[cc]
	}
	return "[" + strconv.Itoa(int(cc)) + "]"
}

// Describe renders a one-line human readable description of e.
func Describe(e Event) string {
	switch e.Type {
	case NoteOn:
		return "Note on " + NoteName(e.Note)
	case NoteOff:
		return "Note off " + NoteName(e.Note)
	case ProgramChange:
		return "Program change " + strconv.Itoa(int(e.Value))
	case PitchBend:
		return "Pitch wheel " + strconv.Itoa(int(e.Bend)+8192)
	case PolyAfterTouch:
		return "After touch " + NoteName(e.Note) + ": " + strconv.Itoa(int(e.Value))
	case AfterTouch:
		return "Channel pressure " + strconv.Itoa(int(e.Value))
	case CC:
		switch e.Controller {
		case 123:
			return "All notes off"
		case 120:
			return "All sound off"
		}
		return "Controller " + ControllerName(e.Controller) + ": " + strconv.Itoa(int(e.Value))
	}
	return fmt.Sprintf("% X", e.Bytes())
}
