package midi

// Priority says how an event must be routed.
type Priority int

const (
	// Deferrable events may be handed to a background worker.
	Deferrable Priority = iota
	// RealTime events go through the router inline.
	RealTime
)

func (p Priority) String() string {
	if p == RealTime {
		return "realtime"
	}
	return "deferrable"
}

// DefaultSostenutoCC is the standard sostenuto pedal controller number.
const DefaultSostenutoCC uint8 = 66

// Classify maps an event to its routing priority. Note on/off and the
// sostenuto controller are time-critical; everything else can wait.
func Classify(e Event, sostenutoCC uint8) Priority {
	switch e.Type {
	case NoteOn, NoteOff:
		return RealTime
	case CC:
		if e.Controller == sostenutoCC {
			return RealTime
		}
	}
	return Deferrable
}
