package engine

import (
	"fmt"

	"go-sostenuto/midi"
)

// DefaultVelocity is the velocity of on-screen key presses.
const DefaultVelocity = 100

// VirtualKeyboard turns on-screen key and pedal presses into local events.
type VirtualKeyboard struct {
	recv        midi.Receiver
	channel     uint8
	velocity    uint8
	sostenutoCC uint8
}

// NewVirtualKeyboard sends on channel (1-16) to recv.
func NewVirtualKeyboard(recv midi.Receiver, channel int, velocity uint8, sostenutoCC uint8) *VirtualKeyboard {
	if channel < 1 || channel > 16 {
		channel = 1
	}
	if velocity == 0 {
		velocity = DefaultVelocity
	}
	return &VirtualKeyboard{
		recv:        recv,
		channel:     uint8(channel - 1),
		velocity:    velocity,
		sostenutoCC: sostenutoCC,
	}
}

// NoteOn presses note.
func (k *VirtualKeyboard) NoteOn(note int) error {
	if note < 0 || note >= midi.NumNotes {
		return fmt.Errorf("%w: %d", ErrOutOfRangeNote, note)
	}
	k.recv.OnLocalEvent(midi.NewNoteOn(k.channel, uint8(note), k.velocity, 0), SourceOnScreenKeyboard)
	return nil
}

// NoteOff releases note.
func (k *VirtualKeyboard) NoteOff(note int) error {
	if note < 0 || note >= midi.NumNotes {
		return fmt.Errorf("%w: %d", ErrOutOfRangeNote, note)
	}
	k.recv.OnLocalEvent(midi.NewNoteOff(k.channel, uint8(note), 0), SourceOnScreenKeyboard)
	return nil
}

// Pedal presses or lifts the sostenuto pedal.
func (k *VirtualKeyboard) Pedal(down bool) {
	var value uint8
	if down {
		value = 127
	}
	k.recv.OnLocalEvent(midi.NewControlChange(k.channel, k.sostenutoCC, value, 0), SourcePedalButton)
}
