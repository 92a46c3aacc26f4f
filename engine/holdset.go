package engine

import (
	"math/bits"

	"go-sostenuto/midi"
)

// HoldSet is a fixed 128-bit set of note numbers. It does no locking of its
// own; the router guards it.
type HoldSet struct {
	words [2]uint64
}

// Mark adds note to the set. Out-of-range notes are ignored.
func (h *HoldSet) Mark(note uint8) {
	if note >= midi.NumNotes {
		return
	}
	h.words[note>>6] |= 1 << (note & 63)
}

// Clear removes note from the set.
func (h *HoldSet) Clear(note uint8) {
	if note >= midi.NumNotes {
		return
	}
	h.words[note>>6] &^= 1 << (note & 63)
}

// IsHeld reports membership; false for out-of-range notes.
func (h *HoldSet) IsHeld(note uint8) bool {
	if note >= midi.NumNotes {
		return false
	}
	return h.words[note>>6]&(1<<(note&63)) != 0
}

func (h *HoldSet) ClearAll() {
	h.words = [2]uint64{}
}

// Union adds every member of other.
func (h *HoldSet) Union(other HoldSet) {
	h.words[0] |= other.words[0]
	h.words[1] |= other.words[1]
}

// Drain visits every member in ascending order and leaves the set empty.
// The set is already cleared when fn runs.
func (h *HoldSet) Drain(fn func(note uint8)) {
	snapshot := h.words
	h.words = [2]uint64{}
	for k, w := range snapshot {
		for w != 0 {
			fn(uint8(k*64 + bits.TrailingZeros64(w)))
			w &= w - 1
		}
	}
}

func (h HoldSet) Len() int {
	return bits.OnesCount64(h.words[0]) + bits.OnesCount64(h.words[1])
}

func (h HoldSet) Empty() bool {
	return h.words[0] == 0 && h.words[1] == 0
}

// Notes lists the members in ascending order.
func (h HoldSet) Notes() []uint8 {
	notes := make([]uint8, 0, h.Len())
	for k, w := range h.words {
		for w != 0 {
			notes = append(notes, uint8(k*64+bits.TrailingZeros64(w)))
			w &= w - 1
		}
	}
	return notes
}

// KeyState tracks which keys are pressed, per channel.
type KeyState struct {
	channels [16]HoldSet
}

func (k *KeyState) Press(channel, note uint8) {
	k.channels[channel&0x0F].Mark(note)
}

func (k *KeyState) Release(channel, note uint8) {
	k.channels[channel&0x0F].Clear(note)
}

func (k *KeyState) IsLive(channel, note uint8) bool {
	return k.channels[channel&0x0F].IsHeld(note)
}

// Live returns a copy of the pressed keys on channel.
func (k *KeyState) Live(channel uint8) HoldSet {
	return k.channels[channel&0x0F]
}

func (k *KeyState) Reset() {
	k.channels = [16]HoldSet{}
}
