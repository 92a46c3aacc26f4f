package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// KeyState is how a piano key is drawn.
type KeyState int

const (
	KeyUp KeyState = iota
	KeyLive
	KeyHeld
	KeyLiveHeld
)

// KeyStyle maps key states to colors and glyphs.
type KeyStyle struct {
	Up, Live, Held lipgloss.Color
	UpGlyph        rune
	DownGlyph      rune
}

// RenderKey renders a single key
func RenderKey(state KeyState, style KeyStyle) string {
	switch state {
	case KeyLive:
		return lipgloss.NewStyle().Foreground(style.Live).Render(string(style.DownGlyph))
	case KeyHeld:
		return lipgloss.NewStyle().Foreground(style.Held).Render(string(style.DownGlyph))
	case KeyLiveHeld:
		return lipgloss.NewStyle().Foreground(style.Held).Bold(true).Underline(true).Render(string(style.DownGlyph))
	default:
		return lipgloss.NewStyle().Foreground(style.Up).Render(string(style.UpGlyph))
	}
}

var blackAbove = [12]bool{0: true, 2: true, 5: true, 7: true, 9: true} // C D F G A have a sharp

func isWhite(note int) bool {
	switch note % 12 {
	case 1, 3, 6, 8, 10:
		return false
	}
	return true
}

// RenderKeyboard draws octaves starting at low (rounded down to a C) as two
// rows: sharps on top, naturals below, two cells per natural. A non-nil
// label adds a row naming each C.
func RenderKeyboard(low, octaves int, state func(note int) KeyState, style KeyStyle, label func(note int) string) string {
	if low < 0 {
		low = 0
	}
	low -= low % 12
	high := low + octaves*12
	if high > 128 {
		high = 128
	}

	var top, bottom, names strings.Builder
	for note := low; note < high; note++ {
		if !isWhite(note) {
			continue
		}
		bottom.WriteString(RenderKey(state(note), style))
		bottom.WriteString(" ")

		top.WriteString(" ")
		if sharp := note + 1; blackAbove[note%12] && sharp < high {
			top.WriteString(RenderKey(state(sharp), style))
		} else {
			top.WriteString(" ")
		}

		if label != nil && note%12 == 0 {
			names.WriteString(fmt.Sprintf("%-2s", label(note)))
		} else {
			names.WriteString("  ")
		}
	}

	rows := []string{top.String(), bottom.String()}
	if label != nil {
		rows = append(rows, strings.TrimRight(names.String(), " "))
	}
	return strings.Join(rows, "\n")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color lipgloss.Color, glyph rune, name, desc string) string {
	sw := lipgloss.NewStyle().Foreground(color).Render(string(glyph))
	return fmt.Sprintf("  %s %s - %s", sw, name, desc)
}
