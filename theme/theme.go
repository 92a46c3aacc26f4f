package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	KeyUp   rune // □ key not sounding
	KeyDown rune // ■ key pressed or held

	PedalUp   rune // ○
	PedalDown rune // ●
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			KeyUp:   '□',
			KeyDown: '■',

			PedalUp:   '○',
			PedalDown: '●',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleLive    = 0.7 // key pressed
	RoleHeld    = 0.8 // key held by the pedal
	RoleSuccess = 1.0
)

// Style helpers

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Live() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleLive))
}

func (t *Theme) Held() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleHeld))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
