package theme

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// DefaultPalette is a dark-to-bright ramp used when no palette file is given.
func DefaultPalette() *Palette {
	return &Palette{
		Name: "ember",
		Colors: []RGB{
			{0x0d, 0x08, 0x87},
			{0x41, 0x04, 0x9d},
			{0x6a, 0x00, 0xa8},
			{0x8f, 0x0d, 0xa4},
			{0xb1, 0x2a, 0x90},
			{0xcc, 0x47, 0x78},
			{0xe1, 0x64, 0x62},
			{0xf2, 0x84, 0x4b},
			{0xfc, 0xa6, 0x36},
			{0xfc, 0xce, 0x25},
			{0xf0, 0xf9, 0x21},
		},
	}
}

// LoadGPL reads a GIMP palette file.
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &Palette{}
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Name:") {
			p.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			continue
		}

		// Skip headers and comments
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") || strings.HasPrefix(line, "Columns") {
			continue
		}

		// first 3 fields are R G B
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		var rgb RGB
		ok := true
		for i := 0; i < 3; i++ {
			v, err := strconv.Atoi(fields[i])
			if err != nil || v < 0 || v > 255 {
				ok = false
				break
			}
			rgb[i] = uint8(v)
		}
		if ok {
			p.Colors = append(p.Colors, rgb)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p.Colors) < 2 {
		return nil, fmt.Errorf("palette %s needs at least 2 colors, found %d", path, len(p.Colors))
	}

	return p, nil
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	if norm <= 0 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	frac := pos - float64(i)

	c0 := p.Colors[i]
	c1 := p.Colors[i+1]

	return RGB{
		lerp(c0[0], c1[0], frac),
		lerp(c0[1], c1[1], frac),
		lerp(c0[2], c1[2], frac),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}
