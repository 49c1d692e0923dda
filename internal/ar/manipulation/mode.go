package manipulation

import (
	"fmt"
	"strings"
)

// Mode is the active manipulation mode. At most one non-idle mode is active.
type Mode int

const (
	ModeIdle Mode = iota
	ModeTranslate
	ModeScale
	ModeRecolor
	ModeVariantSwap
	ModeCameraCapture
)

var modeNames = map[Mode]string{
	ModeIdle:          "idle",
	ModeTranslate:     "translate",
	ModeScale:         "scale",
	ModeRecolor:       "recolor",
	ModeVariantSwap:   "variant",
	ModeCameraCapture: "capture",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts the mode names used by the command language.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "move":
		return ModeTranslate, nil
	case "resize":
		return ModeScale, nil
	case "color", "colour":
		return ModeRecolor, nil
	case "rim", "swap":
		return ModeVariantSwap, nil
	case "camera":
		return ModeCameraCapture, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeIdle, fmt.Errorf("unknown mode %q", s)
}

// Direction is a screen-aligned direction for translate pads and swipes.
type Direction int

const (
	Left Direction = iota
	Right
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection parses left, right, up or down.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return Left, fmt.Errorf("unknown direction %q", s)
}

// ScaleDelta is a single scale button press.
type ScaleDelta int

const (
	Increase ScaleDelta = iota
	Decrease
)

func (d ScaleDelta) String() string {
	if d == Decrease {
		return "-"
	}
	return "+"
}

// DepthDelta is one step along the surface normal.
type DepthDelta int

const (
	Outward DepthDelta = iota
	Inward
)

func (d DepthDelta) String() string {
	if d == Inward {
		return "in"
	}
	return "out"
}

// ParseDepth parses out/+ or in/-.
func ParseDepth(s string) (DepthDelta, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "out", "+":
		return Outward, nil
	case "in", "-":
		return Inward, nil
	}
	return Outward, fmt.Errorf("unknown depth step %q", s)
}

// Swatch is one of the palette entries.
type Swatch int

const (
	SwatchLight Swatch = iota
	SwatchDark
	SwatchAccent
)

func (s Swatch) String() string {
	switch s {
	case SwatchLight:
		return "light"
	case SwatchDark:
		return "dark"
	case SwatchAccent:
		return "accent"
	}
	return fmt.Sprintf("swatch(%d)", int(s))
}

// ParseSwatch parses light, dark or accent.
func ParseSwatch(s string) (Swatch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light", "white":
		return SwatchLight, nil
	case "dark", "gray", "grey":
		return SwatchDark, nil
	case "accent", "purple":
		return SwatchAccent, nil
	}
	return SwatchLight, fmt.Errorf("unknown swatch %q", s)
}
