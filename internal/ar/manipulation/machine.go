// Package manipulation is the interactive state machine that edits a placed
// wheel assembly: nudging it along the surface, resizing, recoloring and
// swapping rim styles.
package manipulation

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/carstom/internal/ar/assembly"
)

// Settings are the manipulation step sizes and palette.
type Settings struct {
	TranslateStep       float64
	TranslateStepCoarse float64
	ScaleStep           float64
	MinScale            float64
	DepthStep           float64
	Swatches            map[Swatch]colorful.Color
}

// DefaultSettings returns the stock step sizes and palette.
func DefaultSettings() Settings {
	return Settings{
		TranslateStep:       0.005,
		TranslateStepCoarse: 0.01,
		ScaleStep:           0.01,
		MinScale:            0.01,
		DepthStep:           0.01,
		Swatches: map[Swatch]colorful.Color{
			SwatchLight:  {R: 1, G: 1, B: 1},
			SwatchDark:   {R: 0.333, G: 0.333, B: 0.333},
			SwatchAccent: {R: 114.0 / 255, G: 75.0 / 255, B: 139.0 / 255},
		},
	}
}

// ParseSwatches builds a palette from hex strings.
func ParseSwatches(light, dark, accent string) (map[Swatch]colorful.Color, error) {
	out := make(map[Swatch]colorful.Color, 3)
	for sw, hex := range map[Swatch]string{SwatchLight: light, SwatchDark: dark, SwatchAccent: accent} {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("invalid %s swatch %q: %w", sw, hex, err)
		}
		out[sw] = c
	}
	return out, nil
}

// Controls is the set of affordances a host shows for the current mode.
type Controls struct {
	TranslatePad     bool `json:"translate_pad"`
	ScaleButtons     bool `json:"scale_buttons"`
	Palette          bool `json:"palette"`
	VariantArrows    bool `json:"variant_arrows"`
	CaptureOverlay   bool `json:"capture_overlay"`
	PlacementEnabled bool `json:"placement_enabled"`
	GesturesEnabled  bool `json:"gestures_enabled"`
}

// BaselineControls is the idle state: no mode panels, placement and
// gestures enabled.
func BaselineControls() Controls {
	return Controls{PlacementEnabled: true, GesturesEnabled: true}
}

// Machine holds the current mode and its controls. Operations take the
// assembly they act on explicitly; a nil assembly makes them no-ops.
type Machine struct {
	settings Settings
	mode     Mode
	controls Controls
}

// New returns an idle machine.
func New(settings Settings) *Machine {
	return &Machine{settings: settings, controls: BaselineControls()}
}

// Mode returns the active mode.
func (m *Machine) Mode() Mode { return m.mode }

// Controls returns the affordances for the active mode.
func (m *Machine) Controls() Controls { return m.controls }

// Settings returns the step sizes and palette.
func (m *Machine) Settings() Settings { return m.settings }

// Enter switches to mode, exiting any other active mode first. Entering the
// active mode again changes nothing.
func (m *Machine) Enter(mode Mode) {
	if mode == m.mode {
		return
	}
	if m.mode != ModeIdle {
		m.Exit()
	}
	if mode == ModeIdle {
		return
	}
	switch mode {
	case ModeTranslate:
		m.controls.TranslatePad = true
	case ModeScale:
		m.controls.ScaleButtons = true
	case ModeRecolor:
		m.controls.Palette = true
	case ModeVariantSwap:
		m.controls.VariantArrows = true
	case ModeCameraCapture:
		m.controls.CaptureOverlay = true
		m.controls.PlacementEnabled = false
		m.controls.GesturesEnabled = false
	}
	m.mode = mode
}

// Exit reverses the affordances of the active mode and returns to idle. It
// is idempotent.
func (m *Machine) Exit() {
	switch m.mode {
	case ModeTranslate:
		m.controls.TranslatePad = false
	case ModeScale:
		m.controls.ScaleButtons = false
	case ModeRecolor:
		m.controls.Palette = false
	case ModeVariantSwap:
		m.controls.VariantArrows = false
	case ModeCameraCapture:
		m.controls.CaptureOverlay = false
		m.controls.PlacementEnabled = true
		m.controls.GesturesEnabled = true
	}
	m.mode = ModeIdle
}

// Toggle enters mode, or exits it when it is already active.
func (m *Machine) Toggle(mode Mode) {
	if m.mode == mode {
		m.Exit()
		return
	}
	m.Enter(mode)
}

func (m *Machine) editable(a *assembly.Assembly) bool {
	return a != nil && m.mode != ModeCameraCapture
}

// Translate nudges the assembly one step along its parent's X (left/right)
// or Y (up/down) axis.
func (m *Machine) Translate(a *assembly.Assembly, dir Direction, coarse bool) bool {
	if !m.editable(a) {
		return false
	}
	step := m.settings.TranslateStep
	if coarse {
		step = m.settings.TranslateStepCoarse
	}
	p := a.Container.Position
	switch dir {
	case Left:
		p.X -= step
	case Right:
		p.X += step
	case Up:
		p.Y += step
	case Down:
		p.Y -= step
	default:
		return false
	}
	a.Container.Position = p
	return true
}

// Scale adds or removes one scale step uniformly, never going below
// MinScale.
func (m *Machine) Scale(a *assembly.Assembly, delta ScaleDelta) bool {
	if !m.editable(a) {
		return false
	}
	s := a.UniformScale()
	if delta == Decrease {
		s -= m.settings.ScaleStep
	} else {
		s += m.settings.ScaleStep
	}
	if s < m.settings.MinScale {
		s = m.settings.MinScale
	}
	a.SetUniformScale(s)
	return true
}

// Depth moves the assembly one step along its surface's normal, the
// container's Z. Outward moves toward the viewer.
func (m *Machine) Depth(a *assembly.Assembly, delta DepthDelta) bool {
	if !m.editable(a) {
		return false
	}
	p := a.Container.Position
	if delta == Inward {
		p.Z -= m.settings.DepthStep
	} else {
		p.Z += m.settings.DepthStep
	}
	a.Container.Position = p
	return true
}

// Recolor sets the shared rim material to a palette swatch.
func (m *Machine) Recolor(a *assembly.Assembly, sw Swatch) bool {
	if !m.editable(a) {
		return false
	}
	c, ok := m.settings.Swatches[sw]
	if !ok {
		return false
	}
	a.RimMaterial.Diffuse = c
	return true
}

// SwapVariant steps to the neighbouring rim variant.
func (m *Machine) SwapVariant(a *assembly.Assembly, dir assembly.Direction) bool {
	if !m.editable(a) {
		return false
	}
	a.SwapVariant(dir)
	return true
}

// Swipe routes a classified swipe according to the active mode: translate
// nudges, scale resizes on up/down, variant swap steps on left/right. Other
// modes ignore swipes.
func (m *Machine) Swipe(a *assembly.Assembly, dir Direction) bool {
	switch m.mode {
	case ModeTranslate:
		return m.Translate(a, dir, false)
	case ModeScale:
		switch dir {
		case Up:
			return m.Scale(a, Increase)
		case Down:
			return m.Scale(a, Decrease)
		}
	case ModeVariantSwap:
		switch dir {
		case Right:
			return m.SwapVariant(a, assembly.Next)
		case Left:
			return m.SwapVariant(a, assembly.Previous)
		}
	}
	return false
}

// Remove detaches the assembly from the scene and returns to idle.
func (m *Machine) Remove(a *assembly.Assembly) bool {
	if !m.editable(a) || !a.Attached() {
		return false
	}
	a.Detach()
	m.Exit()
	return true
}
