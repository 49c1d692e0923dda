package coordinator

import (
	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/assembly"
	"github.com/banshee-data/carstom/internal/ar/manipulation"
	"github.com/banshee-data/carstom/internal/ar/selection"
)

// Intent is a user action. The concrete types below are the only
// implementations.
type Intent interface {
	intent()
}

// Tap places an assembly at Point, or selects the assembly under it.
type Tap struct{ Point arsession.ScreenPoint }

// EnterMode switches the manipulation mode.
type EnterMode struct{ Mode manipulation.Mode }

// ToggleMode enters Mode, or closes it when it is already active.
type ToggleMode struct{ Mode manipulation.Mode }

// ExitMode returns to idle.
type ExitMode struct{}

// Translate nudges the active assembly.
type Translate struct {
	Direction manipulation.Direction
	Coarse    bool
}

// Scale resizes the active assembly by one step.
type Scale struct{ Delta manipulation.ScaleDelta }

// Depth moves the active assembly along the surface normal.
type Depth struct{ Delta manipulation.DepthDelta }

// Recolor applies a palette swatch to the shared rim material.
type Recolor struct{ Swatch manipulation.Swatch }

// SwapVariant steps the active rim variant.
type SwapVariant struct{ Direction assembly.Direction }

// Swipe is a classified swipe gesture, routed by the current mode.
type Swipe struct{ Direction manipulation.Direction }

// Drag is one phase of a pan gesture.
type Drag struct {
	Phase selection.Phase
	Point arsession.ScreenPoint
}

// Remove deletes the active assembly.
type Remove struct{}

// Capture stores the current camera frame while in capture mode.
type Capture struct{}

func (Tap) intent()         {}
func (EnterMode) intent()   {}
func (ToggleMode) intent()  {}
func (ExitMode) intent()    {}
func (Translate) intent()   {}
func (Scale) intent()       {}
func (Depth) intent()       {}
func (Recolor) intent()     {}
func (SwapVariant) intent() {}
func (Swipe) intent()       {}
func (Drag) intent()        {}
func (Remove) intent()      {}
func (Capture) intent()     {}
