package coordinator

import (
	"github.com/google/uuid"

	"github.com/banshee-data/carstom/internal/ar/assembly"
	"github.com/banshee-data/carstom/internal/ar/inference"
	"github.com/banshee-data/carstom/internal/ar/manipulation"
	"github.com/banshee-data/carstom/internal/units"
)

// AssemblyStatus is a placed assembly as reported by Status.
type AssemblyStatus struct {
	assembly.Snapshot
	VariantName     string  `json:"variant_name"`
	RimDiameterIn   float64 `json:"rim_diameter_in"`
	Active          bool    `json:"active"`
	VisibleVariants int     `json:"visible_variants"`
}

// SurfaceStatus is a tracked surface as reported by Status.
type SurfaceStatus struct {
	ID     uuid.UUID `json:"id"`
	Width  float64   `json:"width"`
	Depth  float64   `json:"depth"`
	Alpha  float64   `json:"debug_alpha"`
	Placed bool      `json:"placed"`
}

// Status is a read-only summary of the session.
type Status struct {
	SessionID        uuid.UUID                  `json:"session_id"`
	Mode             string                     `json:"mode"`
	Controls         manipulation.Controls      `json:"controls"`
	Paused           bool                       `json:"paused"`
	Closed           bool                       `json:"closed"`
	Surfaces         []SurfaceStatus            `json:"surfaces"`
	Assemblies       []AssemblyStatus           `json:"assemblies"`
	Placed           int                        `json:"placed"`
	Dragging         bool                       `json:"dragging"`
	InferenceEnabled bool                       `json:"inference_enabled"`
	Inference        inference.Stats            `json:"inference"`
	LastDetection    *inference.DetectionResult `json:"last_detection,omitempty"`
}

// Status summarises the session.
func (c *Coordinator) Status() Status {
	st := c.state
	s := Status{
		SessionID:        st.ID,
		Mode:             st.Manipulation.Mode().String(),
		Controls:         st.Manipulation.Controls(),
		Paused:           st.Paused,
		Closed:           st.Closed,
		Placed:           st.Placement.Placed(),
		Dragging:         st.Selection.Active() != nil,
		InferenceEnabled: st.Inference.Enabled(),
		Inference:        st.Inference.Stats(),
		Surfaces:         []SurfaceStatus{},
		Assemblies:       []AssemblyStatus{},
	}
	if st.LastDetection != nil {
		d := *st.LastDetection
		s.LastDetection = &d
	}
	for _, sf := range st.Surfaces.Surfaces() {
		s.Surfaces = append(s.Surfaces, SurfaceStatus{
			ID:     sf.ID,
			Width:  sf.Extent.Width,
			Depth:  sf.Extent.Depth,
			Alpha:  sf.DebugMaterial.Alpha,
			Placed: sf.Placed,
		})
	}
	for _, a := range st.Assemblies {
		snap := a.Snapshot()
		s.Assemblies = append(s.Assemblies, AssemblyStatus{
			Snapshot:        snap,
			VariantName:     a.ActiveVariantName(),
			RimDiameterIn:   units.RimDiameterInches(snap.RadiusM),
			Active:          a == st.Active,
			VisibleVariants: a.VisibleVariants(),
		})
	}
	return s
}
