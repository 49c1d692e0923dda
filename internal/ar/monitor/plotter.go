// Package monitor exposes debug views of a running session: transform
// history plots, a JSON status endpoint and interactive charts.
package monitor

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/security"
)

// TransformSample is one observed assembly transform.
type TransformSample struct {
	At       time.Time
	Kind     coordinator.EventKind
	Scale    float64
	Position r3.Vec
	RadiusM  float64
	Hidden   bool
}

// TransformPlotter records the transform history of every assembly seen in
// session events. Each assembly keeps at most history samples.
type TransformPlotter struct {
	mu      sync.Mutex
	history int
	start   time.Time
	samples map[uuid.UUID][]TransformSample
	order   []uuid.UUID
}

// NewTransformPlotter returns a plotter keeping history samples per assembly.
func NewTransformPlotter(history int) *TransformPlotter {
	if history < 1 {
		history = 1
	}
	return &TransformPlotter{history: history, samples: make(map[uuid.UUID][]TransformSample)}
}

// OnEvent implements coordinator.Observer. Events without a snapshot are
// ignored.
func (p *TransformPlotter) OnEvent(e coordinator.Event) {
	if e.Snapshot == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.start.IsZero() {
		p.start = e.At
	}
	id := e.Snapshot.ID
	s, seen := p.samples[id]
	if !seen {
		p.order = append(p.order, id)
	}
	s = append(s, TransformSample{
		At:       e.At,
		Kind:     e.Kind,
		Scale:    e.Snapshot.Scale,
		Position: e.Snapshot.Position,
		RadiusM:  e.Snapshot.RadiusM,
		Hidden:   e.Snapshot.Hidden,
	})
	if len(s) > p.history {
		s = append(s[:0], s[len(s)-p.history:]...)
	}
	p.samples[id] = s
	tracef("sampled %s %s scale=%.3f", id, e.Kind, e.Snapshot.Scale)
}

// Assemblies returns the sampled assembly ids in first-seen order.
func (p *TransformPlotter) Assemblies() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.order...)
}

// Samples returns a copy of the history of one assembly.
func (p *TransformPlotter) Samples(id uuid.UUID) []TransformSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TransformSample(nil), p.samples[id]...)
}

// SampleCount returns the total number of retained samples.
func (p *TransformPlotter) SampleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.samples {
		n += len(s)
	}
	return n
}

// seconds returns the offset of t from the first sample.
func (p *TransformPlotter) seconds(t time.Time) float64 {
	return t.Sub(p.start).Seconds()
}

// GeneratePlots writes a scale plot and a position plot per assembly into
// dir and returns the number of files written.
func (p *TransformPlotter) GeneratePlots(dir string) (int, error) {
	if err := security.PrepareOutputDir(dir); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := append([]uuid.UUID(nil), p.order...)
	sort.SliceStable(ids, func(i, j int) bool {
		return p.samples[ids[i]][0].At.Before(p.samples[ids[j]][0].At)
	})

	written := 0
	for _, id := range ids {
		n, err := p.generateAssemblyPlots(dir, id, p.samples[id])
		written += n
		if err != nil {
			return written, fmt.Errorf("assembly %s: %w", id, err)
		}
	}
	diagf("wrote %d plots to %s", written, dir)
	return written, nil
}

func (p *TransformPlotter) generateAssemblyPlots(dir string, id uuid.UUID, samples []TransformSample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	name := security.SanitizeFilename(id.String())

	scalePts := make(plotter.XYs, len(samples))
	radiusPts := make(plotter.XYs, len(samples))
	axes := [3]plotter.XYs{}
	for i := range axes {
		axes[i] = make(plotter.XYs, len(samples))
	}
	for i, s := range samples {
		x := p.seconds(s.At)
		scalePts[i] = plotter.XY{X: x, Y: s.Scale}
		radiusPts[i] = plotter.XY{X: x, Y: s.RadiusM}
		axes[0][i] = plotter.XY{X: x, Y: s.Position.X}
		axes[1][i] = plotter.XY{X: x, Y: s.Position.Y}
		axes[2][i] = plotter.XY{X: x, Y: s.Position.Z}
	}

	colors := generateColors(3)

	pScale := plot.New()
	pScale.Title.Text = fmt.Sprintf("Wheel %s - Scale", id.String()[:8])
	pScale.X.Label.Text = "Time (s)"
	pScale.Y.Label.Text = "Uniform scale / radius (m)"
	if err := addLine(pScale, "scale", scalePts, colors[0]); err != nil {
		return 0, err
	}
	if err := addLine(pScale, "radius", radiusPts, colors[1]); err != nil {
		return 0, err
	}

	pPos := plot.New()
	pPos.Title.Text = fmt.Sprintf("Wheel %s - Surface Position", id.String()[:8])
	pPos.X.Label.Text = "Time (s)"
	pPos.Y.Label.Text = "Offset (m)"
	for i, label := range []string{"x", "y", "z"} {
		if err := addLine(pPos, label, axes[i], colors[i]); err != nil {
			return 0, err
		}
	}

	for _, pl := range []*plot.Plot{pScale, pPos} {
		pl.Legend.Top = true
		pl.Legend.Left = false
		pl.Legend.XOffs = -10
		pl.Legend.YOffs = -10
	}

	if err := pScale.Save(10*vg.Inch, 4*vg.Inch, filepath.Join(dir, name+"_scale.png")); err != nil {
		return 0, fmt.Errorf("save scale plot: %w", err)
	}
	if err := pPos.Save(10*vg.Inch, 4*vg.Inch, filepath.Join(dir, name+"_position.png")); err != nil {
		return 1, fmt.Errorf("save position plot: %w", err)
	}
	return 2, nil
}

func addLine(p *plot.Plot, label string, pts plotter.XYs, c color.Color) error {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = c
	l.Width = vg.Points(1)
	p.Add(l)
	p.Legend.Add(label, l)
	return nil
}

// generateColors spreads n hues around the wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	out := make([]color.Color, n)
	for i := range out {
		out[i] = colorful.Hsl(360*float64(i)/float64(n), 0.7, 0.5).Clamped()
	}
	return out
}
