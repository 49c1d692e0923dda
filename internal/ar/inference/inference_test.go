package inference

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/arsession"
	"github.com/banshee-data/carstom/internal/ar/assembly"
	"github.com/banshee-data/carstom/internal/ar/placement"
	"github.com/banshee-data/carstom/internal/ar/scenegraph"
	"github.com/banshee-data/carstom/internal/ar/simulator"
	"github.com/banshee-data/carstom/internal/ar/spatial"
	"github.com/banshee-data/carstom/internal/ar/surface"
	"github.com/banshee-data/carstom/internal/timeutil"
)

// manualExecutor queues closures until RunAll is called.
type manualExecutor struct {
	pending []func()
}

func (m *manualExecutor) Post(fn func()) bool {
	m.pending = append(m.pending, fn)
	return true
}

func (m *manualExecutor) RunAll() {
	for len(m.pending) > 0 {
		fn := m.pending[0]
		m.pending = m.pending[1:]
		fn()
	}
}

// emptyModel counts calls and never finds a wheel.
type emptyModel struct {
	calls int
}

func (m *emptyModel) Predict(_ context.Context, in *Tensor) (*Tensor, error) {
	m.calls++
	size := in.Shape[1]
	out := &Tensor{Shape: []int{1, size, size, 2}, Data: make([]float32, size*size*2)}
	for i := 0; i < len(out.Data); i += 2 {
		out.Data[i] = 1
	}
	return out, nil
}

func smallFrame(ts time.Duration) arsession.Frame {
	return arsession.Frame{Timestamp: ts, Image: image.NewRGBA(image.Rect(0, 0, 32, 32))}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.InputSize = 8
	return cfg
}

func TestOnFrameThrottle(t *testing.T) {
	model := &emptyModel{}
	c := NewCoordinator(Options{Config: smallConfig(), Model: model})

	var dispatched []time.Duration
	for _, ts := range []time.Duration{0, 300 * time.Millisecond, 950 * time.Millisecond, time.Second} {
		if c.OnFrame(smallFrame(ts)) {
			dispatched = append(dispatched, ts)
		}
	}
	assert.Equal(t, 2, model.calls)
	assert.Equal(t, []time.Duration{0, 950 * time.Millisecond}, dispatched)
	st := c.Stats()
	assert.Equal(t, uint64(4), st.Frames)
	assert.Equal(t, uint64(2), st.Throttled)
	assert.Equal(t, uint64(2), st.Misses)
}

func TestOnFrameGateBoundaryIsInclusive(t *testing.T) {
	model := &emptyModel{}
	c := NewCoordinator(Options{Config: smallConfig(), Model: model})
	assert.True(t, c.OnFrame(smallFrame(time.Second)))
	assert.False(t, c.OnFrame(smallFrame(time.Second+899*time.Millisecond)))
	assert.True(t, c.OnFrame(smallFrame(time.Second+900*time.Millisecond)))
}

func TestOnFrameSkipsWhileInFlight(t *testing.T) {
	model := &emptyModel{}
	worker := &manualExecutor{}
	c := NewCoordinator(Options{Config: smallConfig(), Model: model, Worker: worker})

	require.True(t, c.OnFrame(smallFrame(0)))
	assert.True(t, c.InFlight())
	// well past the gate, but the first inference has not completed
	assert.False(t, c.OnFrame(smallFrame(2*time.Second)))
	assert.Equal(t, uint64(1), c.Stats().SkippedInFlight)

	worker.RunAll()
	assert.False(t, c.InFlight())
	assert.Equal(t, 1, model.calls)

	// the skipped frame did not move the gate
	assert.True(t, c.OnFrame(smallFrame(950*time.Millisecond)))
}

func TestPauseDiscardsLateCompletion(t *testing.T) {
	worker := &manualExecutor{}
	var results []DetectionResult
	c := NewCoordinator(Options{
		Config:   smallConfig(),
		Model:    &emptyModel{},
		Worker:   worker,
		OnResult: func(r DetectionResult) { results = append(results, r) },
	})

	require.True(t, c.OnFrame(smallFrame(0)))
	c.Pause()
	assert.False(t, c.InFlight())
	assert.False(t, c.OnFrame(smallFrame(5*time.Second)), "paused coordinator ignores frames")

	worker.RunAll()
	assert.Empty(t, results)
	assert.Equal(t, uint64(1), c.Stats().Stale)

	c.Resume()
	assert.True(t, c.OnFrame(smallFrame(5*time.Second)))
	worker.RunAll()
	assert.Len(t, results, 1)

	c.Close()
	c.Resume()
	assert.False(t, c.OnFrame(smallFrame(10*time.Second)))
}

// slowModel advances the clock while it predicts.
type slowModel struct {
	emptyModel
	clock *timeutil.MockClock
	took  time.Duration
}

func (m *slowModel) Predict(ctx context.Context, in *Tensor) (*Tensor, error) {
	m.clock.Advance(m.took)
	return m.emptyModel.Predict(ctx, in)
}

func TestResultReportsLatency(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	var results []DetectionResult
	c := NewCoordinator(Options{
		Config:   smallConfig(),
		Model:    &slowModel{clock: clock, took: 200 * time.Millisecond},
		Clock:    clock,
		OnResult: func(r DetectionResult) { results = append(results, r) },
	})

	require.True(t, c.OnFrame(smallFrame(0)))
	require.Len(t, results, 1)
	assert.Equal(t, 200*time.Millisecond, results[0].Latency)
	require.NotNil(t, c.Last())
	assert.Equal(t, 200*time.Millisecond, c.Last().Latency)
}

func TestResetDiscardsRunningInference(t *testing.T) {
	worker := &manualExecutor{}
	var results []DetectionResult
	c := NewCoordinator(Options{
		Config:   smallConfig(),
		Model:    &emptyModel{},
		Worker:   worker,
		OnResult: func(r DetectionResult) { results = append(results, r) },
	})

	require.True(t, c.OnFrame(smallFrame(0)))
	worker.RunAll()
	require.NotNil(t, c.Last())

	require.True(t, c.OnFrame(smallFrame(time.Second)))
	c.Reset()
	assert.False(t, c.InFlight())
	assert.Nil(t, c.Last())

	// the gate restarts, so a frame just after the reset is processed
	assert.True(t, c.OnFrame(smallFrame(time.Second+10*time.Millisecond)))
	worker.RunAll()
	assert.Len(t, results, 2)
	assert.Equal(t, uint64(1), c.Stats().Stale)
}

func TestDisabledWithoutModel(t *testing.T) {
	c := NewCoordinator(Options{Config: smallConfig()})
	assert.False(t, c.Enabled())
	assert.False(t, c.OnFrame(smallFrame(0)))
	assert.Zero(t, c.Stats().Frames)
}

func TestDecodeBoundingBox(t *testing.T) {
	const size = 512
	out := &Tensor{Shape: []int{1, size, size, 2}, Data: make([]float32, size*size*2)}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := (y*size + x) * 2
			if x >= 100 && x <= 200 && y >= 100 && y <= 150 {
				out.Data[i], out.Data[i+1] = 0.2, 0.8
			} else {
				out.Data[i], out.Data[i+1] = 0.9, 0.1
			}
		}
	}
	box, found, err := Decode(out, size)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Box{MinX: 100, MinY: 100, MaxX: 200, MaxY: 150}, box)

	for i := 0; i < len(out.Data); i += 2 {
		out.Data[i], out.Data[i+1] = 0.9, 0.1
	}
	_, found, err = Decode(out, size)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDecodeTiesCountAsWheel(t *testing.T) {
	out := &Tensor{Shape: []int{2, 2, 2}, Data: []float32{1, 0, 0.5, 0.5, 1, 0, 1, 0}}
	box, found, err := Decode(out, 2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Box{MinX: 1, MinY: 0, MaxX: 1, MaxY: 0}, box)
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		out  *Tensor
	}{
		{"nil", nil},
		{"wrong channels", &Tensor{Shape: []int{1, 4, 4, 3}, Data: make([]float32, 48)}},
		{"wrong size", &Tensor{Shape: []int{1, 2, 2, 2}, Data: make([]float32, 8)}},
		{"short data", &Tensor{Shape: []int{1, 4, 4, 2}, Data: make([]float32, 7)}},
		{"batch", &Tensor{Shape: []int{2, 4, 4, 2}, Data: make([]float32, 64)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.out, 4)
			assert.ErrorIs(t, err, ErrBadOutputShape)
		})
	}
}

func TestPreprocessNormalises(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 0, B: 255, A: 255})
		}
	}
	in, err := Preprocess(img, ResolveWindow(image.Rectangle{}, img.Bounds()), 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 4, 3}, in.Shape)
	require.Len(t, in.Data, 48)
	for i := 0; i < len(in.Data); i += 3 {
		assert.InDelta(t, 1.0, in.Data[i], 1e-6)
		assert.InDelta(t, -1.0, in.Data[i+1], 1e-6)
		assert.InDelta(t, 1.0, in.Data[i+2], 1e-6)
	}

	_, err = Preprocess(img, image.Rect(100, 100, 200, 200), 4)
	assert.Error(t, err)
}

func TestResolveWindow(t *testing.T) {
	bounds := image.Rect(0, 0, 400, 800)
	assert.Equal(t, image.Rect(0, 200, 400, 600), ResolveWindow(image.Rectangle{}, bounds))
	assert.Equal(t, image.Rect(300, 700, 400, 800), ResolveWindow(image.Rect(300, 700, 500, 900), bounds))
}

func TestMapToView(t *testing.T) {
	center, edge := MapToView(Box{MinX: 100, MinY: 100, MaxX: 200, MaxY: 150}, image.Rect(0, 200, 400, 600), 512)
	assert.InDelta(t, 150*400.0/512, center.X, 1e-9)
	assert.InDelta(t, 200+125*400.0/512, center.Y, 1e-9)
	assert.InDelta(t, 200*400.0/512, edge.X, 1e-9)
	assert.Equal(t, center.Y, edge.Y)
}

func TestChromaModelScoresKeyColor(t *testing.T) {
	m, err := NewChromaModel("#1a1a1a", 0.2)
	require.NoError(t, err)

	key := float32(0x1a)/127.5 - 1
	grey := float32(0xc8)/127.5 - 1
	in := &Tensor{Shape: []int{1, 1, 2, 3}, Data: []float32{key, key, key, grey, grey, grey}}
	out, err := m.Predict(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, out.Shape)
	assert.GreaterOrEqual(t, out.Data[1], out.Data[0], "key pixel is wheel")
	assert.Less(t, out.Data[3], out.Data[2], "background pixel is not")

	_, err = NewChromaModel("zzz", 0.2)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

type sceneFixture struct {
	sim      *simulator.Simulator
	assembly *assembly.Assembly
}

func placedScene(t *testing.T) sceneFixture {
	t.Helper()
	root := scenegraph.NewNode("root")
	sim, err := simulator.New(simulator.DefaultWorld(), root)
	require.NoError(t, err)
	surfaces := surface.NewDetector(root, surface.DefaultConfig())
	anchor, _, err := sim.Detect("door")
	require.NoError(t, err)
	surfaces.OnSurfaceAdded(anchor)
	pc := placement.NewController(placement.DefaultConfig(), sim, surfaces, nil)
	// place off-centre so the detector has somewhere to move it
	a, ok := pc.TryPlace(arsession.ScreenPoint{X: 150, Y: 450})
	require.True(t, ok)
	return sceneFixture{sim: sim, assembly: a}
}

func TestDetectionMovesAssemblyOntoWheel(t *testing.T) {
	f := placedScene(t)
	model, err := NewChromaModel("#1a1a1a", 0.2)
	require.NoError(t, err)

	var got []DetectionResult
	c := NewCoordinator(Options{
		Config:   DefaultConfig(),
		Model:    model,
		Session:  f.sim,
		Target:   func() *assembly.Assembly { return f.assembly },
		OnResult: func(r DetectionResult) { got = append(got, r) },
	})
	require.True(t, c.OnFrame(f.sim.Frame(0)))
	require.Len(t, got, 1)
	res := got[0]
	require.True(t, res.Found, "error=%q", res.Err)
	require.True(t, res.Resolved)

	assert.InDelta(t, 200, res.Center.X, 2)
	assert.InDelta(t, 400, res.Center.Y, 2)
	assert.InDelta(t, 0.3, res.Radius, 0.02)

	wheel := r3.Vec{Y: 0.4, Z: -1.19}
	assert.True(t, spatial.ApproxEqual(f.assembly.Container.WorldPosition(), wheel, 0.016), "got %v", f.assembly.Container.WorldPosition())
	assert.InDelta(t, 0.3/0.225, f.assembly.UniformScale(), 0.1)
	require.NotNil(t, c.Last())
	assert.True(t, c.Last().Resolved)
	assert.Equal(t, uint64(1), c.Stats().Detections)
}

func TestMissLeavesTransformAndHides(t *testing.T) {
	f := placedScene(t)
	before := f.assembly.Snapshot()

	cfg := DefaultConfig()
	cfg.HideOnLost = true
	c := NewCoordinator(Options{
		Config:  cfg,
		Model:   &emptyModel{},
		Session: f.sim,
		Target:  func() *assembly.Assembly { return f.assembly },
	})
	require.True(t, c.OnFrame(f.sim.Frame(0)))
	after := f.assembly.Snapshot()
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.Scale, after.Scale)
	assert.True(t, f.assembly.Container.Hidden)
}

func TestModelErrorIsContained(t *testing.T) {
	f := placedScene(t)
	before := f.assembly.Snapshot()
	failing := ModelFunc(func(context.Context, *Tensor) (*Tensor, error) {
		return nil, errors.New("accelerator lost")
	})
	c := NewCoordinator(Options{
		Config:  DefaultConfig(),
		Model:   failing,
		Session: f.sim,
		Target:  func() *assembly.Assembly { return f.assembly },
	})
	require.True(t, c.OnFrame(f.sim.Frame(0)))
	assert.Equal(t, uint64(1), c.Stats().Errors)
	require.NotNil(t, c.Last())
	assert.Contains(t, c.Last().Err, "accelerator lost")
	assert.Equal(t, before, f.assembly.Snapshot())
	assert.False(t, c.InFlight())
}
