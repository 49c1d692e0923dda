package monitor

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/carstom/internal/ar/assembly"
	"github.com/banshee-data/carstom/internal/ar/coordinator"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func transformEvent(id uuid.UUID, at time.Duration, scale, x float64) coordinator.Event {
	return coordinator.Event{
		Kind:       coordinator.EventTransform,
		At:         t0.Add(at),
		AssemblyID: id,
		Mode:       "scale",
		Snapshot: &assembly.Snapshot{
			ID:       id,
			Scale:    scale,
			Position: r3.Vec{X: x, Z: 0.01},
			RadiusM:  0.225 * scale,
		},
	}
}

func TestTransformPlotterKeepsBoundedHistory(t *testing.T) {
	p := NewTransformPlotter(3)
	a, b := uuid.New(), uuid.New()

	p.OnEvent(coordinator.Event{Kind: coordinator.EventMode, At: t0})
	for i := 0; i < 5; i++ {
		p.OnEvent(transformEvent(a, time.Duration(i)*time.Second, 1+float64(i)*0.01, 0))
	}
	p.OnEvent(transformEvent(b, 6*time.Second, 1, 0.1))

	assert.Equal(t, []uuid.UUID{a, b}, p.Assemblies())
	assert.Equal(t, 4, p.SampleCount())

	got := p.Samples(a)
	require.Len(t, got, 3)
	assert.Equal(t, t0.Add(2*time.Second), got[0].At)
	assert.InDelta(t, 1.04, got[2].Scale, 1e-9)
	assert.Empty(t, p.Samples(uuid.New()))
}

func TestTransformPlotterGeneratesPNGs(t *testing.T) {
	p := NewTransformPlotter(16)
	a, b := uuid.New(), uuid.New()
	for i := 0; i < 4; i++ {
		p.OnEvent(transformEvent(a, time.Duration(i)*100*time.Millisecond, 1+float64(i)*0.01, float64(i)*0.005))
	}
	p.OnEvent(transformEvent(b, time.Second, 1.2, 0))

	dir := filepath.Join(t.TempDir(), "plots")
	n, err := p.GeneratePlots(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for _, id := range []uuid.UUID{a, b} {
		for _, suffix := range []string{"_scale.png", "_position.png"} {
			data, err := os.ReadFile(filepath.Join(dir, id.String()+suffix))
			require.NoError(t, err)
			assert.Equal(t, "\x89PNG", string(data[:4]))
		}
	}
}

func TestGeneratePlotsRejectsOutsideDirs(t *testing.T) {
	p := NewTransformPlotter(4)
	_, err := p.GeneratePlots("/proc/carstom-plots")
	assert.Error(t, err)
}

func TestStatusStore(t *testing.T) {
	session := uuid.New()
	calls := 0
	store := NewStatusStore(func() coordinator.Status {
		calls++
		return coordinator.Status{SessionID: session, Mode: "scale", Placed: calls}
	}, 2)

	a := uuid.New()
	store.OnEvent(coordinator.Event{Kind: coordinator.EventPlaced, At: t0, AssemblyID: a})
	store.OnEvent(transformEvent(a, time.Second, 1.01, 0))
	store.OnEvent(coordinator.Event{Kind: coordinator.EventCapture, At: t0.Add(2 * time.Second), Image: image.NewRGBA(image.Rect(0, 0, 1, 1))})

	st, at := store.Status()
	assert.Equal(t, session, st.SessionID)
	assert.Equal(t, 3, st.Placed)
	assert.False(t, at.IsZero())

	recent := store.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, coordinator.EventTransform, recent[0].Kind)
	assert.True(t, recent[1].HasImage)
	assert.Equal(t, map[coordinator.EventKind]int{
		coordinator.EventPlaced:    1,
		coordinator.EventTransform: 1,
		coordinator.EventCapture:   1,
	}, store.Counts())
}

func newTestServer(t *testing.T) (*httptest.Server, *StatusStore, *TransformPlotter) {
	t.Helper()
	session := uuid.New()
	store := NewStatusStore(func() coordinator.Status {
		return coordinator.Status{SessionID: session, Mode: "translate"}
	}, 8)
	plotter := NewTransformPlotter(8)
	srv := httptest.NewServer(NewServer(store, plotter).Handler())
	t.Cleanup(srv.Close)
	return srv, store, plotter
}

func TestStatusEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.Refresh()

	resp, err := http.Get(srv.URL + "/debug/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "translate", body["mode"])
	assert.Contains(t, body, "updated_at")

	resp2, err := http.Post(srv.URL+"/debug/status", "application/json", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestEventsEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.OnEvent(coordinator.Event{Kind: coordinator.EventMode, At: t0, Mode: "translate"})

	resp, err := http.Get(srv.URL + "/debug/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body eventsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Counts[coordinator.EventMode])
	require.Len(t, body.Recent, 1)
	assert.Equal(t, "translate", body.Recent[0].Mode)
}

func TestTransformChartEndpoint(t *testing.T) {
	srv, _, plotter := newTestServer(t)

	resp, err := http.Get(srv.URL + "/debug/transform")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	a := uuid.New()
	plotter.OnEvent(transformEvent(a, 0, 1, 0))
	plotter.OnEvent(transformEvent(a, time.Second, 1.01, 0.005))

	resp, err = http.Get(srv.URL + "/debug/transform?id=" + a.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))

	resp3, err := http.Get(srv.URL + "/debug/transform?id=nope")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestIndexEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.Refresh()
	st, _ := store.Status()

	rec := httptest.NewRecorder()
	NewServer(store, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), st.SessionID.String())

	resp, err := http.Get(srv.URL + "/debug/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNilSourcesAnswerNotFound(t *testing.T) {
	h := NewServer(nil, nil).Handler()
	for _, path := range []string{"/debug/status", "/debug/events", "/debug/transform"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}
