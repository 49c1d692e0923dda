package monitor

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/httputil"
)

// Server serves the debug endpoints.
type Server struct {
	status  *StatusStore
	plotter *TransformPlotter
}

// NewServer returns a server reading from status and plotter. Either may be
// nil, in which case its endpoints answer 404.
func NewServer(status *StatusStore, plotter *TransformPlotter) *Server {
	return &Server{status: status, plotter: plotter}
}

// Attach registers the debug routes on mux.
func (s *Server) Attach(mux *http.ServeMux) {
	mux.HandleFunc("/debug/", s.handleIndex)
	mux.HandleFunc("/debug/status", s.handleStatus)
	mux.HandleFunc("/debug/events", s.handleEvents)
	mux.HandleFunc("/debug/transform", s.handleTransformChart)
}

// Handler returns a mux serving only the debug routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Attach(mux)
	return mux
}

type statusResponse struct {
	coordinator.Status
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.status == nil {
		httputil.NotFound(w, "status not available")
		return
	}
	st, at := s.status.Status()
	httputil.WriteJSONOK(w, statusResponse{Status: st, UpdatedAt: at})
}

type eventsResponse struct {
	Counts map[coordinator.EventKind]int `json:"counts"`
	Recent []EventSummary                `json:"recent"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.status == nil {
		httputil.NotFound(w, "events not available")
		return
	}
	recent := s.status.Recent()
	if recent == nil {
		recent = []EventSummary{}
	}
	httputil.WriteJSONOK(w, eventsResponse{Counts: s.status.Counts(), Recent: recent})
}

// handleTransformChart renders the transform history of one assembly as an
// HTML line chart. Query params:
//   - id (optional; defaults to the first assembly seen)
func (s *Server) handleTransformChart(w http.ResponseWriter, r *http.Request) {
	if s.plotter == nil {
		httputil.NotFound(w, "transform history not available")
		return
	}
	var id uuid.UUID
	if q := r.URL.Query().Get("id"); q != "" {
		parsed, err := uuid.Parse(q)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid id: %v", err))
			return
		}
		id = parsed
	} else if ids := s.plotter.Assemblies(); len(ids) > 0 {
		id = ids[0]
	}

	samples := s.plotter.Samples(id)
	if len(samples) == 0 {
		httputil.NotFound(w, "no transform samples")
		return
	}

	x := make([]string, len(samples))
	scale := make([]opts.LineData, len(samples))
	px := make([]opts.LineData, len(samples))
	py := make([]opts.LineData, len(samples))
	pz := make([]opts.LineData, len(samples))
	t0 := samples[0].At
	for i, smp := range samples {
		x[i] = fmt.Sprintf("%.2f", smp.At.Sub(t0).Seconds())
		scale[i] = opts.LineData{Value: smp.Scale}
		px[i] = opts.LineData{Value: smp.Position.X}
		py[i] = opts.LineData{Value: smp.Position.Y}
		pz[i] = opts.LineData{Value: smp.Position.Z}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Wheel transform", Theme: "dark", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Wheel transform", Subtitle: fmt.Sprintf("assembly=%s samples=%d", id, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
	)
	line.SetXAxis(x).
		AddSeries("scale", scale).
		AddSeries("x", px).
		AddSeries("y", py).
		AddSeries("z", pz)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	httputil.WriteHTML(w, http.StatusOK, buf.Bytes())
}

const indexHTML = `<!DOCTYPE html>
<html><head><title>carstom debug</title></head>
<body>
<h1>carstom session %s</h1>
<ul>
<li><a href="/debug/status">status</a></li>
<li><a href="/debug/events">events</a></li>
<li><a href="/debug/transform">transform chart</a></li>
<li><a href="/debug/tail">event tail</a></li>
</ul>
</body></html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/debug/" {
		httputil.NotFound(w, "not found")
		return
	}
	session := "-"
	if s.status != nil {
		if st, _ := s.status.Status(); st.SessionID != uuid.Nil {
			session = st.SessionID.String()
		}
	}
	httputil.WriteHTML(w, http.StatusOK, []byte(fmt.Sprintf(indexHTML, html.EscapeString(session))))
}
