package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/ar/inference"
	"github.com/banshee-data/carstom/internal/config"
	"github.com/banshee-data/carstom/internal/httputil"
	"github.com/banshee-data/carstom/internal/monitoring"
	"github.com/banshee-data/carstom/internal/version"
)

const (
	defaultConfigHint = config.DefaultConfigPath
	modelProbeTimeout = 5 * time.Second
)

// sessionConfig is stored with each journaled session.
type sessionConfig struct {
	Build  version.Info         `json:"build"`
	Tuning *config.TuningConfig `json:"tuning"`
}

// loadTuning reads path, or the repository defaults file when path is empty
// and the file exists, or falls back to built-in defaults.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadTuningConfig(config.DefaultConfigPath)
	}
	return config.DefaultTuningConfig(), nil
}

// buildModel picks the segmentation model. A model server that cannot be
// reached disables detection rather than failing the session.
func buildModel(ctx context.Context, tuning *config.TuningConfig, url, name string, disabled bool) inference.Model {
	if disabled {
		return nil
	}
	if url != "" {
		probeCtx, cancel := context.WithTimeout(ctx, modelProbeTimeout)
		defer cancel()
		client := httputil.NewStandardClient(&http.Client{Timeout: tuning.GetInferenceTimeout()})
		m, err := inference.NewRemoteModel(probeCtx, client, url, name)
		if err != nil {
			monitoring.Logf("model server unavailable, wheel detection disabled: %v", err)
			return nil
		}
		monitoring.Logf("using model %s at %s", m.Name(), url)
		return m
	}
	m, err := inference.NewChromaModel(tuning.GetModelKeyColor(), tuning.GetModelThreshold())
	if err != nil {
		monitoring.Logf("chroma model unavailable, wheel detection disabled: %v", err)
		return nil
	}
	return m
}

// formatEvent renders an event as one tail line.
func formatEvent(e coordinator.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s mode=%s", e.At.Format(time.RFC3339Nano), e.Kind, e.Mode)
	if e.Snapshot != nil {
		fmt.Fprintf(&b, " assembly=%s scale=%.3f variant=%d", e.Snapshot.ID.String()[:8], e.Snapshot.Scale, e.Snapshot.Variant)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " %s", e.Detail)
	}
	return b.String()
}
