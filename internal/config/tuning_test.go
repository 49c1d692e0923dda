package config

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/carstom/internal/ar/manipulation"
	"github.com/banshee-data/carstom/internal/ar/placement"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.SurfaceDebugAlpha == nil || *cfg.SurfaceDebugAlpha != 0.5 {
		t.Errorf("Expected SurfaceDebugAlpha 0.5, got %v", cfg.SurfaceDebugAlpha)
	}
	if cfg.InferenceInterval == nil || *cfg.InferenceInterval != "900ms" {
		t.Errorf("Expected InferenceInterval '900ms', got %v", cfg.InferenceInterval)
	}
	if cfg.GetInferenceInterval() != 900*time.Millisecond {
		t.Errorf("GetInferenceInterval() = %v, want 900ms", cfg.GetInferenceInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestDefaultsFileMatchesDefaults(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultTuningConfig(), cfg); diff != "" {
		t.Errorf("%s drifted from DefaultTuningConfig (-want +got):\n%s", DefaultConfigPath, diff)
	}
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	empty := EmptyTuningConfig()
	full := DefaultTuningConfig()

	got, err := empty.CoordinatorConfig()
	if err != nil {
		t.Fatalf("CoordinatorConfig() error = %v", err)
	}
	want, err := full.CoordinatorConfig()
	if err != nil {
		t.Fatalf("CoordinatorConfig() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("empty config mismatch (-want +got):\n%s", diff)
	}
	if got.Inference.Window != (image.Rectangle{}) {
		t.Errorf("expected empty detection window, got %v", got.Inference.Window)
	}
	if got.Placement.Policy != placement.PolicySession {
		t.Errorf("expected session policy, got %v", got.Placement.Policy)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "placement_policy": "per_surface",
  "inference_interval": "1.5s",
  "min_scale": 0.2,
  "swatch_accent": "#ff0000",
  "hide_on_lost_detection": true,
  "detection_window": {"x": 0, "y": 200, "width": 400, "height": 400}
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetPlacementPolicy() != "per_surface" {
		t.Errorf("GetPlacementPolicy() = %q, want per_surface", cfg.GetPlacementPolicy())
	}
	if cfg.GetInferenceInterval() != 1500*time.Millisecond {
		t.Errorf("GetInferenceInterval() = %v, want 1.5s", cfg.GetInferenceInterval())
	}
	// unset fields fall back
	if cfg.GetTranslateStep() != 0.005 {
		t.Errorf("GetTranslateStep() = %f, want 0.005", cfg.GetTranslateStep())
	}

	cc, err := cfg.CoordinatorConfig()
	if err != nil {
		t.Fatalf("CoordinatorConfig() error = %v", err)
	}
	if cc.Placement.Policy != placement.PolicyPerSurface {
		t.Errorf("Policy = %v, want per_surface", cc.Placement.Policy)
	}
	if cc.Manipulation.MinScale != 0.2 {
		t.Errorf("MinScale = %f, want 0.2", cc.Manipulation.MinScale)
	}
	if cc.Manipulation.DepthStep != 0.01 {
		t.Errorf("DepthStep = %f, want 0.01", cc.Manipulation.DepthStep)
	}
	if !cc.Inference.HideOnLost {
		t.Error("expected HideOnLost")
	}
	if want := image.Rect(0, 200, 400, 600); cc.Inference.Window != want {
		t.Errorf("Window = %v, want %v", cc.Inference.Window, want)
	}
	if got := cc.Manipulation.Swatches[manipulation.SwatchAccent].Hex(); got != "#ff0000" {
		t.Errorf("accent swatch = %s, want #ff0000", got)
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("config.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", "{"), "failed to parse"},
		{"alpha out of range", write("alpha.json", `{"surface_debug_alpha": 1.5}`), "surface_debug_alpha"},
		{"unknown policy", write("policy.json", `{"placement_policy": "always"}`), "placement policy"},
		{"zero step", write("step.json", `{"scale_step": 0}`), "scale_step must be positive"},
		{"negative depth step", write("depth.json", `{"depth_step": -0.01}`), "depth_step must be positive"},
		{"negative reference", write("ref.json", `{"reference_radius": -1}`), "reference_radius"},
		{"bad duration", write("dur.json", `{"fade_duration": "soon"}`), "invalid fade_duration"},
		{"bad color", write("color.json", `{"swatch_dark": "grey"}`), "invalid swatch_dark"},
		{"bad window", write("window.json", `{"detection_window": {"width": 0, "height": 10}}`), "detection_window"},
		{"bad input size", write("size.json", `{"input_size": 0}`), "input_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	if err := os.WriteFile(p, make([]byte, 1024*1024+1), 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if _, err := LoadTuningConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}
