package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
	"github.com/banshee-data/carstom/internal/ar/manipulation"
	"github.com/banshee-data/carstom/internal/ar/placement"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/ar.defaults.json"

// WindowConfig is a view-space rectangle in pixels.
type WindowConfig struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TuningConfig represents the root configuration for the AR session.
type TuningConfig struct {
	// Surface params
	SurfaceDebugAlpha *float64 `json:"surface_debug_alpha,omitempty"`
	SurfaceDebugColor *string  `json:"surface_debug_color,omitempty"` // hex like "#ffffff"

	// Placement params
	PlacementPolicy *string  `json:"placement_policy,omitempty"` // "session" or "per_surface"
	DefaultScale    *float64 `json:"default_scale,omitempty"`
	NormalOffset    *float64 `json:"normal_offset,omitempty"`
	FadeDuration    *string  `json:"fade_duration,omitempty"` // duration string like "500ms"

	// Manipulation params
	TranslateStep       *float64 `json:"translate_step,omitempty"`
	TranslateStepCoarse *float64 `json:"translate_step_coarse,omitempty"`
	ScaleStep           *float64 `json:"scale_step,omitempty"`
	MinScale            *float64 `json:"min_scale,omitempty"`
	DepthStep           *float64 `json:"depth_step,omitempty"`
	SwatchLight         *string  `json:"swatch_light,omitempty"`
	SwatchDark          *string  `json:"swatch_dark,omitempty"`
	SwatchAccent        *string  `json:"swatch_accent,omitempty"`

	// Inference params
	InferenceInterval   *string       `json:"inference_interval,omitempty"` // duration string like "900ms"
	InferenceTimeout    *string       `json:"inference_timeout,omitempty"`
	InputSize           *int          `json:"input_size,omitempty"`
	DetectionWindow     *WindowConfig `json:"detection_window,omitempty"`
	RadiusCompensation  *float64      `json:"radius_compensation,omitempty"`
	ReferenceRadius     *float64      `json:"reference_radius,omitempty"` // 0 uses the assembly's own
	HideOnLostDetection *bool         `json:"hide_on_lost_detection,omitempty"`
	ModelKeyColor       *string       `json:"model_key_color,omitempty"`
	ModelThreshold      *float64      `json:"model_threshold,omitempty"`

	// Tooling params (optional)
	JournalBuffer *int `json:"journal_buffer,omitempty"`
	PlotHistory   *int `json:"plot_history,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// value its Get* accessor falls back to. It mirrors DefaultConfigPath.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		SurfaceDebugAlpha:   ptrFloat64(0.5),
		SurfaceDebugColor:   ptrString("#ffffff"),
		PlacementPolicy:     ptrString("session"),
		DefaultScale:        ptrFloat64(1.0),
		NormalOffset:        ptrFloat64(0.01),
		FadeDuration:        ptrString("500ms"),
		TranslateStep:       ptrFloat64(0.005),
		TranslateStepCoarse: ptrFloat64(0.01),
		ScaleStep:           ptrFloat64(0.01),
		MinScale:            ptrFloat64(0.01),
		DepthStep:           ptrFloat64(0.01),
		SwatchLight:         ptrString("#ffffff"),
		SwatchDark:          ptrString("#555555"),
		SwatchAccent:        ptrString("#724b8b"),
		InferenceInterval:   ptrString("900ms"),
		InferenceTimeout:    ptrString("5s"),
		InputSize:           ptrInt(512),
		RadiusCompensation:  ptrFloat64(1.0),
		ReferenceRadius:     ptrFloat64(0.225),
		HideOnLostDetection: ptrBool(false),
		ModelKeyColor:       ptrString("#1a1a1a"),
		ModelThreshold:      ptrFloat64(0.2),
		JournalBuffer:       ptrInt(256),
		PlotHistory:         ptrInt(1024),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the Get* defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/ar/coordinator/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SurfaceDebugAlpha != nil {
		if *c.SurfaceDebugAlpha < 0 || *c.SurfaceDebugAlpha > 1 {
			return fmt.Errorf("surface_debug_alpha must be between 0 and 1, got %f", *c.SurfaceDebugAlpha)
		}
	}

	if c.PlacementPolicy != nil {
		if _, err := placement.ParsePolicy(*c.PlacementPolicy); err != nil {
			return err
		}
	}

	for name, v := range map[string]*float64{
		"default_scale":         c.DefaultScale,
		"translate_step":        c.TranslateStep,
		"translate_step_coarse": c.TranslateStepCoarse,
		"scale_step":            c.ScaleStep,
		"min_scale":             c.MinScale,
		"depth_step":            c.DepthStep,
		"radius_compensation":   c.RadiusCompensation,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.ReferenceRadius != nil && *c.ReferenceRadius < 0 {
		return fmt.Errorf("reference_radius must be non-negative, got %f", *c.ReferenceRadius)
	}

	if c.InputSize != nil && *c.InputSize < 1 {
		return fmt.Errorf("input_size must be positive, got %d", *c.InputSize)
	}

	if w := c.DetectionWindow; w != nil && (w.Width <= 0 || w.Height <= 0 || w.X < 0 || w.Y < 0) {
		return fmt.Errorf("detection_window must have a non-negative origin and positive size, got %+v", *w)
	}

	for name, v := range map[string]*string{
		"fade_duration":      c.FadeDuration,
		"inference_interval": c.InferenceInterval,
		"inference_timeout":  c.InferenceTimeout,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	for name, v := range map[string]*string{
		"surface_debug_color": c.SurfaceDebugColor,
		"swatch_light":        c.SwatchLight,
		"swatch_dark":         c.SwatchDark,
		"swatch_accent":       c.SwatchAccent,
		"model_key_color":     c.ModelKeyColor,
	} {
		if v != nil {
			if _, err := colorful.Hex(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

func parseDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func float(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func str(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

// GetSurfaceDebugAlpha returns the surface_debug_alpha value or the default.
func (c *TuningConfig) GetSurfaceDebugAlpha() float64 {
	return float(c.SurfaceDebugAlpha, 0.5)
}

// GetSurfaceDebugColor returns the surface_debug_color value or the default.
func (c *TuningConfig) GetSurfaceDebugColor() string {
	return str(c.SurfaceDebugColor, "#ffffff")
}

// GetPlacementPolicy returns the placement_policy value or the default.
func (c *TuningConfig) GetPlacementPolicy() string {
	return str(c.PlacementPolicy, "session")
}

// GetDefaultScale returns the default_scale value or the default.
func (c *TuningConfig) GetDefaultScale() float64 {
	return float(c.DefaultScale, 1.0)
}

// GetNormalOffset returns the normal_offset value or the default.
func (c *TuningConfig) GetNormalOffset() float64 {
	return float(c.NormalOffset, 0.01)
}

// GetFadeDuration parses and returns the FadeDuration as a time.Duration.
func (c *TuningConfig) GetFadeDuration() time.Duration {
	return parseDuration(c.FadeDuration, 500*time.Millisecond)
}

// GetTranslateStep returns the translate_step value or the default.
func (c *TuningConfig) GetTranslateStep() float64 {
	return float(c.TranslateStep, 0.005)
}

// GetTranslateStepCoarse returns the translate_step_coarse value or the default.
func (c *TuningConfig) GetTranslateStepCoarse() float64 {
	return float(c.TranslateStepCoarse, 0.01)
}

// GetScaleStep returns the scale_step value or the default.
func (c *TuningConfig) GetScaleStep() float64 {
	return float(c.ScaleStep, 0.01)
}

// GetDepthStep returns the depth_step value or the default.
func (c *TuningConfig) GetDepthStep() float64 {
	return float(c.DepthStep, 0.01)
}

// GetMinScale returns the min_scale value or the default.
func (c *TuningConfig) GetMinScale() float64 {
	return float(c.MinScale, 0.01)
}

// GetSwatchLight returns the swatch_light value or the default.
func (c *TuningConfig) GetSwatchLight() string {
	return str(c.SwatchLight, "#ffffff")
}

// GetSwatchDark returns the swatch_dark value or the default.
func (c *TuningConfig) GetSwatchDark() string {
	return str(c.SwatchDark, "#555555")
}

// GetSwatchAccent returns the swatch_accent value or the default.
func (c *TuningConfig) GetSwatchAccent() string {
	return str(c.SwatchAccent, "#724b8b")
}

// GetInferenceInterval parses and returns the InferenceInterval as a time.Duration.
func (c *TuningConfig) GetInferenceInterval() time.Duration {
	return parseDuration(c.InferenceInterval, 900*time.Millisecond)
}

// GetInferenceTimeout parses and returns the InferenceTimeout as a time.Duration.
func (c *TuningConfig) GetInferenceTimeout() time.Duration {
	return parseDuration(c.InferenceTimeout, 5*time.Second)
}

// GetInputSize returns the input_size value or the default.
func (c *TuningConfig) GetInputSize() int {
	if c.InputSize == nil {
		return 512
	}
	return *c.InputSize
}

// GetDetectionWindow returns the detection window, or an empty rectangle
// selecting the centred square.
func (c *TuningConfig) GetDetectionWindow() image.Rectangle {
	if c.DetectionWindow == nil {
		return image.Rectangle{}
	}
	w := c.DetectionWindow
	return image.Rect(w.X, w.Y, w.X+w.Width, w.Y+w.Height)
}

// GetRadiusCompensation returns the radius_compensation value or the default.
func (c *TuningConfig) GetRadiusCompensation() float64 {
	return float(c.RadiusCompensation, 1.0)
}

// GetReferenceRadius returns the reference_radius value or the default.
func (c *TuningConfig) GetReferenceRadius() float64 {
	return float(c.ReferenceRadius, 0.225)
}

// GetHideOnLostDetection returns the hide_on_lost_detection value or the default.
func (c *TuningConfig) GetHideOnLostDetection() bool {
	if c.HideOnLostDetection == nil {
		return false
	}
	return *c.HideOnLostDetection
}

// GetModelKeyColor returns the model_key_color value or the default.
func (c *TuningConfig) GetModelKeyColor() string {
	return str(c.ModelKeyColor, "#1a1a1a")
}

// GetModelThreshold returns the model_threshold value or the default.
func (c *TuningConfig) GetModelThreshold() float64 {
	return float(c.ModelThreshold, 0.2)
}

// GetJournalBuffer returns the journal_buffer value or the default.
func (c *TuningConfig) GetJournalBuffer() int {
	if c.JournalBuffer == nil {
		return 256
	}
	return *c.JournalBuffer
}

// GetPlotHistory returns the plot_history value or the default.
func (c *TuningConfig) GetPlotHistory() int {
	if c.PlotHistory == nil {
		return 1024
	}
	return *c.PlotHistory
}

// CoordinatorConfig resolves the tuning values into per-component settings.
func (c *TuningConfig) CoordinatorConfig() (coordinator.Config, error) {
	out := coordinator.DefaultConfig()

	debug, err := colorful.Hex(c.GetSurfaceDebugColor())
	if err != nil {
		return out, fmt.Errorf("invalid surface_debug_color: %w", err)
	}
	out.Surface.DebugAlpha = c.GetSurfaceDebugAlpha()
	out.Surface.DebugColor = debug

	policy, err := placement.ParsePolicy(c.GetPlacementPolicy())
	if err != nil {
		return out, err
	}
	out.Placement.Policy = policy
	out.Placement.DefaultScale = c.GetDefaultScale()
	out.Placement.NormalOffset = c.GetNormalOffset()
	out.Placement.FadeDuration = c.GetFadeDuration()

	swatches, err := manipulation.ParseSwatches(c.GetSwatchLight(), c.GetSwatchDark(), c.GetSwatchAccent())
	if err != nil {
		return out, err
	}
	out.Manipulation = manipulation.Settings{
		TranslateStep:       c.GetTranslateStep(),
		TranslateStepCoarse: c.GetTranslateStepCoarse(),
		ScaleStep:           c.GetScaleStep(),
		MinScale:            c.GetMinScale(),
		DepthStep:           c.GetDepthStep(),
		Swatches:            swatches,
	}

	out.Inference.Interval = c.GetInferenceInterval()
	out.Inference.Timeout = c.GetInferenceTimeout()
	out.Inference.InputSize = c.GetInputSize()
	out.Inference.Window = c.GetDetectionWindow()
	out.Inference.RadiusCompensation = c.GetRadiusCompensation()
	out.Inference.ReferenceRadius = c.GetReferenceRadius()
	out.Inference.HideOnLost = c.GetHideOnLostDetection()
	return out, nil
}
