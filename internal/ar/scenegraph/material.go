package scenegraph

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// LightingModel selects how the renderer shades a material.
type LightingModel int

const (
	LightingBlinn LightingModel = iota
	LightingPhysicallyBased
)

// Material is a surface description shared by reference between nodes.
type Material struct {
	Name     string
	Lighting LightingModel
	Diffuse  colorful.Color
	Texture  string
	// Metalness and Roughness only apply to physically based lighting.
	Metalness float64
	Roughness float64
	// Alpha is the material opacity in [0,1].
	Alpha float64
	// ColorWrite false makes the material an occluder: it writes depth but
	// no color, hiding whatever is behind it.
	ColorWrite bool
}

// NewMaterial returns an opaque white material with the given name.
func NewMaterial(name string) *Material {
	return &Material{
		Name:       name,
		Diffuse:    colorful.Color{R: 1, G: 1, B: 1},
		Alpha:      1,
		ColorWrite: true,
	}
}
