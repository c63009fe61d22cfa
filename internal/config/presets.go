package config

import (
	"math"
	"sort"

	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/tracegen"
)

// ViewPreset is a named camera orientation.
type ViewPreset struct {
	Name        string
	Description string
	RotX, RotY  float64
	RotZ        float64
	Zoom        float64
}

// Apply sets the camera rotation and zoom, keeping its focus and scale.
func (p ViewPreset) Apply(cam *render.Camera) {
	cam.RotX, cam.RotY, cam.RotZ = p.RotX, p.RotY, p.RotZ
	cam.Zoom = p.Zoom
}

var ViewPresets = map[string]ViewPreset{
	"side": {Name: "side", Description: "beam runs left to right, gravity down", RotY: math.Pi / 2, Zoom: 1},
	"top":  {Name: "top", Description: "looking down onto the beam plane", RotX: math.Pi / 2, RotY: math.Pi / 2, Zoom: 1},
	"beam": {Name: "beam", Description: "looking along the beam from the source", Zoom: 1.4},
	"iso":  {Name: "iso", Description: "isometric overview", RotX: -math.Pi / 6, RotY: math.Pi / 4, Zoom: 0.9},
}

func GetViewPreset(name string) *ViewPreset {
	p, ok := ViewPresets[name]
	if !ok {
		return nil
	}
	return &p
}

// GenPresets are generator settings for `rayview gen --profile`.
var GenPresets = map[string]tracegen.Config{
	"sans": tracegen.DefaultConfig(),
	"wide": func() tracegen.Config {
		c := tracegen.DefaultConfig()
		c.Divergence = 0.02
		c.KeepAbsorbed = true
		return c
	}(),
	"slow": func() tracegen.Config {
		c := tracegen.DefaultConfig()
		c.SpeedMin, c.SpeedMax = 60, 200
		c.Integrator = "rk45"
		return c
	}(),
	"dense": func() tracegen.Config {
		c := tracegen.DefaultConfig()
		c.Rays = 2000
		c.ScatterProb = 0.9
		c.Workers = 4
		return c
	}(),
}

func GetGenPreset(name string) (tracegen.Config, bool) {
	c, ok := GenPresets[name]
	return c, ok
}

// ListPresets returns the sorted names of a preset table.
func ListPresets[V any](table map[string]V) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
