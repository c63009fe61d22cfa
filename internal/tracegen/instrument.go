package tracegen

import (
	"errors"
	"fmt"
	"sort"
)

type Kind string

const (
	KindSource   Kind = "source"
	KindSlit     Kind = "slit"
	KindSample   Kind = "sample"
	KindDetector Kind = "detector"
)

var (
	ErrNoSource   = errors.New("tracegen: instrument has no source")
	ErrNoDetector = errors.New("tracegen: instrument has no detector")
)

// Component is a plane perpendicular to the beam at position Z. Width and
// Height are the aperture of a slit, the target size of a sample or the
// sensitive area of a detector.
type Component struct {
	Name   string  `yaml:"name" json:"name"`
	Kind   Kind    `yaml:"kind" json:"kind"`
	Z      float64 `yaml:"z" json:"z"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

func (c Component) contains(x, y float64) bool {
	return abs(x) <= c.Width/2 && abs(y) <= c.Height/2
}

// Instrument is a beam line ordered along z.
type Instrument struct {
	Components []Component `yaml:"components" json:"components"`
}

// DefaultInstrument is a small-angle scattering layout.
func DefaultInstrument() Instrument {
	return Instrument{Components: []Component{
		{Name: "source", Kind: KindSource, Z: 0, Width: 0.03, Height: 0.03},
		{Name: "slit1", Kind: KindSlit, Z: 2, Width: 0.02, Height: 0.02},
		{Name: "slit2", Kind: KindSlit, Z: 4, Width: 0.016, Height: 0.016},
		{Name: "sample", Kind: KindSample, Z: 5, Width: 0.01, Height: 0.01},
		{Name: "detector", Kind: KindDetector, Z: 9, Width: 1, Height: 1},
	}}
}

// Validate sorts the components and checks there is one source first and a
// detector last.
func (in *Instrument) Validate() error {
	sort.SliceStable(in.Components, func(i, j int) bool { return in.Components[i].Z < in.Components[j].Z })
	n := len(in.Components)
	if n == 0 || in.Components[0].Kind != KindSource {
		return ErrNoSource
	}
	if in.Components[n-1].Kind != KindDetector {
		return ErrNoDetector
	}
	for i, c := range in.Components {
		if c.Width < 0 || c.Height < 0 {
			return fmt.Errorf("tracegen: component %q has a negative size", c.Name)
		}
		if i > 0 && c.Z == in.Components[i-1].Z {
			return fmt.Errorf("tracegen: components %q and %q share z=%g", in.Components[i-1].Name, c.Name, c.Z)
		}
	}
	return nil
}

// Detector returns the name of the last component, or "" if there is none.
func (in *Instrument) Detector() string {
	if len(in.Components) == 0 {
		return ""
	}
	return in.Components[len(in.Components)-1].Name
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
