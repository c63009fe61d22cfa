package render

import (
	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/viewstate"
)

// Visible returns the indices of the rays a snapshot reveals: none while
// hidden, every ray in show-all mode, rays 0..PlaybackIndex in playback mode.
// A playback cursor that has not been placed reveals nothing.
func Visible(d *rays.Dataset, v viewstate.ViewState) []int {
	n := revealed(d, v)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func revealed(d *rays.Dataset, v viewstate.ViewState) int {
	switch viewstate.ActiveMode(v) {
	case viewstate.ModeShowAll:
		return d.Len()
	case viewstate.ModePlayback:
		if !v.HasPlayback() {
			return 0
		}
		return min(v.PlaybackIndex+1, d.Len())
	default:
		return 0
	}
}

// Scene is the geometry for one frame.
type Scene struct {
	Rays    *Wireframe
	Scatter *Wireframe
	Bounds  rays.Box
	// Current is the ray under the playback cursor, or -1.
	Current int
}

// BuildScene turns the dataset and view flags into wireframes. A nil dataset
// yields an empty scene.
func BuildScene(d *rays.Dataset, v viewstate.ViewState) *Scene {
	s := &Scene{Rays: NewWireframe(), Scatter: NewWireframe(), Bounds: d.Bounds(), Current: -1}
	n := revealed(d, v)
	for i := 0; i < n; i++ {
		r, _ := d.At(i)
		for j := 1; j < len(r.Events); j++ {
			s.Rays.AddEdge(r.Events[j-1].Position, r.Events[j].Position)
		}
	}
	if n > 0 && viewstate.ActiveMode(v) == viewstate.ModePlayback {
		s.Current = n - 1
	}
	if v.ScatterPoints && n > 0 {
		for _, p := range d.ScatterPoints(n) {
			s.Scatter.AddMarker(p)
		}
	}
	return s
}

// Empty reports whether nothing would be drawn.
func (s *Scene) Empty() bool {
	return s.Rays.Len() == 0 && s.Scatter.Len() == 0
}

// Frame renders the scene onto a fresh w x h canvas.
func (s *Scene) Frame(cam *Camera, w, h int) *Canvas {
	c := NewCanvas(w, h)
	Draw(c, s.Rays, cam)
	Draw(c, s.Scatter, cam)
	return c
}
