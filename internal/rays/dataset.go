package rays

import "math"

// Event is one recorded interaction along a particle path.
type Event struct {
	Position  Vec3
	Velocity  Vec3
	Time      float64
	Component string
}

// Ray is the renderable path of one particle.
type Ray struct {
	Speed  float64
	Events []Event
}

// Segments returns the number of line segments in the ray.
func (r Ray) Segments() int {
	if len(r.Events) < 2 {
		return 0
	}
	return len(r.Events) - 1
}

// Reaches reports whether any event of the ray is at the named component.
func (r Ray) Reaches(comp string) bool {
	for _, e := range r.Events {
		if e.Component == comp {
			return true
		}
	}
	return false
}

// Dataset is the transformed, renderable ray geometry. A Dataset never
// changes after construction, so it can be shared across goroutines.
type Dataset struct {
	rays   []Ray
	bounds Box
	vmin   float64
	vmax   float64
}

// NewDataset copies rays into an immutable dataset.
func NewDataset(rs []Ray) *Dataset {
	d := &Dataset{
		rays:   make([]Ray, len(rs)),
		bounds: EmptyBox(),
		vmin:   math.Inf(1),
		vmax:   math.Inf(-1),
	}
	for i, r := range rs {
		events := make([]Event, len(r.Events))
		copy(events, r.Events)
		d.rays[i] = Ray{Speed: r.Speed, Events: events}
		for _, e := range events {
			d.bounds = d.bounds.Extend(e.Position)
		}
		d.vmin = math.Min(d.vmin, r.Speed)
		d.vmax = math.Max(d.vmax, r.Speed)
	}
	if len(rs) == 0 {
		d.vmin, d.vmax = 0, 0
	}
	return d
}

// Reaching returns a new dataset holding only the rays that reach comp, in
// their original order. An empty comp returns d itself.
func (d *Dataset) Reaching(comp string) *Dataset {
	if comp == "" || d == nil {
		return d
	}
	kept := make([]Ray, 0, len(d.rays))
	for _, r := range d.rays {
		if r.Reaches(comp) {
			kept = append(kept, r)
		}
	}
	return NewDataset(kept)
}

// Len returns the number of rays; a nil dataset has none.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rays)
}

// IsEmpty reports whether the dataset holds no rays.
func (d *Dataset) IsEmpty() bool { return d.Len() == 0 }

// At returns the ray at index i. The returned events slice must not be modified.
func (d *Dataset) At(i int) (Ray, bool) {
	if i < 0 || i >= d.Len() {
		return Ray{}, false
	}
	return d.rays[i], true
}

// Rays returns a copy of the ray list.
func (d *Dataset) Rays() []Ray {
	if d == nil {
		return nil
	}
	out := make([]Ray, len(d.rays))
	copy(out, d.rays)
	return out
}

// Bounds returns the bounding box of every event position.
func (d *Dataset) Bounds() Box {
	if d == nil {
		return EmptyBox()
	}
	return d.bounds
}

// SpeedRange returns the slowest and fastest ray speed.
func (d *Dataset) SpeedRange() (vmin, vmax float64) {
	if d == nil {
		return 0, 0
	}
	return d.vmin, d.vmax
}

// EventCount returns the total number of events over all rays.
func (d *Dataset) EventCount() int {
	n := 0
	for i := 0; i < d.Len(); i++ {
		n += len(d.rays[i].Events)
	}
	return n
}

// ScatterPoints returns the interior event positions of the first n rays;
// the first and last event of a ray are its endpoints, not interactions.
// A negative n means every ray.
func (d *Dataset) ScatterPoints(n int) []Vec3 {
	if n < 0 || n > d.Len() {
		n = d.Len()
	}
	var pts []Vec3
	for i := 0; i < n; i++ {
		ev := d.rays[i].Events
		for j := 1; j < len(ev)-1; j++ {
			pts = append(pts, ev[j].Position)
		}
	}
	return pts
}
