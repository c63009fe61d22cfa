package render

import (
	"math"
	"sort"

	"github.com/san-kum/rayview/internal/rays"
)

// Camera projects instrument space onto the canvas. Points are first moved so
// the focus sits at the origin and scaled to a unit box, then rotated.
type Camera struct {
	Focus            rays.Vec3
	Scale            float64
	Distance, Near   float64
	RotX, RotY, RotZ float64
	Zoom             float64
}

// NewCamera returns a camera looking down the beam axis from the side.
func NewCamera() *Camera {
	return &Camera{Scale: 1, Distance: 6, Near: 0.1, RotY: math.Pi / 2, Zoom: 1}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) RotateZ(a float64) { c.RotZ += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(20, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.05, c.Zoom/1.2) }

// Fit centres the camera on b and scales it so the longest edge spans two units.
func (c *Camera) Fit(b rays.Box) {
	if b.IsEmpty() {
		c.Focus, c.Scale = rays.Vec3{}, 1
		return
	}
	c.Focus = b.Center()
	s := b.Size()
	longest := math.Max(s.X, math.Max(s.Y, s.Z))
	if longest <= 0 {
		c.Scale = 1
		return
	}
	c.Scale = 2 / longest
}

func (c *Camera) rotate(p rays.Vec3) rays.Vec3 {
	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	cz, sz := math.Cos(c.RotZ), math.Sin(c.RotZ)
	p.X, p.Y = p.X*cz-p.Y*sz, p.X*sz+p.Y*cz
	return p
}

// Project maps p to dot coordinates on a w x h dot grid. It returns the
// coordinates, the depth and whether the point is in front of the camera and
// on screen.
func (c *Camera) Project(p rays.Vec3, w, h int) (int, int, float64, bool) {
	rot := c.rotate(p.Sub(c.Focus).Scale(c.Scale * c.Zoom))
	if rot.Z >= c.Distance-c.Near {
		return 0, 0, 0, false
	}
	persp := c.Distance / (c.Distance - rot.Z)
	half := float64(min(w, h)) / 2.5
	sx := int(rot.X*persp*half) + w/2
	sy := int(-rot.Y*persp*half) + h/2
	return sx, sy, rot.Z, sx >= 0 && sx < w && sy >= 0 && sy < h
}

// Edge is one segment in world space; Start == End draws a point.
type Edge struct {
	Start, End rays.Vec3
	Marker     bool
}

// Wireframe is a list of edges drawn together.
type Wireframe struct {
	Edges []Edge
}

func NewWireframe() *Wireframe              { return &Wireframe{} }
func (w *Wireframe) AddEdge(s, e rays.Vec3) { w.Edges = append(w.Edges, Edge{Start: s, End: e}) }
func (w *Wireframe) AddMarker(p rays.Vec3) {
	w.Edges = append(w.Edges, Edge{Start: p, End: p, Marker: true})
}
func (w *Wireframe) Len() int            { return len(w.Edges) }
func (w *Wireframe) Append(o *Wireframe) { w.Edges = append(w.Edges, o.Edges...) }

type projected struct {
	x1, y1, x2, y2 int
	depth          float64
	marker         bool
}

// Draw rasterises the wireframe far-to-near onto the canvas.
func Draw(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	dw, dh := c.DotsWide(), c.DotsHigh()
	proj := make([]projected, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, dw, dh)
		x2, y2, d2, v2 := cam.Project(e.End, dw, dh)
		if v1 || v2 {
			proj = append(proj, projected{x1, y1, x2, y2, (d1 + d2) / 2, e.Marker})
		}
	}
	sort.SliceStable(proj, func(i, j int) bool { return proj[i].depth < proj[j].depth })
	for _, p := range proj {
		switch {
		case p.marker:
			c.Mark(p.x1, p.y1)
		case p.x1 == p.x2 && p.y1 == p.y2:
			c.Set(p.x1, p.y1)
		default:
			c.DrawLine(p.x1, p.y1, p.x2, p.y2)
		}
	}
}

// Axes returns a wireframe of the three axes of length l from origin o.
func Axes(o rays.Vec3, l float64) *Wireframe {
	w := NewWireframe()
	w.AddEdge(o, o.Add(rays.Vec3{X: l}))
	w.AddEdge(o, o.Add(rays.Vec3{Y: l}))
	w.AddEdge(o, o.Add(rays.Vec3{Z: l}))
	return w
}
