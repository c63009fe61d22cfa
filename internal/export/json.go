package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/rayview/internal/metrics"
	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/viewstate"
)

type Data struct {
	Ref      string             `json:"ref"`
	Mode     viewstate.Mode     `json:"mode"`
	RayCount int                `json:"ray_count"`
	Visible  []int              `json:"visible"`
	Metrics  map[string]float64 `json:"metrics"`
	Rays     []Ray              `json:"rays"`
}

type Ray struct {
	Index  int     `json:"index"`
	Speed  float64 `json:"speed"`
	Events []Event `json:"events"`
}

type Event struct {
	Component string     `json:"component,omitempty"`
	Time      float64    `json:"t"`
	Position  [3]float64 `json:"position"`
	Velocity  [3]float64 `json:"velocity"`
}

// NewData collects the rays the view reveals. Metrics cover the whole
// dataset, not only the revealed rays.
func NewData(ref string, d *rays.Dataset, v viewstate.ViewState, ms []metrics.Metric) Data {
	data := Data{
		Ref:      ref,
		Mode:     viewstate.ActiveMode(v),
		RayCount: d.Len(),
		Visible:  render.Visible(d, v),
		Metrics:  make(map[string]float64, len(ms)),
		Rays:     []Ray{},
	}
	for _, r := range metrics.Evaluate(d, ms...) {
		data.Metrics[r.Name] = r.Value
	}
	for _, i := range data.Visible {
		r, _ := d.At(i)
		out := Ray{Index: i, Speed: r.Speed, Events: make([]Event, len(r.Events))}
		for j, e := range r.Events {
			out.Events[j] = Event{
				Component: e.Component,
				Time:      e.Time,
				Position:  [3]float64{e.Position.X, e.Position.Y, e.Position.Z},
				Velocity:  [3]float64{e.Velocity.X, e.Velocity.Y, e.Velocity.Z},
			}
		}
		data.Rays = append(data.Rays, out)
	}
	return data
}

func EncodeJSON(w io.Writer, data Data) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteJSON writes data to path, or to stdout when path is "-".
func WriteJSON(path string, data Data) error {
	if path == "-" {
		return EncodeJSON(os.Stdout, data)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return EncodeJSON(file, data)
}
