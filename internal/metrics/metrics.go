// Package metrics reduces a ray dataset to scalar summaries.
package metrics

import (
	"math"

	"github.com/san-kum/rayview/internal/rays"
)

// Metric accumulates over rays one at a time.
type Metric interface {
	Name() string
	Observe(r rays.Ray)
	Value() float64
	Reset()
}

// Result pairs a metric name with its value.
type Result struct {
	Name  string
	Value float64
}

// Evaluate resets each metric, feeds it every ray in d and returns the
// values in the order given.
func Evaluate(d *rays.Dataset, ms ...Metric) []Result {
	for _, m := range ms {
		m.Reset()
	}
	for _, r := range d.Rays() {
		for _, m := range ms {
			m.Observe(r)
		}
	}
	out := make([]Result, len(ms))
	for i, m := range ms {
		out[i] = Result{Name: m.Name(), Value: m.Value()}
	}
	return out
}

// Default returns the metrics shown by `rayview info`.
func Default(detector string) []Metric {
	return []Metric{
		NewTransmission(detector),
		NewTimeOfFlight(),
		NewPathLength(),
		NewScatterRate(),
		NewSpeedDrift(),
	}
}

// Transmission is the fraction of rays whose last event is at the named
// component.
type Transmission struct {
	name     string
	detector string
	hits     int
	samples  int
}

func NewTransmission(detector string) *Transmission {
	return &Transmission{name: "transmission", detector: detector}
}

func (m *Transmission) Name() string { return m.name }

func (m *Transmission) Observe(r rays.Ray) {
	m.samples++
	if n := len(r.Events); n > 0 && r.Events[n-1].Component == m.detector {
		m.hits++
	}
}

func (m *Transmission) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.hits) / float64(m.samples)
}

func (m *Transmission) Reset() { m.hits, m.samples = 0, 0 }

// TimeOfFlight is the mean time between the first and last event.
type TimeOfFlight struct {
	name    string
	sum     float64
	samples int
}

func NewTimeOfFlight() *TimeOfFlight { return &TimeOfFlight{name: "time_of_flight"} }

func (m *TimeOfFlight) Name() string { return m.name }

func (m *TimeOfFlight) Observe(r rays.Ray) {
	if len(r.Events) < 2 {
		return
	}
	m.sum += r.Events[len(r.Events)-1].Time - r.Events[0].Time
	m.samples++
}

func (m *TimeOfFlight) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *TimeOfFlight) Reset() { m.sum, m.samples = 0, 0 }

// PathLength is the mean polyline length of a ray.
type PathLength struct {
	name    string
	sum     float64
	samples int
}

func NewPathLength() *PathLength { return &PathLength{name: "path_length"} }

func (m *PathLength) Name() string { return m.name }

func (m *PathLength) Observe(r rays.Ray) {
	for i := 1; i < len(r.Events); i++ {
		m.sum += r.Events[i].Position.Sub(r.Events[i-1].Position).Length()
	}
	m.samples++
}

func (m *PathLength) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *PathLength) Reset() { m.sum, m.samples = 0, 0 }

// ScatterRate is the mean number of interior events per ray.
type ScatterRate struct {
	name    string
	events  int
	samples int
}

func NewScatterRate() *ScatterRate { return &ScatterRate{name: "scatter_rate"} }

func (m *ScatterRate) Name() string { return m.name }

func (m *ScatterRate) Observe(r rays.Ray) {
	m.events += max(0, len(r.Events)-2)
	m.samples++
}

func (m *ScatterRate) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.events) / float64(m.samples)
}

func (m *ScatterRate) Reset() { m.events, m.samples = 0, 0 }

// SpeedDrift is the largest relative change in speed between the first
// and last event of any ray. Gravity alone keeps it small.
type SpeedDrift struct {
	name     string
	maxDrift float64
}

func NewSpeedDrift() *SpeedDrift { return &SpeedDrift{name: "speed_drift"} }

func (m *SpeedDrift) Name() string { return m.name }

func (m *SpeedDrift) Observe(r rays.Ray) {
	if len(r.Events) < 2 {
		return
	}
	v0 := r.Events[0].Velocity.Length()
	v1 := r.Events[len(r.Events)-1].Velocity.Length()
	if v0 == 0 {
		return
	}
	m.maxDrift = math.Max(m.maxDrift, math.Abs(v1-v0)/v0)
}

func (m *SpeedDrift) Value() float64 { return m.maxDrift }

func (m *SpeedDrift) Reset() { m.maxDrift = 0 }
