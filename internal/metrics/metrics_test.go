package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/rayview/internal/rays"
)

func sample() *rays.Dataset {
	return rays.NewDataset([]rays.Ray{
		{Speed: 10, Events: []rays.Event{
			{Position: rays.Vec3{Z: 0}, Velocity: rays.Vec3{Z: 10}, Time: 0, Component: "source"},
			{Position: rays.Vec3{Z: 3}, Velocity: rays.Vec3{Z: 10}, Time: 0.3, Component: "sample"},
			{Position: rays.Vec3{X: 4, Z: 3}, Velocity: rays.Vec3{Z: 8}, Time: 0.8, Component: "detector"},
		}},
		{Speed: 10, Events: []rays.Event{
			{Position: rays.Vec3{}, Velocity: rays.Vec3{Z: 10}, Time: 0, Component: "source"},
			{Position: rays.Vec3{Z: 1}, Velocity: rays.Vec3{Z: 10}, Time: 0.1, Component: "slit"},
		}},
	})
}

func TestEvaluate(t *testing.T) {
	got := Evaluate(sample(), Default("detector")...)
	want := map[string]float64{
		"transmission":   0.5,
		"time_of_flight": 0.45,
		"path_length":    4,
		"scatter_rate":   0.5,
		"speed_drift":    0.2,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for _, r := range got {
		if math.Abs(r.Value-want[r.Name]) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", r.Name, want[r.Name], r.Value)
		}
	}
}

func TestEvaluateResets(t *testing.T) {
	m := NewTransmission("detector")
	Evaluate(sample(), m)
	got := Evaluate(rays.NewDataset(nil), m)
	if got[0].Value != 0 {
		t.Errorf("expected zero after reset, got %f", got[0].Value)
	}
}
