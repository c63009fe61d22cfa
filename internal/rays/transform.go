package rays

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/rayview/internal/trace"
)

var (
	// ErrMalformed indicates a payload that does not decode as a particle bundle.
	ErrMalformed = errors.New("rays: malformed particle bundle")

	// ErrEmptyBundle indicates a well-formed bundle with no drawable ray.
	ErrEmptyBundle = errors.New("rays: particle bundle has no rays")

	// ErrNoPayload indicates the transformer was handed an absent payload.
	ErrNoPayload = errors.New("rays: no payload")
)

// Transformer converts a raw trace into renderable rays.
type Transformer interface {
	Transform(raw *trace.Raw) (*Dataset, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(raw *trace.Raw) (*Dataset, error)

// Transform implements Transformer.
func (f TransformerFunc) Transform(raw *trace.Raw) (*Dataset, error) {
	return f(raw)
}

// Inspect wraps t so only rays reaching comp are kept. A bundle where no ray
// reaches comp fails with ErrEmptyBundle. An empty comp returns t unchanged.
func Inspect(t Transformer, comp string) Transformer {
	if comp == "" {
		return t
	}
	return TransformerFunc(func(raw *trace.Raw) (*Dataset, error) {
		d, err := t.Transform(raw)
		if err != nil {
			return nil, err
		}
		kept := d.Reaching(comp)
		if kept.IsEmpty() {
			return nil, fmt.Errorf("%w: no ray reaches %q", ErrEmptyBundle, comp)
		}
		return kept, nil
	})
}

// DecodeError reports where in the bundle decoding stopped.
type DecodeError struct {
	Ray   int
	Event int
	Err   error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Ray < 0:
		return fmt.Sprintf("%v: %v", ErrMalformed, e.Err)
	case e.Event < 0:
		return fmt.Sprintf("%v: ray %d: %v", ErrMalformed, e.Ray, e.Err)
	default:
		return fmt.Sprintf("%v: ray %d event %d: %v", ErrMalformed, e.Ray, e.Event, e.Err)
	}
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}

type bundleJSON struct {
	NumRays int       `json:"numrays"`
	VMin    float64   `json:"vmin"`
	VMax    float64   `json:"vmax"`
	Rays    []rayJSON `json:"rays"`
}

type rayJSON struct {
	Speed  float64     `json:"speed"`
	Events []eventJSON `json:"events"`
}

type eventJSON struct {
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
	Time     float64   `json:"time"`
	Comp     string    `json:"comp"`
}

// ParticleTransformer decodes the particle bundle written by instrument runs:
//
//	{"numrays": 2, "vmin": 400, "vmax": 900,
//	 "rays": [{"speed": 512.3, "events": [{"position": [0,0,0], "velocity": [0,0,512.3], "time": 0, "comp": "source"}, ...]}]}
//
// Rays without events are dropped.
type ParticleTransformer struct {
	Logger *slog.Logger
}

// NewParticleTransformer creates a ParticleTransformer.
func NewParticleTransformer(logger *slog.Logger) *ParticleTransformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParticleTransformer{Logger: logger}
}

// Transform implements Transformer.
func (t *ParticleTransformer) Transform(raw *trace.Raw) (*Dataset, error) {
	if !raw.Present() {
		return nil, ErrNoPayload
	}

	var b bundleJSON
	if err := json.Unmarshal(raw.Payload, &b); err != nil {
		return nil, &DecodeError{Ray: -1, Event: -1, Err: err}
	}

	out := make([]Ray, 0, len(b.Rays))
	dropped := 0
	for i, rj := range b.Rays {
		if len(rj.Events) == 0 {
			dropped++
			continue
		}
		r := Ray{Speed: rj.Speed, Events: make([]Event, 0, len(rj.Events))}
		for j, ej := range rj.Events {
			pos, err := vecFrom(ej.Position, true)
			if err != nil {
				return nil, &DecodeError{Ray: i, Event: j, Err: fmt.Errorf("position: %w", err)}
			}
			vel, err := vecFrom(ej.Velocity, false)
			if err != nil {
				return nil, &DecodeError{Ray: i, Event: j, Err: fmt.Errorf("velocity: %w", err)}
			}
			r.Events = append(r.Events, Event{Position: pos, Velocity: vel, Time: ej.Time, Component: ej.Comp})
		}
		if r.Speed == 0 {
			r.Speed = r.Events[0].Velocity.Length()
		}
		out = append(out, r)
	}

	if len(out) == 0 {
		return nil, ErrEmptyBundle
	}
	if b.NumRays != 0 && b.NumRays != len(b.Rays) {
		t.Logger.Warn("particle bundle ray count mismatch", "ref", raw.Ref, "numrays", b.NumRays, "decoded", len(b.Rays))
	}
	t.Logger.Debug("transformed particle bundle", "ref", raw.Ref, "rays", len(out), "dropped", dropped)
	return NewDataset(out), nil
}

func vecFrom(c []float64, required bool) (Vec3, error) {
	if len(c) == 0 && !required {
		return Vec3{}, nil
	}
	if len(c) != 3 {
		return Vec3{}, fmt.Errorf("want 3 components, got %d", len(c))
	}
	v := Vec3{c[0], c[1], c[2]}
	if !v.IsFinite() {
		return Vec3{}, errors.New("non-finite component")
	}
	return v, nil
}
