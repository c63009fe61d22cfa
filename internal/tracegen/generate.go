package tracegen

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"

	"golang.org/x/sync/errgroup"
)

var ErrNoRays = errors.New("tracegen: no ray reached the detector")

// Config controls a generator run.
type Config struct {
	Rays     int     `yaml:"rays"`
	Seed     uint64  `yaml:"seed"`
	SpeedMin float64 `yaml:"speed_min"`
	SpeedMax float64 `yaml:"speed_max"`
	// Divergence is the half-angle in radians of the source cone.
	Divergence float64 `yaml:"divergence"`
	// ScatterProb is the chance a ray hitting the sample is deflected.
	ScatterProb float64 `yaml:"scatter_prob"`
	// ScatterAngle is the largest deflection at the sample, in radians.
	ScatterAngle float64 `yaml:"scatter_angle"`
	Gravity      float64 `yaml:"gravity"`
	// Integrator names an entry of Steppers.
	Integrator   string `yaml:"integrator"`
	Steps        int    `yaml:"steps"`
	KeepAbsorbed bool   `yaml:"keep_absorbed"`
	// Workers splits the rays into this many batches traced in parallel.
	// Batch i draws from seed Seed+i, so output depends on Workers too.
	Workers int `yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		Rays:         200,
		Seed:         1,
		SpeedMin:     400,
		SpeedMax:     1600,
		Divergence:   0.004,
		ScatterProb:  0.6,
		ScatterAngle: 0.08,
		Gravity:      9.81,
		Integrator:   "rk4",
		Steps:        16,
		Workers:      1,
	}
}

// Settings flattens the config for run metadata.
func (c Config) Settings() map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return map[string]string{
		"rays":          strconv.Itoa(c.Rays),
		"speed_min":     f(c.SpeedMin),
		"speed_max":     f(c.SpeedMax),
		"divergence":    f(c.Divergence),
		"scatter_prob":  f(c.ScatterProb),
		"scatter_angle": f(c.ScatterAngle),
		"gravity":       f(c.Gravity),
		"integrator":    c.Integrator,
		"steps":         strconv.Itoa(c.Steps),
		"workers":       strconv.Itoa(c.Workers),
	}
}

// Bundle is the particle bundle document.
type Bundle struct {
	NumRays int         `json:"numrays"`
	VMin    float64     `json:"vmin"`
	VMax    float64     `json:"vmax"`
	Rays    []BundleRay `json:"rays"`
}

type BundleRay struct {
	Speed  float64       `json:"speed"`
	Events []BundleEvent `json:"events"`
}

type BundleEvent struct {
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`
	Time     float64    `json:"time"`
	Comp     string     `json:"comp"`
}

func (b *Bundle) JSON() ([]byte, error) {
	return json.Marshal(b)
}

// Generator traces particles through an instrument.
type Generator struct {
	Instrument Instrument
	Config     Config
	Logger     *slog.Logger

	stepper Stepper
}

func New(in Instrument, cfg Config, logger *slog.Logger) (*Generator, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rays <= 0 {
		return nil, errors.New("tracegen: ray count must be positive")
	}
	if cfg.SpeedMin <= 0 || cfg.SpeedMax < cfg.SpeedMin {
		return nil, errors.New("tracegen: invalid speed range")
	}
	if cfg.Integrator == "" {
		cfg.Integrator = "rk4"
	}
	stepper, err := GetStepper(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	cfg.Workers = max(1, cfg.Workers)
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{Instrument: in, Config: cfg, Logger: logger, stepper: stepper}, nil
}

// Generate runs every particle and returns the rays that survived, in
// batch order.
func (g *Generator) Generate(ctx context.Context) (*Bundle, error) {
	sizes := split(g.Config.Rays, g.Config.Workers)
	batches := make([]batch, len(sizes))

	eg, egctx := errgroup.WithContext(ctx)
	for i, n := range sizes {
		eg.Go(func() error {
			var err error
			batches[i], err = g.runBatch(egctx, g.Config.Seed+uint64(i), n)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	b := &Bundle{VMin: math.Inf(1), VMax: math.Inf(-1)}
	absorbed := 0
	for _, bt := range batches {
		absorbed += bt.absorbed
		for _, ray := range bt.rays {
			b.Rays = append(b.Rays, ray)
			b.VMin = math.Min(b.VMin, ray.Speed)
			b.VMax = math.Max(b.VMax, ray.Speed)
		}
	}

	if len(b.Rays) == 0 {
		return nil, ErrNoRays
	}
	b.NumRays = len(b.Rays)
	g.Logger.Debug("generated trace", "emitted", g.Config.Rays, "kept", b.NumRays, "absorbed", absorbed,
		"integrator", g.Config.Integrator, "workers", len(sizes))
	return b, nil
}

type batch struct {
	rays     []BundleRay
	absorbed int
}

func (g *Generator) runBatch(ctx context.Context, seed uint64, n int) (batch, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	field := Gravity(g.Config.Gravity)

	var bt batch
	for i := 0; i < n; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return bt, err
			}
		}
		ray, ok := g.trace(rng, field)
		if !ok {
			bt.absorbed++
			if !g.Config.KeepAbsorbed {
				continue
			}
		}
		bt.rays = append(bt.rays, ray)
	}
	return bt, nil
}

// split divides n into w near-equal positive parts, fewer if n < w.
func split(n, w int) []int {
	w = max(1, min(w, n))
	sizes := make([]int, w)
	for i := range sizes {
		sizes[i] = n / w
		if i < n%w {
			sizes[i]++
		}
	}
	return sizes
}

func (g *Generator) trace(rng *rand.Rand, field Field) (BundleRay, bool) {
	cfg := g.Config
	comps := g.Instrument.Components
	src := comps[0]

	speed := cfg.SpeedMin + rng.Float64()*(cfg.SpeedMax-cfg.SpeedMin)
	theta := cfg.Divergence * math.Sqrt(rng.Float64())
	phi := 2 * math.Pi * rng.Float64()
	dir := [3]float64{math.Sin(theta) * math.Cos(phi), math.Sin(theta) * math.Sin(phi), math.Cos(theta)}

	x := State{
		(rng.Float64() - 0.5) * src.Width,
		(rng.Float64() - 0.5) * src.Height,
		src.Z,
		speed * dir[0], speed * dir[1], speed * dir[2],
	}
	t := 0.0
	ray := BundleRay{Speed: speed, Events: []BundleEvent{event(x, t, src.Name)}}

	for _, c := range comps[1:] {
		if x[5] <= 0 {
			return ray, false
		}
		dt := (c.Z - x[2]) / x[5]
		x = g.stepper.Integrate(field, x, t, dt, cfg.Steps)
		t += dt
		if !x.IsValid() {
			return ray, false
		}
		ray.Events = append(ray.Events, event(x, t, c.Name))

		switch c.Kind {
		case KindSlit, KindDetector:
			if !c.contains(x[0], x[1]) {
				return ray, false
			}
			if c.Kind == KindDetector {
				return ray, true
			}
		case KindSample:
			if c.contains(x[0], x[1]) && rng.Float64() < cfg.ScatterProb {
				x = deflect(rng, x, cfg.ScatterAngle)
			}
		}
	}
	return ray, false
}

// deflect turns the velocity by a random angle up to maxAngle while keeping
// the speed.
func deflect(rng *rand.Rand, x State, maxAngle float64) State {
	v := math.Sqrt(x[3]*x[3] + x[4]*x[4] + x[5]*x[5])
	if v == 0 {
		return x
	}
	theta := maxAngle * rng.Float64()
	phi := 2 * math.Pi * rng.Float64()
	x[3] = v * math.Sin(theta) * math.Cos(phi)
	x[4] = v * math.Sin(theta) * math.Sin(phi)
	x[5] = v * math.Cos(theta)
	return x
}

func event(x State, t float64, comp string) BundleEvent {
	return BundleEvent{
		Position: [3]float64{x[0], x[1], x[2]},
		Velocity: [3]float64{x[3], x[4], x[5]},
		Time:     t,
		Comp:     comp,
	}
}
