package tracegen

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/testutil"
	"github.com/san-kum/rayview/internal/trace"
)

func TestRK4Ballistic(t *testing.T) {
	const g, vy, dur = 9.81, 3.0, 0.5
	x := State{0, 0, 0, 0, vy, 100}
	got := RK4{}.Integrate(Gravity(g), x, 0, dur, 10)

	assert.InDelta(t, vy*dur-0.5*g*dur*dur, got[1], 1e-9)
	assert.InDelta(t, 100*dur, got[2], 1e-9)
	assert.InDelta(t, vy-g*dur, got[4], 1e-9)
	assert.True(t, got.IsValid())
}

func TestSteppersBallistic(t *testing.T) {
	const g, vy, dur = 9.81, 3.0, 0.5
	x := State{0, 0, 0, 0, vy, 100}
	wantY := vy*dur - 0.5*g*dur*dur

	tests := []struct {
		name string
		tolY float64
	}{
		{"euler", 0.15},
		{"verlet", 1e-9},
		{"rk4", 1e-9},
		{"rk45", 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := GetStepper(tt.name)
			require.NoError(t, err)
			got := s.Integrate(Gravity(g), x, 0, dur, 10)
			assert.InDelta(t, wantY, got[1], tt.tolY)
			assert.InDelta(t, 100*dur, got[2], 1e-6)
			assert.InDelta(t, vy-g*dur, got[4], 1e-6)
		})
	}
}

func TestGetStepperUnknown(t *testing.T) {
	_, err := GetStepper("leapfrog")
	assert.ErrorContains(t, err, "unknown integrator")

	cfg := DefaultConfig()
	cfg.Integrator = "leapfrog"
	_, err = New(DefaultInstrument(), cfg, nil)
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []int{4, 3, 3}, split(10, 3))
	assert.Equal(t, []int{1, 1}, split(2, 8))
	assert.Equal(t, []int{5}, split(5, 0))
}

func TestStateIsValid(t *testing.T) {
	assert.False(t, State{math.NaN()}.IsValid())
	assert.False(t, State{0, math.Inf(1)}.IsValid())
}

func TestInstrumentValidate(t *testing.T) {
	in := DefaultInstrument()
	in.Components[0], in.Components[4] = in.Components[4], in.Components[0]
	require.NoError(t, in.Validate(), "out-of-order components are sorted")
	assert.Equal(t, KindSource, in.Components[0].Kind)

	assert.ErrorIs(t, (&Instrument{}).Validate(), ErrNoSource)

	noDet := Instrument{Components: []Component{{Name: "s", Kind: KindSource}, {Name: "sl", Kind: KindSlit, Z: 1}}}
	assert.ErrorIs(t, noDet.Validate(), ErrNoDetector)

	dup := Instrument{Components: []Component{{Name: "s", Kind: KindSource}, {Name: "d", Kind: KindDetector}}}
	assert.Error(t, dup.Validate())
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := DefaultConfig()

	gen := func() *Bundle {
		g, err := New(DefaultInstrument(), cfg, testutil.NewTestLogger(t))
		require.NoError(t, err)
		b, err := g.Generate(context.Background())
		require.NoError(t, err)
		return b
	}

	a, b := gen(), gen()
	assert.Equal(t, a, b)
	assert.Equal(t, len(a.Rays), a.NumRays)
	assert.LessOrEqual(t, a.NumRays, cfg.Rays)
	for _, r := range a.Rays {
		assert.Equal(t, "source", r.Events[0].Comp)
		assert.Equal(t, "detector", r.Events[len(r.Events)-1].Comp)
		assert.GreaterOrEqual(t, r.Speed, cfg.SpeedMin)
		assert.LessOrEqual(t, r.Speed, cfg.SpeedMax)
	}
}

func TestGenerateWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rays = 400
	cfg.Workers = 4
	cfg.KeepAbsorbed = true

	gen := func() *Bundle {
		g, err := New(DefaultInstrument(), cfg, testutil.NewTestLogger(t))
		require.NoError(t, err)
		b, err := g.Generate(context.Background())
		require.NoError(t, err)
		return b
	}

	a, b := gen(), gen()
	assert.Equal(t, a, b, "same seed and workers give the same trace")
	assert.Equal(t, cfg.Rays, a.NumRays)
	assert.Equal(t, "4", cfg.Settings()["workers"])
}

func TestGenerateKeepsAbsorbed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rays = 100
	cfg.Divergence = 0.05
	cfg.KeepAbsorbed = true

	g, err := New(DefaultInstrument(), cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	b, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.Rays, b.NumRays)

	short := 0
	for _, r := range b.Rays {
		if r.Events[len(r.Events)-1].Comp != "detector" {
			short++
		}
	}
	assert.Positive(t, short, "a wide beam loses rays on the slits")
}

func TestGenerateRoundTripsThroughTransformer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rays = 120
	g, err := New(DefaultInstrument(), cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	b, err := g.Generate(context.Background())
	require.NoError(t, err)

	payload, err := b.JSON()
	require.NoError(t, err)
	ds, err := rays.NewParticleTransformer(testutil.NewTestLogger(t)).Transform(&trace.Raw{Ref: "gen", Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, b.NumRays, ds.Len())

	vmin, vmax := ds.SpeedRange()
	assert.Equal(t, b.VMin, vmin)
	assert.Equal(t, b.VMax, vmax)
}

func TestGenerateHonoursContext(t *testing.T) {
	g, err := New(DefaultInstrument(), DefaultConfig(), testutil.NewTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rays = 0
	_, err := New(DefaultInstrument(), cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.SpeedMax = cfg.SpeedMin - 1
	_, err = New(DefaultInstrument(), cfg, nil)
	assert.Error(t, err)
}
