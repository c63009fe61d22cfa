package tracegen

import (
	"fmt"
	"math"
	"sort"
)

// State is a particle phase-space point [x y z vx vy vz].
type State [6]float64

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) axpy(a float64, k State) State {
	for i := range s {
		s[i] += a * k[i]
	}
	return s
}

// Field returns the time derivative of s.
type Field func(s State, t float64) State

// Gravity is free flight with gravitational acceleration g along -y.
func Gravity(g float64) Field {
	return func(s State, _ float64) State {
		return State{s[3], s[4], s[5], 0, -g, 0}
	}
}

// Stepper advances a particle through a flight of the given duration,
// split into at least steps substeps.
type Stepper interface {
	Integrate(f Field, x State, t, duration float64, steps int) State
}

// fixed runs a single-step rule over equal substeps.
func fixed(step func(Field, State, float64, float64) State, f Field, x State, t, duration float64, steps int) State {
	if steps < 1 {
		steps = 1
	}
	dt := duration / float64(steps)
	for i := 0; i < steps; i++ {
		x = step(f, x, t, dt)
		t += dt
	}
	return x
}

// Euler is the explicit first order stepper.
type Euler struct{}

func (Euler) Step(f Field, x State, t, dt float64) State {
	return x.axpy(dt, f(x, t))
}

func (e Euler) Integrate(f Field, x State, t, duration float64, steps int) State {
	return fixed(e.Step, f, x, t, duration, steps)
}

// Verlet is velocity Verlet on the [position velocity] halves of the state.
type Verlet struct{}

func (Verlet) Step(f Field, x State, t, dt float64) State {
	a := f(x, t)
	var next State
	for i := 0; i < 3; i++ {
		next[i] = x[i] + x[3+i]*dt + 0.5*a[3+i]*dt*dt
		next[3+i] = x[3+i]
	}
	a2 := f(next, t+dt)
	for i := 0; i < 3; i++ {
		next[3+i] = x[3+i] + 0.5*(a[3+i]+a2[3+i])*dt
	}
	return next
}

func (v Verlet) Integrate(f Field, x State, t, duration float64, steps int) State {
	return fixed(v.Step, f, x, t, duration, steps)
}

// RK4 is a fixed-step fourth order Runge-Kutta stepper.
type RK4 struct{}

func (RK4) Step(f Field, x State, t, dt float64) State {
	k1 := f(x, t)
	k2 := f(x.axpy(dt*0.5, k1), t+dt*0.5)
	k3 := f(x.axpy(dt*0.5, k2), t+dt*0.5)
	k4 := f(x.axpy(dt, k3), t+dt)

	dt6 := dt / 6
	for i := range x {
		x[i] += dt6 * (k1[i] + 2*k2[i] + 2*k3[i] + k4[i])
	}
	return x
}

// Integrate advances x by duration in steps equal substeps.
func (r RK4) Integrate(f Field, x State, t, duration float64, steps int) State {
	return fixed(r.Step, f, x, t, duration, steps)
}

// Dormand-Prince tableau.
var (
	dpA = [...]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpB = [...][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// fifth minus fourth order weights
	dpE = [...]float64{
		71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40,
	}
)

// RK45 is the adaptive Dormand-Prince stepper. The first trial step is
// duration/steps; the last step is clipped to land exactly on duration.
type RK45 struct {
	Tol      float64
	Safety   float64
	MinScale float64
	MaxScale float64
	MaxSteps int
}

func NewRK45() RK45 {
	return RK45{Tol: 1e-9, Safety: 0.9, MinScale: 0.2, MaxScale: 10, MaxSteps: 10000}
}

// Step takes one trial step and returns the fifth order result, the error
// ratio against Tol and a suggested next step size.
func (r RK45) Step(f Field, x State, t, dt float64) (State, float64, float64) {
	var k [7]State
	k[0] = f(x, t)
	var next State
	for s := 1; s < 7; s++ {
		next = x
		for j := 0; j < s; j++ {
			next = next.axpy(dt*dpB[s][j], k[j])
		}
		k[s] = f(next, t+dpA[s]*dt)
	}

	errMax := 0.0
	for i := range x {
		var e float64
		for s := range dpE {
			e += dpE[s] * k[s][i]
		}
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(dt*e)/scale)
	}

	ratio := errMax / r.Tol
	var grow float64
	switch {
	case ratio > 1:
		grow = math.Max(r.MinScale, r.Safety*math.Pow(ratio, -0.25))
	case ratio > 0:
		grow = math.Min(r.MaxScale, r.Safety*math.Pow(ratio, -0.2))
	default:
		grow = r.MaxScale
	}
	return next, ratio, dt * grow
}

func (r RK45) Integrate(f Field, x State, t, duration float64, steps int) State {
	if steps < 1 {
		steps = 1
	}
	end := t + duration
	dt := duration / float64(steps)
	for n := 0; n < r.MaxSteps && t < end; n++ {
		dt = math.Min(dt, end-t)
		next, ratio, dtNext := r.Step(f, x, t, dt)
		if ratio <= 1 || dt <= duration*1e-12 {
			x, t = next, t+dt
		}
		dt = dtNext
	}
	return x
}

// Steppers are the integrators a generator can be configured with.
var Steppers = map[string]Stepper{
	"euler":  Euler{},
	"verlet": Verlet{},
	"rk4":    RK4{},
	"rk45":   NewRK45(),
}

func GetStepper(name string) (Stepper, error) {
	s, ok := Steppers[name]
	if !ok {
		names := make([]string, 0, len(Steppers))
		for n := range Steppers {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("tracegen: unknown integrator %q (available: %v)", name, names)
	}
	return s, nil
}
