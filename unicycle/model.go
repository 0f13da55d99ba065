// Package unicycle implements the discrete-time kinematics of a wheeled robot
// with unicycle-like dynamics: a 3-state (x, y, heading) pose driven by a
// 2-input (linear velocity, angular velocity) command.
package unicycle

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultCoupling is the small positive constant added to the input matrix so
// that the position output has relative degree 1. A pure unicycle's position
// output has relative degree 2, which breaks first-order barrier constraint
// constructions; the coupling term restores controllability of (x, y) from
// both inputs at the cost of a negligible modeling error.
const DefaultCoupling = 1e-9

// State is the robot pose. Theta is an angle in radians and is left unwrapped;
// nothing forces it into [-pi, pi).
type State struct {
	X     float64
	Y     float64
	Theta float64
}

// Input is a velocity command: forward speed V and turn rate Omega.
type Input struct {
	V     float64
	Omega float64
}

// Vector returns the state as a 3-element slice, ordered (x, y, theta).
func (s State) Vector() []float64 {
	return []float64{s.X, s.Y, s.Theta}
}

// Vector returns the input as a 2-element slice, ordered (v, omega).
func (u Input) Vector() []float64 {
	return []float64{u.V, u.Omega}
}

// Model is the discrete state-transition map x+ = x + B(theta)*u*Ts.
// A single Model instance serves every consumer of the dynamics in a run
// (controller rollout, safety constraints, simulator) so there is exactly one
// copy of the transition formula.
type Model struct {
	ts       float64
	coupling float64
}

// NewModel returns a model with sampling period ts and the default
// regularizing coupling.
func NewModel(ts float64) *Model {
	return NewRegularizedModel(ts, DefaultCoupling)
}

// NewRegularizedModel returns a model with an explicit coupling constant.
// Passing zero yields the exact unicycle dynamics.
func NewRegularizedModel(ts, coupling float64) *Model {
	return &Model{ts: ts, coupling: coupling}
}

// Ts returns the sampling period.
func (m *Model) Ts() float64 {
	return m.ts
}

// Step advances the state by one sampling period under input u. It is pure.
func (m *Model) Step(s State, u Input) State {
	sin, cos := math.Sincos(s.Theta)
	return State{
		X:     s.X + (cos*u.V-m.coupling*sin*u.Omega)*m.ts,
		Y:     s.Y + (sin*u.V+m.coupling*cos*u.Omega)*m.ts,
		Theta: s.Theta + u.Omega*m.ts,
	}
}

// Rollout applies the input sequence from s and returns the len(us)+1 visited
// states, starting with s itself.
func (m *Model) Rollout(s State, us []Input) []State {
	states := make([]State, 0, len(us)+1)
	states = append(states, s)
	for _, u := range us {
		s = m.Step(s, u)
		states = append(states, s)
	}
	return states
}

// InputMatrix returns the 3x2 matrix B(theta) mapping inputs to state rates.
func (m *Model) InputMatrix(theta float64) *mat.Dense {
	sin, cos := math.Sincos(theta)
	return mat.NewDense(3, 2, []float64{
		cos, -m.coupling * sin,
		sin, m.coupling * cos,
		0, 1,
	})
}
