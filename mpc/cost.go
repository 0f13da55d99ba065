package mpc

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/reference"
	"github.com/wheelbot/safempc/unicycle"
)

// stateCost scores a predicted state against the active reference. Lower is
// better. The same expression serves as both stage and terminal cost.
type stateCost func(s unicycle.State) float64

// inputCost scores the effort of one input.
type inputCost func(u unicycle.Input) float64

// newSetpointCost penalizes the full pose error against a fixed goal,
// including heading error against the goal heading.
func newSetpointCost(q *mat.SymDense, goal config.Pose) stateCost {
	e := mat.NewVecDense(3, nil)
	return func(s unicycle.State) float64 {
		e.SetVec(0, s.X-goal.X)
		e.SetVec(1, s.Y-goal.Y)
		e.SetVec(2, s.Theta-goal.Theta)
		return mat.Inner(e, q, e)
	}
}

// newTrackingCost penalizes position error against the reference point and
// heading error against the desired heading, which is recomputed per predicted
// state from that state's own position.
func newTrackingCost(q *mat.SymDense, ref r3.Vector) stateCost {
	e := mat.NewVecDense(3, nil)
	return func(s unicycle.State) float64 {
		e.SetVec(0, s.X-ref.X)
		e.SetVec(1, s.Y-ref.Y)
		e.SetVec(2, s.Theta-reference.DesiredHeading(s, ref))
		return mat.Inner(e, q, e)
	}
}

// newEffortCost is the quadratic input penalty u'Ru. It is kept separate from
// the tracking cost so effort weighting can be tuned independently.
func newEffortCost(r *mat.SymDense) inputCost {
	e := mat.NewVecDense(2, nil)
	return func(u unicycle.Input) float64 {
		e.SetVec(0, u.V)
		e.SetVec(1, u.Omega)
		return mat.Inner(e, r, e)
	}
}
