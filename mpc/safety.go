package mpc

import (
	"fmt"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/solver"
	"github.com/wheelbot/safempc/unicycle"
)

// Barrier is the control barrier function for one obstacle: the signed squared
// clearance between the robot disk and the inflated obstacle disk. The robot
// is safe iff Barrier >= 0.
func Barrier(s unicycle.State, o config.Obstacle, robotRadius float64) float64 {
	dx := s.X - o.X
	dy := s.Y - o.Y
	margin := robotRadius + o.Radius
	return dx*dx + dy*dy - margin*margin
}

// constraintGen builds the inequality residuals for one control cycle, given
// the state the prediction horizon starts from. Each residual is a function of
// the stacked input sequence and is satisfied when <= 0.
type constraintGen func(start unicycle.State) []solver.Constraint

// noConstraints is the generator for unconstrained runs and for runs with an
// empty obstacle set: it contributes nothing and never fails.
func noConstraints(unicycle.State) []solver.Constraint {
	return nil
}

// newDistanceConstraints builds the direct clearance formulation (MPC-DC): at
// every horizon step the predicted position must lie outside every inflated
// obstacle disk. Clearance is only enforced at the sampled instants; there is
// no inter-sample guarantee.
func newDistanceConstraints(model *unicycle.Model, obstacles []config.Obstacle, robotRadius float64, horizon int) constraintGen {
	return func(start unicycle.State) []solver.Constraint {
		constraints := make([]solver.Constraint, 0, len(obstacles)*horizon)
		for i, o := range obstacles {
			for k := 1; k <= horizon; k++ {
				constraints = append(constraints, solver.Constraint{
					Name: fmt.Sprintf("obstacle_%d_step_%d", i, k),
					F: func(x []float64) float64 {
						states := model.Rollout(start, inputsFromVector(x))
						return -Barrier(states[k], o, robotRadius)
					},
				})
			}
		}
		return constraints
	}
}

// newBarrierConstraints builds the discrete CBF formulation (MPC-CBF): for
// every obstacle and every horizon step, -h(x_{k+1}) + (1-gamma)*h(x_k) <= 0,
// so the safety margin h shrinks by at most a gamma fraction per step. If the
// horizon starts safe (h >= 0) every satisfying step stays safe: the safe set
// is forward invariant. The one-step-ahead state comes from the same model
// Step as the rollout everywhere else.
func newBarrierConstraints(model *unicycle.Model, obstacles []config.Obstacle, robotRadius, gamma float64, horizon int) constraintGen {
	return func(start unicycle.State) []solver.Constraint {
		constraints := make([]solver.Constraint, 0, len(obstacles)*horizon)
		for i, o := range obstacles {
			for k := 0; k < horizon; k++ {
				constraints = append(constraints, solver.Constraint{
					Name: fmt.Sprintf("cbf_%d_step_%d", i, k),
					F: func(x []float64) float64 {
						states := model.Rollout(start, inputsFromVector(x))
						hNext := Barrier(states[k+1], o, robotRadius)
						h := Barrier(states[k], o, robotRadius)
						return -hNext + (1-gamma)*h
					},
				})
			}
		}
		return constraints
	}
}
