// Package mpc assembles and solves the per-cycle finite-horizon optimal
// control problem: quadratic tracking cost, input-effort regularization, box
// input bounds, and one of three safety constraint formulations. The assembled
// problem structure is fixed at construction; only per-cycle data (current
// state, reference point, warm start) changes between solves.
package mpc

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/reference"
	"github.com/wheelbot/safempc/solver"
	"github.com/wheelbot/safempc/unicycle"
)

// Prediction is the full solution of one cycle's problem: the optimal input
// sequence and the states it rolls out to, kept for diagnostics. Only the
// first input is ever executed.
type Prediction struct {
	// States holds the horizon+1 predicted states, starting with the state
	// the solve was seeded with.
	States []unicycle.State
	// Inputs holds the horizon optimal inputs.
	Inputs []unicycle.Input
	// Cost is the objective value at the optimum.
	Cost float64
}

// Controller computes, for each control cycle, the next safe input toward the
// active reference. It is a receding-horizon controller: every cycle it
// re-solves an N-step program from the current state and discards all but the
// first planned input.
type Controller struct {
	cfg    *config.Config
	model  *unicycle.Model
	gen    reference.Generator
	effort inputCost
	// costFor binds the per-cycle reference point into a stage cost. In
	// setpoint mode the reference is ignored and the goal is baked in.
	costFor      func(ref r3.Vector) stateCost
	constraints  constraintGen
	lower, upper []float64
	// warm is the previous cycle's solution, reused as the next initial
	// guess. For the first cycle it is all zeros, which leaves the seeded
	// state unmoved across the horizon.
	warm   []float64
	solver solver.Solver
	logger golog.Logger
}

// New builds a controller from a validated configuration. All mode branching
// happens here, exactly once; MakeStep never inspects mode fields.
func New(cfg *config.Config, sol solver.Solver, logger golog.Logger) (*Controller, error) {
	gen, err := reference.New(cfg)
	if err != nil {
		return nil, err
	}

	q := cfg.Q()
	var costFor func(ref r3.Vector) stateCost
	switch cfg.Control {
	case config.ControlSetpoint:
		cost := newSetpointCost(q, cfg.Goal)
		costFor = func(r3.Vector) stateCost { return cost }
	case config.ControlTrajectory:
		costFor = func(ref r3.Vector) stateCost { return newTrackingCost(q, ref) }
	default:
		return nil, errors.Errorf("cannot build cost for control kind %q", cfg.Control)
	}

	model := unicycle.NewModel(cfg.Ts)
	constraints := noConstraints
	switch cfg.Controller {
	case config.ControllerUnconstrained:
	case config.ControllerDistance:
		constraints = newDistanceConstraints(model, cfg.Obstacles, cfg.RobotRadius, cfg.Horizon)
	case config.ControllerBarrier:
		constraints = newBarrierConstraints(model, cfg.Obstacles, cfg.RobotRadius, cfg.Gamma, cfg.Horizon)
	default:
		return nil, errors.Errorf("cannot build constraints for controller kind %q", cfg.Controller)
	}

	dim := 2 * cfg.Horizon
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for k := 0; k < cfg.Horizon; k++ {
		lower[2*k], upper[2*k] = -cfg.VLimit, cfg.VLimit
		lower[2*k+1], upper[2*k+1] = -cfg.OmegaLimit, cfg.OmegaLimit
	}

	return &Controller{
		cfg:         cfg,
		model:       model,
		gen:         gen,
		effort:      newEffortCost(cfg.R()),
		costFor:     costFor,
		constraints: constraints,
		lower:       lower,
		upper:       upper,
		warm:        make([]float64, dim),
		solver:      sol,
		logger:      logger,
	}, nil
}

// MakeStep solves one cycle's program from state s at absolute time t and
// returns the input to apply now plus the full prediction. The reference is
// evaluated once at t and held fixed across the horizon. On any solver
// failure the error propagates untouched; no default input is ever
// substituted.
func (c *Controller) MakeStep(ctx context.Context, t float64, s unicycle.State) (unicycle.Input, *Prediction, error) {
	ref := c.gen.At(t)

	// A horizon that starts inside an inflated obstacle cannot satisfy the
	// safety constraints; fail before burning a solve on it.
	if c.cfg.Controller != config.ControllerUnconstrained {
		for i, o := range c.cfg.Obstacles {
			if h := Barrier(s, o, c.cfg.RobotRadius); h < 0 {
				return unicycle.Input{}, nil, errors.Wrapf(solver.ErrInfeasible,
					"state (%.3f, %.3f) is inside inflated obstacle %d (h=%.3g)", s.X, s.Y, i, h)
			}
		}
	}

	stage := c.costFor(ref)
	horizon := c.cfg.Horizon
	objective := func(x []float64) float64 {
		us := inputsFromVector(x)
		states := c.model.Rollout(s, us)
		total := 0.0
		for k := 1; k <= horizon; k++ {
			total += stage(states[k])
		}
		for _, u := range us {
			total += c.effort(u)
		}
		return total
	}

	prob := &solver.Problem{
		Dim:         2 * horizon,
		Objective:   objective,
		Constraints: c.constraints(s),
		Lower:       c.lower,
		Upper:       c.upper,
		Guess:       c.warm,
	}
	sol, err := c.solver.Solve(ctx, prob)
	if err != nil {
		return unicycle.Input{}, nil, err
	}

	copy(c.warm, sol.X)
	us := inputsFromVector(sol.X)
	pred := &Prediction{
		States: c.model.Rollout(s, us),
		Inputs: us,
		Cost:   sol.Cost,
	}
	c.logger.Debugf("solved t=%.2fs cost=%.4f u0=(%.3f, %.3f)", t, sol.Cost, us[0].V, us[0].Omega)
	return us[0], pred, nil
}

// inputsFromVector unpacks the stacked decision vector (v_0, w_0, v_1, w_1,
// ...) into input structs.
func inputsFromVector(x []float64) []unicycle.Input {
	us := make([]unicycle.Input, len(x)/2)
	for k := range us {
		us[k] = unicycle.Input{V: x[2*k], Omega: x[2*k+1]}
	}
	return us
}
