package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/mpc"
	"github.com/wheelbot/safempc/solver"
	"github.com/wheelbot/safempc/unicycle"
)

// Phase is where the runner is in its cycle.
type Phase int

// Runner phases, in cycle order.
const (
	PhaseInitialized Phase = iota
	PhaseSolving
	PhaseApplying
	PhaseAdvancing
	PhaseTerminated
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseInitialized:
		return "initialized"
	case PhaseSolving:
		return "solving"
	case PhaseApplying:
		return "applying"
	case PhaseAdvancing:
		return "advancing"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CycleError reports which cycle and phase a run died in. The underlying
// cause is available through Unwrap.
type CycleError struct {
	Cycle int
	Phase Phase
	Err   error
}

// Error implements error.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %d (%s): %v", e.Cycle, e.Phase, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CycleError) Unwrap() error {
	return e.Err
}

// Runner drives the fixed number of closed-loop control cycles:
// solve, apply the first planned input, simulate, estimate, repeat. The loop
// is strictly sequential; every stage's output is the next stage's input, so
// nothing is pipelined. Any failure aborts the remaining cycles; no default
// input is ever applied in place of a solution.
type Runner struct {
	cfg        *config.Config
	controller *mpc.Controller
	sim        *Simulator
	estimator  Estimator
	clock      clock.Clock
	phase      Phase
	logger     golog.Logger
}

// NewRunner wires up the standard loop from a validated configuration: an
// nlopt-backed controller, a noiseless-or-seeded simulator, and full-state
// feedback.
func NewRunner(cfg *config.Config, logger golog.Logger) (*Runner, error) {
	sol := solver.NewNLopt(nloptOptions(cfg), logger)
	controller, err := mpc.New(cfg, sol, logger)
	if err != nil {
		return nil, err
	}
	return NewRunnerFromParts(cfg, controller, NewSimulator(cfg), StateFeedback{}, clock.New(), logger), nil
}

// NewRunnerFromParts wires a loop from explicit stages. Useful when a test or
// caller substitutes its own estimator, plant, or clock.
func NewRunnerFromParts(
	cfg *config.Config,
	controller *mpc.Controller,
	sim *Simulator,
	estimator Estimator,
	clk clock.Clock,
	logger golog.Logger,
) *Runner {
	return &Runner{
		cfg:        cfg,
		controller: controller,
		sim:        sim,
		estimator:  estimator,
		clock:      clk,
		phase:      PhaseInitialized,
		logger:     logger,
	}
}

// Phase returns where the runner currently is.
func (r *Runner) Phase() Phase {
	return r.phase
}

// Run executes exactly cfg.Cycles control cycles from the configured start
// state. There is no early exit other than failure. The returned History
// covers whatever completed; on failure it accompanies a *CycleError.
func (r *Runner) Run(ctx context.Context) (*History, error) {
	hist := newHistory(unicycle.State(r.cfg.Start))
	state := unicycle.State(r.cfg.Start)
	for cycle := 0; cycle < r.cfg.Cycles; cycle++ {
		if err := ctx.Err(); err != nil {
			phase := r.phase
			r.phase = PhaseTerminated
			return hist, &CycleError{Cycle: cycle, Phase: phase, Err: err}
		}

		r.phase = PhaseSolving
		t := float64(cycle) * r.cfg.Ts
		solveStart := r.clock.Now()
		applied, pred, err := r.controller.MakeStep(ctx, t, state)
		solveTime := r.clock.Since(solveStart)
		if err != nil {
			r.phase = PhaseTerminated
			return hist, &CycleError{Cycle: cycle, Phase: PhaseSolving, Err: err}
		}

		// Receding horizon: only the first planned input is executed; the
		// rest of the plan is kept for diagnostics and recomputed next cycle.
		r.phase = PhaseApplying

		r.phase = PhaseAdvancing
		next := r.sim.Step(state, applied)
		estimated := r.estimator.Estimate(next)

		hist.append(Record{
			Cycle:      cycle,
			Time:       t,
			Estimated:  state,
			Applied:    applied,
			Prediction: pred,
			Next:       next,
			SolveTime:  solveTime,
		})
		r.logger.Debugf("cycle %d: t=%.2fs u=(%.3f, %.3f) state=(%.3f, %.3f, %.3f) solve=%s",
			cycle, t, applied.V, applied.Omega, next.X, next.Y, next.Theta, solveTime)

		state = estimated
	}
	r.phase = PhaseTerminated
	return hist, nil
}

func nloptOptions(cfg *config.Config) solver.Options {
	alg := solver.SLSQP
	if cfg.Solver.Algorithm == "cobyla" {
		alg = solver.COBYLA
	}
	return solver.Options{
		Algorithm: alg,
		Tolerance: cfg.Solver.Tolerance,
		MaxEval:   cfg.Solver.MaxEval,
		Timeout:   time.Duration(cfg.Solver.TimeoutSec * float64(time.Second)),
	}
}
