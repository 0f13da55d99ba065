// Package solver is the boundary to the external nonlinear program engine.
// The control core emits a Problem — pure residual functions over the decision
// vector plus box bounds — and gets back either a locally optimal solution or
// a typed failure. How the engine minimizes (and how it differentiates the
// residuals) is this package's business, not the core's.
package solver

import (
	"context"

	"github.com/pkg/errors"
)

// Failure taxonomy. The remedy differs per kind (retune vs. redesign
// constraints vs. raise the budget), so callers distinguish them with
// errors.Is.
var (
	// ErrInfeasible means no solution satisfying the inequality constraints
	// exists or was found; the best candidate still violates a constraint.
	ErrInfeasible = errors.New("problem has no feasible solution")
	// ErrDiverged means the engine failed numerically without proving
	// infeasibility.
	ErrDiverged = errors.New("solver failed to converge")
	// ErrTimeout means the solve exceeded its wall-time budget. A timed-out
	// solve never yields a usable input, even if the engine returned a point.
	ErrTimeout = errors.New("solver exceeded its time budget")
)

// Residual is a scalar function of the decision vector. Residuals must be
// pure: the engine evaluates them at arbitrary points, possibly many times.
type Residual func(x []float64) float64

// Constraint is a named inequality residual, satisfied when F(x) <= 0.
type Constraint struct {
	Name string
	F    Residual
}

// Problem is a finite-dimensional nonlinear program. It is an ephemeral,
// single-use artifact: assembled by the controller, consumed by one Solve
// call, then discarded.
type Problem struct {
	// Dim is the number of decision variables.
	Dim int
	// Objective is minimized.
	Objective Residual
	// Constraints are inequality residuals, each required <= 0.
	Constraints []Constraint
	// Lower and Upper are box bounds on the decision vector, both length Dim.
	Lower, Upper []float64
	// Guess is the starting point (warm start), length Dim.
	Guess []float64
}

// Solution is a feasible, locally optimal point.
type Solution struct {
	X    []float64
	Cost float64
}

// Solver runs one Problem to completion.
type Solver interface {
	Solve(ctx context.Context, prob *Problem) (*Solution, error)
}
