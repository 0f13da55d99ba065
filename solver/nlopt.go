package solver

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// Algorithm selects the nlopt minimizer.
type Algorithm int

// Supported algorithms.
const (
	// SLSQP is sequential least-squares quadratic programming; it is
	// gradient-based and gets finite-difference gradients from the adapter.
	SLSQP Algorithm = iota
	// COBYLA is derivative-free linear approximation.
	COBYLA
)

const (
	defaultTolerance = 1e-10
	defaultMaxEval   = 4001
	// defaultJump is the forward-difference step for numeric gradients.
	defaultJump = 1e-8
	// feasibilityTol is how much residual violation the returned point may
	// carry before the solve is declared infeasible.
	feasibilityTol = 1e-6
)

// Options tunes an NLopt solver. The zero value is usable: SLSQP with default
// tolerances, no time budget.
type Options struct {
	Algorithm Algorithm
	// Tolerance is applied as both the relative and absolute convergence
	// tolerance on objective and decision values.
	Tolerance float64
	// MaxEval bounds objective evaluations per solve.
	MaxEval int
	// Timeout, when positive, bounds the wall time of one Solve call.
	Timeout time.Duration
}

// NLopt adapts the go-nlopt engine to the Solver interface. It is stateless
// across Solve calls and safe to reuse.
type NLopt struct {
	opts   Options
	logger golog.Logger
}

// NewNLopt returns an adapter with the given tuning.
func NewNLopt(opts Options, logger golog.Logger) *NLopt {
	if opts.Tolerance == 0 {
		opts.Tolerance = defaultTolerance
	}
	if opts.MaxEval == 0 {
		opts.MaxEval = defaultMaxEval
	}
	return &NLopt{opts: opts, logger: logger}
}

type optimizeReturn struct {
	x    []float64
	cost float64
	err  error
}

// Solve runs the engine on prob. On failure the returned error wraps exactly
// one of ErrInfeasible, ErrDiverged, or ErrTimeout.
func (s *NLopt) Solve(ctx context.Context, prob *Problem) (*Solution, error) {
	alg := nlopt.LD_SLSQP
	if s.opts.Algorithm == COBYLA {
		alg = nlopt.LN_COBYLA
	}
	opt, err := nlopt.NewNLopt(alg, uint(prob.Dim))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	tol := s.opts.Tolerance
	err = multierr.Combine(
		opt.SetMinObjective(s.differentiable(prob.Objective, prob.Lower, prob.Upper)),
		opt.SetLowerBounds(prob.Lower),
		opt.SetUpperBounds(prob.Upper),
		opt.SetFtolRel(tol),
		opt.SetFtolAbs(tol),
		opt.SetXtolRel(tol),
		opt.SetMaxEval(s.opts.MaxEval),
	)
	for _, c := range prob.Constraints {
		err = multierr.Combine(err, opt.AddInequalityConstraint(s.differentiable(c.F, prob.Lower, prob.Upper), 0))
	}
	if s.opts.Timeout > 0 {
		err = multierr.Combine(err, opt.SetMaxTime(s.opts.Timeout.Seconds()))
	}
	if err != nil {
		return nil, errors.Wrap(err, "nlopt setup error")
	}

	start := time.Now()
	solveChan := make(chan *optimizeReturn, 1)
	goutils.PanicCapturingGo(func() {
		x, cost, optErr := opt.Optimize(prob.Guess)
		solveChan <- &optimizeReturn{x, cost, optErr}
	})

	var result *optimizeReturn
	select {
	case <-ctx.Done():
		err = opt.ForceStop()
		if err != nil {
			s.logger.Errorw("nlopt force stop error", "error", err)
		}
		<-solveChan
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrap(ErrTimeout, ctx.Err().Error())
		}
		return nil, ctx.Err()
	case result = <-solveChan:
	}

	if s.opts.Timeout > 0 && time.Since(start) >= s.opts.Timeout {
		return nil, errors.Wrapf(ErrTimeout, "solve took longer than %s", s.opts.Timeout)
	}
	if result.x == nil {
		return nil, errors.Wrapf(ErrDiverged, "nlopt returned no point: %v", result.err)
	}
	if name, violation := worstViolation(prob, result.x); violation > feasibilityTol {
		return nil, errors.Wrapf(ErrInfeasible, "constraint %q violated by %.3g", name, violation)
	}
	if result.err != nil {
		return nil, errors.Wrapf(ErrDiverged, "nlopt: %v", result.err)
	}
	return &Solution{X: result.x, Cost: result.cost}, nil
}

// differentiable wraps a residual so gradient-based algorithms get a
// forward-difference gradient, stepping backward when a bound is in the way.
func (s *NLopt) differentiable(f Residual, lower, upper []float64) func(x, gradient []float64) float64 {
	return func(x, gradient []float64) float64 {
		val := f(x)
		if len(gradient) == 0 {
			return val
		}
		point := append(make([]float64, 0, len(x)), x...)
		for i := range gradient {
			flip := false
			point[i] += defaultJump
			if point[i] >= upper[i] {
				flip = true
				point[i] -= 2 * defaultJump
			}
			d := (f(point) - val) / defaultJump
			if flip {
				d = -d
			}
			gradient[i] = d
			point[i] = x[i]
		}
		return val
	}
}

// worstViolation reports the most violated constraint at x.
func worstViolation(prob *Problem, x []float64) (string, float64) {
	var name string
	worst := 0.0
	for _, c := range prob.Constraints {
		if v := c.F(x); v > worst {
			worst = v
			name = c.Name
		}
	}
	return name, worst
}
