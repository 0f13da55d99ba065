// Package config holds the static, immutable configuration bundle for a
// closed-loop run. It is read once at startup, validated before any control
// cycle executes, and passed by pointer into every component constructor;
// nothing reads it as ambient global state.
package config

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// Solver tuning defaults, applied by Validate when the corresponding field is
// left zero.
const (
	defaultSolverTolerance = 1e-10
	defaultSolverMaxEval   = 4001
)

// Pose is a planar pose (x, y, heading).
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Obstacle is a static circular obstacle. Immutable for the lifetime of a run.
type Obstacle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Trajectory parameterizes the reference curve in trajectory-tracking mode.
type Trajectory struct {
	Kind      TrajectoryKind `json:"kind"`
	Amplitude float64        `json:"amplitude"`
	Frequency float64        `json:"frequency"`
}

// Noise configures optional Gaussian process noise injected by the simulator.
// Off by default. Seeded so that noisy runs are reproducible.
type Noise struct {
	Enabled  bool    `json:"enabled"`
	StdXY    float64 `json:"std_xy"`
	StdTheta float64 `json:"std_theta"`
	Seed     uint64  `json:"seed"`
}

// Solver carries tuning for the external NLP solver adapter.
type Solver struct {
	// Algorithm is "slsqp" (default, gradient-based) or "cobyla"
	// (derivative-free).
	Algorithm string `json:"algorithm"`
	// Tolerance is the relative and absolute convergence tolerance.
	Tolerance float64 `json:"tolerance"`
	// MaxEval bounds objective evaluations per solve.
	MaxEval int `json:"max_eval"`
	// TimeoutSec, when positive, bounds the wall time of a single solve.
	// Exceeding it is a cycle failure, never a partial success.
	TimeoutSec float64 `json:"timeout_sec"`
}

// Config is the full static bundle for one run.
type Config struct {
	// Ts is the sampling period in seconds.
	Ts float64 `json:"ts"`
	// Horizon is the prediction horizon length N in steps.
	Horizon int `json:"horizon"`
	// Cycles is the number of closed-loop control cycles to run.
	Cycles int `json:"cycles"`
	// Start is the initial pose x0.
	Start Pose `json:"start"`

	// VLimit and OmegaLimit bound the input box: |v| <= VLimit, |omega| <= OmegaLimit.
	VLimit     float64 `json:"v_limit"`
	OmegaLimit float64 `json:"omega_limit"`

	// QDiag and RDiag are the diagonals of the state-tracking and
	// input-effort weight matrices.
	QDiag [3]float64 `json:"q_diag"`
	RDiag [2]float64 `json:"r_diag"`

	Control    ControlKind    `json:"control"`
	Controller ControllerKind `json:"controller"`

	// Goal is the target pose in setpoint mode.
	Goal Pose `json:"goal"`
	// Trajectory is the reference curve in trajectory-tracking mode.
	Trajectory Trajectory `json:"trajectory"`

	// Gamma in (0, 1] sets the barrier decay rate for MPC-CBF: the safety
	// margin h may shrink to no less than (1-gamma)*h per step.
	Gamma float64 `json:"gamma"`

	ObstaclesOn bool       `json:"obstacles_on"`
	Obstacles   []Obstacle `json:"obstacles"`
	// RobotRadius inflates every obstacle's clearance margin.
	RobotRadius float64 `json:"robot_radius"`

	Noise  Noise  `json:"noise"`
	Solver Solver `json:"solver"`
}

// Read loads and validates a configuration from a JSON file.
func Read(path string) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open config")
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return FromReader(f)
}

// FromReader loads and validates a configuration from JSON.
func FromReader(r io.Reader) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the bundle, applies solver defaults, and reports every
// problem found. A config that fails validation must abort the run before any
// cycle executes.
func (c *Config) Validate(path string) error {
	var err error
	if c.Ts <= 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("ts must be positive")))
	}
	if c.Horizon < 1 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("horizon must be at least 1")))
	}
	if c.Cycles < 1 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("cycles must be at least 1")))
	}
	if c.VLimit <= 0 {
		err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "v_limit"))
	}
	if c.OmegaLimit <= 0 {
		err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "omega_limit"))
	}
	for _, q := range c.QDiag {
		if q <= 0 {
			err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("q_diag entries must be positive")))
			break
		}
	}
	for _, r := range c.RDiag {
		if r <= 0 {
			err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("r_diag entries must be positive")))
			break
		}
	}

	switch c.Control {
	case ControlSetpoint:
	case ControlTrajectory:
		if c.Trajectory.Kind == TrajectoryUnset {
			err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "trajectory.kind"))
		}
		if c.Trajectory.Amplitude <= 0 {
			err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("trajectory.amplitude must be positive")))
		}
		if c.Trajectory.Frequency <= 0 {
			err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("trajectory.frequency must be positive")))
		}
	default:
		err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "control"))
	}

	switch c.Controller {
	case ControllerUnconstrained:
	case ControllerDistance, ControllerBarrier:
		if !c.ObstaclesOn {
			err = multierr.Append(err, goutils.NewConfigValidationError(path,
				errors.Errorf("controller %q requires obstacles_on", c.Controller)))
		}
	default:
		err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "controller"))
	}

	if c.ObstaclesOn {
		if len(c.Obstacles) == 0 {
			err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "obstacles"))
		}
		if c.RobotRadius <= 0 {
			err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "robot_radius"))
		}
		for _, o := range c.Obstacles {
			if o.Radius <= 0 {
				err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("obstacle radius must be positive")))
				break
			}
		}
	}

	if c.Controller == ControllerBarrier && (c.Gamma <= 0 || c.Gamma > 1) {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("gamma must be in (0, 1]")))
	}

	if c.Noise.Enabled && (c.Noise.StdXY < 0 || c.Noise.StdTheta < 0) {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("noise standard deviations must be non-negative")))
	}

	switch c.Solver.Algorithm {
	case "", "slsqp", "cobyla":
	default:
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("unknown solver algorithm %q", c.Solver.Algorithm)))
	}
	if c.Solver.TimeoutSec < 0 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path, errors.New("solver timeout must be non-negative")))
	}
	if err != nil {
		return err
	}

	if c.Solver.Algorithm == "" {
		c.Solver.Algorithm = "slsqp"
	}
	if c.Solver.Tolerance == 0 {
		c.Solver.Tolerance = defaultSolverTolerance
	}
	if c.Solver.MaxEval == 0 {
		c.Solver.MaxEval = defaultSolverMaxEval
	}
	return nil
}

// Q returns the 3x3 state-tracking weight matrix.
func (c *Config) Q() *mat.SymDense {
	q := mat.NewSymDense(3, nil)
	for i, v := range c.QDiag {
		q.SetSym(i, i, v)
	}
	return q
}

// R returns the 2x2 input-effort weight matrix.
func (c *Config) R() *mat.SymDense {
	r := mat.NewSymDense(2, nil)
	for i, v := range c.RDiag {
		r.SetSym(i, i, v)
	}
	return r
}
