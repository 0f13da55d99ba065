package simulation

import (
	"context"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/solver"
	"github.com/wheelbot/safempc/unicycle"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Ts:         0.1,
		Horizon:    5,
		Cycles:     3,
		VLimit:     1,
		OmegaLimit: 1,
		QDiag:      [3]float64{15, 15, 0.005},
		RDiag:      [2]float64{0.1, 0.01},
		Control:    config.ControlSetpoint,
		Controller: config.ControllerUnconstrained,
		Goal:       config.Pose{X: 5, Y: 5},
	}
	test.That(t, cfg.Validate(""), test.ShouldBeNil)
	return cfg
}

func TestStateFeedbackPassthrough(t *testing.T) {
	s := unicycle.State{X: 1.2, Y: -0.4, Theta: 9.7}
	test.That(t, StateFeedback{}.Estimate(s), test.ShouldResemble, s)
}

func TestSimulatorMatchesModel(t *testing.T) {
	cfg := baseConfig(t)
	sim := NewSimulator(cfg)
	model := unicycle.NewModel(cfg.Ts)

	s := unicycle.State{X: 1, Y: 2, Theta: 0.5}
	u := unicycle.Input{V: 0.7, Omega: -0.3}
	test.That(t, sim.Step(s, u), test.ShouldResemble, model.Step(s, u))
}

func TestSimulatorNoiseReproducible(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Noise = config.Noise{Enabled: true, StdXY: 0.01, StdTheta: 0.001, Seed: 99}

	s := unicycle.State{}
	u := unicycle.Input{V: 0.5, Omega: 0.1}

	first := NewSimulator(cfg)
	second := NewSimulator(cfg)
	for i := 0; i < 10; i++ {
		test.That(t, first.Step(s, u), test.ShouldResemble, second.Step(s, u))
	}

	// A different seed produces a different perturbation.
	cfg2 := baseConfig(t)
	cfg2.Noise = config.Noise{Enabled: true, StdXY: 0.01, StdTheta: 0.001, Seed: 7}
	other := NewSimulator(cfg2)
	same := NewSimulator(cfg)
	test.That(t, other.Step(s, u), test.ShouldNotResemble, same.Step(s, u))
}

func TestRunnerBookkeeping(t *testing.T) {
	cfg := baseConfig(t)
	runner, err := NewRunner(cfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, runner.Phase(), test.ShouldEqual, PhaseInitialized)

	hist, err := runner.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, runner.Phase(), test.ShouldEqual, PhaseTerminated)

	test.That(t, hist.Len(), test.ShouldEqual, cfg.Cycles)
	test.That(t, hist.States(), test.ShouldHaveLength, cfg.Cycles+1)
	test.That(t, hist.Inputs(), test.ShouldHaveLength, cfg.Cycles)
	for i, rec := range hist.Records() {
		test.That(t, rec.Cycle, test.ShouldEqual, i)
		test.That(t, rec.Time, test.ShouldAlmostEqual, float64(i)*cfg.Ts)
		test.That(t, rec.Prediction.Inputs, test.ShouldHaveLength, cfg.Horizon)
		test.That(t, rec.Prediction.States, test.ShouldHaveLength, cfg.Horizon+1)
	}

	summary, err := hist.Summarize()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Cycles, test.ShouldEqual, cfg.Cycles)
	test.That(t, summary.MaxSolve, test.ShouldBeGreaterThanOrEqualTo, summary.MedianSolve)
}

func TestRunnerCancelledContext(t *testing.T) {
	cfg := baseConfig(t)
	runner, err := NewRunner(cfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hist, err := runner.Run(ctx)
	test.That(t, hist.Len(), test.ShouldEqual, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestRunnerSetpointConvergence(t *testing.T) {
	// Setpoint scenario with no obstacles: from the origin to (5, 5) within
	// 100 cycles, never exceeding the input box.
	cfg := baseConfig(t)
	cfg.Horizon = 20
	cfg.Cycles = 100
	runner, err := NewRunner(cfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	hist, err := runner.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)

	final := hist.States()[hist.Len()]
	test.That(t, math.Hypot(final.X-5, final.Y-5), test.ShouldBeLessThan, 0.2)
	for _, u := range hist.Inputs() {
		test.That(t, math.Abs(u.V), test.ShouldBeLessThanOrEqualTo, cfg.VLimit+1e-9)
		test.That(t, math.Abs(u.Omega), test.ShouldBeLessThanOrEqualTo, cfg.OmegaLimit+1e-9)
	}
}

func TestRunnerBarrierKeepsClearance(t *testing.T) {
	// CBF scenario: an obstacle sits directly between start and goal; the
	// closed-loop trajectory must never dip below the inflated margin.
	cfg := baseConfig(t)
	cfg.Horizon = 8
	cfg.Cycles = 120
	cfg.Goal = config.Pose{X: 10}
	cfg.Controller = config.ControllerBarrier
	cfg.Gamma = 0.5
	cfg.ObstaclesOn = true
	cfg.Obstacles = []config.Obstacle{{X: 5, Y: 0, Radius: 1}}
	cfg.RobotRadius = 0.2
	test.That(t, cfg.Validate(""), test.ShouldBeNil)

	runner, err := NewRunner(cfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	hist, err := runner.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hist.Len(), test.ShouldEqual, cfg.Cycles)

	test.That(t, hist.MinClearance(cfg.Obstacles, cfg.RobotRadius), test.ShouldBeGreaterThan, -0.05)
}

func TestRunnerInfeasibleStartAborts(t *testing.T) {
	// Starting inside the inflated disk must surface an infeasibility error
	// on the first cycle instead of silently proceeding.
	cfg := baseConfig(t)
	cfg.Goal = config.Pose{X: 10}
	cfg.Controller = config.ControllerBarrier
	cfg.Gamma = 0.5
	cfg.ObstaclesOn = true
	cfg.Obstacles = []config.Obstacle{{X: 0.5, Y: 0, Radius: 1}}
	cfg.RobotRadius = 0.2
	test.That(t, cfg.Validate(""), test.ShouldBeNil)

	runner, err := NewRunner(cfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	hist, err := runner.Run(context.Background())

	test.That(t, hist.Len(), test.ShouldEqual, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, solver.ErrInfeasible), test.ShouldBeTrue)

	var cycleErr *CycleError
	test.That(t, errors.As(err, &cycleErr), test.ShouldBeTrue)
	test.That(t, cycleErr.Cycle, test.ShouldEqual, 0)
	test.That(t, cycleErr.Phase, test.ShouldEqual, PhaseSolving)
}

func TestMinClearance(t *testing.T) {
	hist := newHistory(unicycle.State{})
	hist.append(Record{Next: unicycle.State{X: 1}})
	hist.append(Record{Next: unicycle.State{X: 2}})

	obstacles := []config.Obstacle{{X: 3, Y: 0, Radius: 0.5}}
	// Closest sampled state is (2, 0): distance 1, margin 0.7.
	test.That(t, hist.MinClearance(obstacles, 0.2), test.ShouldAlmostEqual, 1-0.7)
}
