package config

import (
	"strings"
	"testing"

	"go.viam.com/test"
)

func validConfig() *Config {
	return &Config{
		Ts:          0.1,
		Horizon:     10,
		Cycles:      50,
		Start:       Pose{},
		VLimit:      1,
		OmegaLimit:  1,
		QDiag:       [3]float64{15, 15, 0.005},
		RDiag:       [2]float64{2, 0.5},
		Control:     ControlSetpoint,
		Controller:  ControllerBarrier,
		Goal:        Pose{X: 5, Y: 5},
		Gamma:       0.5,
		ObstaclesOn: true,
		Obstacles:   []Obstacle{{X: 2, Y: 2, Radius: 0.5}},
		RobotRadius: 0.2,
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	test.That(t, cfg.Validate(""), test.ShouldBeNil)
}

func TestValidateAppliesSolverDefaults(t *testing.T) {
	cfg := validConfig()
	test.That(t, cfg.Validate(""), test.ShouldBeNil)
	test.That(t, cfg.Solver.Algorithm, test.ShouldEqual, "slsqp")
	test.That(t, cfg.Solver.Tolerance, test.ShouldEqual, defaultSolverTolerance)
	test.That(t, cfg.Solver.MaxEval, test.ShouldEqual, defaultSolverMaxEval)
}

func TestValidateRejections(t *testing.T) {
	for _, tc := range []struct {
		name    string
		corrupt func(*Config)
	}{
		{"zero ts", func(c *Config) { c.Ts = 0 }},
		{"zero horizon", func(c *Config) { c.Horizon = 0 }},
		{"zero cycles", func(c *Config) { c.Cycles = 0 }},
		{"missing v limit", func(c *Config) { c.VLimit = 0 }},
		{"missing omega limit", func(c *Config) { c.OmegaLimit = 0 }},
		{"non positive q", func(c *Config) { c.QDiag[1] = 0 }},
		{"non positive r", func(c *Config) { c.RDiag[0] = -1 }},
		{"unset control", func(c *Config) { c.Control = ControlUnset }},
		{"unset controller", func(c *Config) { c.Controller = ControllerUnset }},
		{"obstacles enabled but none supplied", func(c *Config) { c.Obstacles = nil }},
		{"obstacle radius", func(c *Config) { c.Obstacles[0].Radius = 0 }},
		{"missing robot radius", func(c *Config) { c.RobotRadius = 0 }},
		{"gamma too large", func(c *Config) { c.Gamma = 1.5 }},
		{"gamma zero", func(c *Config) { c.Gamma = 0 }},
		{"barrier without obstacles flag", func(c *Config) { c.ObstaclesOn = false }},
		{"unknown solver algorithm", func(c *Config) { c.Solver.Algorithm = "ipopt" }},
		{"negative solver timeout", func(c *Config) { c.Solver.TimeoutSec = -1 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.corrupt(cfg)
			test.That(t, cfg.Validate(""), test.ShouldNotBeNil)
		})
	}
}

func TestValidateTrajectoryMode(t *testing.T) {
	cfg := validConfig()
	cfg.Control = ControlTrajectory
	test.That(t, cfg.Validate(""), test.ShouldNotBeNil)

	cfg.Trajectory = Trajectory{Kind: TrajectoryCircular, Amplitude: 2, Frequency: 0.3}
	test.That(t, cfg.Validate(""), test.ShouldBeNil)
}

func TestFromReader(t *testing.T) {
	raw := `{
		"ts": 0.1, "horizon": 20, "cycles": 100,
		"start": {"x": 0, "y": 0, "theta": 0},
		"v_limit": 1.0, "omega_limit": 1.0,
		"q_diag": [15, 15, 0.005], "r_diag": [2, 0.5],
		"control": "setpoint", "controller": "mpc-cbf",
		"goal": {"x": 10, "y": 0, "theta": 0},
		"gamma": 0.5,
		"obstacles_on": true,
		"obstacles": [{"x": 5, "y": 0, "radius": 1.0}],
		"robot_radius": 0.2
	}`
	cfg, err := FromReader(strings.NewReader(raw))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Control, test.ShouldEqual, ControlSetpoint)
	test.That(t, cfg.Controller, test.ShouldEqual, ControllerBarrier)
	test.That(t, cfg.Obstacles, test.ShouldHaveLength, 1)
	test.That(t, cfg.Solver.Algorithm, test.ShouldEqual, "slsqp")
}

func TestFromReaderRejectsUnknownKinds(t *testing.T) {
	_, err := FromReader(strings.NewReader(`{"control": "teleport"}`))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = FromReader(strings.NewReader(`{"controller": "mpc-xx"}`))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = FromReader(strings.NewReader(`{"trajectory": {"kind": "square"}}`))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestKindStrings(t *testing.T) {
	test.That(t, ControlSetpoint.String(), test.ShouldEqual, "setpoint")
	test.That(t, ControlTrajectory.String(), test.ShouldEqual, "traj_tracking")
	test.That(t, ControllerDistance.String(), test.ShouldEqual, "mpc-dc")
	test.That(t, ControllerBarrier.String(), test.ShouldEqual, "mpc-cbf")
	test.That(t, TrajectoryLemniscate.String(), test.ShouldEqual, "lemniscate")
}

func TestWeightMatrices(t *testing.T) {
	cfg := validConfig()
	q := cfg.Q()
	r := cfg.R()
	test.That(t, q.At(0, 0), test.ShouldEqual, 15.0)
	test.That(t, q.At(2, 2), test.ShouldEqual, 0.005)
	test.That(t, q.At(0, 1), test.ShouldEqual, 0.0)
	test.That(t, r.At(0, 0), test.ShouldEqual, 2.0)
	test.That(t, r.At(1, 1), test.ShouldEqual, 0.5)
}
