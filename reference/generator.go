// Package reference produces the desired position the controller tracks at a
// given absolute time: a fixed goal in setpoint mode, or a point on a
// parametric curve in trajectory-tracking mode.
package reference

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/unicycle"
)

// Generator maps absolute time to the desired planar position. Implementations
// are pure functions of (time, configuration): no captured mutable state, so a
// generator may be evaluated at any instant of the prediction horizon.
type Generator interface {
	// At returns the desired position at absolute time t seconds. Z is unused.
	At(t float64) r3.Vector
}

// New builds the generator selected by the configuration.
func New(cfg *config.Config) (Generator, error) {
	switch cfg.Control {
	case config.ControlSetpoint:
		return setpoint{goal: r3.Vector{X: cfg.Goal.X, Y: cfg.Goal.Y}}, nil
	case config.ControlTrajectory:
		switch cfg.Trajectory.Kind {
		case config.TrajectoryCircular:
			return circular{amplitude: cfg.Trajectory.Amplitude, frequency: cfg.Trajectory.Frequency}, nil
		case config.TrajectoryLemniscate:
			return lemniscate{amplitude: cfg.Trajectory.Amplitude, frequency: cfg.Trajectory.Frequency}, nil
		default:
			return nil, errors.Errorf("no generator for trajectory kind %q", cfg.Trajectory.Kind)
		}
	default:
		return nil, errors.Errorf("no generator for control kind %q", cfg.Control)
	}
}

// DesiredHeading returns the heading error reference for trajectory tracking:
// the angle of the ray from the reference point to the robot's current
// position. Note this is deliberately not the trajectory tangent.
func DesiredHeading(s unicycle.State, ref r3.Vector) float64 {
	return math.Atan2(s.Y-ref.Y, s.X-ref.X)
}

type setpoint struct {
	goal r3.Vector
}

func (g setpoint) At(float64) r3.Vector {
	return g.goal
}

// circular traces (A*cos(wt), A*sin(wt)).
type circular struct {
	amplitude float64
	frequency float64
}

func (g circular) At(t float64) r3.Vector {
	return r3.Vector{
		X: g.amplitude * math.Cos(g.frequency*t),
		Y: g.amplitude * math.Sin(g.frequency*t),
	}
}

// lemniscate traces a figure-eight of Bernoulli-style curve
// (A*cos(wt)/(1+sin^2(wt)), A*sin(wt)*cos(wt)/(1+sin^2(wt))).
type lemniscate struct {
	amplitude float64
	frequency float64
}

func (g lemniscate) At(t float64) r3.Vector {
	sin, cos := math.Sincos(g.frequency * t)
	den := 1 + sin*sin
	return r3.Vector{
		X: g.amplitude * cos / den,
		Y: g.amplitude * sin * cos / den,
	}
}
