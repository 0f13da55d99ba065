// Package simulation closes the loop around the controller: a plant
// simulator, a state estimator, a fixed-cycle runner, and the run history the
// diagnostics consumers read afterward.
package simulation

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/unicycle"
)

// Simulator advances the true state one sampling period per applied input,
// optionally perturbed by seeded Gaussian process noise.
type Simulator struct {
	model      *unicycle.Model
	xyNoise    *distuv.Normal
	thetaNoise *distuv.Normal
}

// NewSimulator builds the plant from the run configuration.
func NewSimulator(cfg *config.Config) *Simulator {
	sim := &Simulator{model: unicycle.NewModel(cfg.Ts)}
	if cfg.Noise.Enabled {
		src := rand.NewSource(cfg.Noise.Seed)
		sim.xyNoise = &distuv.Normal{Mu: 0, Sigma: cfg.Noise.StdXY, Src: src}
		sim.thetaNoise = &distuv.Normal{Mu: 0, Sigma: cfg.Noise.StdTheta, Src: src}
	}
	return sim
}

// Step propagates the state under input u.
func (s *Simulator) Step(st unicycle.State, u unicycle.Input) unicycle.State {
	next := s.model.Step(st, u)
	if s.xyNoise != nil {
		next.X += s.xyNoise.Rand()
		next.Y += s.xyNoise.Rand()
		next.Theta += s.thetaNoise.Rand()
	}
	return next
}
