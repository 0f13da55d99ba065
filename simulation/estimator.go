package simulation

import "github.com/wheelbot/safempc/unicycle"

// Estimator maps raw plant output to the state fed back into the controller.
// It is a distinct stage so that replacing full-state feedback with a real
// filter under partial observability is a drop-in change.
type Estimator interface {
	Estimate(s unicycle.State) unicycle.State
}

// StateFeedback is the full-state feedback estimator: the measurement is the
// state.
type StateFeedback struct{}

// Estimate returns its input unchanged.
func (StateFeedback) Estimate(s unicycle.State) unicycle.State {
	return s
}
