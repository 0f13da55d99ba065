package simulation

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/mpc"
	"github.com/wheelbot/safempc/unicycle"
)

// Record captures everything one control cycle produced.
type Record struct {
	Cycle int
	// Time is the absolute simulation time the cycle was solved at.
	Time float64
	// Estimated is the state the solve was seeded with.
	Estimated unicycle.State
	// Applied is the first input of the optimal sequence, the only part of
	// the plan that was executed.
	Applied unicycle.Input
	// Prediction is the full solved plan, kept for diagnostics.
	Prediction *mpc.Prediction
	// Next is the simulated state after applying the input.
	Next unicycle.State
	// SolveTime is the wall time the solver took.
	SolveTime time.Duration
}

// History is the append-only log of a run. It is written by the runner during
// the run and read-only afterward; on failure it holds the cycles that
// completed before the failing one.
type History struct {
	start   unicycle.State
	records []Record
}

func newHistory(start unicycle.State) *History {
	return &History{start: start}
}

func (h *History) append(rec Record) {
	h.records = append(h.records, rec)
}

// Len returns the number of completed cycles.
func (h *History) Len() int {
	return len(h.records)
}

// Records returns the per-cycle log in order.
func (h *History) Records() []Record {
	return h.records
}

// States returns the realized closed-loop trajectory, starting at the initial
// state: Len()+1 entries.
func (h *History) States() []unicycle.State {
	states := make([]unicycle.State, 0, len(h.records)+1)
	states = append(states, h.start)
	for _, rec := range h.records {
		states = append(states, rec.Next)
	}
	return states
}

// Inputs returns the applied inputs in order.
func (h *History) Inputs() []unicycle.Input {
	us := make([]unicycle.Input, 0, len(h.records))
	for _, rec := range h.records {
		us = append(us, rec.Applied)
	}
	return us
}

// MinClearance returns the smallest margin between the realized trajectory and
// any inflated obstacle disk: center distance minus (obstacle radius + robot
// radius). Negative means a collision occurred at a sampled instant.
func (h *History) MinClearance(obstacles []config.Obstacle, robotRadius float64) float64 {
	min := 0.0
	first := true
	for _, s := range h.States() {
		for _, o := range obstacles {
			clearance := clearanceTo(s, o, robotRadius)
			if first || clearance < min {
				min = clearance
				first = false
			}
		}
	}
	return min
}

func clearanceTo(s unicycle.State, o config.Obstacle, robotRadius float64) float64 {
	dx := s.X - o.X
	dy := s.Y - o.Y
	return math.Hypot(dx, dy) - (o.Radius + robotRadius)
}

// Summary condenses a finished run for logging.
type Summary struct {
	Cycles      int
	Final       unicycle.State
	MeanSolve   time.Duration
	MedianSolve time.Duration
	MaxSolve    time.Duration
}

// Summarize computes run statistics over the recorded solve times.
func (h *History) Summarize() (*Summary, error) {
	if len(h.records) == 0 {
		return nil, errors.New("history is empty")
	}
	ms := make([]float64, len(h.records))
	for i, rec := range h.records {
		ms[i] = float64(rec.SolveTime.Microseconds())
	}
	mean, err := stats.Mean(ms)
	if err != nil {
		return nil, err
	}
	median, err := stats.Median(ms)
	if err != nil {
		return nil, err
	}
	max, err := stats.Max(ms)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Cycles:      len(h.records),
		Final:       h.records[len(h.records)-1].Next,
		MeanSolve:   time.Duration(mean) * time.Microsecond,
		MedianSolve: time.Duration(median) * time.Microsecond,
		MaxSolve:    time.Duration(max) * time.Microsecond,
	}, nil
}
