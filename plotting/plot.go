// Package plotting renders a finished closed-loop run for offline inspection:
// the realized path against the obstacles and reference, the applied input
// series, and a CSV log. It depends only on the history's read API and stays
// outside the control core.
package plotting

import (
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/reference"
	"github.com/wheelbot/safempc/simulation"
)

const (
	plotSize       = 6 * vg.Inch
	circleSegments = 64
)

// SavePathPlot writes the realized (x, y) trajectory to path as a PNG,
// together with the inflated obstacle disks and the reference (goal point or
// trajectory curve).
func SavePathPlot(hist *simulation.History, cfg *config.Config, path string) error {
	p := plot.New()
	p.Title.Text = "closed-loop path"
	p.X.Label.Text = "x [m]"
	p.Y.Label.Text = "y [m]"

	states := hist.States()
	pts := make(plotter.XYs, len(states))
	for i, s := range states {
		pts[i].X = s.X
		pts[i].Y = s.Y
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{B: 255, A: 255}
	p.Add(line)
	p.Legend.Add("path", line)

	if cfg.ObstaclesOn {
		for _, o := range cfg.Obstacles {
			disk, err := obstacleRing(o, cfg.RobotRadius)
			if err != nil {
				return err
			}
			p.Add(disk)
		}
	}

	refLine, err := referenceOverlay(cfg)
	if err != nil {
		return err
	}
	if refLine != nil {
		p.Add(refLine)
		p.Legend.Add("reference", refLine)
	}

	return errors.Wrap(p.Save(plotSize, plotSize, path), "cannot save path plot")
}

// SaveInputPlot writes the applied input series (v and omega over time) to
// path as a PNG, with the configured bounds drawn as horizontal lines.
func SaveInputPlot(hist *simulation.History, cfg *config.Config, path string) error {
	p := plot.New()
	p.Title.Text = "applied inputs"
	p.X.Label.Text = "t [s]"
	p.Y.Label.Text = "input"

	records := hist.Records()
	vs := make(plotter.XYs, len(records))
	ws := make(plotter.XYs, len(records))
	for i, rec := range records {
		vs[i].X = rec.Time
		vs[i].Y = rec.Applied.V
		ws[i].X = rec.Time
		ws[i].Y = rec.Applied.Omega
	}
	vLine, err := plotter.NewLine(vs)
	if err != nil {
		return err
	}
	vLine.Color = color.RGBA{B: 255, A: 255}
	wLine, err := plotter.NewLine(ws)
	if err != nil {
		return err
	}
	wLine.Color = color.RGBA{R: 255, A: 255}
	p.Add(vLine, wLine)
	p.Legend.Add("v [m/s]", vLine)
	p.Legend.Add("omega [rad/s]", wLine)

	for _, bound := range []float64{cfg.VLimit, -cfg.VLimit, cfg.OmegaLimit, -cfg.OmegaLimit} {
		limit := plotter.NewFunction(func(float64) float64 { return bound })
		limit.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
		limit.Color = color.Gray{Y: 128}
		p.Add(limit)
	}

	return errors.Wrap(p.Save(plotSize, plotSize/2, path), "cannot save input plot")
}

// obstacleRing traces the inflated obstacle boundary as a closed polyline.
func obstacleRing(o config.Obstacle, robotRadius float64) (*plotter.Line, error) {
	r := o.Radius + robotRadius
	pts := make(plotter.XYs, circleSegments+1)
	for i := 0; i <= circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts[i].X = o.X + r*math.Cos(a)
		pts[i].Y = o.Y + r*math.Sin(a)
	}
	ring, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	ring.Color = color.RGBA{R: 200, A: 255}
	return ring, nil
}

// referenceOverlay samples the configured reference over the run duration, or
// marks the goal point in setpoint mode.
func referenceOverlay(cfg *config.Config) (*plotter.Line, error) {
	gen, err := reference.New(cfg)
	if err != nil {
		return nil, err
	}
	var pts plotter.XYs
	switch cfg.Control {
	case config.ControlSetpoint:
		goal := gen.At(0)
		pts = plotter.XYs{{X: goal.X, Y: goal.Y}, {X: goal.X, Y: goal.Y}}
	case config.ControlTrajectory:
		total := float64(cfg.Cycles) * cfg.Ts
		samples := cfg.Cycles * 4
		pts = make(plotter.XYs, samples+1)
		for i := 0; i <= samples; i++ {
			ref := gen.At(total * float64(i) / float64(samples))
			pts[i].X = ref.X
			pts[i].Y = ref.Y
		}
	default:
		return nil, nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{G: 180, A: 255}
	line.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	return line, nil
}
