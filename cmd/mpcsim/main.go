// Command mpcsim runs one closed-loop simulation from a JSON configuration
// and writes the run artifacts (path plot, input plot, CSV log) to an output
// directory.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/wheelbot/safempc/config"
	"github.com/wheelbot/safempc/plotting"
	"github.com/wheelbot/safempc/simulation"
)

var logger = golog.NewDevelopmentLogger("mpcsim")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	flags := flag.NewFlagSet(args[0], flag.ExitOnError)
	configPath := flags.String("config", "", "path to run configuration (JSON)")
	outDir := flags.String("out", "out", "directory for run artifacts")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("-config is required")
	}

	cfg, err := config.Read(*configPath)
	if err != nil {
		return err
	}
	logger.Infof("running %d cycles: control=%s controller=%s Ts=%.3fs N=%d",
		cfg.Cycles, cfg.Control, cfg.Controller, cfg.Ts, cfg.Horizon)

	runner, err := simulation.NewRunner(cfg, logger)
	if err != nil {
		return err
	}
	hist, runErr := runner.Run(ctx)
	if runErr != nil {
		logger.Errorw("run aborted", "error", runErr, "completed_cycles", hist.Len())
	}
	if hist.Len() == 0 {
		return runErr
	}

	if summary, err := hist.Summarize(); err == nil {
		logger.Infof("final state (%.3f, %.3f, %.3f); solve time mean=%s median=%s max=%s",
			summary.Final.X, summary.Final.Y, summary.Final.Theta,
			summary.MeanSolve, summary.MedianSolve, summary.MaxSolve)
	}
	if cfg.ObstaclesOn {
		logger.Infof("minimum obstacle clearance: %.4f m", hist.MinClearance(cfg.Obstacles, cfg.RobotRadius))
	}

	if err := writeArtifacts(hist, cfg, *outDir); err != nil {
		return err
	}
	logger.Infof("artifacts written to %s", *outDir)
	return runErr
}

func writeArtifacts(hist *simulation.History, cfg *config.Config, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := plotting.SavePathPlot(hist, cfg, filepath.Join(dir, "path.png")); err != nil {
		return err
	}
	if err := plotting.SaveInputPlot(hist, cfg, filepath.Join(dir, "inputs.png")); err != nil {
		return err
	}
	//nolint:gosec
	f, err := os.Create(filepath.Join(dir, "run.csv"))
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return plotting.WriteCSV(hist, f)
}
