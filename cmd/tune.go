package main

import (
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwbudde/holefill/internal/config"
	"github.com/cwbudde/holefill/internal/imageio"
	"github.com/cwbudde/holefill/internal/opt"
	"github.com/cwbudde/holefill/internal/tune"
)

var (
	tuneImage    string
	tuneHole     string
	tuneChannels int
	tuneIters    int
	tunePop      int
	tuneSeed     int64
	tuneWrite    bool
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search fill settings on an image with known content",
	Long: `Punches a hole into an intact image, fills it repeatedly and searches the
per-level iterations, random search depth and protect radius that best
reconstruct the original, using the Mayfly optimizer. Prints the result as
JSON; --write-config stores the best settings in the configuration file.`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVar(&tuneImage, "image", "", "Intact image path (required)")
	tuneCmd.Flags().StringVar(&tuneHole, "hole", "", "Hole rectangle x0,y0,x1,y1 (default: centred quarter)")
	tuneCmd.Flags().IntVar(&tuneChannels, "channels", 3, "Matching channels: 1 or 3")
	tuneCmd.Flags().IntVar(&tuneIters, "iters", 10, "Optimizer iterations")
	tuneCmd.Flags().IntVar(&tunePop, "pop", 20, "Optimizer population size")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", 42, "Optimizer random seed")
	tuneCmd.Flags().BoolVar(&tuneWrite, "write-config", false, "Save the best settings to --config")

	tuneCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(tuneCmd)
}

// parseHole parses "x0,y0,x1,y1". The empty string yields the zero
// rectangle.
func parseHole(s string) (image.Rectangle, error) {
	if s == "" {
		return image.Rectangle{}, nil
	}
	var x0, y0, x1, y1 int
	if _, err := fmt.Sscanf(s, "%d,%d,%d,%d", &x0, &y0, &x1, &y1); err != nil {
		return image.Rectangle{}, fmt.Errorf("invalid hole %q: want x0,y0,x1,y1", s)
	}
	r := image.Rect(x0, y0, x1, y1)
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("invalid hole %q: empty rectangle", s)
	}
	return r, nil
}

// applyTuned writes s into cfg.
func applyTuned(cfg *config.Config, s tune.Settings) {
	cfg.Pyramid.Iterations = s.Iterations
	cfg.Pyramid.CoarsestIterations = max(cfg.Pyramid.CoarsestIterations, s.Iterations)
	cfg.Solver.SearchSteps = s.SearchSteps
	cfg.Pyramid.ProtectRadius = s.ProtectRadius
}

func runTune(cmd *cobra.Command, args []string) error {
	hole, err := parseHole(tuneHole)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	base, err := cfg.Options()
	if err != nil {
		return err
	}

	img, err := imageio.LoadFrame(tuneImage, tuneChannels)
	if err != nil {
		return err
	}

	exec, release := newExecutor(cfg)
	defer release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := tune.Run(ctx, img, tune.Config{Base: base, Hole: hole, Executor: exec},
		opt.NewMayfly(tuneIters, tunePop, tuneSeed))
	if err != nil {
		return err
	}

	if tuneWrite {
		applyTuned(cfg, res.Best)
		if err := config.SaveConfig(cfg, configPath); err != nil {
			return err
		}
		slog.Info("Configuration updated", "path", configPath)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
