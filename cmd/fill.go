package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/holefill/internal/imageio"
	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/parallel"
	"github.com/cwbudde/holefill/internal/store"
)

var (
	fillImage   string
	fillMask    string
	fillOut     string
	fillSave    bool
	fillDataDir string
	fillFlags   solverFlags
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Fill the masked region of an image",
	Long: `Fills the region marked white in the mask with content synthesised from
the rest of the image and writes the composite. With --save the result,
the correspondence field and the cost trace are stored for later listing
and resynthesis.`,
	RunE: runFill,
}

func init() {
	fillCmd.Flags().StringVar(&fillImage, "image", "", "Input image path (required)")
	fillCmd.Flags().StringVar(&fillMask, "mask", "", "Mask image path; bright pixels mark the hole (required)")
	fillCmd.Flags().StringVar(&fillOut, "out", "filled.png", "Output image path")
	fillCmd.Flags().BoolVar(&fillSave, "save", false, "Store the result for resynth and results")
	fillCmd.Flags().StringVar(&fillDataDir, "data-dir", "", "Result storage directory (default from config)")
	fillFlags.registerLocal(fillCmd)

	fillCmd.MarkFlagRequired("image")
	fillCmd.MarkFlagRequired("mask")
	rootCmd.AddCommand(fillCmd)
}

func runFill(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	jc := fillFlags.jobConfig(fillImage, fillMask)
	opts, err := fillFlags.options(cfg, jc)
	if err != nil {
		return err
	}

	var st *store.FSStore
	jobID := ""
	if fillSave {
		dir := fillDataDir
		if dir == "" {
			dir = cfg.Server.DataDir
		}
		if st, err = store.NewFSStore(dir); err != nil {
			return fmt.Errorf("failed to create result store: %w", err)
		}
		jobID = uuid.New().String()
	}

	exec, release := newExecutor(cfg)
	defer release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := fillOne(ctx, jc, opts, exec, st, jobID)
	if err != nil {
		return err
	}
	if err := imageio.SaveFrame(fillOut, res.Frame); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pixels filled, mean cost %.1f, %s)\n",
		fillOut, res.Stats.Fillable, res.Stats.MeanCost, res.Duration.Round(time.Millisecond))
	if st != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Stored as job %s\n", jobID)
	}
	return nil
}

// fillOne loads the inputs named by jc and fills them. A non-nil st
// receives the result and the cost trace under jobID.
func fillOne(ctx context.Context, jc store.JobConfig, opts inpaint.Options, exec parallel.Executor, st *store.FSStore, jobID string) (*inpaint.Result, error) {
	img, err := imageio.LoadFrame(jc.ImagePath, jc.Channels)
	if err != nil {
		return nil, err
	}
	mask, err := imageio.LoadMask(jc.MaskPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded inputs", "image", jc.ImagePath, "width", img.Width, "height", img.Height,
		"channels", img.Channels, "hole_pixels", mask.CountFill())

	var trace *store.TraceWriter
	if st != nil {
		trace, err = store.NewTraceWriter(st.BaseDir(), jobID, false)
		if err != nil {
			return nil, err
		}
		defer trace.Close()
	}

	opts.Progress = func(p inpaint.Progress) {
		slog.Debug("Iteration",
			"image", jc.ImagePath,
			"step", p.Step, "steps", p.Steps,
			"width", p.Width, "height", p.Height,
			"iteration", p.Iteration,
			"mean_cost", p.Stats.MeanCost,
			"unknown", p.Stats.Unknown)
		if trace != nil {
			if err := trace.Write(store.EntryFromProgress(p)); err != nil {
				slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
			}
		}
	}

	p, err := inpaint.New(opts, exec)
	if err != nil {
		return nil, err
	}
	res, err := p.Fill(ctx, img, mask)
	if err != nil {
		return nil, fmt.Errorf("fill %s: %w", jc.ImagePath, err)
	}
	slog.Info("Fill complete",
		"image", jc.ImagePath,
		"elapsed", res.Duration,
		"levels", len(res.Levels),
		"mean_cost", res.Stats.MeanCost,
		"unknown", res.Stats.Unknown)

	if st != nil {
		if _, err := store.SaveResult(st, jobID, jc, res); err != nil {
			return nil, err
		}
		slog.Info("Result stored", "job_id", jobID, "dir", st.BaseDir())
	}
	return res, nil
}
