package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/holefill/internal/imageio"
	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/store"
)

var (
	resynthDataDir string
	resynthOffset  int
	resynthOut     string
	resynthUpdate  bool
)

var resynthCmd = &cobra.Command{
	Use:   "resynth <job-id>",
	Short: "Re-synthesise a stored result with another voting offset",
	Long: `Rebuilds the fill of a stored job from its saved correspondence field
without running the optimizer again. The original image and mask are read
from the paths recorded with the job and must be unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runResynth,
}

func init() {
	resynthCmd.Flags().StringVar(&resynthDataDir, "data-dir", "./data", "Base directory for result storage")
	resynthCmd.Flags().IntVar(&resynthOffset, "offset", 1, "Voting offset; must divide the stored patch size")
	resynthCmd.Flags().StringVar(&resynthOut, "out", "resynth.png", "Output image path")
	resynthCmd.Flags().BoolVar(&resynthUpdate, "update", false, "Replace the stored result image and record the new offset")
	rootCmd.AddCommand(resynthCmd)
}

func runResynth(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	st, err := store.NewFSStore(resynthDataDir)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	start := time.Now()
	record, err := st.LoadRecord(jobID)
	if err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("stored record is invalid: %w", err)
	}

	img, err := imageio.LoadFrame(record.Config.ImagePath, record.Channels)
	if err != nil {
		return err
	}
	mask, err := imageio.LoadMask(record.Config.MaskPath)
	if err != nil {
		return err
	}
	if err := record.IsCompatible(img.Width, img.Height, resynthOffset); err != nil {
		return err
	}
	if n := mask.CountFill(); n != record.Stats.Fillable {
		slog.Warn("Mask differs from the stored job", "job_id", jobID, "hole_pixels", n, "recorded", record.Stats.Fillable)
	}

	field, err := st.LoadField(jobID)
	if err != nil {
		return fmt.Errorf("failed to load field: %w", err)
	}
	out, err := inpaint.Recompose(img, mask, field, resynthOffset)
	if err != nil {
		return err
	}
	if err := imageio.SaveFrame(resynthOut, out); err != nil {
		return err
	}

	if resynthUpdate {
		if err := st.SaveImage(jobID, out); err != nil {
			return err
		}
		record.Config.Offset = resynthOffset
		if err := st.SaveRecord(jobID, record); err != nil {
			return err
		}
	}

	slog.Info("Resynthesis complete", "job_id", jobID, "offset", resynthOffset, "elapsed", time.Since(start))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (offset %d)\n", resynthOut, resynthOffset)
	return nil
}
