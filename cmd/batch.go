package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/holefill/internal/imageio"
	"github.com/cwbudde/holefill/internal/store"
)

var (
	batchMaskSuffix string
	batchOutDir     string
	batchJobs       int
	batchSave       bool
	batchDataDir    string
	batchFlags      solverFlags
)

var batchCmd = &cobra.Command{
	Use:   "batch <image>...",
	Short: "Fill several images concurrently",
	Long: `Fills every given image using the mask next to it, named by inserting
--mask-suffix before the extension (photo.png uses photo_mask.png). Results
are written to --out-dir under the input's base name. Up to --jobs images
are filled at once and share the worker pool. The first failure cancels
the remaining fills.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchMaskSuffix, "mask-suffix", "_mask", "Suffix identifying each image's mask")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "filled", "Output directory")
	batchCmd.Flags().IntVar(&batchJobs, "jobs", 2, "Images filled concurrently")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "Store every result for resynth and results")
	batchCmd.Flags().StringVar(&batchDataDir, "data-dir", "", "Result storage directory (default from config)")
	batchFlags.registerLocal(batchCmd)

	rootCmd.AddCommand(batchCmd)
}

// maskPathFor returns the mask path paired with an image path.
func maskPathFor(imagePath, suffix string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + suffix + ext
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchJobs < 1 {
		return fmt.Errorf("--jobs must be at least 1, got %d", batchJobs)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Validate once so a bad flag fails before any work starts.
	if _, err := batchFlags.options(cfg, batchFlags.jobConfig("", "")); err != nil {
		return err
	}

	var st *store.FSStore
	if batchSave {
		dir := batchDataDir
		if dir == "" {
			dir = cfg.Server.DataDir
		}
		if st, err = store.NewFSStore(dir); err != nil {
			return fmt.Errorf("failed to create result store: %w", err)
		}
	}

	exec, release := newExecutor(cfg)
	defer release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchJobs)
	for _, imagePath := range args {
		g.Go(func() error {
			jc := batchFlags.jobConfig(imagePath, maskPathFor(imagePath, batchMaskSuffix))
			opts, err := batchFlags.options(cfg, jc)
			if err != nil {
				return err
			}
			jobID := ""
			if st != nil {
				jobID = uuid.New().String()
			}
			res, err := fillOne(ctx, jc, opts, exec, st, jobID)
			if err != nil {
				return err
			}
			out := filepath.Join(batchOutDir, filepath.Base(imagePath))
			if err := imageio.SaveFrame(out, res.Frame); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (mean cost %.1f, %s)\n",
				out, res.Stats.MeanCost, res.Duration.Round(time.Millisecond))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Batch complete", "images", len(args), "elapsed", time.Since(start))
	return nil
}
