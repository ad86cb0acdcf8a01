package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/holefill/internal/config"
	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/store"
)

// solverFlags are the per-run overrides shared by fill and batch. Zero
// values leave the configured setting untouched.
type solverFlags struct {
	channels      int
	patchSize     int
	metric        string
	searchSteps   int
	iterations    int
	offset        int
	maxLevels     int
	protectRadius int
	seed          int64
	noRefine      bool
}

func (f *solverFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.channels, "channels", 3, "Matching channels: 1 (grayscale) or 3 (color)")
	fs.IntVar(&f.patchSize, "patch", 0, "Odd patch size (0 = from config)")
	fs.StringVar(&f.metric, "metric", "", "Patch metric: ssd, zeromean, sad")
	fs.IntVar(&f.searchSteps, "search-steps", 0, "Random search candidates per visit, 1-12")
	fs.IntVar(&f.iterations, "iters", 0, "Iterations per pyramid level")
	fs.IntVar(&f.offset, "offset", 0, "Voting offset; must divide the patch size")
	fs.IntVar(&f.maxLevels, "max-levels", 0, "Maximum pyramid depth")
	fs.IntVar(&f.protectRadius, "protect-radius", 0, "Band around the hole excluded from sources during refinement")
	fs.Int64Var(&f.seed, "seed", 0, "Random seed")
}

// registerLocal adds the flags that only apply to fills run in this process.
func (f *solverFlags) registerLocal(cmd *cobra.Command) {
	f.register(cmd)
	cmd.Flags().BoolVar(&f.noRefine, "no-refine", false, "Skip the final refinement pass")
}

// jobConfig returns the overrides as the configuration recorded with a job.
func (f *solverFlags) jobConfig(imagePath, maskPath string) store.JobConfig {
	return store.JobConfig{
		ImagePath:     imagePath,
		MaskPath:      maskPath,
		Channels:      f.channels,
		PatchSize:     f.patchSize,
		Metric:        f.metric,
		SearchSteps:   f.searchSteps,
		Iterations:    f.iterations,
		Offset:        f.offset,
		MaxLevels:     f.maxLevels,
		ProtectRadius: f.protectRadius,
		Seed:          f.seed,
	}
}

// options resolves the configuration file with jc applied on top.
func (f *solverFlags) options(cfg *config.Config, jc store.JobConfig) (inpaint.Options, error) {
	base, err := cfg.Options()
	if err != nil {
		return inpaint.Options{}, err
	}
	if f.noRefine {
		base.Refine = false
	}
	return jc.Apply(base)
}
