package synth

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/parallel"
)

// Optimizer refines fields for one frame and policy by propagation and
// random search. The frame and policy must not change while an Optimize
// call runs. Concurrent OptimizeRows calls are safe when their row ranges
// are disjoint.
type Optimizer struct {
	img    *frame.Frame
	policy SourcePolicy
	params Params
	exec   parallel.Executor
	seed   int64

	match matcher
	in    inset
	// fillable row range, inclusive; firstRow > lastRow when nothing is
	// fillable
	firstRow, lastRow int
	calls             atomic.Uint64
}

// NewOptimizer validates the inputs and binds them. A nil executor runs
// serially. Results are reproducible for a given seed only with an executor
// that runs bands one after another.
func NewOptimizer(img *frame.Frame, policy SourcePolicy, params Params, exec parallel.Executor, seed int64) (*Optimizer, error) {
	if err := checkFrame(img); err != nil {
		return nil, err
	}
	if err := checkPolicy(policy); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if policy.PatchSize() != params.PatchSize {
		return nil, fmt.Errorf("%w: policy patch size %d, params %d", ErrSizeMismatch, policy.PatchSize(), params.PatchSize)
	}
	pw, ph := policy.Size()
	if err := checkSameSize(img.Width, img.Height, pw, ph, "frame and policy"); err != nil {
		return nil, err
	}
	if exec == nil {
		exec = parallel.Serial{}
	}

	o := &Optimizer{
		img:      img,
		policy:   policy,
		params:   params,
		exec:     exec,
		seed:     seed,
		match:    newMatcher(img, params),
		in:       newInset(img.Width, img.Height, params.PatchSize),
		firstRow: 0,
		lastRow:  -1,
	}
	o.findFillableRows()
	return o, nil
}

func (o *Optimizer) findFillableRows() {
	if o.in.empty() {
		return
	}
	first, last := -1, -1
	for y := o.in.minY; y <= o.in.maxY; y++ {
		for x := o.in.minX; x <= o.in.maxX; x++ {
			if o.policy.Fillable(x, y) {
				if first < 0 {
					first = y
				}
				last = y
				break
			}
		}
	}
	if first >= 0 {
		o.firstRow, o.lastRow = first, last
	}
}

// Optimize runs iterations of forward and backward sweeps over every
// fillable row, fanned out to the executor in bands of at least
// patchSize/2 rows.
func (o *Optimizer) Optimize(field *Field, iterations int) error {
	return o.run(field, 0, o.img.Height, iterations, true)
}

// OptimizeRows runs the sweeps for rows [first, first+count) as a single
// band on the calling goroutine. Covering the whole field is equivalent to
// Optimize with a serial executor.
func (o *Optimizer) OptimizeRows(field *Field, first, count, iterations int) error {
	return o.run(field, first, count, iterations, false)
}

func (o *Optimizer) run(field *Field, first, count, iterations int, fanOut bool) error {
	if field == nil {
		return fmt.Errorf("%w: field", ErrNilInput)
	}
	if iterations < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidIterations, iterations)
	}
	if err := checkSameSize(field.width, field.height, o.img.Width, o.img.Height, "field and frame"); err != nil {
		return err
	}
	if field.patchSize != o.params.PatchSize {
		return fmt.Errorf("%w: field patch size %d, params %d", ErrSizeMismatch, field.patchSize, o.params.PatchSize)
	}

	lo := max(o.firstRow, first)
	hi := min(o.lastRow, first+count-1)
	if iterations == 0 || hi < lo {
		return nil
	}

	call := o.calls.Add(1) - 1
	band := func(start, n int) {
		o.improveBand(field.Band(start, n), iterations, call)
	}
	if fanOut {
		o.exec.RunRows(lo, hi-lo+1, max(1, o.params.PatchSize/2), band)
	} else {
		band(lo, hi-lo+1)
	}

	slog.Debug("Optimized field", "rows", hi-lo+1, "iterations", iterations, "call", call)
	return nil
}

// bandSeed derives an independent random stream per call and band.
func bandSeed(seed int64, call uint64, first int) int64 {
	z := uint64(seed) ^ call*0x9E3779B97F4A7C15 ^ uint64(first)*0xD1B54A32D192ED03
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}

func (o *Optimizer) improveBand(b Band, iterations int, call uint64) {
	first, count := b.Rows()
	end := first + count
	rng := rand.New(rand.NewSource(bandSeed(o.seed, call, first)))

	// Seed one cell at each end of the band so propagation has something
	// to spread when the band starts out Unknown.
	rounds := max(1, o.img.Width*o.img.Height/1000)
	if x, y, ok := o.scanFillable(first, end, false); ok {
		o.seedCell(b, x, y, rounds, rng)
	}
	if x, y, ok := o.scanFillable(first, end, true); ok {
		o.seedCell(b, x, y, rounds, rng)
	}

	for it := 0; it < iterations; it++ {
		for y := first; y < end; y++ {
			for x := o.in.minX; x <= o.in.maxX; x++ {
				if o.policy.Fillable(x, y) {
					o.improveCell(b, x, y, true, rng)
				}
			}
		}
		for y := end - 1; y >= first; y-- {
			for x := o.in.maxX; x >= o.in.minX; x-- {
				if o.policy.Fillable(x, y) {
					o.improveCell(b, x, y, false, rng)
				}
			}
		}
	}
}

// scanFillable finds the first fillable cell in rows [first, end) in
// row-major order, or the last one when reverse is set.
func (o *Optimizer) scanFillable(first, end int, reverse bool) (int, int, bool) {
	if reverse {
		for y := end - 1; y >= first; y-- {
			for x := o.in.maxX; x >= o.in.minX; x-- {
				if o.policy.Fillable(x, y) {
					return x, y, true
				}
			}
		}
		return 0, 0, false
	}
	for y := first; y < end; y++ {
		for x := o.in.minX; x <= o.in.maxX; x++ {
			if o.policy.Fillable(x, y) {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

func (o *Optimizer) seedCell(b Band, x, y, rounds int, rng *rand.Rand) {
	cur := b.At(x, y)
	for r := 0; r < rounds; r++ {
		cur = o.search(b, x, y, cur, MaxSearchSteps, rng)
	}
}

func (o *Optimizer) improveCell(b Band, x, y int, forward bool, rng *rand.Rand) {
	cur := b.At(x, y)
	if forward {
		cur = o.propagate(b, x, y, x, y-1, 0, 1, cur)
		cur = o.propagate(b, x, y, x-1, y, 1, 0, cur)
	} else {
		cur = o.propagate(b, x, y, x, y+1, 0, -1, cur)
		cur = o.propagate(b, x, y, x+1, y, -1, 0, cur)
	}
	o.search(b, x, y, cur, o.params.SearchSteps, rng)
}

// propagate tries the source of neighbour (nx, ny) shifted by (dx, dy).
func (o *Optimizer) propagate(b Band, x, y, nx, ny, dx, dy int, cur Patch) Patch {
	if !b.field.Contains(nx, ny) {
		return cur
	}
	n := b.At(nx, ny)
	if !n.Known() {
		return cur
	}
	sx, sy := o.in.clamp(n.SourceX()+dx, n.SourceY()+dy)
	return o.try(b, x, y, sx, sy, cur)
}

// search samples steps candidates around the current best source with a
// radius that halves every step. Cells without a known source search
// around themselves.
func (o *Optimizer) search(b Band, x, y int, cur Patch, steps int, rng *rand.Rand) Patch {
	bx, by := x, y
	if cur.Known() {
		bx, by = cur.Source()
	}
	w, h := float64(o.img.Width), float64(o.img.Height)
	for k := 0; k < steps; k++ {
		f := searchAreaFactors[k]
		sx := bx + int(math.Round(w*f*(2*rng.Float64()-1)))
		sy := by + int(math.Round(h*f*(2*rng.Float64()-1)))
		if !o.in.contains(sx, sy) {
			continue
		}
		if next := o.try(b, x, y, sx, sy, cur); next != cur {
			cur = next
			bx, by = sx, sy
		}
	}
	return cur
}

// try evaluates source (sx, sy) for target (x, y) and stores it when it
// beats cur.
func (o *Optimizer) try(b Band, x, y, sx, sy int, cur Patch) Patch {
	if cur.Known() && cur.SourceX() == sx && cur.SourceY() == sy {
		return cur
	}
	if !o.policy.ValidSource(sx, sy) {
		return cur
	}
	cand := o.match.patch(x, y, sx, sy)
	if !cand.BetterThan(cur, o.params.SpatialTiebreak) {
		return cur
	}
	b.Store(x, y, cand)
	return cand
}
