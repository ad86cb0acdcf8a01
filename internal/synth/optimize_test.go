package synth

import (
	"errors"
	"image"
	"math/rand"
	"testing"

	"github.com/cwbudde/holefill/internal/frame"
	"github.com/cwbudde/holefill/internal/metric"
	"github.com/cwbudde/holefill/internal/parallel"
)

func newTestOptimizer(t *testing.T, img *frame.Frame, policy SourcePolicy, params Params, exec parallel.Executor, seed int64) *Optimizer {
	t.Helper()
	o, err := NewOptimizer(img, policy, params, exec, seed)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	return o
}

func TestOptimize_ZeroCostSelfMatch(t *testing.T) {
	img := uniformFrame(32, 32, 3, 90)
	m := holeMask(32, 32, centeredHole(32, 32, 4))
	params := DefaultParams()
	policy := mustFootprint(t, m, params.PatchSize)

	f, err := InitializeRandom(img, policy, params, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("InitializeRandom: %v", err)
	}
	o := newTestOptimizer(t, img, policy, params, nil, 7)
	if err := o.Optimize(f, 1); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if !policy.Fillable(x, y) {
				continue
			}
			if c, ok := f.At(x, y).Cost().Value(); !ok || c != 0 {
				t.Errorf("(%d, %d) cost = %d (known %v), want 0", x, y, c, ok)
			}
		}
	}
}

func TestOptimize_MonotonicAndValid(t *testing.T) {
	for _, kind := range []metric.Kind{metric.SSD, metric.ZeroMeanSSD, metric.SAD} {
		t.Run(kind.String(), func(t *testing.T) {
			img := noiseFrame(48, 40, 3, 11)
			m := holeMask(48, 40, image.Rect(18, 14, 30, 24))
			params := DefaultParams()
			params.Metric = kind
			policy := mustFootprint(t, m, params.PatchSize)

			f, err := InitializeRandom(img, policy, params, rand.New(rand.NewSource(5)))
			if err != nil {
				t.Fatalf("InitializeRandom: %v", err)
			}
			o := newTestOptimizer(t, img, policy, params, nil, 5)
			match := newMatcher(img, params)

			for iter := 0; iter < 3; iter++ {
				before := f.Clone()
				if err := o.Optimize(f, 1); err != nil {
					t.Fatalf("Optimize: %v", err)
				}
				for y := 0; y < 40; y++ {
					for x := 0; x < 48; x++ {
						if !policy.Fillable(x, y) {
							continue
						}
						prev, cur := before.At(x, y), f.At(x, y)
						if cur.Score(true) > prev.Score(true) {
							t.Fatalf("(%d, %d) score rose from %d to %d", x, y, prev.Score(true), cur.Score(true))
						}
						if cur == prev {
							continue
						}
						sx, sy := cur.Source()
						if !footprintValid(m, sx, sy, params.PatchSize) {
							t.Fatalf("(%d, %d) -> (%d, %d) overlaps the hole", x, y, sx, sy)
						}
						if c, _ := cur.Cost().Value(); c != match.cost(x, y, sx, sy) {
							t.Fatalf("(%d, %d) stored cost %d, metric %d", x, y, c, match.cost(x, y, sx, sy))
						}
					}
				}
			}
		})
	}
}

func TestOptimize_FromUnknown(t *testing.T) {
	img := gradientFrame(40, 40)
	m := holeMask(40, 40, centeredHole(40, 40, 6))
	params := DefaultParams()
	policy := mustFootprint(t, m, params.PatchSize)

	f, err := InitializeUnknown(m, params.PatchSize)
	if err != nil {
		t.Fatalf("InitializeUnknown: %v", err)
	}
	o := newTestOptimizer(t, img, policy, params, nil, 1)
	if err := o.Optimize(f, 2); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	s := Stats(f, m)
	if s.Known != s.Fillable-s.Empty || s.Unknown != 0 {
		t.Errorf("stats after optimize = %+v, want every fillable cell known", s)
	}
}

func TestOptimize_Deterministic(t *testing.T) {
	img := noiseFrame(36, 36, 1, 21)
	m := holeMask(36, 36, centeredHole(36, 36, 8))
	params := DefaultParams()
	policy := mustFootprint(t, m, params.PatchSize)

	run := func() *Field {
		f, err := InitializeRandom(img, policy, params, rand.New(rand.NewSource(99)))
		if err != nil {
			t.Fatalf("InitializeRandom: %v", err)
		}
		o := newTestOptimizer(t, img, policy, params, parallel.Serial{}, 99)
		if err := o.Optimize(f, 3); err != nil {
			t.Fatalf("Optimize: %v", err)
		}
		return f
	}
	fieldsEqual(t, run(), run())
}

func TestOptimizeRows_MatchesOptimize(t *testing.T) {
	img := noiseFrame(30, 30, 3, 4)
	m := holeMask(30, 30, centeredHole(30, 30, 6))
	params := DefaultParams()
	policy := mustFootprint(t, m, params.PatchSize)

	seed, err := InitializeRandom(img, policy, params, rand.New(rand.NewSource(8)))
	if err != nil {
		t.Fatalf("InitializeRandom: %v", err)
	}
	a, b := seed.Clone(), seed.Clone()

	if err := newTestOptimizer(t, img, policy, params, nil, 8).Optimize(a, 2); err != nil {
		t.Fatal(err)
	}
	if err := newTestOptimizer(t, img, policy, params, nil, 8).OptimizeRows(b, 0, 30, 2); err != nil {
		t.Fatal(err)
	}
	fieldsEqual(t, a, b)
}

func TestOptimize_PoolKeepsInvariants(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	img := noiseFrame(64, 64, 3, 2)
	m := holeMask(64, 64, image.Rect(10, 10, 54, 54))
	params := DefaultParams()
	policy, err := NewPatchMaskPolicy(m, nil, params.PatchSize)
	if err != nil {
		t.Fatal(err)
	}

	f, err := InitializeRandom(img, policy, params, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	before := f.Clone()
	if err := newTestOptimizer(t, img, policy, params, pool, 1).Optimize(f, 2); err != nil {
		t.Fatal(err)
	}

	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if !policy.Fillable(x, y) {
				continue
			}
			cur := f.At(x, y)
			if cur.Score(true) > before.At(x, y).Score(true) {
				t.Fatalf("(%d, %d) got worse", x, y)
			}
			if cur != before.At(x, y) {
				sx, sy := cur.Source()
				if !footprintValid(m, sx, sy, params.PatchSize) {
					t.Fatalf("(%d, %d) -> (%d, %d) overlaps the hole", x, y, sx, sy)
				}
			}
		}
	}
}

func TestOptimizeRows_ConcurrentBands(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	img := noiseFrame(48, 64, 3, 6)
	m := holeMask(48, 64, image.Rect(8, 12, 40, 52))
	params := DefaultParams()
	policy := mustFootprint(t, m, params.PatchSize)

	f, err := InitializeRandom(img, policy, params, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatal(err)
	}
	before := f.Clone()
	o := newTestOptimizer(t, img, policy, params, nil, 3)
	match := newMatcher(img, params)

	errs := make(chan error, 64)
	pool.RunRows(0, 64, 2, func(first, count int) {
		if err := o.OptimizeRows(f, first, count, 2); err != nil {
			errs <- err
		}
	})
	close(errs)
	for err := range errs {
		t.Fatalf("OptimizeRows: %v", err)
	}

	for y := 0; y < 64; y++ {
		for x := 0; x < 48; x++ {
			if !policy.Fillable(x, y) {
				continue
			}
			prev, cur := before.At(x, y), f.At(x, y)
			if cur.Score(true) > prev.Score(true) {
				t.Fatalf("(%d, %d) score rose from %d to %d", x, y, prev.Score(true), cur.Score(true))
			}
			if cur == prev {
				continue
			}
			sx, sy := cur.Source()
			if !footprintValid(m, sx, sy, params.PatchSize) {
				t.Fatalf("(%d, %d) -> (%d, %d) overlaps the hole", x, y, sx, sy)
			}
			if c, _ := cur.Cost().Value(); c != match.cost(x, y, sx, sy) {
				t.Fatalf("(%d, %d) stored cost %d, metric %d", x, y, c, match.cost(x, y, sx, sy))
			}
		}
	}
}

func TestOptimize_AllMaskedKeepsSentinels(t *testing.T) {
	img := uniformFrame(12, 12, 1, 0)
	m := holeMask(12, 12, image.Rect(0, 0, 12, 12))
	params := DefaultParams()
	policy := mustFootprint(t, m, params.PatchSize)

	f, err := InitializeUnknown(m, params.PatchSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := newTestOptimizer(t, img, policy, params, nil, 1).Optimize(f, 2); err != nil {
		t.Fatal(err)
	}
	if s := Stats(f, m); s.Known != 0 || s.Unknown == 0 {
		t.Errorf("stats = %+v, want only Unknown cells", s)
	}
}

func TestOptimize_ConfigErrors(t *testing.T) {
	img := uniformFrame(10, 10, 1, 0)
	m := frame.NewMask(10, 10)
	params := DefaultParams()
	policy := mustFootprint(t, m, params.PatchSize)
	o := newTestOptimizer(t, img, policy, params, nil, 0)

	if err := o.Optimize(nil, 1); !errors.Is(err, ErrNilInput) {
		t.Errorf("nil field: %v", err)
	}
	f, _ := InitializeUnknown(m, params.PatchSize)
	if err := o.Optimize(f, -1); !errors.Is(err, ErrInvalidIterations) {
		t.Errorf("negative iterations: %v", err)
	}
	other, _ := InitializeUnknown(frame.NewMask(11, 10), params.PatchSize)
	if err := o.Optimize(other, 1); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("size mismatch: %v", err)
	}
	bad := params
	bad.SearchSteps = 13
	if _, err := NewOptimizer(img, policy, bad, nil, 0); !errors.Is(err, ErrInvalidSearchSteps) {
		t.Errorf("search steps: %v", err)
	}
}
