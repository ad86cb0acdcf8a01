// Package parallel fans row ranges out to concurrent workers.
package parallel

import (
	"runtime"
	"sync"
)

// Executor runs fn over disjoint bands that together cover
// [first, first+count) exactly once. Bands hold at least minRows rows unless
// the whole range is shorter. fn instances may run concurrently; RunRows
// returns after all of them have finished.
type Executor interface {
	RunRows(first, count, minRows int, fn func(first, count int))
}

// Serial runs the whole range as one band on the calling goroutine.
type Serial struct{}

func (Serial) RunRows(first, count, minRows int, fn func(first, count int)) {
	if count <= 0 {
		return
	}
	fn(first, count)
}

// Pool is a persistent set of worker goroutines reused across calls.
type Pool struct {
	numWorkers int
	workC      chan workItem

	// mu is held for reading while a call queues its bands
	mu     sync.RWMutex
	closed bool
}

type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// NewPool starts numWorkers workers. numWorkers <= 0 uses GOMAXPROCS.
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		numWorkers: numWorkers,
		workC:      make(chan workItem, numWorkers*2),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close stops the workers after pending work completes. Further RunRows
// calls execute serially. Calling Close more than once is safe.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.workC)
	}
}

// RunRows implements Executor.
func (p *Pool) RunRows(first, count, minRows int, fn func(first, count int)) {
	if count <= 0 {
		return
	}
	bands := Bands(count, minRows, p.numWorkers)
	if len(bands) == 1 {
		fn(first, count)
		return
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		fn(first, count)
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(bands))
	for _, b := range bands {
		start, n := first+b[0], b[1]
		p.workC <- workItem{
			fn:      func() { fn(start, n) },
			barrier: &wg,
		}
	}
	p.mu.RUnlock()
	wg.Wait()
}

// Bands splits count rows into at most maxBands contiguous (offset, length)
// pairs of at least minRows rows each. The pairs cover [0, count) exactly
// once, in ascending order.
func Bands(count, minRows, maxBands int) [][2]int {
	if count <= 0 {
		return nil
	}
	minRows = max(minRows, 1)
	n := max(min(maxBands, count/minRows), 1)

	bands := make([][2]int, 0, n)
	base, extra := count/n, count%n
	offset := 0
	for i := 0; i < n; i++ {
		rows := base
		if i < extra {
			rows++
		}
		bands = append(bands, [2]int{offset, rows})
		offset += rows
	}
	return bands
}
