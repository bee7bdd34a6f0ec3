// Package parallel provides a persistent fork-join worker pool.
//
// Work is split into contiguous index chunks and dispatched to long-lived
// worker goroutines. For returns only after every chunk has completed, so
// each call acts as a phase barrier.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the minimum item count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const DefaultThreshold = 64

// workChunk represents a range of items for a worker to process.
type workChunk struct {
	start, end int
	fn         func(start, end int)
	done       chan<- struct{}
}

// Pool holds persistent workers for data-parallel loops.
// For may be called concurrently from multiple goroutines, but must not be
// called from inside a function running on the pool.
type Pool struct {
	numWorkers int
	threshold  int

	workChan chan workChunk // sends work to workers
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers

	mu      sync.Mutex
	running bool
}

// NewPool creates a pool with the given worker count (0 = GOMAXPROCS) and
// inline threshold (0 = DefaultThreshold). Workers start lazily.
func NewPool(workers, threshold int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Pool{numWorkers: workers, threshold: threshold}
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.numWorkers
}

// start launches persistent worker goroutines.
func (p *Pool) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop signals all workers to exit and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk := <-p.workChan:
			chunk.fn(chunk.start, chunk.end)
			chunk.done <- struct{}{}
		}
	}
}

// For calls fn over [0, n) split into at most Workers() contiguous chunks and
// waits for all of them. Small n runs inline on the calling goroutine.
func (p *Pool) For(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if p == nil || n < p.threshold || p.numWorkers == 1 {
		fn(0, n)
		return
	}

	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		p.start()
	}

	numWorkers := p.numWorkers
	chunkSize := (n + numWorkers - 1) / numWorkers
	done := make(chan struct{}, numWorkers)

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		p.workChan <- workChunk{start: start, end: end, fn: fn, done: done}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-done
	}
}
