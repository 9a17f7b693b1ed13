// Package parallel provides parallel execution utilities for the tensor kernels.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// linesPerChunk is how many cache lines of 8-byte words one goroutine
// should at least touch.
const linesPerChunk = 8

// DefaultConfig returns sensible defaults based on CPU count and cache geometry.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	line := cpuid.CPU.CacheLine
	if line <= 0 {
		line = 64
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: line / 8 * linesPerChunk,
	}
}

var (
	defaultOnce sync.Once
	defaultCfg  Config
)

// Default returns the process-wide configuration, computed once.
func Default() Config {
	defaultOnce.Do(func() {
		defaultCfg = DefaultConfig()
	})
	return defaultCfg
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
// A panic in any worker is re-raised in the caller after all workers finish.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize || cfg.NumWorkers < 2 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var (
		wg       sync.WaitGroup
		panicked sync.Once
		failure  any
	)
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicked.Do(func() { failure = r })
				}
			}()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()

	// Re-raise on the caller's goroutine so it can recover.
	if failure != nil {
		panic(failure)
	}
}

// ForBatch is For over a batch*channels grid.
// Common in CNN operations like Conv2D and pooling.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	n := batch * channels
	For(n, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
