// Package parallel holds the process-wide parallelism setting and the loop
// helper the samplers use to spread coefficient work over goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
)

var (
	disabled atomic.Bool
	threads  atomic.Int64
)

func init() {
	threads.Store(int64(HardwareThreads()))
}

// HardwareThreads returns the number of logical cores.
func HardwareThreads() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Enable turns parallel loops on.
func Enable() { disabled.Store(false) }

// Disable makes every loop run on the calling goroutine.
func Disable() { disabled.Store(true) }

// Enabled reports whether loops may use worker goroutines.
func Enabled() bool { return !disabled.Load() }

// SetThreads sets the worker count, clamped to [1, HardwareThreads()], and
// returns the value applied.
func SetThreads(n int) int {
	if hw := HardwareThreads(); n > hw {
		n = hw
	}
	if n < 1 {
		n = 1
	}
	threads.Store(int64(n))
	return n
}

// Threads returns the number of workers a loop will use.
func Threads() int {
	if disabled.Load() {
		return 1
	}
	return int(threads.Load())
}

// NumChunks returns how many chunks of at most size items cover n items.
func NumChunks(n, size int) int {
	if n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Chunks calls fn(chunk, lo, hi) for consecutive ranges [lo, hi) of at most
// size items covering [0, n). Chunk boundaries depend only on n and size, so
// callers that key per-chunk state by chunk index get the same result for any
// thread count. Chunks run concurrently when enabled.
func Chunks(n, size int, fn func(chunk, lo, hi int)) {
	count := NumChunks(n, size)
	workers := Threads()
	if workers > count {
		workers = count
	}
	if workers <= 1 {
		for c := 0; c < count; c++ {
			fn(c, c*size, min(n, (c+1)*size))
		}
		return
	}
	var (
		next atomic.Int64
		wg   sync.WaitGroup
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				c := int(next.Add(1) - 1)
				if c >= count {
					return
				}
				fn(c, c*size, min(n, (c+1)*size))
			}
		}()
	}
	wg.Wait()
}

// For runs fn(i) for every i in [0, n).
func For(n int, fn func(i int)) {
	size := 1
	if t := Threads(); n > t {
		size = (n + t - 1) / t
	}
	Chunks(n, size, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			fn(i)
		}
	})
}
