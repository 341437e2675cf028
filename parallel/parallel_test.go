package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetThreads(t *testing.T) {
	defer SetThreads(HardwareThreads())
	require.Equal(t, 1, SetThreads(0))
	require.Equal(t, HardwareThreads(), SetThreads(HardwareThreads()+100))
}

func TestDisable(t *testing.T) {
	defer Enable()
	Disable()
	require.False(t, Enabled())
	require.Equal(t, 1, Threads())
	Enable()
	require.True(t, Enabled())
}

func TestChunksCover(t *testing.T) {
	for _, n := range []int{0, 1, 7, 64, 1000} {
		hits := make([]int32, n)
		var calls, misplaced atomic.Int32
		Chunks(n, 16, func(chunk, lo, hi int) {
			calls.Add(1)
			if lo != chunk*16 {
				misplaced.Add(1)
			}
			for i := lo; i < hi; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		require.Equal(t, int32(NumChunks(n, 16)), calls.Load())
		require.Zero(t, misplaced.Load())
		for i := range hits {
			require.Equal(t, int32(1), hits[i], "n=%d i=%d", n, i)
		}
	}
}

func TestFor(t *testing.T) {
	out := make([]int, 333)
	For(len(out), func(i int) { out[i] = i * i })
	for i, v := range out {
		require.Equal(t, i*i, v)
	}
}
