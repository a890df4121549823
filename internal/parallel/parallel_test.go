package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForCoversRangeOnce(t *testing.T) {
	for _, n := range []int{0, 1, 7, 512, 513, 10000} {
		hits := make([]int32, n)
		For(n, 100, 64, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "n=%d i=%d", n, i)
		}
	}
}

func TestForBelowThresholdIsOneBlock(t *testing.T) {
	calls := 0
	For(50, 50, 10, func(lo, hi int) {
		calls++
		assert.Equal(t, 0, lo)
		assert.Equal(t, 50, hi)
	})
	assert.Equal(t, 1, calls)
}

func TestTaskListRunsEverything(t *testing.T) {
	var tl TaskList
	var sum atomic.Int64
	tl.AddRange(1000, 33, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			sum.Add(int64(i))
		}
	})
	tl.Add(func() { sum.Add(1) })
	assert.Equal(t, 32, tl.Len())
	tl.Run(true)
	assert.Equal(t, int64(999*1000/2+1), sum.Load())
	assert.Zero(t, tl.Len())
}

func TestTaskListSerialKeepsOrder(t *testing.T) {
	var tl TaskList
	var order []int
	for i := 0; i < 5; i++ {
		tl.Add(func() { order = append(order, i) })
	}
	tl.Run(false)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
