package parallel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition_Degenerate(t *testing.T) {
	assert.Equal(t, Plan{}, Partition(0, Uniform, 4))
	assert.Equal(t, Plan{}, Partition(-3, Cycles(100), 4))
	assert.Equal(t, Plan{Count: 1, Blocks: 1, BlockSize: 1}, Partition(1, Cycles(1e9), 4))
	assert.Equal(t, Plan{Count: 1000, Blocks: 1, BlockSize: 1000}, Partition(1000, Cycles(1e9), 0))
}

func TestPartition_CoversRange(t *testing.T) {
	costs := []Cost{
		Uniform,
		Cycles(1),
		Cycles(1e4),
		Cycles(1e6),
		{BytesLoaded: 64, BytesStored: 16, ComputeCycles: 200},
	}
	counts := []int{2, 3, 16, 17, 100, 1000, 4099, 123457}

	for _, threads := range []int{1, 3, 4, 7, 16} {
		for ci, cost := range costs {
			for _, count := range counts {
				t.Run(fmt.Sprintf("t%d/c%d/n%d", threads, ci, count), func(t *testing.T) {
					plan := Partition(count, cost, threads)
					require.GreaterOrEqual(t, plan.Blocks, 1)
					require.GreaterOrEqual(t, plan.BlockSize, 1)

					next := 0
					for b := 0; b < plan.Blocks; b++ {
						start, end := plan.Range(b)
						require.Equal(t, next, start, "gap or overlap before block %d", b)
						require.Greater(t, end, start, "empty block %d", b)
						next = end
					}
					require.Equal(t, count, next)
				})
			}
		}
	}
}

func TestPartition_UniformSplitsByThreads(t *testing.T) {
	plan := Partition(17, Uniform, 4)
	assert.Equal(t, 1, plan.BlockSize)
	assert.Equal(t, 17, plan.Blocks)

	plan = Partition(1000, Uniform, 4)
	assert.Equal(t, 50, plan.BlockSize)
	assert.Equal(t, 20, plan.Blocks)
}

func TestPartition_LargerCostSmallerBlocks(t *testing.T) {
	const count, threads = 100000, 8

	prev := count + 1
	for _, c := range []float64{10, 100, 1e3, 1e4, 1e5} {
		plan := Partition(count, Cycles(c), threads)
		assert.LessOrEqual(t, plan.BlockSize, prev, "cost %g", c)
		prev = plan.BlockSize
	}

	cheap := Partition(count, Cycles(10), threads)
	costly := Partition(count, Cycles(1e5), threads)
	assert.Greater(t, cheap.BlockSize, costly.BlockSize)
	assert.LessOrEqual(t, costly.Blocks, maxOversharding*(threads+1))
}

func TestPartition_CheapWorkRunsInline(t *testing.T) {
	plan := Partition(10, Cycles(1), 8)
	assert.True(t, plan.Inline())
	assert.Equal(t, 10, plan.BlockSize)
}

func TestPartition_BytesCount(t *testing.T) {
	// 64 bytes moved cost 11 cycles each way.
	assert.InDelta(t, 22.0, Cost{BytesLoaded: 64, BytesStored: 64}.cycles(), 1e-9)
	assert.False(t, Cost{BytesLoaded: 1}.IsUniform())
	assert.True(t, Uniform.IsUniform())
}

func TestPartitionWork(t *testing.T) {
	var ranges [][2]int
	for b := 0; b < 3; b++ {
		start, end := PartitionWork(b, 3, 10)
		ranges = append(ranges, [2]int{start, end})
	}
	assert.Equal(t, [][2]int{{0, 4}, {4, 7}, {7, 10}}, ranges)

	start, end := PartitionWork(4, 5, 5)
	assert.Equal(t, 4, start)
	assert.Equal(t, 5, end)
}
