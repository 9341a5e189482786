// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package parallel_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernelpool/parallel"
)

func TestPublicAPI(t *testing.T) {
	opts := parallel.DefaultOptions()
	opts.NumThreads = 2
	opts.Engine = parallel.EngineSlot
	pool, err := parallel.New(opts)
	require.NoError(t, err)
	defer pool.Close()

	assert.Equal(t, 3, parallel.DegreeOfParallelism(pool))

	var sum atomic.Int64
	require.NoError(t, parallel.For(pool, 100, func(i int) { sum.Add(int64(i)) }))
	assert.Equal(t, int64(4950), sum.Load())

	require.NoError(t, pool.Close())
	assert.ErrorIs(t, pool.Schedule(func() {}), parallel.ErrClosed)
}

func ExamplePool_ParallelFor() {
	pool, err := parallel.New(parallel.Options{NumThreads: 3})
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	in := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	out := make([]float32, len(in))
	err = pool.ParallelFor(len(in), parallel.Uniform, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = in[i] * 2
		}
	})
	fmt.Println(out, err)
	// Output: [2 4 6 8 10 12 14 16] <nil>
}

func ExamplePartition() {
	plan := parallel.Partition(17, parallel.Uniform, 4)
	for b := 0; b < plan.Blocks; b += 8 {
		start, end := plan.Range(b)
		fmt.Println(b, start, end)
	}
	// Output:
	// 0 0 1
	// 8 8 9
	// 16 16 17
}
