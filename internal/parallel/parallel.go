// Package parallel provides the intra-process task scheduler used by the
// kernelpool CPU kernels.
package parallel

// DegreeOfParallelism returns the number of threads that take part in a
// ParallelFor on p: its workers plus the caller. A nil pool has one.
func DegreeOfParallelism(p ThreadPool) int {
	if p == nil {
		return 1
	}
	return p.NumThreads() + 1
}

// TryParallelFor runs fn over [0, n) on p, or as a single call when p is nil.
func TryParallelFor(p ThreadPool, n int, cost Cost, fn func(start, end int)) error {
	if p == nil {
		if n <= 0 {
			return nil
		}
		return asError(invokeRange(fn, 0, n))
	}
	return p.ParallelFor(n, cost, fn)
}

// TrySimpleParallelFor calls fn(i) for i in [0, n) on p, or sequentially
// when p is nil.
func TrySimpleParallelFor(p ThreadPool, n int, fn func(i int)) error {
	if p == nil {
		return TryParallelFor(nil, n, Uniform, func(start, end int) {
			for i := start; i < end; i++ {
				fn(i)
			}
		})
	}
	return p.SimpleParallelFor(n, fn)
}

// TryBatchParallelFor calls fn(i) for i in [0, total) grouped into
// numBatches contiguous batches, one block each. numBatches <= 0 uses one
// batch per participating thread.
func TryBatchParallelFor(p ThreadPool, total int, fn func(i int), numBatches int) error {
	if total <= 0 {
		return nil
	}
	if numBatches <= 0 {
		numBatches = min(total, DegreeOfParallelism(p))
	}
	if p == nil || numBatches == 1 {
		return TrySimpleParallelFor(nil, total, fn)
	}
	if numBatches >= total {
		return p.SimpleParallelFor(total, fn)
	}
	return p.SimpleParallelFor(numBatches, func(batch int) {
		start, end := PartitionWork(batch, numBatches, total)
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

// For executes f(i) for i in [0, n) on p, one contiguous batch per thread.
// Falls back to sequential execution if p is nil or has no workers.
func For(p ThreadPool, n int, f func(i int)) error {
	return TryBatchParallelFor(p, n, f, 0)
}

// ForBatch optimized for batch*channels iteration pattern.
// Common in CNN operations like Conv2D.
func ForBatch(p ThreadPool, batch, channels int, f func(b, c int)) error {
	n := batch * channels
	return TryBatchParallelFor(p, n, func(k int) {
		f(k/channels, k%channels)
	}, 0)
}
