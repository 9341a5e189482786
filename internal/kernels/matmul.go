package kernels

import "github.com/born-ml/kernelpool/internal/parallel"

const float32Bytes = 4

// MatMul computes a @ b for (M, K) @ (K, N) -> (M, N).
// Rows of the result are distributed over p.
func MatMul(p parallel.ThreadPool, a, b *Matrix) (*Matrix, error) {
	if a.Cols != b.Rows {
		return nil, &ShapeError{Op: "matmul", A: a.Shape(), B: b.Shape(), Err: ErrShapeMismatch}
	}

	m, k, n := a.Rows, a.Cols, b.Cols
	c := &Matrix{Rows: m, Cols: n, Data: make([]float32, m*n)}

	// One item is one output row: a row of a and all of b in, a row of c out.
	cost := parallel.Cost{
		BytesLoaded:   float64((k + k*n) * float32Bytes),
		BytesStored:   float64(n * float32Bytes),
		ComputeCycles: float64(2 * k * n),
	}
	err := parallel.TryParallelFor(p, m, cost, func(start, end int) {
		matmulRows(c.Data, a.Data, b.Data, start, end, k, n)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// matmulRows computes rows [start, end) of C[i,j] = sum_k A[i,k] * B[k,j].
// The i-k-j order streams through rows of b.
func matmulRows(c, a, b []float32, start, end, k, n int) {
	for i := start; i < end; i++ {
		ci := c[i*n : (i+1)*n]
		for kIdx := 0; kIdx < k; kIdx++ {
			aik := a[i*k+kIdx]
			bk := b[kIdx*n : (kIdx+1)*n]
			for j := range ci {
				ci[j] += aik * bk[j]
			}
		}
	}
}
