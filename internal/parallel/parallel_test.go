package parallel

import (
	"sync/atomic"
	"testing"
)

// recordingPool runs everything on the caller and records the shape of
// every call it receives.
type recordingPool struct {
	threads int
	simple  []int
}

func (r *recordingPool) NumThreads() int { return r.threads }

func (r *recordingPool) ParallelFor(n int, _ Cost, fn func(start, end int)) error {
	if n > 0 {
		fn(0, n)
	}
	return nil
}

func (r *recordingPool) SimpleParallelFor(n int, fn func(i int)) error {
	r.simple = append(r.simple, n)
	for i := 0; i < n; i++ {
		fn(i)
	}
	return nil
}

func (r *recordingPool) Schedule(fn func()) error {
	fn()
	return nil
}

func (r *recordingPool) StartProfiling() {}
func (r *recordingPool) StopProfiling() string { return "{}" }

func TestFor(t *testing.T) {
	p := newTestPool(t, EngineRing, 3)

	var counter int64
	n := 1000

	if err := For(p, n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}); err != nil {
		t.Fatal(err)
	}

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForBatch(t *testing.T) {
	p := newTestPool(t, EngineSlot, 3)

	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	if err := ForBatch(p, batch, channels, func(b, c int) {
		results[b][c] = true
	}); err != nil {
		t.Fatal(err)
	}

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			if !results[b][c] {
				t.Errorf("Missing result at [%d][%d]", b, c)
			}
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	var counter int64
	if err := For(nil, 100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}); err != nil {
		t.Fatal(err)
	}

	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestDegreeOfParallelism(t *testing.T) {
	if got := DegreeOfParallelism(nil); got != 1 {
		t.Errorf("Expected 1 for nil pool, got %d", got)
	}
	if got := DegreeOfParallelism(&recordingPool{threads: 5}); got != 6 {
		t.Errorf("Expected 6, got %d", got)
	}
}

func TestTryBatchParallelFor(t *testing.T) {
	tests := []struct {
		name       string
		threads    int
		total      int
		numBatches int
		want       []int // SimpleParallelFor sizes.
	}{
		{"default batches", 3, 100, 0, []int{4}},
		{"explicit batches", 3, 100, 7, []int{7}},
		{"more batches than items", 3, 5, 9, []int{5}},
		{"fewer items than threads", 7, 3, 0, []int{3}},
		{"single batch", 3, 100, 1, nil},
		{"empty", 3, 0, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingPool{threads: tt.threads}
			seen := make([]int, tt.total)
			if err := TryBatchParallelFor(p, tt.total, func(i int) { seen[i]++ }, tt.numBatches); err != nil {
				t.Fatal(err)
			}
			for i, n := range seen {
				if n != 1 {
					t.Errorf("index %d visited %d times", i, n)
				}
			}
			if len(p.simple) != len(tt.want) {
				t.Fatalf("Expected calls %v, got %v", tt.want, p.simple)
			}
			for i := range tt.want {
				if p.simple[i] != tt.want[i] {
					t.Errorf("Expected calls %v, got %v", tt.want, p.simple)
				}
			}
		})
	}
}

func TestTryParallelFor_NilPool(t *testing.T) {
	var calls int
	err := TryParallelFor(nil, 10, Uniform, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("Expected [0, 10), got [%d, %d)", start, end)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}

	err = TrySimpleParallelFor(nil, 3, func(i int) { panic(i) })
	if _, ok := err.(*PanicError); !ok {
		t.Errorf("Expected *PanicError, got %v", err)
	}
}

func BenchmarkFor(b *testing.B) {
	p, err := New(DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	defer p.Close()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			_ = For(p, n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			})
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			_ = For(nil, n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			})
		}
	})
}

func BenchmarkForBatch(b *testing.B) {
	p, err := New(DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	defer p.Close()
	batch, channels := 16, 64

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			_ = ForBatch(p, batch, channels, func(bc, c int) {
				atomic.AddInt64(&sum, int64(bc*channels+c))
			})
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			_ = ForBatch(nil, batch, channels, func(bc, c int) {
				atomic.AddInt64(&sum, int64(bc*channels+c))
			})
		}
	})
}
