// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package parallel provides the thread pool that kernelpool kernels use to
// spread array work across CPU cores.
//
// # Overview
//
// A Pool owns a fixed set of worker threads. The calling goroutine always
// takes part in its own ParallelFor, so a pool of N workers runs blocks on
// N+1 threads. Two engines are available:
//   - EngineRing: a bounded ring of task nodes shared by all workers (default)
//   - EngineSlot: up to MaxSlots slots, one dedicated worker each
//
// # Basic Usage
//
//	import "github.com/born-ml/kernelpool/parallel"
//
//	func main() {
//	    pool, err := parallel.New(parallel.DefaultOptions())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer pool.Close()
//
//	    out := make([]float32, len(in))
//	    err = pool.ParallelFor(len(in), parallel.Cycles(4), func(start, end int) {
//	        for i := start; i < end; i++ {
//	            out[i] = in[i] * 2
//	        }
//	    })
//	}
//
// # Cost Hints
//
// The Cost passed to ParallelFor sets the block size. Expensive items give
// small blocks; cheap ranges run inline on the caller. Uniform splits by
// thread count alone.
//
// # Failures
//
// A panic inside a block is recovered. The remaining blocks still run and
// the first panic is returned as a *PanicError. Panics in scheduled work go
// to Options.PanicHandler.
package parallel
