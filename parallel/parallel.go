// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package parallel

import (
	internal "github.com/born-ml/kernelpool/internal/parallel"
)

// ThreadPool is the scheduler contract kernels are written against.
type ThreadPool = internal.ThreadPool

// Pool is the thread pool implementation.
type Pool = internal.Pool

// Compile-time check that Pool implements ThreadPool.
var _ ThreadPool = (*Pool)(nil)

// Options controls pool construction.
type Options = internal.Options

// Engine selects the scheduler implementation behind a Pool.
type Engine = internal.Engine

// Env spawns worker threads; replace it to control thread creation.
type Env = internal.Env

// ThreadSpec describes one worker thread to start.
type ThreadSpec = internal.ThreadSpec

// Cost estimates the work needed to process one item.
type Cost = internal.Cost

// Plan is a partition of a range into equally sized blocks.
type Plan = internal.Plan

// PanicError reports a panic raised by pool work.
type PanicError = internal.PanicError

// Available engines.
const (
	EngineRing = internal.EngineRing
	EngineSlot = internal.EngineSlot
	MaxSlots   = internal.MaxSlots
)

// Common errors.
var (
	ErrClosed         = internal.ErrClosed
	ErrThreadStart    = internal.ErrThreadStart
	ErrInvalidOptions = internal.ErrInvalidOptions
)

// Uniform is the cost hint for work whose per-item cost is unknown.
var Uniform = internal.Uniform

// New starts a pool configured by opts.
func New(opts Options) (*Pool, error) {
	return internal.New(opts)
}

// DefaultOptions returns options with one worker per core, less the caller.
func DefaultOptions() Options {
	return internal.DefaultOptions()
}

// Cycles returns a cost hint of c compute cycles per item.
func Cycles(c float64) Cost {
	return internal.Cycles(c)
}

// Partition returns the blocks ParallelFor would use for count items.
func Partition(count int, cost Cost, threads int) Plan {
	return internal.Partition(count, cost, threads)
}

// DegreeOfParallelism returns the worker count of p plus the caller.
func DegreeOfParallelism(p ThreadPool) int {
	return internal.DegreeOfParallelism(p)
}

// TryParallelFor runs fn over [0, n) on p, or inline when p is nil.
func TryParallelFor(p ThreadPool, n int, cost Cost, fn func(start, end int)) error {
	return internal.TryParallelFor(p, n, cost, fn)
}

// TrySimpleParallelFor calls fn(i) for i in [0, n) on p, or inline when p is nil.
func TrySimpleParallelFor(p ThreadPool, n int, fn func(i int)) error {
	return internal.TrySimpleParallelFor(p, n, fn)
}

// TryBatchParallelFor calls fn(i) for i in [0, total) in numBatches
// contiguous batches.
func TryBatchParallelFor(p ThreadPool, total int, fn func(i int), numBatches int) error {
	return internal.TryBatchParallelFor(p, total, fn, numBatches)
}

// For calls f(i) for every i in [0, n), one batch per thread.
func For(p ThreadPool, n int, f func(i int)) error {
	return internal.For(p, n, f)
}

// ForBatch calls f(b, c) for every batch and channel pair.
func ForBatch(p ThreadPool, batch, channels int, f func(b, c int)) error {
	return internal.ForBatch(p, batch, channels, f)
}
