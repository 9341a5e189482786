package parallel

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"
)

// ThreadPool is the scheduler contract used by kernels.
type ThreadPool interface {
	// NumThreads returns the number of worker threads, excluding the caller.
	NumThreads() int
	// ParallelFor calls fn on disjoint sub-ranges covering [0, n) and returns
	// once every call has finished. The first panic raised by fn is returned.
	ParallelFor(n int, cost Cost, fn func(start, end int)) error
	// SimpleParallelFor calls fn once for every index in [0, n).
	SimpleParallelFor(n int, fn func(i int)) error
	// Schedule runs fn once, asynchronously.
	Schedule(fn func()) error
	StartProfiling()
	StopProfiling() string
}

// engine is the part of a pool that differs between scheduler
// implementations. Partitioning, fallbacks and lifecycle live in Pool.
type engine interface {
	// dispatch loads j into engine storage, hands it to the workers and
	// returns a ticket for join, or false when there is no free capacity.
	dispatch(j job) (ticket int, ok bool)
	// join runs unclaimed blocks of the loop job behind ticket on the
	// caller, returns once all of its blocks are done and reports the first
	// failure.
	join(ticket int) error
	// loop is the body of worker id. It returns after stop.
	loop(id int)
	stop()
	// drain runs work still queued after every worker exited.
	drain() int
}

// Pool lifecycle states.
const (
	stateRunning int32 = iota
	stateShuttingDown
	stateJoined
)

// Pool is a fixed set of worker threads executing kernel ranges.
//
// Calls may come from any goroutine, including the pool's own workers. A
// caller always takes part in its own ParallelFor, so a call makes progress
// even when every worker is busy.
//
// Close may be called while ParallelFor calls are in flight: it waits for
// them, stops the workers, and then runs any scheduled work that no worker
// got to on the closing goroutine. Work submitted after Close starts runs
// synchronously (ParallelFor) or is rejected with ErrClosed (Schedule).
//
// A nil *Pool runs everything on the caller.
type Pool struct {
	opts     Options
	log      *zap.Logger
	eng      engine
	prof     *profiler
	threads  int
	reportFn func(error)

	_          cpu.CacheLinePad
	state      atomic.Int32
	_          cpu.CacheLinePad
	submitters atomic.Int64
	_          cpu.CacheLinePad
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var _ ThreadPool = (*Pool)(nil)

// New starts a pool configured by opts.
func New(opts Options) (*Pool, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	p := &Pool{
		opts:    opts,
		log:     opts.Logger.Named(opts.Name),
		threads: opts.NumThreads,
		prof:    newProfiler(opts.Name, opts.Engine, opts.NumThreads),
	}
	p.reportFn = p.reportScheduled

	switch opts.Engine {
	case EngineSlot:
		p.eng = newSlotEngine(&p.opts, p.prof)
	default:
		p.eng = newRingEngine(&p.opts, p.prof)
	}

	if opts.StackSize > 0 {
		p.log.Debug("stack size ignored, goroutine stacks grow on demand", zap.Int("stack_size", opts.StackSize))
	}
	if opts.SetDenormalAsZero && !denormalSupported {
		p.log.Warn("denormals-as-zero is not supported on this architecture", zap.String("arch", runtime.GOARCH))
	}

	for i := range p.threads {
		spec := p.opts.threadSpec(i)
		p.wg.Add(1)
		err := p.opts.Env.StartThread(spec, func() {
			defer p.wg.Done()
			p.eng.loop(i)
		})
		if err != nil {
			p.wg.Done()
			p.eng.stop()
			p.wg.Wait()
			p.state.Store(stateJoined)
			p.log.Error("thread pool construction failed", zap.String("thread", spec.Name), zap.Error(err))
			return nil, fmt.Errorf("%w %s: %w", ErrThreadStart, spec.Name, err)
		}
	}

	p.log.Debug("thread pool started",
		zap.String("engine", string(opts.Engine)),
		zap.Int("threads", p.threads),
		zap.Int("queue_capacity", opts.QueueCapacity),
		zap.Ints("affinity", opts.Affinity),
		zap.Bool("denormal_as_zero", opts.SetDenormalAsZero))
	return p, nil
}

// NumThreads returns the number of worker threads, excluding the caller.
func (p *Pool) NumThreads() int {
	if p == nil {
		return 0
	}
	return p.threads
}

// Engine returns the scheduler implementation of the pool.
func (p *Pool) Engine() Engine {
	if p == nil {
		return ""
	}
	return p.opts.Engine
}

// ParallelFor splits [0, n) into blocks sized by cost and runs fn on every
// block, on the workers and the calling goroutine. It returns after every
// block has finished; their writes are visible to the caller. If any call
// panics, the other blocks still run and the first panic is returned as a
// *PanicError.
//
// With n <= 1, no worker threads, or a cost too small to be worth sharing,
// fn(0, n) runs on the caller.
func (p *Pool) ParallelFor(n int, cost Cost, fn func(start, end int)) error {
	if n <= 0 {
		return nil
	}
	if p == nil {
		return asError(invokeRange(fn, 0, n))
	}
	return p.run(loopJob(Partition(n, cost, p.threads), fn))
}

// SimpleParallelFor calls fn(i) for every i in [0, n), one index per block.
func (p *Pool) SimpleParallelFor(n int, fn func(i int)) error {
	if n <= 0 {
		return nil
	}
	if p == nil {
		j := eachJob(Plan{}, fn)
		return asError(invokeJob(&j, 0, n))
	}
	if n == 1 || p.threads == 0 {
		return p.run(eachJob(Plan{Count: n, Blocks: 1, BlockSize: n}, fn))
	}
	return p.run(eachJob(Plan{Count: n, Blocks: n, BlockSize: 1}, fn))
}

// maxBlocks is the most blocks a ring node can count.
const maxBlocks = math.MaxInt32

func (p *Pool) run(j job) error {
	p.prof.count(&p.prof.caller.calls)
	if j.plan.Inline() || p.threads == 0 {
		return p.inline(j)
	}
	if j.plan.Blocks > maxBlocks {
		j.plan = newPlan(j.plan.Count, ceilDiv(j.plan.Count, maxBlocks))
	}

	if !p.enter() {
		return p.inline(j)
	}
	defer p.submitters.Add(-1)

	ticket, ok := p.submit(j)
	if !ok {
		return p.inline(j)
	}
	return p.eng.join(ticket)
}

// enter registers a submitter while the pool is running. Close waits for
// every registered submitter before it stops the workers.
func (p *Pool) enter() bool {
	if p.state.Load() != stateRunning {
		return false
	}
	p.submitters.Add(1)
	if p.state.Load() != stateRunning {
		p.submitters.Add(-1)
		return false
	}
	return true
}

// inline runs the whole range of j as a single call on the caller.
func (p *Pool) inline(j job) error {
	p.prof.count(&p.prof.caller.inline)
	st := p.prof.stats(callerID)
	var began time.Time
	if st != nil {
		began = time.Now()
	}
	err := invokeJob(&j, 0, j.plan.Count)
	if st != nil {
		st.record(time.Since(began))
	}
	return asError(err)
}

// submit dispatches j, backing off exponentially while the engine is full.
// It gives up after SaturationRetries rounds so the caller can run the work
// itself instead of waiting on a saturated pool.
func (p *Pool) submit(j job) (int, bool) {
	if ticket, ok := p.eng.dispatch(j); ok {
		return ticket, true
	}

	b := backoff.ExponentialBackOff{
		InitialInterval:     minSleep,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         max(p.opts.WaitMaxSleep, minSleep),
	}
	b.Reset()
	for range p.opts.SaturationRetries {
		time.Sleep(b.NextBackOff())
		if ticket, ok := p.eng.dispatch(j); ok {
			return ticket, true
		}
	}

	p.prof.count(&p.prof.caller.saturated)
	p.log.Debug("scheduler saturated, running on caller",
		zap.Int("blocks", j.plan.Blocks),
		zap.Bool("detached", j.detached()))
	return 0, false
}

// Schedule runs fn once on a worker without waiting for it.
//
// If the pool has no workers, or stays saturated through the backoff rounds,
// fn runs on the caller before Schedule returns. A panic in fn is logged and
// passed to Options.PanicHandler; it is never returned to any caller.
// Schedule returns ErrClosed once Close has started. On a nil *Pool fn runs
// on the caller and its panic is returned.
func (p *Pool) Schedule(fn func()) error {
	if fn == nil {
		return nil
	}
	if p == nil {
		return asError(invokeScheduled(fn))
	}

	if !p.enter() {
		return ErrClosed
	}
	defer p.submitters.Add(-1)
	p.prof.count(&p.prof.caller.scheduled)

	j := scheduledJob(fn, p.reportFn)
	if p.threads > 0 {
		if _, ok := p.submit(j); ok {
			return nil
		}
	}
	var t task
	t.load(j)
	t.runBlock(0, p.prof.stats(callerID))
	return nil
}

func (p *Pool) reportScheduled(err error) {
	p.prof.count(&p.prof.caller.failures)

	var pe *PanicError
	if errors.As(err, &pe) {
		p.log.Error("scheduled task panicked", zap.Any("panic", pe.Value), zap.ByteString("stack", pe.Stack))
	} else {
		p.log.Error("scheduled task failed", zap.Error(err))
	}
	if p.opts.PanicHandler != nil {
		p.opts.PanicHandler(err)
	}
}

// StartProfiling resets and enables per-thread timing capture.
func (p *Pool) StartProfiling() {
	if p == nil {
		return
	}
	p.prof.start()
}

// StopProfiling disables timing capture and returns a JSON report of what
// was recorded since StartProfiling. It returns "{}" if profiling was off.
func (p *Pool) StopProfiling() string {
	if p == nil {
		return "{}"
	}
	return p.prof.stop()
}

// Close waits for in-flight calls, stops and joins every worker, and runs
// scheduled work left in the engine. It is safe to call more than once, but
// not from inside work running on the pool.
func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		p.state.Store(stateShuttingDown)

		s := newSpinner(p.opts.SpinCount, p.opts.WaitMaxSleep)
		for p.submitters.Load() > 0 {
			s.wait()
		}

		p.eng.stop()
		p.wg.Wait()
		drained := p.eng.drain()
		p.state.Store(stateJoined)

		p.log.Debug("thread pool closed", zap.Int("threads", p.threads), zap.Int("drained", drained))
	})
	return nil
}
