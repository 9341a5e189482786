package parallel

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// ringEngine runs blocks popped from a shared ring by a fixed set of workers.
type ringEngine struct {
	q    *ring
	prof *profiler
	opts *Options
	_    cpu.CacheLinePad
	exit atomic.Bool
	_    cpu.CacheLinePad
}

func newRingEngine(opts *Options, prof *profiler) *ringEngine {
	return &ringEngine{q: newRing(opts.QueueCapacity), prof: prof, opts: opts}
}

func (e *ringEngine) dispatch(j job) (int, bool) {
	at := e.q.push(j)
	return at, at >= 0
}

// join takes unclaimed blocks from node at until none remain, then waits for
// the blocks other threads claimed, collects the first failure and recycles
// the node.
func (e *ringEngine) join(at int) error {
	for {
		r := e.q.popAt(at)
		if !r.ok() {
			break
		}
		r.t.runBlock(r.block, e.prof.stats(callerID))
		e.q.complete(r)
	}

	if !e.q.finished(at) {
		began := time.Now()
		s := newSpinner(e.opts.SpinCount, e.opts.WaitMaxSleep)
		for !e.q.finished(at) {
			s.wait()
		}
		e.prof.addWait(time.Since(began))
	}
	err := e.q.nodes[at].t.failure()
	e.q.release(at)
	return err
}

func (e *ringEngine) loop(id int) {
	s := newSpinner(e.opts.SpinCount, e.opts.IdleMaxSleep)
	for !e.exit.Load() {
		r := e.q.pop()
		if !r.ok() {
			e.prof.idle(id)
			s.wait()
			continue
		}
		s.reset()
		r.t.runBlock(r.block, e.prof.stats(id))
		e.q.complete(r)
	}
}

func (e *ringEngine) stop() {
	e.exit.Store(true)
}

// drain runs every block still in the ring on the calling thread.
func (e *ringEngine) drain() int {
	blocks := 0
	for {
		r := e.q.pop()
		if !r.ok() {
			return blocks
		}
		r.t.runBlock(r.block, nil)
		e.q.complete(r)
		blocks++
	}
}
