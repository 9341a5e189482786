package parallel

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// Slot lifecycle stages.
const (
	stageEmpty uint32 = iota
	stageLoading
	stageReady
	stageRunning
	stageDone
)

// slot hands one task to its dedicated worker. t and the stage transition
// out of loading are written by the submitter, which owns the slot between
// the empty→loading and loading→ready transitions and again once it
// observes done. own is the slot's resident task: a detached job is loaded
// into the slot's own task, and a loop job into the own task of the first
// slot it acquires, which every other slot of that job points at.
type slot struct {
	stage atomic.Uint32
	_     cpu.CacheLinePad
	t     *task
	own   task
	_     cpu.CacheLinePad
}

// slotEngine is the simple engine: at most MaxSlots slots, one worker each.
// Loop tasks are shared through the task's own block counter, so the
// submitter and every slot it loaded drain the same range.
type slotEngine struct {
	slots []slot
	prof  *profiler
	opts  *Options
	_     cpu.CacheLinePad
	exit  atomic.Bool
	_     cpu.CacheLinePad
}

// slotMask selects the loaded-slot bits of a ticket. The bits above it hold
// the index of the slot whose own task carries the job.
const slotMask = 1<<MaxSlots - 1

func newSlotEngine(opts *Options, prof *profiler) *slotEngine {
	return &slotEngine{slots: make([]slot, opts.NumThreads), prof: prof, opts: opts}
}

// acquire moves an empty slot to loading and returns its index, or -1.
func (e *slotEngine) acquire(skip uint64) int {
	for i := range e.slots {
		if skip&(1<<i) != 0 {
			continue
		}
		if e.slots[i].stage.CompareAndSwap(stageEmpty, stageLoading) {
			return i
		}
	}
	return -1
}

func (e *slotEngine) publish(i int, t *task) {
	e.slots[i].t = t
	e.slots[i].stage.Store(stageReady)
}

// dispatch loads j into slots. A detached job takes one slot. A loop job
// takes up to one slot per block beyond the caller's share.
func (e *slotEngine) dispatch(j job) (int, bool) {
	first := e.acquire(0)
	if first < 0 {
		return 0, false
	}
	t := &e.slots[first].own
	t.load(j)
	e.publish(first, t)
	mask := uint64(1) << first
	if j.detached() {
		return int(mask), true
	}

	want := min(j.plan.Blocks-1, len(e.slots))
	for n := 1; n < want; n++ {
		i := e.acquire(mask)
		if i < 0 {
			break
		}
		e.publish(i, t)
		mask |= 1 << i
	}
	return int(mask) | first<<MaxSlots, true
}

// claimLoop runs blocks of t until its counter passes the last block.
func (e *slotEngine) claimLoop(t *task, id int) {
	for {
		b := int(t.next.Add(1)) - 1
		if b >= t.plan.Blocks {
			return
		}
		t.runBlock(b, e.prof.stats(id))
	}
}

// join runs the job's blocks on the caller, then takes back every slot it
// loaded: slots no worker picked up are revoked, running ones are waited
// for. The slot holding the job is taken back last.
func (e *slotEngine) join(ticket int) error {
	mask := uint64(ticket) & slotMask
	first := ticket >> MaxSlots
	t := &e.slots[first].own
	e.claimLoop(t, callerID)

	w := waiter{e: e}
	for i := range e.slots {
		if i != first && mask&(1<<i) != 0 {
			w.settle(&e.slots[i])
		}
	}
	w.settle(&e.slots[first])
	if !w.began.IsZero() {
		e.prof.addWait(time.Since(w.began))
	}

	err := t.failure()
	t.job = job{}
	e.recycle(&e.slots[first])
	return err
}

// waiter takes slots back for join and tracks how long that blocked.
type waiter struct {
	e     *slotEngine
	s     spinner
	began time.Time
}

// settle returns once no worker uses sl. A slot still ready is revoked. Only
// the slot owning the job is left for the caller to recycle.
func (w *waiter) settle(sl *slot) {
	if !sl.stage.CompareAndSwap(stageReady, stageLoading) {
		for sl.stage.Load() != stageDone {
			if w.began.IsZero() {
				w.began = time.Now()
				w.s = newSpinner(w.e.opts.SpinCount, w.e.opts.WaitMaxSleep)
			}
			w.s.wait()
		}
	}
	if sl.t != &sl.own {
		w.e.recycle(sl)
	}
}

func (e *slotEngine) recycle(sl *slot) {
	sl.t = nil
	sl.stage.Store(stageEmpty)
}

// run executes the ready task of sl, which the caller moved to running.
func (e *slotEngine) run(sl *slot, id int) {
	t := sl.t
	if t.detached() {
		t.runBlock(0, e.prof.stats(id))
		t.job = job{}
		e.recycle(sl)
		return
	}
	e.claimLoop(t, id)
	sl.stage.Store(stageDone)
}

func (e *slotEngine) loop(id int) {
	sl := &e.slots[id]
	s := newSpinner(e.opts.SpinCount, e.opts.IdleMaxSleep)
	for !e.exit.Load() {
		if sl.stage.Load() == stageReady && sl.stage.CompareAndSwap(stageReady, stageRunning) {
			s.reset()
			e.run(sl, id)
			continue
		}
		e.prof.idle(id)
		s.wait()
	}
}

func (e *slotEngine) stop() {
	e.exit.Store(true)
}

// drain runs every task left ready after the workers exited.
func (e *slotEngine) drain() int {
	tasks := 0
	for i := range e.slots {
		sl := &e.slots[i]
		if sl.stage.CompareAndSwap(stageReady, stageRunning) {
			e.run(sl, noStats)
			tasks++
		}
	}
	return tasks
}
