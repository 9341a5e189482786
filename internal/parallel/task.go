package parallel

import (
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// job is what a submitter hands to an engine. Exactly one of fn, each and
// sched is set.
type job struct {
	fn     func(start, end int) // ParallelFor body.
	each   func(i int)          // SimpleParallelFor body.
	sched  func()               // Schedule body.
	report func(error)          // Failure sink of scheduled work.
	plan   Plan
}

func loopJob(plan Plan, fn func(start, end int)) job {
	return job{fn: fn, plan: plan}
}

func eachJob(plan Plan, fn func(i int)) job {
	return job{each: fn, plan: plan}
}

func scheduledJob(fn func(), report func(error)) job {
	return job{sched: fn, report: report, plan: Plan{Count: 1, Blocks: 1, BlockSize: 1}}
}

func (j *job) detached() bool {
	return j.sched != nil
}

// task is a job loaded into engine-owned storage: a ring node or a slot.
// Tasks live as long as their engine and are reloaded for every
// submission. The job is written by the submitter before the task is
// published and only read while the reader holds a claimed block or runs
// the slot, so a load never races with a reader of the previous job.
type task struct {
	job
	_    cpu.CacheLinePad
	next atomic.Int64 // Next unclaimed block, slot engine only.
	_    cpu.CacheLinePad
	err  atomic.Pointer[PanicError]
}

func (t *task) load(j job) {
	t.job = j
	t.next.Store(0)
	t.err.Store(nil)
}

// runBlock executes block b and records a panic as the task's failure.
// st is nil when profiling is off.
func (t *task) runBlock(b int, st *threadStats) {
	var began time.Time
	if st != nil {
		began = time.Now()
	}

	var err *PanicError
	if t.detached() {
		err = invokeScheduled(t.sched)
	} else {
		start, end := t.plan.Range(b)
		err = invokeJob(&t.job, start, end)
	}
	if err != nil {
		t.fail(err)
	}

	if st != nil {
		st.record(time.Since(began))
	}
}

// fail keeps the first failure. Detached tasks forward it to their sink.
func (t *task) fail(err *PanicError) {
	if !t.err.CompareAndSwap(nil, err) {
		return
	}
	if t.detached() && t.report != nil {
		t.report(err)
	}
}

// failure returns the first recorded failure, or nil.
func (t *task) failure() error {
	if err := t.err.Load(); err != nil {
		return err
	}
	return nil
}

// invokeJob runs the loop body of j over [start, end).
func invokeJob(j *job, start, end int) (err *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack(), Range: [2]int{start, end}}
		}
	}()
	if j.each != nil {
		for i := start; i < end; i++ {
			j.each(i)
		}
		return nil
	}
	j.fn(start, end)
	return nil
}

func invokeRange(fn func(start, end int), start, end int) *PanicError {
	return invokeJob(&job{fn: fn}, start, end)
}

func invokeScheduled(fn func()) (err *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}

// asError converts a possibly nil *PanicError without producing a typed nil.
func asError(err *PanicError) error {
	if err != nil {
		return err
	}
	return nil
}
