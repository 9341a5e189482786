package parallel

import (
	"fmt"
	"runtime"
)

// ThreadSpec describes one worker thread to start.
type ThreadSpec struct {
	Name              string
	Index             int
	StackSize         int
	CPU               int // CPU to pin the thread to, -1 for none.
	SetDenormalAsZero bool
}

// Env is the pool's view of the host: it spawns worker threads and reports
// the number of cores.
type Env interface {
	NumCPU() int
	// StartThread runs fn on a new thread configured by spec. When it
	// returns an error fn is never called.
	StartThread(spec ThreadSpec, fn func()) error
}

// defaultEnv runs each worker on a goroutine locked to its own OS thread.
// The goroutine never unlocks, so a thread whose affinity or floating point
// mode was changed is destroyed with its worker instead of being reused.
type defaultEnv struct{}

func (defaultEnv) NumCPU() int {
	return runtime.NumCPU()
}

func (defaultEnv) StartThread(spec ThreadSpec, fn func()) error {
	started := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		if spec.CPU >= 0 {
			if err := setAffinity(spec.CPU); err != nil {
				started <- fmt.Errorf("pin %s to cpu %d: %w", spec.Name, spec.CPU, err)
				return
			}
		}
		if spec.SetDenormalAsZero {
			setDenormalAsZero()
		}
		started <- nil
		fn()
	}()
	return <-started
}
