package parallel

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// threadStats is written by a single thread and read by StopProfiling.
type threadStats struct {
	blocks atomic.Int64
	busy   atomic.Int64 // Nanoseconds spent inside block callables.
	idle   atomic.Int64 // Polls that found no work.
	_      cpu.CacheLinePad
}

func (s *threadStats) record(d time.Duration) {
	s.blocks.Add(1)
	s.busy.Add(int64(d))
}

func (s *threadStats) reset() {
	s.blocks.Store(0)
	s.busy.Store(0)
	s.idle.Store(0)
}

// callerStats aggregates every thread calling into the pool.
type callerStats struct {
	threadStats
	calls     atomic.Int64 // ParallelFor and SimpleParallelFor calls.
	inline    atomic.Int64 // Calls that ran synchronously on the caller.
	saturated atomic.Int64 // Submissions that found no free capacity.
	scheduled atomic.Int64 // Schedule calls accepted.
	failures  atomic.Int64 // Scheduled tasks that panicked.
	wait      atomic.Int64 // Nanoseconds callers spent waiting for workers.
	_         cpu.CacheLinePad
}

func (s *callerStats) reset() {
	s.threadStats.reset()
	s.calls.Store(0)
	s.inline.Store(0)
	s.saturated.Store(0)
	s.scheduled.Store(0)
	s.failures.Store(0)
	s.wait.Store(0)
}

// profiler records per-thread timings between StartProfiling and
// StopProfiling. When disabled it costs one atomic load per block.
type profiler struct {
	enabled atomic.Bool
	started atomic.Int64
	name    string
	engine  Engine
	workers []threadStats
	caller  callerStats
}

func newProfiler(name string, engine Engine, threads int) *profiler {
	return &profiler{name: name, engine: engine, workers: make([]threadStats, threads)}
}

func (p *profiler) start() {
	for i := range p.workers {
		p.workers[i].reset()
	}
	p.caller.reset()
	p.started.Store(time.Now().UnixNano())
	p.enabled.Store(true)
}

// Thread ids accepted by stats besides worker indices.
const (
	callerID = -1 // Any goroutine calling into the pool.
	noStats  = -2 // Work run outside the profiled threads, such as drain.
)

// stats returns the stats of thread id, or nil when profiling is off.
func (p *profiler) stats(id int) *threadStats {
	if id == noStats || !p.enabled.Load() {
		return nil
	}
	if id == callerID {
		return &p.caller.threadStats
	}
	return &p.workers[id]
}

func (p *profiler) idle(id int) {
	if st := p.stats(id); st != nil {
		st.idle.Add(1)
	}
}

type threadReport struct {
	Thread   string  `json:"thread"`
	Blocks   int64   `json:"blocks"`
	BusyUs   float64 `json:"busy_us"`
	IdlePoll int64   `json:"idle_polls"`
}

type mainReport struct {
	threadReport
	Calls     int64   `json:"calls"`
	Inline    int64   `json:"inline"`
	Saturated int64   `json:"saturated"`
	Scheduled int64   `json:"scheduled"`
	Failures  int64   `json:"failures"`
	WaitUs    float64 `json:"wait_us"`
}

type profileReport struct {
	Name      string         `json:"name"`
	Engine    Engine         `json:"engine"`
	Threads   int            `json:"threads"`
	ElapsedUs float64        `json:"elapsed_us"`
	Main      mainReport     `json:"main"`
	Workers   []threadReport `json:"workers"`
}

func (s *threadStats) report(name string) threadReport {
	return threadReport{
		Thread:   name,
		Blocks:   s.blocks.Load(),
		BusyUs:   micros(s.busy.Load()),
		IdlePoll: s.idle.Load(),
	}
}

// count adds one to a caller counter when profiling is on.
func (p *profiler) count(c *atomic.Int64) {
	if p.enabled.Load() {
		c.Add(1)
	}
}

func (p *profiler) addWait(d time.Duration) {
	if p.enabled.Load() {
		p.caller.wait.Add(int64(d))
	}
}

// stop disables recording and renders the JSON report.
func (p *profiler) stop() string {
	if !p.enabled.Swap(false) {
		return "{}"
	}

	rep := profileReport{
		Name:      p.name,
		Engine:    p.engine,
		Threads:   len(p.workers),
		ElapsedUs: micros(time.Now().UnixNano() - p.started.Load()),
		Main: mainReport{
			threadReport: p.caller.threadStats.report("main"),
			Calls:        p.caller.calls.Load(),
			Inline:       p.caller.inline.Load(),
			Saturated:    p.caller.saturated.Load(),
			Scheduled:    p.caller.scheduled.Load(),
			Failures:     p.caller.failures.Load(),
			WaitUs:       micros(p.caller.wait.Load()),
		},
		Workers: make([]threadReport, len(p.workers)),
	}
	for i := range p.workers {
		rep.Workers[i] = p.workers[i].report(threadName(p.name, i))
	}

	out, err := json.Marshal(rep)
	if err != nil {
		return "{}"
	}
	return string(out)
}

func micros(ns int64) float64 {
	return float64(ns) / float64(time.Microsecond)
}
