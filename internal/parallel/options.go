package parallel

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"
)

// Engine selects the scheduler implementation behind a Pool.
type Engine string

// Available engines.
const (
	// EngineRing dispatches ranges through a bounded MPMC ring of task nodes.
	EngineRing Engine = "ring"
	// EngineSlot dispatches through a small fixed array of slots, one worker each.
	EngineSlot Engine = "slot"
)

// MaxSlots bounds the number of slots, and therefore workers, of the slot engine.
const MaxSlots = 8

// Options controls pool construction.
//
// A zero SpinCount, IdleMaxSleep, WaitMaxSleep or SaturationRetries means
// the default. A negative one turns that stage off: no yields before
// sleeping, no sleeping at all, or no backoff rounds before falling back.
type Options struct {
	// NumThreads is the number of worker threads, excluding the caller.
	// Zero makes every call synchronous. Negative means Env.NumCPU()-1.
	NumThreads int

	// Engine is the scheduler implementation.
	Engine Engine `default:"ring"`

	// QueueCapacity is the number of task nodes of the ring engine.
	QueueCapacity int `default:"1024"`

	// StackSize is accepted for compatibility. Goroutine stacks grow on demand.
	StackSize int

	// Affinity lists CPU ids; worker i is pinned to Affinity[i%len(Affinity)].
	Affinity []int

	// Name prefixes worker thread names and names the logger.
	Name string `default:"kernelpool"`

	// SetDenormalAsZero sets the denormals-are-zero and flush-to-zero
	// floating point modes on every worker thread.
	SetDenormalAsZero bool

	// SpinCount is the number of yields an idle thread makes before it
	// starts sleeping. Negative sleeps right away.
	SpinCount int `default:"64"`

	// IdleMaxSleep caps the backoff sleep of idle workers. Negative makes
	// idle workers yield without ever sleeping.
	IdleMaxSleep time.Duration `default:"1ms"`

	// WaitMaxSleep caps the backoff sleep of a caller waiting for blocks
	// claimed by workers. Negative makes waiting callers only yield.
	WaitMaxSleep time.Duration `default:"50us"`

	// SaturationRetries is the number of backoff rounds a submission makes
	// when the engine has no free capacity, before running on the caller.
	// Negative runs on the caller as soon as a dispatch fails.
	SaturationRetries int `default:"8"`

	// Logger receives lifecycle and failure logs. Defaults to zap.L().
	Logger *zap.Logger

	// Env spawns worker threads and reports the core count.
	Env Env

	// PanicHandler receives failures of scheduled work. ParallelFor failures
	// are returned to the caller instead.
	PanicHandler func(error)
}

// DefaultOptions returns options sized to the machine: one worker per core,
// with the calling thread taking the last core.
func DefaultOptions() Options {
	opts := Options{NumThreads: -1}
	_ = defaults.Set(&opts)
	return opts
}

func (o *Options) normalize() error {
	if err := defaults.Set(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if o.Env == nil {
		o.Env = defaultEnv{}
	}
	if o.Logger == nil {
		o.Logger = zap.L()
	}
	if o.NumThreads < 0 {
		o.NumThreads = max(0, o.Env.NumCPU()-1)
	}

	switch o.Engine {
	case EngineRing:
		if o.QueueCapacity < 1 {
			return fmt.Errorf("%w: queue capacity %d", ErrInvalidOptions, o.QueueCapacity)
		}
	case EngineSlot:
		o.NumThreads = min(o.NumThreads, MaxSlots)
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidOptions, o.Engine)
	}

	for _, cpu := range o.Affinity {
		if cpu < 0 {
			return fmt.Errorf("%w: negative cpu id %d in affinity", ErrInvalidOptions, cpu)
		}
	}
	return nil
}

func (o *Options) threadSpec(i int) ThreadSpec {
	spec := ThreadSpec{
		Name:              threadName(o.Name, i),
		Index:             i,
		StackSize:         o.StackSize,
		CPU:               -1,
		SetDenormalAsZero: o.SetDenormalAsZero,
	}
	if len(o.Affinity) > 0 {
		spec.CPU = o.Affinity[i%len(o.Affinity)]
	}
	return spec
}

func threadName(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}
