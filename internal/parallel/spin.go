package parallel

import (
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const minSleep = time.Microsecond

// spinner waits by yielding the processor limit times, then sleeping with
// exponential backoff up to maxSleep. A limit of zero or less sleeps on the
// first wait. A maxSleep of zero or less never sleeps.
type spinner struct {
	limit    int
	maxSleep time.Duration
	spins    int
	sleeping bool
	b        backoff.ExponentialBackOff
}

func newSpinner(limit int, maxSleep time.Duration) spinner {
	return spinner{limit: limit, maxSleep: maxSleep}
}

func (s *spinner) wait() {
	if s.spins < s.limit || s.maxSleep <= 0 {
		s.spins++
		runtime.Gosched()
		return
	}
	if !s.sleeping {
		s.b = backoff.ExponentialBackOff{
			InitialInterval: minSleep,
			Multiplier:      2,
			MaxInterval:     s.maxSleep,
		}
		s.b.Reset()
		s.sleeping = true
	}
	time.Sleep(s.b.NextBackOff())
}

func (s *spinner) reset() {
	s.spins = 0
	s.sleeping = false
}
