package parallel

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// landmark packs a ring position and its occupancy state into one word so
// producers move both with a single compare-and-swap.
type landmark uint64

const landmarkOccupied landmark = 1 << 63

func makeLandmark(at int, occupied bool) landmark {
	l := landmark(at)
	if occupied {
		l |= landmarkOccupied
	}
	return l
}

func (l landmark) at() int          { return int(l &^ landmarkOccupied) }
func (l landmark) isOccupied() bool { return l&landmarkOccupied != 0 }

// node is one ring entry. The task descriptor lives in the node, so pushing
// a job costs no allocation.
//
// claim holds the node generation in the high 32 bits and the number of
// claimed blocks in the low 32 bits. Every push bumps the generation, so a
// worker that loaded the claim word of the previous job can never claim a
// block of the next one. blocks is the block count of the current job and
// done counts its finished blocks. A node may be pushed again only once it
// is empty, and it becomes empty after done reached blocks and the waiting
// caller (or, for detached jobs, the finishing worker) released it.
type node struct {
	claim  atomic.Uint64
	_      cpu.CacheLinePad
	done   atomic.Int64
	_      cpu.CacheLinePad
	blocks atomic.Int64
	empty  atomic.Bool
	t      task
}

// sealed is a claimed count no job reaches. A node being loaded carries it
// so no claim lands between the block count and the job being written.
const sealed = 1<<32 - 1

// ret is the result of a successful claim: block of the task at node at,
// covering [from, to). t stays valid until the claim is completed.
type ret struct {
	at    int
	block int
	from  int
	to    int
	t     *task
}

var noClaim = ret{at: -1}

func (r ret) ok() bool { return r.at >= 0 }

// ring is a bounded multi-producer multi-consumer queue of jobs whose
// blocks are claimed individually.
type ring struct {
	nodes   []node
	_       cpu.CacheLinePad
	front   atomic.Int64 // Where pop starts scanning.
	_       cpu.CacheLinePad
	back    atomic.Uint64 // landmark of the next node to write.
	_       cpu.CacheLinePad
	pending atomic.Int64 // Nodes with unclaimed blocks.
	_       cpu.CacheLinePad
}

func newRing(capacity int) *ring {
	q := &ring{nodes: make([]node, capacity)}
	for i := range q.nodes {
		q.nodes[i].empty.Store(true)
	}
	return q
}

func (q *ring) capacity() int { return len(q.nodes) }

func (q *ring) next(at int) int {
	at++
	if at == len(q.nodes) {
		return 0
	}
	return at
}

// push publishes j and returns its node index, or -1 when every node is busy.
// Busy nodes are skipped, so one long job does not stall the ring.
func (q *ring) push(j job) int {
	for scanned := 0; scanned < len(q.nodes); {
		lm := landmark(q.back.Load())
		if lm.isOccupied() {
			// Another producer is initialising the node at lm.
			runtime.Gosched()
			continue
		}

		at := lm.at()
		n := &q.nodes[at]
		if !n.empty.Load() {
			q.back.CompareAndSwap(uint64(lm), uint64(makeLandmark(q.next(at), false)))
			scanned++
			continue
		}
		if !q.back.CompareAndSwap(uint64(lm), uint64(makeLandmark(at, true))) {
			continue
		}

		// The landmark may have wrapped around to the same value while this
		// producer was descheduled, so emptiness is checked again under it.
		if !n.empty.Load() {
			q.back.Store(uint64(makeLandmark(q.next(at), false)))
			scanned++
			continue
		}

		gen := uint64(uint32(n.claim.Load()>>32) + 1)
		n.empty.Store(false)
		n.claim.Store(gen<<32 | sealed)
		n.done.Store(0)
		n.t.load(j)
		n.blocks.Store(int64(j.plan.Blocks))
		q.pending.Add(1)
		n.claim.Store(gen << 32)
		q.back.Store(uint64(makeLandmark(q.next(at), false)))
		return at
	}
	return -1
}

// pop claims one block of the first claimable task, scanning from front.
func (q *ring) pop() ret {
	if q.pending.Load() <= 0 {
		return noClaim
	}

	f := int(q.front.Load())
	at := f
	for range len(q.nodes) {
		if r := q.popAt(at); r.ok() {
			if at != f {
				q.front.CompareAndSwap(int64(f), int64(at))
			}
			return r
		}
		at = q.next(at)
	}
	return noClaim
}

// popAt claims one block of the task at node at.
//
// The claim word is loaded before the block count. A count written by a
// later push is then paired with a stale claim word, and the compare-and-swap
// on that word fails.
func (q *ring) popAt(at int) ret {
	n := &q.nodes[at]
	for {
		c := n.claim.Load()
		claimed := int64(uint32(c))
		blocks := n.blocks.Load()
		if claimed >= blocks {
			return noClaim
		}
		if !n.claim.CompareAndSwap(c, c+1) {
			continue
		}
		if claimed+1 == blocks {
			q.pending.Add(-1)
		}
		from, to := n.t.plan.Range(int(claimed))
		return ret{at: at, block: int(claimed), from: from, to: to, t: &n.t}
	}
}

// complete marks the block claimed in r finished and reports whether it was
// the last one. Detached jobs are released by whoever finishes them. The
// node may be reloaded as soon as done reaches the block count, so nothing
// of the task is read after that.
func (q *ring) complete(r ret) bool {
	n := &q.nodes[r.at]
	blocks := n.blocks.Load()
	detached := n.t.detached()
	last := n.done.Add(1) == blocks
	if last && detached {
		q.release(r.at)
	}
	return last
}

// finished reports whether every block of the job at node at is done.
func (q *ring) finished(at int) bool {
	n := &q.nodes[at]
	return n.done.Load() == n.blocks.Load()
}

// release makes node at available to producers again.
func (q *ring) release(at int) {
	n := &q.nodes[at]
	n.t.job = job{}
	if !n.empty.CompareAndSwap(false, true) {
		panic("parallel: ring node released twice")
	}
}

// busy returns the number of nodes in use.
func (q *ring) busy() int {
	count := 0
	for i := range q.nodes {
		if !q.nodes[i].empty.Load() {
			count++
		}
	}
	return count
}
