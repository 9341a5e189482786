package parallel

// Cost model constants, in CPU cycles.
const (
	loadCycles      = 11.0 / 64 // Per byte loaded.
	storeCycles     = 11.0 / 64 // Per byte stored.
	startupCycles   = 100000    // Fixed cost of going parallel at all.
	perThreadCycles = 100000    // Work needed to keep one more thread busy.
	taskCycles      = 40000     // Target work per block.

	maxOversharding = 4 // Upper bound on blocks per thread.
)

// Cost estimates the work needed to process a single item.
//
// The zero value is Uniform: the per-item cost is unknown and the range is
// split purely by thread count.
type Cost struct {
	BytesLoaded   float64 // Bytes read per item.
	BytesStored   float64 // Bytes written per item.
	ComputeCycles float64 // Arithmetic cycles per item.
}

// Uniform is the cost hint for work whose per-item cost is unknown.
var Uniform = Cost{}

// Cycles returns a cost hint of c compute cycles per item.
func Cycles(c float64) Cost {
	return Cost{ComputeCycles: c}
}

// IsUniform reports whether c carries no cost information.
func (c Cost) IsUniform() bool {
	return c.cycles() <= 0
}

func (c Cost) cycles() float64 {
	return c.BytesLoaded*loadCycles + c.BytesStored*storeCycles + c.ComputeCycles
}

// Plan is the result of partitioning [0, Count) into Blocks ranges of
// BlockSize items. The last block may be shorter.
type Plan struct {
	Count     int
	Blocks    int
	BlockSize int
}

// Range returns the [start, end) sub-range of block b.
func (p Plan) Range(b int) (start, end int) {
	start = b * p.BlockSize
	end = min(start+p.BlockSize, p.Count)
	return start, end
}

// Inline reports whether the plan runs as one synchronous call.
func (p Plan) Inline() bool {
	return p.Blocks <= 1
}

func newPlan(count, blockSize int) Plan {
	blockSize = max(1, min(blockSize, count))
	return Plan{Count: count, Blocks: ceilDiv(count, blockSize), BlockSize: blockSize}
}

// Partition chooses a block size for count items of the given cost on a
// pool of threads workers plus the calling thread.
//
// Larger per-item costs produce smaller blocks. The number of blocks stays
// between roughly 1 and maxOversharding blocks per thread, and is nudged
// towards a multiple of the thread count so the last round of blocks does not
// leave threads idle.
func Partition(count int, cost Cost, threads int) Plan {
	if count <= 0 {
		return Plan{}
	}
	if count == 1 || threads <= 0 {
		return Plan{Count: count, Blocks: 1, BlockSize: count}
	}

	par := threads + 1
	if cost.IsUniform() {
		return newPlan(count, ceilDiv(count, maxOversharding*par))
	}

	perItem := cost.cycles()
	total := float64(count) * perItem
	worthwhile := int((total-startupCycles)/perThreadCycles + 0.9)
	if worthwhile <= 1 {
		return Plan{Count: count, Blocks: 1, BlockSize: count}
	}

	costBlock := int(min(float64(count), taskCycles/perItem))
	blockSize := min(count, max(ceilDiv(count, maxOversharding*par), costBlock))
	maxBlockSize := min(count, 2*blockSize)
	blocks := ceilDiv(count, blockSize)
	maxEfficiency := efficiency(blocks, par)

	for prev := blocks; maxEfficiency < 1.0 && prev > 1; {
		coarser := ceilDiv(count, prev-1)
		if coarser > maxBlockSize {
			break
		}
		coarserBlocks := ceilDiv(count, coarser)
		prev = coarserBlocks
		e := efficiency(coarserBlocks, par)
		if e+0.01 >= maxEfficiency {
			blockSize = coarser
			maxEfficiency = max(maxEfficiency, e)
		}
	}

	return newPlan(count, blockSize)
}

// efficiency is the fraction of thread rounds that is busy when blocks
// equally sized blocks run on par threads.
func efficiency(blocks, par int) float64 {
	return float64(blocks) / float64(ceilDiv(blocks, par)*par)
}

// PartitionWork returns the [start, end) range of batch out of numBatches
// batches covering total items. The first total%numBatches batches get one
// extra item.
func PartitionWork(batch, numBatches, total int) (start, end int) {
	perBatch := total / numBatches
	extra := total % numBatches
	if batch < extra {
		start = (perBatch + 1) * batch
		return start, start + perBatch + 1
	}
	start = perBatch*batch + extra
	return start, start + perBatch
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
