// Package arena implements the bump-allocated memory region that backs every
// batch and every operator's internal buffers. Allocation never moves memory
// and reset is O(blocks); freeing happens exactly once, via Destroy.
package arena

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow/memory"
)

// defaultBlockSize matches the teacher's default chunk size for bulk reads
// (tsv_parser.go's defaultChunkSize), since both are "how much to grab before
// asking the allocator again" knobs.
const defaultBlockSize = 8 << 20 // 8 MiB

// maxAlign is the alignment granted to every allocation, wide enough for any
// of the six logical cell types (the widest is int64/float64, 8 bytes).
const maxAlign = 8

type block struct {
	buf  []byte
	used int
}

// Arena is a bump allocator: Allocate hands out successive slices of the
// current block, advancing a cursor; Reset rewinds every block's cursor to
// zero without releasing the backing memory; Destroy returns the memory to
// the allocator. Allocations never move, so slices returned by Allocate
// remain valid until Reset or Destroy; InternString returns a Go string
// copied from its arena region.
type Arena struct {
	alloc     memory.Allocator
	blockSize int
	blocks    []block
	cur       int // index into blocks of the block currently being filled
	destroyed bool
}

// New creates an arena that requests memory from alloc in blockSize chunks
// (blockSize <= 0 uses the default). A nil alloc uses memory.NewGoAllocator(),
// the same allocator the teacher's go.mod already depends on for columnar
// memory (github.com/apache/arrow/go/v18/arrow/memory), here repurposed as
// this arena's block source instead of plain make([]byte, n).
func New(blockSize int, alloc memory.Allocator) *Arena {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	if alloc == nil {
		alloc = memory.NewGoAllocator()
	}
	a := &Arena{alloc: alloc, blockSize: blockSize}
	a.addBlock(blockSize)
	return a
}

func (a *Arena) addBlock(size int) {
	buf := a.alloc.Allocate(size)
	a.blocks = append(a.blocks, block{buf: buf})
	a.cur = len(a.blocks) - 1
}

func alignUp(n int) int {
	rem := n % maxAlign
	if rem == 0 {
		return n
	}
	return n + (maxAlign - rem)
}

// Allocate returns a zeroed region of n bytes owned by the arena. It never
// returns an error: if the current block lacks room, a new block is grown
// (sized to fit n, or blockSize, whichever is larger).
func (a *Arena) Allocate(n int) []byte {
	if a.destroyed {
		panic("arena: allocate after destroy")
	}
	if n <= 0 {
		return nil
	}
	need := alignUp(n)
	blk := &a.blocks[a.cur]
	if blk.used+need > len(blk.buf) {
		size := a.blockSize
		if need > size {
			size = need
		}
		a.addBlock(size)
		blk = &a.blocks[a.cur]
	}
	region := blk.buf[blk.used : blk.used+n : blk.used+need]
	blk.used += need
	for i := range region {
		region[i] = 0
	}
	return region
}

// InternString copies b into the arena and returns the owned copy. Every
// string cell and every column name in a batch must be interned this way so
// the batch never aliases memory it does not own (the hazard the teacher's
// Row.Fields view, and the C source's copy_row, both have: both alias the
// caller's buffer rather than copying it).
func (a *Arena) InternString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	dst := a.Allocate(len(b))
	copy(dst, b)
	return string(dst) // the conversion copies dst into a Go-managed string
}

// Reset rewinds every block to empty in O(blocks) without releasing memory,
// so a pipeline that recycles arenas across batches avoids repeated
// allocator round-trips.
func (a *Arena) Reset() {
	for i := range a.blocks {
		a.blocks[i].used = 0
	}
	a.cur = 0
}

// Destroy releases all blocks back to the allocator. A second call is a
// no-op; calling Allocate/InternString afterward panics.
func (a *Arena) Destroy() {
	if a.destroyed {
		return
	}
	for _, b := range a.blocks {
		a.alloc.Free(b.buf)
	}
	a.blocks = nil
	a.destroyed = true
}

// Bytes reports total bytes currently allocated across all blocks, for
// diagnostics/tests.
func (a *Arena) Bytes() int {
	n := 0
	for _, b := range a.blocks {
		n += b.used
	}
	return n
}

func (a *Arena) String() string {
	return fmt.Sprintf("arena{blocks=%d, used=%d}", len(a.blocks), a.Bytes())
}
