// Package batch implements the columnar batch model: an ordered multiset of
// rows sharing a schema, stored as typed columns plus a per-cell null
// bitmap, all owned by one arena.
package batch

import (
	"github.com/doomsbay/flowkit/internal/arena"
)

const initialColumnCapacity = 16

// column holds one column's typed storage. Exactly one of the typed slices
// is populated, selected by Type. nulls is one byte per row (1 == null),
// matching spec §3's "1 byte per row" bitmap contract exactly (a packed
// bitmap would satisfy the same per-cell contract, but the teacher's own
// data never needed that density, so this stays the simple form).
type column struct {
	name string
	typ  Type

	bools      []bool
	ints       []int64
	floats     []float64
	strs       []string
	dates      []int32
	timestamps []int64

	nulls []byte
}

// Batch is a columnar slice of rows sharing a schema, owning exactly one
// arena. Column names and every string cell are interned into that arena;
// freeing the batch (Destroy) frees the arena exactly once.
type Batch struct {
	arena       *arena.Arena
	cols        []column
	nRows       int
	capacity    int
	reservedCap int
}

// New reserves nCols schema slots (untyped: SetSchema assigns each) and an
// initial row capacity hint; column storage is not allocated until
// SetSchema is called for that column, at which point reservedCap becomes
// its starting capacity.
func New(nCols, initialRowCapacity int) *Batch {
	if initialRowCapacity <= 0 {
		initialRowCapacity = initialColumnCapacity
	}
	return &Batch{
		arena:       arena.New(0, nil),
		cols:        make([]column, nCols),
		reservedCap: initialRowCapacity,
	}
}

// NewWithArena is like New but shares an existing arena (used when an
// operator wants several batches to draw from the same memory region, e.g.
// an aggregate operator building its output batch from already-arena-owned
// strings).
func NewWithArena(nCols int, a *arena.Arena) *Batch {
	return &Batch{arena: a, cols: make([]column, nCols)}
}

// NCols returns the fixed column count.
func (b *Batch) NCols() int { return len(b.cols) }

// NRows returns the number of rows written so far.
func (b *Batch) NRows() int { return b.nRows }

// Capacity returns the current per-column row capacity.
func (b *Batch) Capacity() int { return b.capacity }

// Arena exposes the batch's owning arena (needed by codecs/operators that
// intern strings directly, and by CopyRow's re-interning).
func (b *Batch) Arena() *arena.Arena { return b.arena }

// Schema returns the batch's current schema (known, since every assigned
// column has a concrete type; unassigned columns report TypeUnknown).
func (b *Batch) Schema() Schema {
	cols := make([]ColumnDef, len(b.cols))
	for i, c := range b.cols {
		cols[i] = ColumnDef{Name: c.name, Type: c.typ}
	}
	return Schema{Known: true, Columns: cols}
}

// ColIndex returns the first column index named name, or -1.
func (b *Batch) ColIndex(name string) int {
	for i, c := range b.cols {
		if c.name == name {
			return i
		}
	}
	return -1
}

// ColumnName returns the name of column idx, or "" if out of range.
func (b *Batch) ColumnName(idx int) string {
	if idx < 0 || idx >= len(b.cols) {
		return ""
	}
	return b.cols[idx].name
}

// ColumnType returns the type of column idx, or TypeUnknown if out of range.
func (b *Batch) ColumnType(idx int) Type {
	if idx < 0 || idx >= len(b.cols) {
		return TypeUnknown
	}
	return b.cols[idx].typ
}

// SetSchema assigns name and type to column idx, allocating its storage
// (sized to the batch's current capacity) and initializing every row to
// null. A no-op if idx is out of range.
func (b *Batch) SetSchema(idx int, name string, typ Type) {
	if idx < 0 || idx >= len(b.cols) {
		return
	}
	cap := b.capacity
	if cap == 0 {
		cap = b.reservedCap
		if cap == 0 {
			cap = initialColumnCapacity
		}
	}
	c := column{name: b.arena.InternString([]byte(name)), typ: typ}
	allocColumnStorage(&c, typ, cap)
	for i := range c.nulls {
		c.nulls[i] = 1
	}
	b.cols[idx] = c
	if b.capacity == 0 {
		b.capacity = cap
	}
}

func allocColumnStorage(c *column, typ Type, n int) {
	switch typ {
	case TypeBool:
		c.bools = make([]bool, n)
	case TypeInt64:
		c.ints = make([]int64, n)
	case TypeFloat64:
		c.floats = make([]float64, n)
	case TypeString:
		c.strs = make([]string, n)
	case TypeDate:
		c.dates = make([]int32, n)
	case TypeTimestamp:
		c.timestamps = make([]int64, n)
	}
	c.nulls = make([]byte, n)
}

// EnsureCapacity grows every column's storage (if needed) to at least
// minRows, doubling from the current capacity (starting at 16). Newly
// reserved rows default to null.
func (b *Batch) EnsureCapacity(minRows int) {
	if minRows <= b.capacity {
		return
	}
	newCap := b.capacity
	if newCap == 0 {
		newCap = initialColumnCapacity
	}
	for newCap < minRows {
		newCap *= 2
	}
	for i := range b.cols {
		growColumn(&b.cols[i], newCap)
	}
	b.capacity = newCap
}

func growColumn(c *column, newCap int) {
	switch c.typ {
	case TypeBool:
		c.bools = growBool(c.bools, newCap)
	case TypeInt64:
		c.ints = growInt64(c.ints, newCap)
	case TypeFloat64:
		c.floats = growFloat64(c.floats, newCap)
	case TypeString:
		c.strs = growString(c.strs, newCap)
	case TypeDate:
		c.dates = growInt32(c.dates, newCap)
	case TypeTimestamp:
		c.timestamps = growInt64(c.timestamps, newCap)
	}
	nulls := make([]byte, newCap)
	copy(nulls, c.nulls)
	for i := len(c.nulls); i < newCap; i++ {
		nulls[i] = 1
	}
	c.nulls = nulls
}

func growBool(s []bool, n int) []bool {
	out := make([]bool, n)
	copy(out, s)
	return out
}
func growInt64(s []int64, n int) []int64 {
	out := make([]int64, n)
	copy(out, s)
	return out
}
func growInt32(s []int32, n int) []int32 {
	out := make([]int32, n)
	copy(out, s)
	return out
}
func growFloat64(s []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, s)
	return out
}
func growString(s []string, n int) []string {
	out := make([]string, n)
	copy(out, s)
	return out
}

// SetNRows directly assigns the number of rows considered populated. The
// decoder/operator that appends rows is responsible for calling
// EnsureCapacity first and incrementing this as it writes.
func (b *Batch) SetNRows(n int) { b.nRows = n }

// AppendRow ensures capacity for one more row and returns its index,
// leaving all cells null (the caller then uses the typed setters).
func (b *Batch) AppendRow() int {
	b.EnsureCapacity(b.nRows + 1)
	row := b.nRows
	b.nRows++
	return row
}

// IsNull reports whether cell (row,col) is null. Out-of-range access
// reports true (treated as null, never a panic).
func (b *Batch) IsNull(row, col int) bool {
	if col < 0 || col >= len(b.cols) || row < 0 || row >= len(b.cols[col].nulls) {
		return true
	}
	return b.cols[col].nulls[row] == 1
}

// SetNull marks (row,col) null explicitly. No-op out of range.
func (b *Batch) SetNull(row, col int) {
	if col < 0 || col >= len(b.cols) || row < 0 || row >= len(b.cols[col].nulls) {
		return
	}
	b.cols[col].nulls[row] = 1
}

func (b *Batch) inRange(row, col int, typ Type) bool {
	if col < 0 || col >= len(b.cols) {
		return false
	}
	if b.cols[col].typ != typ {
		return false
	}
	if row < 0 || row >= len(b.cols[col].nulls) {
		return false
	}
	return true
}

// SetBool writes v at (row,col) and clears the null bit; no-op on type
// mismatch or out-of-range row.
func (b *Batch) SetBool(row, col int, v bool) {
	if !b.inRange(row, col, TypeBool) {
		return
	}
	b.cols[col].bools[row] = v
	b.cols[col].nulls[row] = 0
}

// SetInt64 writes v at (row,col).
func (b *Batch) SetInt64(row, col int, v int64) {
	if !b.inRange(row, col, TypeInt64) {
		return
	}
	b.cols[col].ints[row] = v
	b.cols[col].nulls[row] = 0
}

// SetFloat64 writes v at (row,col).
func (b *Batch) SetFloat64(row, col int, v float64) {
	if !b.inRange(row, col, TypeFloat64) {
		return
	}
	b.cols[col].floats[row] = v
	b.cols[col].nulls[row] = 0
}

// SetString interns v into the batch's arena and writes it at (row,col).
func (b *Batch) SetString(row, col int, v string) {
	if !b.inRange(row, col, TypeString) {
		return
	}
	b.cols[col].strs[row] = b.arena.InternString([]byte(v))
	b.cols[col].nulls[row] = 0
}

// SetStringInterned writes an already-arena-owned string without
// re-interning (used when the value was produced by this batch's own arena,
// e.g. by a codec building cells directly from a scratch buffer it then
// interns itself).
func (b *Batch) SetStringInterned(row, col int, v string) {
	if !b.inRange(row, col, TypeString) {
		return
	}
	b.cols[col].strs[row] = v
	b.cols[col].nulls[row] = 0
}

// SetDate writes days-since-epoch v at (row,col).
func (b *Batch) SetDate(row, col int, v int32) {
	if !b.inRange(row, col, TypeDate) {
		return
	}
	b.cols[col].dates[row] = v
	b.cols[col].nulls[row] = 0
}

// SetTimestamp writes seconds-since-epoch v at (row,col).
func (b *Batch) SetTimestamp(row, col int, v int64) {
	if !b.inRange(row, col, TypeTimestamp) {
		return
	}
	b.cols[col].timestamps[row] = v
	b.cols[col].nulls[row] = 0
}

// GetBool reads (row,col); ok is false if null or out of range/type.
func (b *Batch) GetBool(row, col int) (v bool, ok bool) {
	if !b.inRange(row, col, TypeBool) || b.IsNull(row, col) {
		return false, false
	}
	return b.cols[col].bools[row], true
}

// GetInt64 reads (row,col); ok is false if null or out of range/type.
func (b *Batch) GetInt64(row, col int) (v int64, ok bool) {
	if !b.inRange(row, col, TypeInt64) || b.IsNull(row, col) {
		return 0, false
	}
	return b.cols[col].ints[row], true
}

// GetFloat64 reads (row,col); ok is false if null or out of range/type.
func (b *Batch) GetFloat64(row, col int) (v float64, ok bool) {
	if !b.inRange(row, col, TypeFloat64) || b.IsNull(row, col) {
		return 0, false
	}
	return b.cols[col].floats[row], true
}

// GetString reads (row,col); ok is false if null or out of range/type.
func (b *Batch) GetString(row, col int) (v string, ok bool) {
	if !b.inRange(row, col, TypeString) || b.IsNull(row, col) {
		return "", false
	}
	return b.cols[col].strs[row], true
}

// GetDate reads (row,col); ok is false if null or out of range/type.
func (b *Batch) GetDate(row, col int) (v int32, ok bool) {
	if !b.inRange(row, col, TypeDate) || b.IsNull(row, col) {
		return 0, false
	}
	return b.cols[col].dates[row], true
}

// GetTimestamp reads (row,col); ok is false if null or out of range/type.
func (b *Batch) GetTimestamp(row, col int) (v int64, ok bool) {
	if !b.inRange(row, col, TypeTimestamp) || b.IsNull(row, col) {
		return 0, false
	}
	return b.cols[col].timestamps[row], true
}

// AsFloat64 widens any numeric cell to float64, for operators (clip, step,
// window, ewma, stats, ...) that work uniformly over numeric columns
// regardless of exact declared type.
func (b *Batch) AsFloat64(row, col int) (float64, bool) {
	if col < 0 || col >= len(b.cols) || b.IsNull(row, col) {
		return 0, false
	}
	switch b.cols[col].typ {
	case TypeInt64:
		v, ok := b.GetInt64(row, col)
		return float64(v), ok
	case TypeFloat64:
		return b.GetFloat64(row, col)
	case TypeDate:
		v, ok := b.GetDate(row, col)
		return float64(v), ok
	case TypeTimestamp:
		v, ok := b.GetTimestamp(row, col)
		return float64(v), ok
	case TypeBool:
		v, ok := b.GetBool(row, col)
		if !ok {
			return 0, false
		}
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// CopyRow copies row srcRow of src into row dstRow of dst, preserving nulls
// and re-interning any string cell into dst's arena (never aliasing src's
// arena — the hazard the C source's copy_row has).
func CopyRow(dst *Batch, dstRow int, src *Batch, srcRow int) {
	n := src.NCols()
	if dst.NCols() < n {
		n = dst.NCols()
	}
	for col := 0; col < n; col++ {
		if src.IsNull(srcRow, col) {
			dst.SetNull(dstRow, col)
			continue
		}
		switch src.cols[col].typ {
		case TypeBool:
			v, _ := src.GetBool(srcRow, col)
			dst.SetBool(dstRow, col, v)
		case TypeInt64:
			v, _ := src.GetInt64(srcRow, col)
			dst.SetInt64(dstRow, col, v)
		case TypeFloat64:
			v, _ := src.GetFloat64(srcRow, col)
			dst.SetFloat64(dstRow, col, v)
		case TypeString:
			v, _ := src.GetString(srcRow, col)
			dst.SetString(dstRow, col, v) // re-interned into dst's arena
		case TypeDate:
			v, _ := src.GetDate(srcRow, col)
			dst.SetDate(dstRow, col, v)
		case TypeTimestamp:
			v, _ := src.GetTimestamp(srcRow, col)
			dst.SetTimestamp(dstRow, col, v)
		}
	}
}

// Destroy frees the batch's arena exactly once.
func (b *Batch) Destroy() {
	if b.arena != nil {
		b.arena.Destroy()
		b.arena = nil
	}
}
