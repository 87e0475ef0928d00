package ops

import (
	"fmt"
	"sort"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

// bufferingOp records every row it sees as a reference to its input batch
// plus the row index; rows are copied only when materialize builds the
// output batch on flush. sort, unique and top embed this.
type bufferingOp struct {
	rows []*batch.Batch
	idx  []int
}

func (b *bufferingOp) absorb(in *batch.Batch) {
	for r := 0; r < in.NRows(); r++ {
		b.rows = append(b.rows, in)
		b.idx = append(b.idx, r)
	}
}

func (b *bufferingOp) nRows() int { return len(b.rows) }

func (b *bufferingOp) cell(i, col int) cellValue {
	return readCell(b.rows[i], b.idx[i], col)
}

func (b *bufferingOp) materialize(sch batch.Schema, order []int) *batch.Batch {
	out := batch.New(len(sch.Columns), len(order))
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	for _, i := range order {
		dr := out.AppendRow()
		batch.CopyRow(out, dr, b.rows[i], b.idx[i])
	}
	return out
}

// sortOp performs a stable composite-key sort; nulls sort last.
type sortOp struct {
	bufferingOp
	keys []sortKey
}

type sortKey struct {
	name string
	desc bool
}

func newSortOp(args registry.Args) (registry.Transform, error) {
	s := &sortOp{}
	for _, obj := range args.ObjList("columns") {
		s.keys = append(s.keys, sortKey{name: obj.Str("name", ""), desc: obj.BoolArg("desc", false)})
	}
	if len(s.keys) == 0 {
		return nil, fmt.Errorf("sort: columns required")
	}
	return s, nil
}

func (s *sortOp) Process(in *batch.Batch) (*batch.Batch, error) {
	s.absorb(in)
	return nil, nil
}

func (s *sortOp) Flush() (*batch.Batch, error) {
	if s.nRows() == 0 {
		return nil, nil
	}
	sch := s.rows[0].Schema()
	colIdx := make([]int, len(s.keys))
	for i, k := range s.keys {
		colIdx[i] = sch.ColIndex(k.name)
	}
	order := make([]int, s.nRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		for ki, col := range colIdx {
			ca, cb := s.cell(ia, col), s.cell(ib, col)
			if ca.null != cb.null {
				return cb.null
			}
			c := compareCells(ca, cb)
			if s.keys[ki].desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return s.materialize(sch, order), nil
}

func (s *sortOp) Destroy() { s.rows, s.idx = nil, nil }

// uniqueOp keeps the first occurrence of each distinct tuple over the
// named columns (or all columns).
type uniqueOp struct {
	bufferingOp
	cols []string
}

func newUniqueOp(args registry.Args) (registry.Transform, error) {
	return &uniqueOp{cols: args.StrList("columns")}, nil
}

func (u *uniqueOp) Process(in *batch.Batch) (*batch.Batch, error) {
	u.absorb(in)
	return nil, nil
}

func (u *uniqueOp) Flush() (*batch.Batch, error) {
	if u.nRows() == 0 {
		return nil, nil
	}
	sch := u.rows[0].Schema()
	names := u.cols
	if len(names) == 0 {
		for _, c := range sch.Columns {
			names = append(names, c.Name)
		}
	}
	colIdx := make([]int, len(names))
	for i, n := range names {
		colIdx[i] = sch.ColIndex(n)
	}
	seen := map[string]bool{}
	var order []int
	for i := 0; i < u.nRows(); i++ {
		key := ""
		for _, col := range colIdx {
			key += u.cell(i, col).key() + "\x1f"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		order = append(order, i)
	}
	return u.materialize(sch, order), nil
}

func (u *uniqueOp) Destroy() { u.rows, u.idx = nil, nil }

// tailOp keeps at most the last n rows as a sliding window, emitted on
// flush in arrival order.
type tailOp struct {
	n    int
	buf  []*batch.Batch
	rows []int
}

func newTailOp(args registry.Args) (registry.Transform, error) {
	return &tailOp{n: args.Int("n", 10)}, nil
}

func (t *tailOp) Process(in *batch.Batch) (*batch.Batch, error) {
	for r := 0; r < in.NRows(); r++ {
		t.buf = append(t.buf, in)
		t.rows = append(t.rows, r)
		if len(t.buf) > t.n {
			t.buf = t.buf[1:]
			t.rows = t.rows[1:]
		}
	}
	return nil, nil
}

func (t *tailOp) Flush() (*batch.Batch, error) {
	if len(t.buf) == 0 {
		return nil, nil
	}
	sch := t.buf[0].Schema()
	out := batch.New(len(sch.Columns), len(t.buf))
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	for i := range t.buf {
		dr := out.AppendRow()
		batch.CopyRow(out, dr, t.buf[i], t.rows[i])
	}
	return out, nil
}

func (t *tailOp) Destroy() { t.buf, t.rows = nil, nil }

// topOp buffers every input row and, on flush, stable-sorts them by column
// value and emits the first n, ties keeping earliest seen. The buffer is not
// bounded by n: every row is held until flush.
type topOp struct {
	bufferingOp
	n    int
	col  string
	desc bool
}

func newTopOp(args registry.Args) (registry.Transform, error) {
	return &topOp{n: args.Int("n", 10), col: args.Str("column", ""), desc: args.BoolArg("desc", true)}, nil
}

func (t *topOp) Process(in *batch.Batch) (*batch.Batch, error) {
	t.absorb(in)
	return nil, nil
}

func (t *topOp) Flush() (*batch.Batch, error) {
	if t.nRows() == 0 {
		return nil, nil
	}
	sch := t.rows[0].Schema()
	col := sch.ColIndex(t.col)
	order := make([]int, t.nRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		c := compareCells(t.cell(order[a], col), t.cell(order[b], col))
		if t.desc {
			return c > 0
		}
		return c < 0
	})
	if len(order) > t.n {
		order = order[:t.n]
	}
	return t.materialize(sch, order), nil
}

func (t *topOp) Destroy() { t.rows, t.idx = nil, nil }

// sampleOp performs uniform reservoir sampling with a deterministic
// seeded LCG.
type sampleOp struct {
	n     int
	gen   *lcg
	buf   []*batch.Batch
	rows  []int
	count int
}

func newSampleOp(args registry.Args) (registry.Transform, error) {
	return &sampleOp{n: args.Int("n", 10), gen: newLCG(int64(args.Num("seed", 1)))}, nil
}

func (s *sampleOp) Process(in *batch.Batch) (*batch.Batch, error) {
	for r := 0; r < in.NRows(); r++ {
		s.count++
		if len(s.buf) < s.n {
			s.buf = append(s.buf, in)
			s.rows = append(s.rows, r)
			continue
		}
		j := int(s.gen.next() % uint64(s.count))
		if j < s.n {
			s.buf[j] = in
			s.rows[j] = r
		}
	}
	return nil, nil
}

func (s *sampleOp) Flush() (*batch.Batch, error) {
	if len(s.buf) == 0 {
		return nil, nil
	}
	sch := s.buf[0].Schema()
	out := batch.New(len(sch.Columns), len(s.buf))
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	for i := range s.buf {
		dr := out.AppendRow()
		batch.CopyRow(out, dr, s.buf[i], s.rows[i])
	}
	return out, nil
}

func (s *sampleOp) Destroy() { s.buf, s.rows = nil, nil }
