package ops

import (
	"fmt"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

// stepOp carries a single running accumulator across every row it has
// seen, updated once per row and never reset.
type stepOp struct {
	col, fn, result string
	acc             float64
	lag             float64
	haveLag         bool
	started         bool
}

func newStepOp(args registry.Args) (registry.Transform, error) {
	fn := args.Str("func", "running-sum")
	switch fn {
	case "running-sum", "running-avg", "running-min", "running-max", "lag":
	default:
		return nil, fmt.Errorf("step: unknown func %q", fn)
	}
	return &stepOp{col: args.Str("column", ""), fn: fn, result: args.Str("result", "")}, nil
}

func (s *stepOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(s.col)
	out := appendColumnBatch(in, s.result, batch.TypeFloat64)
	count := float64(0)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v, _ := in.AsFloat64(row, idx)
		switch s.fn {
		case "running-sum":
			s.acc += v
			out.SetFloat64(dr, in.NCols(), s.acc)
		case "running-avg":
			count++
			s.acc += (v - s.acc) / count
			out.SetFloat64(dr, in.NCols(), s.acc)
		case "running-min":
			if !s.started || v < s.acc {
				s.acc = v
			}
			s.started = true
			out.SetFloat64(dr, in.NCols(), s.acc)
		case "running-max":
			if !s.started || v > s.acc {
				s.acc = v
			}
			s.started = true
			out.SetFloat64(dr, in.NCols(), s.acc)
		case "lag":
			if s.haveLag {
				out.SetFloat64(dr, in.NCols(), s.lag)
			}
			s.lag = v
			s.haveLag = true
		}
	}
	return out, nil
}

func (s *stepOp) Flush() (*batch.Batch, error) { return nil, nil }
func (s *stepOp) Destroy()                     {}

func inferStepLike(resultKey string) func(registry.Args, batch.Schema) batch.Schema {
	return func(args registry.Args, in batch.Schema) batch.Schema {
		return appendColumn(in, args.Str(resultKey, ""), batch.TypeFloat64)
	}
}

// windowOp maintains a sliding window of the last `size` values and emits
// an aggregate of that window at every row.
type windowOp struct {
	col, fn, result string
	size            int
	buf             []float64
}

func newWindowOp(args registry.Args) (registry.Transform, error) {
	return &windowOp{
		col:    args.Str("column", ""),
		fn:     args.Str("func", "avg"),
		result: args.Str("result", ""),
		size:   args.Int("size", 1),
	}, nil
}

func (w *windowOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(w.col)
	out := appendColumnBatch(in, w.result, batch.TypeFloat64)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v, _ := in.AsFloat64(row, idx)
		w.buf = append(w.buf, v)
		if len(w.buf) > w.size {
			w.buf = w.buf[len(w.buf)-w.size:]
		}
		out.SetFloat64(dr, in.NCols(), windowAgg(w.buf, w.fn))
	}
	return out, nil
}

func windowAgg(buf []float64, fn string) float64 {
	if len(buf) == 0 {
		return 0
	}
	switch fn {
	case "sum":
		var s float64
		for _, v := range buf {
			s += v
		}
		return s
	case "min":
		m := buf[0]
		for _, v := range buf[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case "max":
		m := buf[0]
		for _, v := range buf[1:] {
			if v > m {
				m = v
			}
		}
		return m
	default: // avg
		var s float64
		for _, v := range buf {
			s += v
		}
		return s / float64(len(buf))
	}
}

func (w *windowOp) Flush() (*batch.Batch, error) { return nil, nil }
func (w *windowOp) Destroy()                     {}

// ewmaOp computes an exponentially weighted moving average.
type ewmaOp struct {
	col, result string
	alpha       float64
	have        bool
	val         float64
}

func newEwmaOp(args registry.Args) (registry.Transform, error) {
	return &ewmaOp{col: args.Str("column", ""), result: args.Str("result", ""), alpha: args.Num("alpha", 0.5)}, nil
}

func (e *ewmaOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(e.col)
	out := appendColumnBatch(in, e.result, batch.TypeFloat64)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v, _ := in.AsFloat64(row, idx)
		if !e.have {
			e.val = v
			e.have = true
		} else {
			e.val = e.alpha*v + (1-e.alpha)*e.val
		}
		out.SetFloat64(dr, in.NCols(), e.val)
	}
	return out, nil
}

func (e *ewmaOp) Flush() (*batch.Batch, error) { return nil, nil }
func (e *ewmaOp) Destroy()                     {}

// diffOp emits the difference from the previous row's value.
type diffOp struct {
	col  string
	have bool
	prev float64
}

func newDiffOp(args registry.Args) (registry.Transform, error) {
	return &diffOp{col: args.Str("column", "")}, nil
}

func (d *diffOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(d.col)
	out := appendColumnBatch(in, d.col+"_diff", batch.TypeFloat64)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v, _ := in.AsFloat64(row, idx)
		if d.have {
			out.SetFloat64(dr, in.NCols(), v-d.prev)
		}
		d.prev = v
		d.have = true
	}
	return out, nil
}

func (d *diffOp) Flush() (*batch.Batch, error) { return nil, nil }
func (d *diffOp) Destroy()                     {}

// leadOp emits the value `offset` rows ahead by holding back rows until
// their lead value is known, buffering at most `offset` pending batches'
// worth of rows at a time.
type leadOp struct {
	col    string
	offset int
	vals   []float64
	valid  []bool
	held   []*batch.Batch
	heldR  []int
}

func newLeadOp(args registry.Args) (registry.Transform, error) {
	return &leadOp{col: args.Str("column", ""), offset: args.Int("offset", 1)}, nil
}

func (l *leadOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(l.col)
	out := appendColumnBatch(in, l.col+"_lead", batch.TypeFloat64)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		var v float64
		var ok bool
		if idx >= 0 && !in.IsNull(row, idx) {
			v, ok = in.AsFloat64(row, idx)
		}
		l.vals = append(l.vals, v)
		l.valid = append(l.valid, ok)
		l.held = append(l.held, out)
		l.heldR = append(l.heldR, dr)
		if len(l.held) > l.offset {
			l.resolveOldest()
		}
	}
	return out, nil
}

func (l *leadOp) resolveOldest() {
	n := l.offset
	if n >= len(l.vals) {
		return
	}
	if l.valid[n] {
		writeNumeric(l.held[0], l.heldR[0], l.held[0].NCols()-1, batch.TypeFloat64, l.vals[n])
	}
	l.vals = l.vals[1:]
	l.valid = l.valid[1:]
	l.held = l.held[1:]
	l.heldR = l.heldR[1:]
}

func (l *leadOp) Flush() (*batch.Batch, error) { return nil, nil }
func (l *leadOp) Destroy()                     {}

// anomalyOp flags rows whose z-score (via Welford's online mean/variance)
// exceeds the given threshold.
type anomalyOp struct {
	col, result string
	threshold   float64
	w           welford
}

func newAnomalyOp(args registry.Args) (registry.Transform, error) {
	return &anomalyOp{
		col:       args.Str("column", ""),
		result:    args.Str("result", ""),
		threshold: args.Num("threshold", 3),
	}, nil
}

func (a *anomalyOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(a.col)
	out := appendColumnBatch(in, a.result, batch.TypeBool)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v, _ := in.AsFloat64(row, idx)
		a.w.add(v)
		sd := a.w.stddev()
		flagged := false
		if sd > 0 {
			z := (v - a.w.mean) / sd
			flagged = z > a.threshold || z < -a.threshold
		}
		out.SetBool(dr, in.NCols(), flagged)
	}
	return out, nil
}

func (a *anomalyOp) Flush() (*batch.Batch, error) { return nil, nil }
func (a *anomalyOp) Destroy()                     {}

func inferAnomaly(args registry.Args, in batch.Schema) batch.Schema {
	return appendColumn(in, args.Str("result", ""), batch.TypeBool)
}

func inferDiff(args registry.Args, in batch.Schema) batch.Schema {
	return appendColumn(in, args.Str("column", "")+"_diff", batch.TypeFloat64)
}

func inferLead(args registry.Args, in batch.Schema) batch.Schema {
	return appendColumn(in, args.Str("column", "")+"_lead", batch.TypeFloat64)
}
