package ops

import (
	"time"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

// interpolateOp linearly interpolates null numeric cells between the
// nearest known values before and after them. Rows whose value is still
// unresolved (no known value seen yet) are held in a small pending buffer
// until a later known value arrives or flush is reached, at which point
// they are emitted holding the last known value (no extrapolation past
// the final known point beyond a flat carry).
type interpolateOp struct {
	col      string
	haveLast bool
	lastVal  float64
	pending  []*batch.Batch
	pendRows []int
}

func newInterpolateOp(args registry.Args) (registry.Transform, error) {
	return &interpolateOp{col: args.Str("column", "")}, nil
}

func (p *interpolateOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(p.col)
	out := cloneShape(in)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 {
			continue
		}
		if !in.IsNull(row, idx) {
			v, _ := in.AsFloat64(row, idx)
			p.resolvePending(out, idx, v)
			p.lastVal = v
			p.haveLast = true
			continue
		}
		if p.haveLast {
			writeNumeric(out, dr, idx, in.ColumnType(idx), p.lastVal)
		}
		p.pending = append(p.pending, out)
		p.pendRows = append(p.pendRows, dr)
	}
	return out, nil
}

// resolvePending performs linear interpolation across every row buffered
// since the last known value, now that a new known value has arrived.
func (p *interpolateOp) resolvePending(cur *batch.Batch, idx int, next float64) {
	n := len(p.pendRows)
	if n == 0 || !p.haveLast {
		p.pending = nil
		p.pendRows = nil
		return
	}
	step := (next - p.lastVal) / float64(n+1)
	for i := 0; i < n; i++ {
		v := p.lastVal + step*float64(i+1)
		b := p.pending[i]
		writeNumeric(b, p.pendRows[i], idx, b.ColumnType(idx), v)
	}
	p.pending = nil
	p.pendRows = nil
}

func (p *interpolateOp) Flush() (*batch.Batch, error) { return nil, nil }
func (p *interpolateOp) Destroy()                     {}

// normalizeOp rescales a numeric column using statistics accumulated so
// far in the stream: min-max by default, or z-score via a running Welford
// accumulator.
type normalizeOp struct {
	col    string
	method string
	min    float64
	max    float64
	seen   bool
	w      welford
}

func newNormalizeOp(args registry.Args) (registry.Transform, error) {
	return &normalizeOp{col: args.Str("column", ""), method: args.Str("method", "minmax")}, nil
}

func (n *normalizeOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(n.col)
	out := appendColumnBatch(in, n.col+"_norm", batch.TypeFloat64)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v, _ := in.AsFloat64(row, idx)
		if n.method == "zscore" {
			n.w.add(v)
			sd := n.w.stddev()
			if sd == 0 {
				out.SetFloat64(dr, in.NCols(), 0)
			} else {
				out.SetFloat64(dr, in.NCols(), (v-n.w.mean)/sd)
			}
			continue
		}
		if !n.seen {
			n.min, n.max = v, v
			n.seen = true
		} else {
			if v < n.min {
				n.min = v
			}
			if v > n.max {
				n.max = v
			}
		}
		if n.max == n.min {
			out.SetFloat64(dr, in.NCols(), 0)
		} else {
			out.SetFloat64(dr, in.NCols(), (v-n.min)/(n.max-n.min))
		}
	}
	return out, nil
}

func appendColumnBatch(in *batch.Batch, name string, typ batch.Type) *batch.Batch {
	sch := in.Schema()
	out := batch.New(len(sch.Columns)+1, in.NRows())
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	out.SetSchema(len(sch.Columns), name, typ)
	return out
}

func (n *normalizeOp) Flush() (*batch.Batch, error) { return nil, nil }
func (n *normalizeOp) Destroy()                     {}

func inferNormalize(args registry.Args, in batch.Schema) batch.Schema {
	return appendColumn(in, args.Str("column", "")+"_norm", batch.TypeFloat64)
}

// onehotOp appends one BOOL column per declared value of the source
// column. The value set must be declared up front (args "values") since
// the output schema is fixed at compile time.
type onehotOp struct {
	col    string
	values []string
}

func newOnehotOp(args registry.Args) (registry.Transform, error) {
	return &onehotOp{col: args.Str("column", ""), values: args.StrList("values")}, nil
}

func (o *onehotOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(o.col)
	sch := in.Schema()
	out := batch.New(len(sch.Columns)+len(o.values), in.NRows())
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	base := len(sch.Columns)
	for i, v := range o.values {
		out.SetSchema(base+i, o.col+"_"+v, batch.TypeBool)
	}
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := range sch.Columns {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v := cellToString(in, row, idx)
		for i, want := range o.values {
			out.SetBool(dr, base+i, v == want)
		}
	}
	return out, nil
}

func (o *onehotOp) Flush() (*batch.Batch, error) { return nil, nil }
func (o *onehotOp) Destroy()                     {}

func inferOnehot(args registry.Args, in batch.Schema) batch.Schema {
	out := in.Clone()
	col := args.Str("column", "")
	for _, v := range args.StrList("values") {
		out.Columns = append(out.Columns, batch.ColumnDef{Name: col + "_" + v, Type: batch.TypeBool})
	}
	return out
}

// labelEncodeOp maps distinct string values to small integer codes,
// assigned in first-seen order if not declared up front.
type labelEncodeOp struct {
	col   string
	codes map[string]int64
	next  int64
}

func newLabelEncodeOp(args registry.Args) (registry.Transform, error) {
	l := &labelEncodeOp{col: args.Str("column", ""), codes: map[string]int64{}}
	for i, v := range args.StrList("values") {
		l.codes[v] = int64(i)
		l.next = int64(i) + 1
	}
	return l, nil
}

func (l *labelEncodeOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(l.col)
	out := appendColumnBatch(in, l.col+"_code", batch.TypeInt64)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v := cellToString(in, row, idx)
		code, ok := l.codes[v]
		if !ok {
			code = l.next
			l.codes[v] = code
			l.next++
		}
		out.SetInt64(dr, in.NCols(), code)
	}
	return out, nil
}

func (l *labelEncodeOp) Flush() (*batch.Batch, error) { return nil, nil }
func (l *labelEncodeOp) Destroy()                     {}

func inferLabelEncode(args registry.Args, in batch.Schema) batch.Schema {
	return appendColumn(in, args.Str("column", "")+"_code", batch.TypeInt64)
}

// datetimeOp extracts calendar components from a DATE/TIMESTAMP column
// into new INT64 columns, named "<column>_<part>".
type datetimeOp struct {
	col   string
	parts []string
}

func newDatetimeOp(args registry.Args) (registry.Transform, error) {
	parts := args.StrList("parts")
	if len(parts) == 0 {
		parts = []string{"year", "month", "day"}
	}
	return &datetimeOp{col: args.Str("column", ""), parts: parts}, nil
}

func (d *datetimeOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(d.col)
	sch := in.Schema()
	out := batch.New(len(sch.Columns)+len(d.parts), in.NRows())
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	base := len(sch.Columns)
	for i, p := range d.parts {
		out.SetSchema(base+i, d.col+"_"+p, batch.TypeInt64)
	}
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := range sch.Columns {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		t := cellTime(in, row, idx)
		for i, p := range d.parts {
			if v, ok := datetimePart(t, p); ok {
				out.SetInt64(dr, base+i, v)
			}
		}
	}
	return out, nil
}

func cellTime(b *batch.Batch, row, col int) time.Time {
	switch b.ColumnType(col) {
	case batch.TypeDate:
		v, _ := b.GetDate(row, col)
		return time.Unix(int64(v)*86400, 0).UTC()
	case batch.TypeTimestamp:
		v, _ := b.GetTimestamp(row, col)
		return time.Unix(v, 0).UTC()
	default:
		return time.Time{}
	}
}

func datetimePart(t time.Time, part string) (int64, bool) {
	switch part {
	case "year":
		return int64(t.Year()), true
	case "month":
		return int64(t.Month()), true
	case "day":
		return int64(t.Day()), true
	case "hour":
		return int64(t.Hour()), true
	case "minute":
		return int64(t.Minute()), true
	case "second":
		return int64(t.Second()), true
	case "weekday":
		return int64(t.Weekday()), true
	default:
		return 0, false
	}
}

func (d *datetimeOp) Flush() (*batch.Batch, error) { return nil, nil }
func (d *datetimeOp) Destroy()                     {}

func inferDatetime(args registry.Args, in batch.Schema) batch.Schema {
	out := in.Clone()
	col := args.Str("column", "")
	parts := args.StrList("parts")
	if len(parts) == 0 {
		parts = []string{"year", "month", "day"}
	}
	for _, p := range parts {
		out.Columns = append(out.Columns, batch.ColumnDef{Name: col + "_" + p, Type: batch.TypeInt64})
	}
	return out
}

// dateTruncOp truncates a DATE/TIMESTAMP column to a calendar unit,
// writing the result into a new TIMESTAMP column.
type dateTruncOp struct {
	col, unit, result string
}

func newDateTruncOp(args registry.Args) (registry.Transform, error) {
	return &dateTruncOp{
		col:    args.Str("column", ""),
		unit:   args.Str("unit", "day"),
		result: args.Str("result", args.Str("column", "")+"_trunc"),
	}, nil
}

func (d *dateTruncOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(d.col)
	out := appendColumnBatch(in, d.result, batch.TypeTimestamp)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := 0; c < in.NCols(); c++ {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		t := truncTime(cellTime(in, row, idx), d.unit)
		out.SetTimestamp(dr, in.NCols(), t.Unix())
	}
	return out, nil
}

func truncTime(t time.Time, unit string) time.Time {
	switch unit {
	case "year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "hour":
		return t.Truncate(time.Hour)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func (d *dateTruncOp) Flush() (*batch.Batch, error) { return nil, nil }
func (d *dateTruncOp) Destroy()                     {}

func inferDateTrunc(args registry.Args, in batch.Schema) batch.Schema {
	result := args.Str("result", args.Str("column", "")+"_trunc")
	return appendColumn(in, result, batch.TypeTimestamp)
}
