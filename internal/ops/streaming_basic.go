package ops

import (
	"fmt"
	"strconv"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/expr"
	"github.com/doomsbay/flowkit/internal/registry"
)

// filterOp emits rows where the oracle evaluates true; rows it cannot
// evaluate are dropped silently, never reported as an error.
type filterOp struct {
	oracle *exprOracle
	sink   Sink
}

func newFilterOp(args registry.Args, sink Sink) (registry.Transform, error) {
	o, err := compileExpr(args.Str("expr", ""))
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return &filterOp{oracle: o, sink: sink}, nil
}

func (f *filterOp) Process(in *batch.Batch) (*batch.Batch, error) {
	var rows []int
	for r := 0; r < in.NRows(); r++ {
		if f.oracle.bool(in, r) {
			rows = append(rows, r)
		}
	}
	out := copyBatchSubset(in, rows)
	if f.sink != nil {
		f.sink.WriteStats(statsLine("filter", in.NRows(), len(rows)))
	}
	return out, nil
}

func (f *filterOp) Flush() (*batch.Batch, error) { return nil, nil }
func (f *filterOp) Destroy()                     {}

// validateOp routes rows failing the predicate to ERRORS instead of
// dropping them silently; rows passing continue on MAIN unchanged.
type validateOp struct {
	oracle *exprOracle
	sink   Sink
}

func newValidateOp(args registry.Args, sink Sink) (registry.Transform, error) {
	o, err := compileExpr(args.Str("expr", ""))
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &validateOp{oracle: o, sink: sink}, nil
}

func (v *validateOp) Process(in *batch.Batch) (*batch.Batch, error) {
	var rows []int
	for r := 0; r < in.NRows(); r++ {
		if v.oracle.bool(in, r) {
			rows = append(rows, r)
			continue
		}
		if v.sink != nil {
			v.sink.WriteErrors(fmt.Sprintf(`{"op":"validate","row":%d}`, r))
		}
	}
	return copyBatchSubset(in, rows), nil
}

func (v *validateOp) Flush() (*batch.Batch, error) { return nil, nil }
func (v *validateOp) Destroy()                     {}

// headOp emits rows until n have been emitted, then drops everything,
// including subsequent whole batches.
type headOp struct {
	n, seen int
}

func newHeadOp(args registry.Args) (registry.Transform, error) {
	return &headOp{n: args.Int("n", 0)}, nil
}

func (h *headOp) Process(in *batch.Batch) (*batch.Batch, error) {
	if h.seen >= h.n {
		return nil, nil
	}
	var rows []int
	for r := 0; r < in.NRows() && h.seen < h.n; r++ {
		rows = append(rows, r)
		h.seen++
	}
	return copyBatchSubset(in, rows), nil
}

func (h *headOp) Flush() (*batch.Batch, error) { return nil, nil }
func (h *headOp) Destroy()                     {}

// skipOp discards the first n rows across all batches, then passes the
// remainder through unchanged.
type skipOp struct {
	n, seen int
}

func newSkipOp(args registry.Args) (registry.Transform, error) {
	return &skipOp{n: args.Int("n", 0)}, nil
}

func (s *skipOp) Process(in *batch.Batch) (*batch.Batch, error) {
	if s.seen >= s.n {
		return in, nil
	}
	var rows []int
	for r := 0; r < in.NRows(); r++ {
		if s.seen < s.n {
			s.seen++
			continue
		}
		rows = append(rows, r)
	}
	return copyBatchSubset(in, rows), nil
}

func (s *skipOp) Flush() (*batch.Batch, error) { return nil, nil }
func (s *skipOp) Destroy()                     {}

// selectOp reorders and drops columns to match the requested list.
type selectOp struct {
	names []string
}

func newSelectOp(args registry.Args) (registry.Transform, error) {
	names := args.StrList("columns")
	if len(names) == 0 {
		return nil, fmt.Errorf("select: columns required")
	}
	return &selectOp{names: names}, nil
}

func (s *selectOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idxs := make([]int, len(s.names))
	for i, name := range s.names {
		idxs[i] = in.ColIndex(name)
	}
	out := batch.New(len(s.names), in.NRows())
	for i, idx := range idxs {
		if idx < 0 {
			out.SetSchema(i, s.names[i], batch.TypeString)
			continue
		}
		out.SetSchema(i, in.ColumnName(idx), in.ColumnType(idx))
	}
	for r := 0; r < in.NRows(); r++ {
		dr := out.AppendRow()
		for i, idx := range idxs {
			if idx < 0 {
				continue
			}
			copyCell(out, dr, i, in, r, idx)
		}
	}
	return out, nil
}

func (s *selectOp) Flush() (*batch.Batch, error) { return nil, nil }
func (s *selectOp) Destroy()                     {}

func inferSelect(args registry.Args, in batch.Schema) batch.Schema {
	return schemaWithout(in, args.StrList("columns"))
}

// renameOp applies a per-name mapping, passing unlisted columns through.
type renameOp struct {
	mapping map[string]string
}

func newRenameOp(args registry.Args) (registry.Transform, error) {
	m := map[string]string{}
	for _, obj := range args.ObjList("mapping") {
		from := obj.Str("from", "")
		to := obj.Str("to", "")
		if from != "" && to != "" {
			m[from] = to
		}
	}
	if mv, ok := args["mapping"]; ok && mv.Kind == registry.ArgObject {
		for k, v := range mv.Object {
			if v.Kind == registry.ArgString {
				m[k] = v.Str
			}
		}
	}
	return &renameOp{mapping: m}, nil
}

func (r *renameOp) Process(in *batch.Batch) (*batch.Batch, error) {
	sch := in.Schema()
	out := batch.New(len(sch.Columns), in.NRows())
	for i, c := range sch.Columns {
		name := c.Name
		if to, ok := r.mapping[name]; ok {
			name = to
		}
		out.SetSchema(i, name, c.Type)
	}
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for i := range sch.Columns {
			copyCell(out, dr, i, in, row, i)
		}
	}
	return out, nil
}

func (r *renameOp) Flush() (*batch.Batch, error) { return nil, nil }
func (r *renameOp) Destroy()                     {}

func inferRenameSchema(args registry.Args, in batch.Schema) batch.Schema {
	mapping := map[string]string{}
	if mv, ok := args["mapping"]; ok && mv.Kind == registry.ArgObject {
		for k, v := range mv.Object {
			if v.Kind == registry.ArgString {
				mapping[k] = v.Str
			}
		}
	}
	out := in.Clone()
	for i, c := range out.Columns {
		if to, ok := mapping[c.Name]; ok {
			out.Columns[i].Name = to
		}
	}
	return out
}

// copyCell copies one cell by type, re-interning strings through dst's
// arena rather than aliasing src's.
func copyCell(dst *batch.Batch, dstRow, dstCol int, src *batch.Batch, srcRow, srcCol int) {
	if src.IsNull(srcRow, srcCol) {
		return
	}
	switch src.ColumnType(srcCol) {
	case batch.TypeBool:
		v, _ := src.GetBool(srcRow, srcCol)
		dst.SetBool(dstRow, dstCol, v)
	case batch.TypeInt64:
		v, _ := src.GetInt64(srcRow, srcCol)
		dst.SetInt64(dstRow, dstCol, v)
	case batch.TypeFloat64:
		v, _ := src.GetFloat64(srcRow, srcCol)
		dst.SetFloat64(dstRow, dstCol, v)
	case batch.TypeString:
		v, _ := src.GetString(srcRow, srcCol)
		dst.SetString(dstRow, dstCol, v)
	case batch.TypeDate:
		v, _ := src.GetDate(srcRow, srcCol)
		dst.SetDate(dstRow, dstCol, v)
	case batch.TypeTimestamp:
		v, _ := src.GetTimestamp(srcRow, srcCol)
		dst.SetTimestamp(dstRow, dstCol, v)
	}
}

// deriveOp appends new columns computed by the oracle's eval_value.
type deriveOp struct {
	names   []string
	oracles []*exprOracle
}

func newDeriveOp(args registry.Args) (registry.Transform, error) {
	d := &deriveOp{}
	for _, obj := range args.ObjList("columns") {
		name := obj.Str("name", "")
		exprText := obj.Str("expr", "")
		if name == "" || exprText == "" {
			continue
		}
		o, err := compileExpr(exprText)
		if err != nil {
			return nil, fmt.Errorf("derive %q: %w", name, err)
		}
		d.names = append(d.names, name)
		d.oracles = append(d.oracles, o)
	}
	return d, nil
}

func (d *deriveOp) Process(in *batch.Batch) (*batch.Batch, error) {
	sch := in.Schema()
	nOld := len(sch.Columns)
	nRows := in.NRows()

	// Evaluate every derived column up front: the column's own type isn't
	// known until its expression has actually run, since col(age)*2 could
	// be a float, a bool comparison, or a string concat depending on the
	// expression. Widen across rows the same way the CSV decoder widens a
	// column's natural type, then allocate storage that matches.
	values := make([][]expr.Value, len(d.names))
	colTypes := make([]batch.Type, len(d.names))
	for i := range d.names {
		values[i] = make([]expr.Value, nRows)
		for row := 0; row < nRows; row++ {
			v := d.oracles[i].value(in, row)
			values[i][row] = v
			if !v.Null {
				colTypes[i] = widenExprType(colTypes[i], v.Type)
			}
		}
		if colTypes[i] == batch.TypeUnknown {
			colTypes[i] = batch.TypeString
		}
	}

	out := batch.New(nOld+len(d.names), nRows)
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	for i, name := range d.names {
		out.SetSchema(nOld+i, name, colTypes[i])
	}
	for row := 0; row < nRows; row++ {
		dr := out.AppendRow()
		for c := 0; c < nOld; c++ {
			copyCell(out, dr, c, in, row, c)
		}
		for i := range d.names {
			writeExprValueAs(out, dr, nOld+i, colTypes[i], values[i][row])
		}
	}
	return out, nil
}

// widenExprType combines the running best type for a derived column with
// one more observed expr.Value's type: bool/string stay exact, any numeric
// family widens to float64, and a bool or string meeting a numeric value
// widens all the way to string.
func widenExprType(cur, next batch.Type) batch.Type {
	if cur == batch.TypeUnknown {
		return next
	}
	if cur == next {
		return cur
	}
	if cur == batch.TypeBool || next == batch.TypeBool || cur == batch.TypeString || next == batch.TypeString {
		return batch.TypeString
	}
	return batch.TypeFloat64
}

// writeExprValueAs writes v into a column already declared as typ,
// coercing a numeric value into typ's concrete representation.
func writeExprValueAs(b *batch.Batch, row, col int, typ batch.Type, v expr.Value) {
	if v.Null {
		return
	}
	switch typ {
	case batch.TypeBool:
		b.SetBool(row, col, v.Bool)
	case batch.TypeString:
		b.SetString(row, col, exprValueAsString(v))
	default:
		b.SetFloat64(row, col, v.Num)
	}
}

func exprValueAsString(v expr.Value) string {
	if v.Type == batch.TypeString {
		return v.Str
	}
	if v.Type == batch.TypeBool {
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}

func (d *deriveOp) Flush() (*batch.Batch, error) { return nil, nil }
func (d *deriveOp) Destroy()                     {}

func inferDerive(args registry.Args, in batch.Schema) batch.Schema {
	out := in.Clone()
	for _, obj := range args.ObjList("columns") {
		name := obj.Str("name", "")
		if name == "" {
			continue
		}
		out.Columns = append(out.Columns, batch.ColumnDef{Name: name, Type: batch.TypeUnknown})
	}
	return out
}

func castType(name string) (batch.Type, bool) {
	switch name {
	case "bool":
		return batch.TypeBool, true
	case "int64", "int":
		return batch.TypeInt64, true
	case "float64", "float":
		return batch.TypeFloat64, true
	case "string", "str":
		return batch.TypeString, true
	case "date":
		return batch.TypeDate, true
	case "timestamp":
		return batch.TypeTimestamp, true
	default:
		return batch.TypeUnknown, false
	}
}
