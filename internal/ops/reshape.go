package ops

import (
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

// explodeOp turns one row into n rows, one per delimiter-separated token in
// the named column.
type explodeOp struct {
	col, delim string
}

func newExplodeOp(args registry.Args) (registry.Transform, error) {
	return &explodeOp{col: args.Str("column", ""), delim: args.Str("delimiter", ",")}, nil
}

func (e *explodeOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(e.col)
	sch := in.Schema()
	out := batch.New(len(sch.Columns), in.NRows())
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	for row := 0; row < in.NRows(); row++ {
		if idx < 0 || in.IsNull(row, idx) {
			dr := out.AppendRow()
			for c := range sch.Columns {
				copyCell(out, dr, c, in, row, c)
			}
			continue
		}
		v, _ := in.GetString(row, idx)
		tokens := strings.Split(v, e.delim)
		for _, tok := range tokens {
			dr := out.AppendRow()
			for c := range sch.Columns {
				if c == idx {
					out.SetString(dr, c, tok)
					continue
				}
				copyCell(out, dr, c, in, row, c)
			}
		}
	}
	return out, nil
}

func (e *explodeOp) Flush() (*batch.Batch, error) { return nil, nil }
func (e *explodeOp) Destroy()                     {}

// splitOp turns one STRING column into several named columns by splitting
// on a delimiter; missing tokens leave the corresponding cell null.
type splitOp struct {
	col, delim string
	names      []string
}

func newSplitOp(args registry.Args) (registry.Transform, error) {
	return &splitOp{
		col:   args.Str("column", ""),
		delim: args.Str("delimiter", ","),
		names: args.StrList("names"),
	}, nil
}

func (s *splitOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(s.col)
	sch := in.Schema()
	out := batch.New(len(sch.Columns)+len(s.names), in.NRows())
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	base := len(sch.Columns)
	for i, name := range s.names {
		out.SetSchema(base+i, name, batch.TypeString)
	}
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := range sch.Columns {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v, _ := in.GetString(row, idx)
		toks := strings.Split(v, s.delim)
		for i := range s.names {
			if i < len(toks) {
				out.SetString(dr, base+i, toks[i])
			}
		}
	}
	return out, nil
}

func (s *splitOp) Flush() (*batch.Batch, error) { return nil, nil }
func (s *splitOp) Destroy()                     {}

func inferSplit(args registry.Args, in batch.Schema) batch.Schema {
	out := in.Clone()
	for _, name := range args.StrList("names") {
		out.Columns = append(out.Columns, batch.ColumnDef{Name: name, Type: batch.TypeString})
	}
	return out
}

// unpivotOp melts the named value columns into (name, value) pairs,
// repeating the remaining id columns for each melted value.
type unpivotOp struct {
	valueCols       []string
	nameCol, valCol string
}

func newUnpivotOp(args registry.Args) (registry.Transform, error) {
	return &unpivotOp{
		valueCols: args.StrList("columns"),
		nameCol:   args.Str("name_col", "name"),
		valCol:    args.Str("value_col", "value"),
	}, nil
}

func (u *unpivotOp) Process(in *batch.Batch) (*batch.Batch, error) {
	sch := in.Schema()
	meltSet := map[string]bool{}
	for _, n := range u.valueCols {
		meltSet[n] = true
	}
	var idCols []batch.ColumnDef
	var idIdx []int
	for i, c := range sch.Columns {
		if !meltSet[c.Name] {
			idCols = append(idCols, c)
			idIdx = append(idIdx, i)
		}
	}
	out := batch.New(len(idCols)+2, in.NRows()*len(u.valueCols))
	for i, c := range idCols {
		out.SetSchema(i, c.Name, c.Type)
	}
	out.SetSchema(len(idCols), u.nameCol, batch.TypeString)
	out.SetSchema(len(idCols)+1, u.valCol, batch.TypeString)

	for row := 0; row < in.NRows(); row++ {
		for _, name := range u.valueCols {
			vi := in.ColIndex(name)
			if vi < 0 {
				continue
			}
			dr := out.AppendRow()
			for c, srcIdx := range idIdx {
				copyCell(out, dr, c, in, row, srcIdx)
			}
			out.SetString(dr, len(idCols), name)
			if !in.IsNull(row, vi) {
				out.SetString(dr, len(idCols)+1, cellToString(in, row, vi))
			}
		}
	}
	return out, nil
}

func (u *unpivotOp) Flush() (*batch.Batch, error) { return nil, nil }
func (u *unpivotOp) Destroy()                     {}

func inferUnpivot(args registry.Args, in batch.Schema) batch.Schema {
	meltSet := map[string]bool{}
	for _, n := range args.StrList("columns") {
		meltSet[n] = true
	}
	out := batch.Schema{Known: in.Known}
	for _, c := range in.Columns {
		if !meltSet[c.Name] {
			out.Columns = append(out.Columns, c)
		}
	}
	out.Columns = append(out.Columns,
		batch.ColumnDef{Name: args.Str("name_col", "name"), Type: batch.TypeString},
		batch.ColumnDef{Name: args.Str("value_col", "value"), Type: batch.TypeString})
	return out
}

// splitDataOp assigns each row to "train" or "test" via a deterministic
// seeded coin flip, independent of any other row.
type splitDataOp struct {
	ratio  float64
	result string
	gen    *lcg
}

func newSplitDataOp(args registry.Args) (registry.Transform, error) {
	return &splitDataOp{
		ratio:  args.Num("ratio", 0.8),
		result: args.Str("result", "split"),
		gen:    newLCG(int64(args.Num("seed", 1))),
	}, nil
}

func (s *splitDataOp) Process(in *batch.Batch) (*batch.Batch, error) {
	sch := in.Schema()
	out := appendStringColumn(in, s.result)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := range sch.Columns {
			copyCell(out, dr, c, in, row, c)
		}
		label := "test"
		if s.gen.float64() < s.ratio {
			label = "train"
		}
		out.SetString(dr, len(sch.Columns), label)
	}
	return out, nil
}

func appendStringColumn(in *batch.Batch, name string) *batch.Batch {
	sch := in.Schema()
	out := batch.New(len(sch.Columns)+1, in.NRows())
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	out.SetSchema(len(sch.Columns), name, batch.TypeString)
	return out
}

func (s *splitDataOp) Flush() (*batch.Batch, error) { return nil, nil }
func (s *splitDataOp) Destroy()                     {}

func inferSplitData(args registry.Args, in batch.Schema) batch.Schema {
	return appendColumn(in, args.Str("result", "split"), batch.TypeString)
}
