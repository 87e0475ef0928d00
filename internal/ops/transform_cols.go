package ops

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

// trimOp strips ASCII whitespace from string cells in the named columns,
// or every STRING column when none are named.
type trimOp struct {
	cols []string
}

func newTrimOp(args registry.Args) (registry.Transform, error) {
	return &trimOp{cols: args.StrList("columns")}, nil
}

func (t *trimOp) Process(in *batch.Batch) (*batch.Batch, error) {
	targets := t.cols
	sch := in.Schema()
	if len(targets) == 0 {
		for _, c := range sch.Columns {
			if c.Type == batch.TypeString {
				targets = append(targets, c.Name)
			}
		}
	}
	idxSet := map[int]bool{}
	for _, name := range targets {
		if idx := in.ColIndex(name); idx >= 0 {
			idxSet[idx] = true
		}
	}
	out := cloneShape(in)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := range sch.Columns {
			if idxSet[c] && !in.IsNull(row, c) {
				v, _ := in.GetString(row, c)
				out.SetString(dr, c, trimASCII(v))
				continue
			}
			copyCell(out, dr, c, in, row, c)
		}
	}
	return out, nil
}

func (t *trimOp) Flush() (*batch.Batch, error) { return nil, nil }
func (t *trimOp) Destroy()                     {}

func cloneShape(in *batch.Batch) *batch.Batch {
	sch := in.Schema()
	out := batch.New(len(sch.Columns), in.NRows())
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	return out
}

// fillNullOp fills null cells with a per-column constant.
type fillNullOp struct {
	values map[string]registry.ArgValue
}

func newFillNullOp(args registry.Args) (registry.Transform, error) {
	f := &fillNullOp{values: map[string]registry.ArgValue{}}
	if mv, ok := args["mapping"]; ok && mv.Kind == registry.ArgObject {
		for k, v := range mv.Object {
			f.values[k] = v
		}
	}
	return f, nil
}

func (f *fillNullOp) Process(in *batch.Batch) (*batch.Batch, error) {
	sch := in.Schema()
	out := cloneShape(in)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c, col := range sch.Columns {
			if !in.IsNull(row, c) {
				copyCell(out, dr, c, in, row, c)
				continue
			}
			fv, ok := f.values[col.Name]
			if !ok {
				continue
			}
			setArgValue(out, dr, c, col.Type, fv)
		}
	}
	return out, nil
}

func setArgValue(b *batch.Batch, row, col int, typ batch.Type, v registry.ArgValue) {
	switch typ {
	case batch.TypeString:
		b.SetString(row, col, v.Str)
	case batch.TypeBool:
		b.SetBool(row, col, v.Bool)
	case batch.TypeInt64:
		b.SetInt64(row, col, int64(v.Num))
	case batch.TypeFloat64:
		b.SetFloat64(row, col, v.Num)
	}
}

func (f *fillNullOp) Flush() (*batch.Batch, error) { return nil, nil }
func (f *fillNullOp) Destroy()                     {}

// fillDownOp carries the last non-null value by column, across rows and
// across batches.
type fillDownOp struct {
	cols []string
	last map[string]registry.ArgValue
	has  map[string]bool
}

func newFillDownOp(args registry.Args) (registry.Transform, error) {
	return &fillDownOp{
		cols: args.StrList("columns"),
		last: map[string]registry.ArgValue{},
		has:  map[string]bool{},
	}, nil
}

func (f *fillDownOp) Process(in *batch.Batch) (*batch.Batch, error) {
	sch := in.Schema()
	targets := f.cols
	if len(targets) == 0 {
		for _, c := range sch.Columns {
			targets = append(targets, c.Name)
		}
	}
	targetSet := map[string]bool{}
	for _, t := range targets {
		targetSet[t] = true
	}
	out := cloneShape(in)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c, col := range sch.Columns {
			if !targetSet[col.Name] {
				copyCell(out, dr, c, in, row, c)
				continue
			}
			if !in.IsNull(row, c) {
				copyCell(out, dr, c, in, row, c)
				f.last[col.Name] = valueAt(in, row, c, col.Type)
				f.has[col.Name] = true
				continue
			}
			if f.has[col.Name] {
				setArgValue(out, dr, c, col.Type, f.last[col.Name])
			}
		}
	}
	return out, nil
}

func valueAt(b *batch.Batch, row, col int, typ batch.Type) registry.ArgValue {
	switch typ {
	case batch.TypeString:
		v, _ := b.GetString(row, col)
		return registry.ArgValue{Kind: registry.ArgString, Str: v}
	case batch.TypeBool:
		v, _ := b.GetBool(row, col)
		return registry.ArgValue{Kind: registry.ArgBool, Bool: v}
	default:
		v, _ := b.AsFloat64(row, col)
		return registry.ArgValue{Kind: registry.ArgNumber, Num: v}
	}
}

func (f *fillDownOp) Flush() (*batch.Batch, error) { return nil, nil }
func (f *fillDownOp) Destroy()                     {}

// clipOp clamps numeric values in one column to [min, max].
type clipOp struct {
	col      string
	min, max float64
	hasMin   bool
	hasMax   bool
}

func newClipOp(args registry.Args) (registry.Transform, error) {
	c := &clipOp{col: args.Str("column", "")}
	if args.Present("min") {
		c.min = args.Num("min", 0)
		c.hasMin = true
	}
	if args.Present("max") {
		c.max = args.Num("max", 0)
		c.hasMax = true
	}
	return c, nil
}

func (c *clipOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(c.col)
	out := cloneShape(in)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for col := 0; col < in.NCols(); col++ {
			if col != idx || idx < 0 || in.IsNull(row, col) {
				copyCell(out, dr, col, in, row, col)
				continue
			}
			v, _ := in.AsFloat64(row, col)
			if c.hasMin && v < c.min {
				v = c.min
			}
			if c.hasMax && v > c.max {
				v = c.max
			}
			writeNumeric(out, dr, col, in.ColumnType(col), v)
		}
	}
	return out, nil
}

func writeNumeric(b *batch.Batch, row, col int, typ batch.Type, v float64) {
	switch typ {
	case batch.TypeInt64:
		b.SetInt64(row, col, int64(v))
	case batch.TypeDate:
		b.SetDate(row, col, int32(v))
	case batch.TypeTimestamp:
		b.SetTimestamp(row, col, int64(v))
	default:
		b.SetFloat64(row, col, v)
	}
}

func (c *clipOp) Flush() (*batch.Batch, error) { return nil, nil }
func (c *clipOp) Destroy()                     {}

// replaceOp substitutes text in one STRING column, either by literal
// substring or by a POSIX extended regex.
type replaceOp struct {
	col         string
	replacement string
	literal     string
	re          *regexp.Regexp
}

func newReplaceOp(args registry.Args) (registry.Transform, error) {
	r := &replaceOp{col: args.Str("column", ""), replacement: args.Str("replacement", "")}
	pattern := args.Str("pattern", "")
	if args.BoolArg("regex", false) {
		re, err := regexp.CompilePOSIX(pattern)
		if err != nil {
			return nil, fmt.Errorf("replace: %w", err)
		}
		r.re = re
	} else {
		r.literal = pattern
	}
	return r, nil
}

func (r *replaceOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(r.col)
	out := cloneShape(in)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for col := 0; col < in.NCols(); col++ {
			if col != idx || idx < 0 || in.IsNull(row, col) {
				copyCell(out, dr, col, in, row, col)
				continue
			}
			v, _ := in.GetString(row, col)
			if r.re != nil {
				v = r.re.ReplaceAllString(v, r.replacement)
			} else {
				v = strings.ReplaceAll(v, r.literal, r.replacement)
			}
			out.SetString(dr, col, v)
		}
	}
	return out, nil
}

func (r *replaceOp) Flush() (*batch.Batch, error) { return nil, nil }
func (r *replaceOp) Destroy()                     {}

// hashOp appends a "_hash" column holding the DJB2 hash of the requested
// columns (or all columns, concatenated with a separator byte).
type hashOp struct {
	cols []string
}

func newHashOp(args registry.Args) (registry.Transform, error) {
	return &hashOp{cols: args.StrList("columns")}, nil
}

func (h *hashOp) Process(in *batch.Batch) (*batch.Batch, error) {
	names := h.cols
	if len(names) == 0 {
		sch := in.Schema()
		for _, c := range sch.Columns {
			names = append(names, c.Name)
		}
	}
	sch := in.Schema()
	out := batch.New(len(sch.Columns)+1, in.NRows())
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	out.SetSchema(len(sch.Columns), "_hash", batch.TypeInt64)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := range sch.Columns {
			copyCell(out, dr, c, in, row, c)
		}
		parts := make([]string, len(names))
		for i, name := range names {
			idx := in.ColIndex(name)
			parts[i] = cellToString(in, row, idx)
		}
		out.SetInt64(dr, len(sch.Columns), int64(djb2(parts)))
	}
	return out, nil
}

func (h *hashOp) Flush() (*batch.Batch, error) { return nil, nil }
func (h *hashOp) Destroy()                     {}

func inferHash(args registry.Args, in batch.Schema) batch.Schema {
	return appendColumn(in, "_hash", batch.TypeInt64)
}

// binOp assigns the index of the half-open interval [boundaries[i],
// boundaries[i+1]) that a numeric cell falls into, appending "_bin".
type binOp struct {
	col        string
	boundaries []float64
}

func newBinOp(args registry.Args) (registry.Transform, error) {
	b := &binOp{col: args.Str("column", "")}
	for _, v := range args["boundaries"].Array {
		b.boundaries = append(b.boundaries, v.Num)
	}
	return b, nil
}

func (b *binOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(b.col)
	sch := in.Schema()
	out := batch.New(len(sch.Columns)+1, in.NRows())
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	out.SetSchema(len(sch.Columns), b.col+"_bin", batch.TypeInt64)
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for c := range sch.Columns {
			copyCell(out, dr, c, in, row, c)
		}
		if idx < 0 || in.IsNull(row, idx) {
			continue
		}
		v, _ := in.AsFloat64(row, idx)
		bin := binIndex(b.boundaries, v)
		if bin >= 0 {
			out.SetInt64(dr, len(sch.Columns), int64(bin))
		}
	}
	return out, nil
}

func binIndex(boundaries []float64, v float64) int {
	for i := 0; i+1 < len(boundaries); i++ {
		if v >= boundaries[i] && v < boundaries[i+1] {
			return i
		}
	}
	return -1
}

func (b *binOp) Flush() (*batch.Batch, error) { return nil, nil }
func (b *binOp) Destroy()                     {}

func inferBin(args registry.Args, in batch.Schema) batch.Schema {
	return appendColumn(in, args.Str("column", "")+"_bin", batch.TypeInt64)
}
