package ops

import (
	"strconv"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/codec"
	"github.com/doomsbay/flowkit/internal/registry"
)

// castOp converts cell values to a declared type where the conversion is
// defined; values that cannot be represented become null instead of
// erroring the row out.
type castOp struct {
	mapping map[string]batch.Type
}

func newCastOp(args registry.Args) (registry.Transform, error) {
	c := &castOp{mapping: map[string]batch.Type{}}
	if mv, ok := args["mapping"]; ok && mv.Kind == registry.ArgObject {
		for col, v := range mv.Object {
			if v.Kind != registry.ArgString {
				continue
			}
			if t, ok := castType(v.Str); ok {
				c.mapping[col] = t
			}
		}
	}
	return c, nil
}

func (c *castOp) Process(in *batch.Batch) (*batch.Batch, error) {
	sch := in.Schema()
	out := batch.New(len(sch.Columns), in.NRows())
	types := make([]batch.Type, len(sch.Columns))
	for i, col := range sch.Columns {
		t := col.Type
		if nt, ok := c.mapping[col.Name]; ok {
			t = nt
		}
		types[i] = t
		out.SetSchema(i, col.Name, t)
	}
	for row := 0; row < in.NRows(); row++ {
		dr := out.AppendRow()
		for i := range sch.Columns {
			if in.IsNull(row, i) {
				continue
			}
			castCell(out, dr, i, types[i], in, row, i)
		}
	}
	return out, nil
}

func castCell(dst *batch.Batch, dstRow, dstCol int, want batch.Type, src *batch.Batch, srcRow, srcCol int) {
	srcType := src.ColumnType(srcCol)
	if srcType == want {
		copyCell(dst, dstRow, dstCol, src, srcRow, srcCol)
		return
	}
	if srcType == batch.TypeString && (want == batch.TypeInt64 || want == batch.TypeFloat64) {
		s, _ := src.GetString(srcRow, srcCol)
		s = strings.TrimSpace(s)
		if want == batch.TypeInt64 {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				dst.SetInt64(dstRow, dstCol, v)
			}
		} else if v, err := strconv.ParseFloat(s, 64); err == nil {
			dst.SetFloat64(dstRow, dstCol, v)
		}
		return
	}
	switch want {
	case batch.TypeString:
		dst.SetString(dstRow, dstCol, renderAsString(src, srcRow, srcCol))
	case batch.TypeInt64:
		if v, ok := src.AsFloat64(srcRow, srcCol); ok {
			dst.SetInt64(dstRow, dstCol, int64(v))
		}
	case batch.TypeFloat64:
		if v, ok := src.AsFloat64(srcRow, srcCol); ok {
			dst.SetFloat64(dstRow, dstCol, v)
		}
	case batch.TypeBool:
		if v, ok := src.AsFloat64(srcRow, srcCol); ok {
			dst.SetBool(dstRow, dstCol, v != 0)
		}
	case batch.TypeDate:
		switch srcType {
		case batch.TypeString:
			s, _ := src.GetString(srcRow, srcCol)
			if d, err := codec.ParseDate(s); err == nil {
				dst.SetDate(dstRow, dstCol, d)
			}
		case batch.TypeTimestamp:
			ts, _ := src.GetTimestamp(srcRow, srcCol)
			dst.SetDate(dstRow, dstCol, int32(ts/86400))
		}
	case batch.TypeTimestamp:
		switch srcType {
		case batch.TypeString:
			s, _ := src.GetString(srcRow, srcCol)
			if ts, err := codec.ParseTimestamp(s); err == nil {
				dst.SetTimestamp(dstRow, dstCol, ts)
			}
		case batch.TypeDate:
			d, _ := src.GetDate(srcRow, srcCol)
			dst.SetTimestamp(dstRow, dstCol, int64(d)*86400)
		}
	}
}

func renderAsString(b *batch.Batch, row, col int) string {
	return cellToString(b, row, col)
}

func (c *castOp) Flush() (*batch.Batch, error) { return nil, nil }
func (c *castOp) Destroy()                     {}

func inferCast(args registry.Args, in batch.Schema) batch.Schema {
	out := in.Clone()
	mapping := map[string]batch.Type{}
	if mv, ok := args["mapping"]; ok && mv.Kind == registry.ArgObject {
		for col, v := range mv.Object {
			if v.Kind == registry.ArgString {
				if t, ok := castType(v.Str); ok {
					mapping[col] = t
				}
			}
		}
	}
	for i, col := range out.Columns {
		if t, ok := mapping[col.Name]; ok {
			out.Columns[i].Type = t
		}
	}
	return out
}
