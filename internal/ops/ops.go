// Package ops implements the operator catalogue: streaming, stateful, and
// aggregate transforms that sit between a decoder and an encoder in a
// compiled pipeline.
package ops

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/codec"
	"github.com/doomsbay/flowkit/internal/expr"
	"github.com/doomsbay/flowkit/internal/registry"
)

// cellToString renders any cell as its canonical text form, used by hash,
// cast-to-string, and the pivot/frequency key builders.
func cellToString(b *batch.Batch, row, col int) string {
	if b.IsNull(row, col) {
		return ""
	}
	switch b.ColumnType(col) {
	case batch.TypeString:
		v, _ := b.GetString(row, col)
		return v
	case batch.TypeBool:
		v, _ := b.GetBool(row, col)
		return strconv.FormatBool(v)
	case batch.TypeInt64:
		v, _ := b.GetInt64(row, col)
		return strconv.FormatInt(v, 10)
	case batch.TypeFloat64:
		v, _ := b.GetFloat64(row, col)
		return strconv.FormatFloat(v, 'g', -1, 64)
	case batch.TypeDate:
		v, _ := b.GetDate(row, col)
		return codec.FormatDate(v)
	case batch.TypeTimestamp:
		v, _ := b.GetTimestamp(row, col)
		return codec.FormatTimestamp(v)
	default:
		return ""
	}
}

// Sink exposes a transform's ability to emit side-channel lines.
type Sink = registry.Sink

// cellValue is a type-tagged scalar used by operators that need to move
// values between columns without forcing a particular representation
// (sort keys; group, unique and join keys).
type cellValue struct {
	typ  batch.Type
	null bool
	b    bool
	n    float64
	s    string
}

func readCell(b *batch.Batch, row, col int) cellValue {
	if col < 0 || b.IsNull(row, col) {
		return cellValue{null: true}
	}
	typ := b.ColumnType(col)
	switch typ {
	case batch.TypeString:
		v, _ := b.GetString(row, col)
		return cellValue{typ: typ, s: v}
	case batch.TypeBool:
		v, _ := b.GetBool(row, col)
		return cellValue{typ: typ, b: v}
	default:
		v, ok := b.AsFloat64(row, col)
		if !ok {
			return cellValue{null: true}
		}
		return cellValue{typ: typ, n: v}
	}
}

func (v cellValue) key() string {
	if v.null {
		return "\x00null"
	}
	switch v.typ {
	case batch.TypeString:
		return "s:" + v.s
	case batch.TypeBool:
		if v.b {
			return "b:1"
		}
		return "b:0"
	default:
		return "n:" + strconv.FormatFloat(v.n, 'g', -1, 64)
	}
}

func (v cellValue) String() string {
	if v.null {
		return ""
	}
	switch v.typ {
	case batch.TypeString:
		return v.s
	case batch.TypeBool:
		return strconv.FormatBool(v.b)
	default:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	}
}

// compareCells implements the sort operator's comparison: numeric for
// INT64/FLOAT64/DATE/TIMESTAMP/BOOL, byte-wise for STRING, nulls sort last.
func compareCells(a, b cellValue) int {
	if a.null && b.null {
		return 0
	}
	if a.null {
		return 1
	}
	if b.null {
		return -1
	}
	if a.typ == batch.TypeString || b.typ == batch.TypeString {
		as, bs := a.String(), b.String()
		if as < bs {
			return -1
		}
		if as > bs {
			return 1
		}
		return 0
	}
	an, bn := a.n, b.n
	if a.typ == batch.TypeBool {
		an = boolNum(a.b)
	}
	if b.typ == batch.TypeBool {
		bn = boolNum(b.b)
	}
	if an < bn {
		return -1
	}
	if an > bn {
		return 1
	}
	return 0
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// djb2 computes the classic Bernstein hash over the concatenation of
// cell strings, separated by a sentinel byte that cannot appear in a
// rendered cell's normal text.
func djb2(parts []string) uint64 {
	var h uint64 = 5381
	const sep = byte(0x1f)
	for i, p := range parts {
		if i > 0 {
			h = (h << 5) + h + uint64(sep)
		}
		for j := 0; j < len(p); j++ {
			h = (h << 5) + h + uint64(p[j])
		}
	}
	return h
}

// lcg is the deterministic seeded linear congruential generator shared by
// sample, split_data, and anywhere else the catalogue needs a reproducible
// per-row coin flip. Parameters are Knuth's MMIX multiplier and increment.
type lcg struct{ state uint64 }

func newLCG(seed int64) *lcg {
	return &lcg{state: uint64(seed)}
}

func (g *lcg) next() uint64 {
	g.state = g.state*6364136223846793005 + 1442695040888963407
	return g.state >> 16
}

func (g *lcg) float64() float64 {
	return float64(g.next()%(1<<53)) / float64(uint64(1)<<53)
}

// welford tracks an online mean/variance accumulator (Welford's method).
type welford struct {
	n    int64
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

func (w *welford) variance() float64 {
	if w.n < 2 {
		return 0
	}
	return w.m2 / float64(w.n-1)
}

func (w *welford) stddev() float64 {
	v := w.variance()
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// colArgNames resolves a "columns" array arg into a []string; an absent or
// empty arg means "all columns" and is resolved against the input schema.
func colArgNames(args registry.Args, key string, in batch.Schema) []string {
	names := args.StrList(key)
	if len(names) > 0 {
		return names
	}
	out := make([]string, len(in.Columns))
	for i, c := range in.Columns {
		out[i] = c.Name
	}
	return out
}

func schemaWithout(in batch.Schema, keep []string) batch.Schema {
	out := batch.Schema{Known: in.Known}
	for _, name := range keep {
		idx := in.ColIndex(name)
		if idx < 0 {
			continue
		}
		out.Columns = append(out.Columns, in.Columns[idx])
	}
	return out
}

func appendColumn(in batch.Schema, name string, typ batch.Type) batch.Schema {
	out := in.Clone()
	out.Columns = append(out.Columns, batch.ColumnDef{Name: name, Type: typ})
	return out
}

func statsLine(op string, rowsIn, rowsOut int) string {
	return fmt.Sprintf(`{"op":%q,"rows_in":%d,"rows_out":%d}`, op, rowsIn, rowsOut)
}

// copyBatchSubset builds a new batch containing only rows[idx] for idx in
// order, re-interning through the destination arena (never aliasing src).
func copyBatchSubset(src *batch.Batch, rows []int) *batch.Batch {
	out := batch.New(src.NCols(), len(rows))
	sch := src.Schema()
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	for _, r := range rows {
		dr := out.AppendRow()
		batch.CopyRow(out, dr, src, r)
	}
	return out
}

// exprOracle adapts *expr.Expr to the minimal interface operators need,
// isolating the rest of this package from the expr package's exact shape.
type exprOracle struct {
	e *expr.Expr
}

func compileExpr(text string) (*exprOracle, error) {
	e, err := expr.Parse(text)
	if err != nil {
		return nil, err
	}
	return &exprOracle{e: e}, nil
}

func (o *exprOracle) bool(b *batch.Batch, row int) bool {
	return expr.EvalBool(o.e, b, row)
}

func (o *exprOracle) value(b *batch.Batch, row int) expr.Value {
	return expr.EvalValue(o.e, b, row)
}

func sortStrings(s []string) {
	sort.Strings(s)
}

func trimASCII(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
	})
}
