package ops

import (
	"fmt"
	"sort"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

var allStats = []string{"count", "min", "max", "sum", "avg", "stddev", "variance", "median", "p25", "p75", "p90", "p99", "distinct", "hist", "sample"}

// statsOp emits one row per input column with the requested measures.
type statsOp struct {
	measures []string
	cols     map[string][]float64
	strs     map[string][]string
	order    []string
	colType  map[string]batch.Type
}

func newStatsOp(args registry.Args) (registry.Transform, error) {
	measures := args.StrList("stats")
	if len(measures) == 0 {
		measures = allStats
	}
	return &statsOp{
		measures: measures,
		cols:     map[string][]float64{},
		strs:     map[string][]string{},
		colType:  map[string]batch.Type{},
	}, nil
}

func (s *statsOp) Process(in *batch.Batch) (*batch.Batch, error) {
	sch := in.Schema()
	for c, col := range sch.Columns {
		if _, ok := s.colType[col.Name]; !ok {
			s.order = append(s.order, col.Name)
			s.colType[col.Name] = col.Type
		}
		for row := 0; row < in.NRows(); row++ {
			if in.IsNull(row, c) {
				continue
			}
			if col.Type == batch.TypeString {
				s.strs[col.Name] = append(s.strs[col.Name], cellToString(in, row, c))
				continue
			}
			v, ok := in.AsFloat64(row, c)
			if ok {
				s.cols[col.Name] = append(s.cols[col.Name], v)
			}
		}
	}
	return nil, nil
}

func (s *statsOp) Flush() (*batch.Batch, error) {
	if len(s.order) == 0 {
		return nil, nil
	}
	out := batch.New(len(s.measures)+1, len(s.order))
	out.SetSchema(0, "column", batch.TypeString)
	for i, m := range s.measures {
		out.SetSchema(i+1, m, batch.TypeString)
	}
	for _, name := range s.order {
		dr := out.AppendRow()
		out.SetString(dr, 0, name)
		vals := append([]float64(nil), s.cols[name]...)
		sort.Float64s(vals)
		for i, m := range s.measures {
			txt := computeStat(m, vals, s.strs[name])
			if txt != "" {
				out.SetString(dr, i+1, txt)
			}
		}
	}
	return out, nil
}

func computeStat(measure string, sorted []float64, strs []string) string {
	n := len(sorted)
	switch measure {
	case "count":
		return fmt.Sprintf("%d", n+len(strs))
	case "distinct":
		set := map[string]bool{}
		for _, s := range strs {
			set[s] = true
		}
		for _, v := range sorted {
			set[fmt.Sprintf("%v", v)] = true
		}
		return fmt.Sprintf("%d", len(set))
	case "sample":
		vals := strs
		if len(vals) == 0 {
			for _, v := range sorted {
				vals = append(vals, fmt.Sprintf("%g", v))
			}
		}
		if len(vals) > 5 {
			vals = vals[:5]
		}
		return strings.Join(vals, ",")
	}
	if n == 0 {
		return ""
	}
	switch measure {
	case "min":
		return fmt.Sprintf("%g", sorted[0])
	case "max":
		return fmt.Sprintf("%g", sorted[n-1])
	case "sum":
		var s float64
		for _, v := range sorted {
			s += v
		}
		return fmt.Sprintf("%g", s)
	case "avg":
		var s float64
		for _, v := range sorted {
			s += v
		}
		return fmt.Sprintf("%g", s/float64(n))
	case "stddev", "variance":
		var w welford
		for _, v := range sorted {
			w.add(v)
		}
		if measure == "variance" {
			return fmt.Sprintf("%g", w.variance())
		}
		return fmt.Sprintf("%g", w.stddev())
	case "median":
		return fmt.Sprintf("%g", percentile(sorted, 0.5))
	case "p25":
		return fmt.Sprintf("%g", percentile(sorted, 0.25))
	case "p75":
		return fmt.Sprintf("%g", percentile(sorted, 0.75))
	case "p90":
		return fmt.Sprintf("%g", percentile(sorted, 0.90))
	case "p99":
		return fmt.Sprintf("%g", percentile(sorted, 0.99))
	case "hist":
		return histogram(sorted, 10)
	default:
		return ""
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func histogram(sorted []float64, bins int) string {
	if len(sorted) == 0 {
		return ""
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	counts := make([]int, bins)
	span := hi - lo
	for _, v := range sorted {
		idx := 0
		if span > 0 {
			idx = int((v - lo) / span * float64(bins))
			if idx >= bins {
				idx = bins - 1
			}
		}
		counts[idx]++
	}
	parts := make([]string, bins)
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return fmt.Sprintf("%g:%g:%s", lo, hi, strings.Join(parts, ","))
}

func (s *statsOp) Destroy() {}

func statsSchema(args registry.Args, in batch.Schema) batch.Schema {
	measures := args.StrList("stats")
	if len(measures) == 0 {
		measures = allStats
	}
	out := batch.Schema{Known: true}
	out.Columns = append(out.Columns, batch.ColumnDef{Name: "column", Type: batch.TypeString})
	for _, m := range measures {
		out.Columns = append(out.Columns, batch.ColumnDef{Name: m, Type: batch.TypeString})
	}
	return out
}

// frequencyOp emits value/count pairs sorted by count descending, tiebreak
// value ascending, over the named columns (or all columns as one tuple).
type frequencyOp struct {
	cols   []string
	counts map[string]int64
}

func newFrequencyOp(args registry.Args) (registry.Transform, error) {
	return &frequencyOp{cols: args.StrList("columns"), counts: map[string]int64{}}, nil
}

func (f *frequencyOp) Process(in *batch.Batch) (*batch.Batch, error) {
	names := f.cols
	if len(names) == 0 {
		sch := in.Schema()
		for _, c := range sch.Columns {
			names = append(names, c.Name)
		}
		f.cols = names
	}
	for row := 0; row < in.NRows(); row++ {
		parts := make([]string, len(names))
		for i, name := range names {
			idx := in.ColIndex(name)
			parts[i] = cellToString(in, row, idx)
		}
		f.counts[strings.Join(parts, "\x1f")]++
	}
	return nil, nil
}

func (f *frequencyOp) Flush() (*batch.Batch, error) {
	if len(f.counts) == 0 {
		return nil, nil
	}
	type entry struct {
		value string
		count int64
	}
	entries := make([]entry, 0, len(f.counts))
	for v, c := range f.counts {
		entries = append(entries, entry{v, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].value < entries[j].value
	})
	out := batch.New(2, len(entries))
	out.SetSchema(0, "value", batch.TypeString)
	out.SetSchema(1, "count", batch.TypeInt64)
	for _, e := range entries {
		dr := out.AppendRow()
		out.SetString(dr, 0, strings.ReplaceAll(e.value, "\x1f", ","))
		out.SetInt64(dr, 1, e.count)
	}
	return out, nil
}

func (f *frequencyOp) Destroy() {}

func inferFrequency(args registry.Args, in batch.Schema) batch.Schema {
	return batch.Schema{Known: true, Columns: []batch.ColumnDef{
		{Name: "value", Type: batch.TypeString},
		{Name: "count", Type: batch.TypeInt64},
	}}
}

// groupAggOp groups rows by a key tuple and emits one aggregate row per
// distinct group.
type groupAggOp struct {
	groupBy []string
	aggs    []aggSpec
	groups  map[string]*groupState
	order   []string
}

type aggSpec struct {
	column, fn, result string
}

type groupState struct {
	keyVals []cellValue
	accs    map[string]*aggAcc
}

type aggAcc struct {
	w     welford
	count int64
	sum   float64
	min   float64
	max   float64
	first float64
	seen  bool
}

func newGroupAggOp(args registry.Args) (registry.Transform, error) {
	g := &groupAggOp{groupBy: args.StrList("group_by"), groups: map[string]*groupState{}}
	for _, obj := range args.ObjList("aggs") {
		g.aggs = append(g.aggs, aggSpec{
			column: obj.Str("column", ""),
			fn:     obj.Str("func", "sum"),
			result: obj.Str("result", ""),
		})
	}
	return g, nil
}

func (g *groupAggOp) Process(in *batch.Batch) (*batch.Batch, error) {
	for row := 0; row < in.NRows(); row++ {
		keyParts := make([]string, len(g.groupBy))
		keyVals := make([]cellValue, len(g.groupBy))
		for i, name := range g.groupBy {
			idx := in.ColIndex(name)
			cv := readCell(in, row, idx)
			keyVals[i] = cv
			keyParts[i] = cv.key()
		}
		key := strings.Join(keyParts, "\x1f")
		gs, ok := g.groups[key]
		if !ok {
			gs = &groupState{keyVals: keyVals, accs: map[string]*aggAcc{}}
			g.groups[key] = gs
			g.order = append(g.order, key)
		}
		for _, spec := range g.aggs {
			idx := in.ColIndex(spec.column)
			if idx < 0 || in.IsNull(row, idx) {
				continue
			}
			v, ok := in.AsFloat64(row, idx)
			if !ok {
				continue
			}
			acc := gs.accs[spec.result]
			if acc == nil {
				acc = &aggAcc{}
				gs.accs[spec.result] = acc
			}
			acc.count++
			acc.sum += v
			acc.w.add(v)
			if !acc.seen {
				acc.min, acc.max, acc.first = v, v, v
				acc.seen = true
			} else {
				if v < acc.min {
					acc.min = v
				}
				if v > acc.max {
					acc.max = v
				}
			}
		}
	}
	return nil, nil
}

func (g *groupAggOp) Flush() (*batch.Batch, error) {
	if len(g.order) == 0 {
		return nil, nil
	}
	nCols := len(g.groupBy) + len(g.aggs)
	out := batch.New(nCols, len(g.order))
	for i, name := range g.groupBy {
		out.SetSchema(i, name, batch.TypeString)
	}
	for i, spec := range g.aggs {
		out.SetSchema(len(g.groupBy)+i, spec.result, batch.TypeFloat64)
	}
	for _, key := range g.order {
		gs := g.groups[key]
		dr := out.AppendRow()
		for i, cv := range gs.keyVals {
			if !cv.null {
				out.SetString(dr, i, cv.String())
			}
		}
		for i, spec := range g.aggs {
			acc := gs.accs[spec.result]
			if acc == nil {
				continue
			}
			out.SetFloat64(dr, len(g.groupBy)+i, aggResult(acc, spec.fn))
		}
	}
	return out, nil
}

func aggResult(acc *aggAcc, fn string) float64 {
	switch fn {
	case "count":
		return float64(acc.count)
	case "min":
		return acc.min
	case "max":
		return acc.max
	case "avg":
		return acc.w.mean
	case "first":
		return acc.first
	default: // sum
		return acc.sum
	}
}

func (g *groupAggOp) Destroy() {}

func inferGroupAgg(args registry.Args, in batch.Schema) batch.Schema {
	out := batch.Schema{Known: true}
	for _, name := range args.StrList("group_by") {
		out.Columns = append(out.Columns, batch.ColumnDef{Name: name, Type: batch.TypeString})
	}
	for _, obj := range args.ObjList("aggs") {
		out.Columns = append(out.Columns, batch.ColumnDef{Name: obj.Str("result", ""), Type: batch.TypeFloat64})
	}
	return out
}
