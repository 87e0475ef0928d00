package ops

import (
	"sort"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

// pivotOp turns distinct values of name_column into new columns, keyed by
// the remaining pass-through columns, aggregating value_column by agg.
type pivotOp struct {
	nameCol, valueCol, agg string
	rowKeys                []string
	rowOrder               []string
	nameVals               map[string]bool
	nameOrder              []string
	cells                  map[string]map[string]*aggAcc
}

func newPivotOp(args registry.Args) (registry.Transform, error) {
	return &pivotOp{
		nameCol:  args.Str("name_column", ""),
		valueCol: args.Str("value_column", ""),
		agg:      args.Str("agg", "first"),
		nameVals: map[string]bool{},
		cells:    map[string]map[string]*aggAcc{},
	}, nil
}

func (p *pivotOp) Process(in *batch.Batch) (*batch.Batch, error) {
	sch := in.Schema()
	nameIdx := in.ColIndex(p.nameCol)
	valIdx := in.ColIndex(p.valueCol)
	var keyCols []int
	for c, col := range sch.Columns {
		if col.Name != p.nameCol && col.Name != p.valueCol {
			keyCols = append(keyCols, c)
		}
	}
	if len(p.rowKeys) == 0 {
		for _, c := range keyCols {
			p.rowKeys = append(p.rowKeys, sch.Columns[c].Name)
		}
	}
	for row := 0; row < in.NRows(); row++ {
		parts := make([]string, len(keyCols))
		for i, c := range keyCols {
			parts[i] = cellToString(in, row, c)
		}
		rowKey := strings.Join(parts, "\x1f")
		if _, ok := p.cells[rowKey]; !ok {
			p.cells[rowKey] = map[string]*aggAcc{}
			p.rowOrder = append(p.rowOrder, rowKey)
		}
		if nameIdx < 0 || in.IsNull(row, nameIdx) {
			continue
		}
		nameVal := cellToString(in, row, nameIdx)
		if !p.nameVals[nameVal] {
			p.nameVals[nameVal] = true
			p.nameOrder = append(p.nameOrder, nameVal)
		}
		acc := p.cells[rowKey][nameVal]
		if acc == nil {
			acc = &aggAcc{}
			p.cells[rowKey][nameVal] = acc
		}
		if valIdx < 0 || in.IsNull(row, valIdx) {
			continue
		}
		v, ok := in.AsFloat64(row, valIdx)
		if !ok {
			continue
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
	return nil, nil
}

func (p *pivotOp) Flush() (*batch.Batch, error) {
	if len(p.rowOrder) == 0 {
		return nil, nil
	}
	sort.Strings(p.nameOrder)
	outType := batch.TypeFloat64
	if p.agg == "count" {
		outType = batch.TypeInt64
	}
	nCols := len(p.rowKeys) + len(p.nameOrder)
	out := batch.New(nCols, len(p.rowOrder))
	for i, k := range p.rowKeys {
		out.SetSchema(i, k, batch.TypeString)
	}
	for i, n := range p.nameOrder {
		out.SetSchema(len(p.rowKeys)+i, n, outType)
	}
	for _, rowKey := range p.rowOrder {
		dr := out.AppendRow()
		parts := strings.Split(rowKey, "\x1f")
		for i := range p.rowKeys {
			if i < len(parts) {
				out.SetString(dr, i, parts[i])
			}
		}
		row := p.cells[rowKey]
		for i, n := range p.nameOrder {
			acc := row[n]
			if acc == nil || !acc.seen && p.agg != "count" {
				continue
			}
			if p.agg == "count" {
				out.SetInt64(dr, len(p.rowKeys)+i, acc.count)
				continue
			}
			out.SetFloat64(dr, len(p.rowKeys)+i, aggResult(acc, p.agg))
		}
	}
	return out, nil
}

func (p *pivotOp) Destroy() {}
