package ops

import (
	"fmt"
	"io"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/codec"
	"github.com/doomsbay/flowkit/internal/registry"
)

// loadCSVFile reads an entire CSV file from disk into batches, used by
// join and stack to materialize their second input on flush.
func loadCSVFile(path string) ([]*batch.Batch, error) {
	f, err := codec.OpenInput(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dec := codec.NewCSVDecoder(codec.CSVConfig{Header: true}, nil)
	var out []*batch.Batch
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			batches, derr := dec.Decode(buf[:n])
			if derr != nil {
				return nil, derr
			}
			out = append(out, batches...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	tail, err := dec.Flush()
	if err != nil {
		return nil, err
	}
	out = append(out, tail...)
	return out, nil
}

// joinOp reads a second CSV from disk on flush and joins it against the
// buffered left input, inner or left.
type joinOp struct {
	bufferingOp
	file  string
	lhsOn string
	rhsOn string
	how   string
}

func newJoinOp(args registry.Args) (registry.Transform, error) {
	on := args.Str("on", "")
	lhs, rhs := on, on
	if idx := strings.Index(on, "="); idx >= 0 {
		lhs, rhs = on[:idx], on[idx+1:]
	}
	how := args.Str("how", "inner")
	return &joinOp{file: args.Str("file", ""), lhsOn: lhs, rhsOn: rhs, how: how}, nil
}

func (j *joinOp) Process(in *batch.Batch) (*batch.Batch, error) {
	j.absorb(in)
	return nil, nil
}

func (j *joinOp) Flush() (*batch.Batch, error) {
	rightBatches, err := loadCSVFile(j.file)
	if err != nil {
		return nil, err
	}
	if j.nRows() == 0 {
		return nil, nil
	}
	lsch := j.rows[0].Schema()
	var rsch batch.Schema
	if len(rightBatches) > 0 {
		rsch = rightBatches[0].Schema()
	}
	lIdx := lsch.ColIndex(j.lhsOn)
	rIdx := rsch.ColIndex(j.rhsOn)

	rightIndex := map[string][]int{}
	type rref struct {
		b *batch.Batch
		r int
	}
	var rightRows []rref
	for _, rb := range rightBatches {
		for r := 0; r < rb.NRows(); r++ {
			key := readCell(rb, r, rIdx).key()
			rightIndex[key] = append(rightIndex[key], len(rightRows))
			rightRows = append(rightRows, rref{rb, r})
		}
	}

	nCols := len(lsch.Columns) + len(rsch.Columns)
	out := batch.New(nCols, j.nRows())
	for i, c := range lsch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	base := len(lsch.Columns)
	for i, c := range rsch.Columns {
		name := c.Name
		if lsch.ColIndex(name) >= 0 {
			name = name + "_right"
		}
		out.SetSchema(base+i, name, c.Type)
	}

	for i := 0; i < j.nRows(); i++ {
		key := j.cell(i, lIdx).key()
		matches := rightIndex[key]
		if len(matches) == 0 {
			if j.how == "left" {
				dr := out.AppendRow()
				batch.CopyRow(out, dr, j.rows[i], j.idx[i])
			}
			continue
		}
		for _, mi := range matches {
			dr := out.AppendRow()
			batch.CopyRow(out, dr, j.rows[i], j.idx[i])
			rr := rightRows[mi]
			copyRowInto(out, dr, base, rr.b, rr.r)
		}
	}
	return out, nil
}

// copyRowInto copies every cell of src row r into dst row dr starting at
// column offset base (used for the right side of a join, whose schema
// follows the left side's in the output).
func copyRowInto(dst *batch.Batch, dr, base int, src *batch.Batch, r int) {
	for c := 0; c < src.NCols(); c++ {
		copyCell(dst, dr, base+c, src, r, c)
	}
}

func (j *joinOp) Destroy() { j.rows, j.idx = nil, nil }

// stackOp appends rows from a second CSV file read on flush, optionally
// tagging each side's rows with a constant in a tag column.
type stackOp struct {
	bufferingOp
	file, tag, tagValue string
}

func newStackOp(args registry.Args) (registry.Transform, error) {
	return &stackOp{file: args.Str("file", ""), tag: args.Str("tag", ""), tagValue: args.Str("tag_value", "left")}, nil
}

func (s *stackOp) Process(in *batch.Batch) (*batch.Batch, error) {
	s.absorb(in)
	return nil, nil
}

func (s *stackOp) Flush() (*batch.Batch, error) {
	otherBatches, err := loadCSVFile(s.file)
	if err != nil {
		return nil, err
	}
	var sch batch.Schema
	if s.nRows() > 0 {
		sch = s.rows[0].Schema()
	} else if len(otherBatches) > 0 {
		sch = otherBatches[0].Schema()
	} else {
		return nil, nil
	}
	nCols := len(sch.Columns)
	hasTag := s.tag != ""
	if hasTag {
		nCols++
	}
	total := s.nRows()
	for _, b := range otherBatches {
		total += b.NRows()
	}
	out := batch.New(nCols, total)
	for i, c := range sch.Columns {
		out.SetSchema(i, c.Name, c.Type)
	}
	if hasTag {
		out.SetSchema(len(sch.Columns), s.tag, batch.TypeString)
	}
	for i := 0; i < s.nRows(); i++ {
		dr := out.AppendRow()
		batch.CopyRow(out, dr, s.rows[i], s.idx[i])
		if hasTag {
			out.SetString(dr, len(sch.Columns), s.tagValue)
		}
	}
	for _, b := range otherBatches {
		for r := 0; r < b.NRows(); r++ {
			dr := out.AppendRow()
			for c := 0; c < len(sch.Columns); c++ {
				idx := b.ColIndex(sch.Columns[c].Name)
				if idx >= 0 {
					copyCell(out, dr, c, b, r, idx)
				}
			}
			if hasTag {
				out.SetString(dr, len(sch.Columns), "right")
			}
		}
	}
	return out, nil
}

func (s *stackOp) Destroy() { s.rows, s.idx = nil, nil }

// acfOp computes the autocorrelation of a numeric column for lags 0..max.
type acfOp struct {
	col    string
	maxLag int
	vals   []float64
}

func newAcfOp(args registry.Args) (registry.Transform, error) {
	return &acfOp{col: args.Str("column", ""), maxLag: args.Int("lags", 10)}, nil
}

func (a *acfOp) Process(in *batch.Batch) (*batch.Batch, error) {
	idx := in.ColIndex(a.col)
	if idx < 0 {
		return nil, nil
	}
	for row := 0; row < in.NRows(); row++ {
		if in.IsNull(row, idx) {
			continue
		}
		v, ok := in.AsFloat64(row, idx)
		if ok {
			a.vals = append(a.vals, v)
		}
	}
	return nil, nil
}

func (a *acfOp) Flush() (*batch.Batch, error) {
	n := len(a.vals)
	if n == 0 {
		return nil, nil
	}
	var mean float64
	for _, v := range a.vals {
		mean += v
	}
	mean /= float64(n)
	var variance float64
	for _, v := range a.vals {
		variance += (v - mean) * (v - mean)
	}

	out := batch.New(2, a.maxLag+1)
	out.SetSchema(0, "lag", batch.TypeInt64)
	out.SetSchema(1, "acf", batch.TypeFloat64)
	for lag := 0; lag <= a.maxLag; lag++ {
		dr := out.AppendRow()
		out.SetInt64(dr, 0, int64(lag))
		if variance == 0 || lag >= n {
			out.SetFloat64(dr, 1, 0)
			continue
		}
		var cov float64
		for i := 0; i+lag < n; i++ {
			cov += (a.vals[i] - mean) * (a.vals[i+lag] - mean)
		}
		out.SetFloat64(dr, 1, cov/variance)
	}
	return out, nil
}

func (a *acfOp) Destroy() { a.vals = nil }
