package ops

import (
	"testing"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/codec"
	"github.com/doomsbay/flowkit/internal/registry"
)

func csvBatch(t *testing.T, input string) *batch.Batch {
	t.Helper()
	d := codec.NewCSVDecoder(codec.CSVConfig{Header: true}, nil)
	batches, err := d.Decode([]byte(input))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tail, err := d.Flush()
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	all := append(batches, tail...)
	if len(all) == 0 {
		t.Fatalf("expected at least one batch")
	}
	return all[0]
}

func TestFilterOp(t *testing.T) {
	op, err := newFilterOp(registry.Args{"expr": {Kind: registry.ArgString, Str: "col(age) > 27"}}, nil)
	if err != nil {
		t.Fatalf("newFilterOp: %v", err)
	}
	in := csvBatch(t, "name,age\nAlice,30\nBob,25\nCharlie,35\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.NRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.NRows())
	}
	name0, _ := out.GetString(0, 0)
	name1, _ := out.GetString(1, 0)
	if name0 != "Alice" || name1 != "Charlie" {
		t.Fatalf("expected Alice, Charlie; got %s, %s", name0, name1)
	}
}

func TestHeadOpStopsAtN(t *testing.T) {
	op, err := newHeadOp(registry.Args{"n": {Kind: registry.ArgNumber, Num: 2}})
	if err != nil {
		t.Fatalf("newHeadOp: %v", err)
	}
	in := csvBatch(t, "name\nA\nB\nC\nD\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.NRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.NRows())
	}
	out2, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process (second batch): %v", err)
	}
	if out2 != nil {
		t.Fatalf("expected nil output once n reached, got %v rows", out2.NRows())
	}
}

func TestSkipOpDiscardsFirstN(t *testing.T) {
	op, err := newSkipOp(registry.Args{"n": {Kind: registry.ArgNumber, Num: 2}})
	if err != nil {
		t.Fatalf("newSkipOp: %v", err)
	}
	in := csvBatch(t, "name\nA\nB\nC\nD\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.NRows() != 2 {
		t.Fatalf("expected 2 rows after skipping 2, got %d", out.NRows())
	}
	name0, _ := out.GetString(0, 0)
	if name0 != "C" {
		t.Fatalf("expected first remaining row C, got %s", name0)
	}
}

func TestSelectOpReordersAndDropsColumns(t *testing.T) {
	op, err := newSelectOp(registry.Args{"columns": {Kind: registry.ArgArray, Array: []registry.ArgValue{
		{Kind: registry.ArgString, Str: "age"},
		{Kind: registry.ArgString, Str: "name"},
	}}})
	if err != nil {
		t.Fatalf("newSelectOp: %v", err)
	}
	in := csvBatch(t, "name,age,score\nAlice,30,85\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.NCols() != 2 {
		t.Fatalf("expected 2 columns, got %d", out.NCols())
	}
	if out.ColumnName(0) != "age" || out.ColumnName(1) != "name" {
		t.Fatalf("expected age,name order, got %s,%s", out.ColumnName(0), out.ColumnName(1))
	}
}

func TestRenameOpAppliesMapping(t *testing.T) {
	op, err := newRenameOp(registry.Args{"mapping": {Kind: registry.ArgObject, Object: map[string]registry.ArgValue{
		"name": {Kind: registry.ArgString, Str: "full_name"},
	}}})
	if err != nil {
		t.Fatalf("newRenameOp: %v", err)
	}
	in := csvBatch(t, "name,age\nAlice,30\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.ColumnName(0) != "full_name" {
		t.Fatalf("expected renamed column, got %s", out.ColumnName(0))
	}
	if out.ColumnName(1) != "age" {
		t.Fatalf("expected unmapped column unchanged, got %s", out.ColumnName(1))
	}
}

func TestDeriveOpAppendsComputedColumn(t *testing.T) {
	op, err := newDeriveOp(registry.Args{"columns": {Kind: registry.ArgArray, Array: []registry.ArgValue{
		{Kind: registry.ArgObject, Object: map[string]registry.ArgValue{
			"name": {Kind: registry.ArgString, Str: "double_age"},
			"expr": {Kind: registry.ArgString, Str: "col(age) * 2"},
		}},
	}}})
	if err != nil {
		t.Fatalf("newDeriveOp: %v", err)
	}
	in := csvBatch(t, "name,age\nAlice,30\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.NCols() != 3 {
		t.Fatalf("expected 3 columns, got %d", out.NCols())
	}
	v, ok := out.GetFloat64(0, 2)
	if !ok {
		if iv, iok := out.GetInt64(0, 2); iok {
			v = float64(iv)
			ok = true
		}
	}
	if !ok || v != 60 {
		t.Fatalf("expected double_age=60, got %v ok=%v", v, ok)
	}
}

func TestValidateOpRoutesFailuresToErrors(t *testing.T) {
	var errLines []string
	sink := &recordingSink{errors: &errLines}
	op, err := newValidateOp(registry.Args{"expr": {Kind: registry.ArgString, Str: "col(age) > 0"}}, sink)
	if err != nil {
		t.Fatalf("newValidateOp: %v", err)
	}
	in := csvBatch(t, "name,age\nAlice,30\nBob,-5\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.NRows() != 1 {
		t.Fatalf("expected 1 passing row, got %d", out.NRows())
	}
	if len(errLines) != 1 {
		t.Fatalf("expected 1 error line, got %d", len(errLines))
	}
}

type recordingSink struct {
	errors  *[]string
	stats   *[]string
	samples *[]string
}

func (r *recordingSink) WriteErrors(line string) {
	if r.errors != nil {
		*r.errors = append(*r.errors, line)
	}
}
func (r *recordingSink) WriteStats(line string) {
	if r.stats != nil {
		*r.stats = append(*r.stats, line)
	}
}
func (r *recordingSink) WriteSamples(line string) {
	if r.samples != nil {
		*r.samples = append(*r.samples, line)
	}
}
