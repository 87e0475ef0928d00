package ops

import (
	"testing"

	"github.com/doomsbay/flowkit/internal/registry"
)

func TestExplodeOpFansOutTokens(t *testing.T) {
	op, err := newExplodeOp(registry.Args{"column": {Kind: registry.ArgString, Str: "tags"}})
	if err != nil {
		t.Fatalf("newExplodeOp: %v", err)
	}
	in := csvBatch(t, "name,tags\nAlice,\"a,b,c\"\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.NRows() != 3 {
		t.Fatalf("expected 3 exploded rows, got %d", out.NRows())
	}
	want := []string{"a", "b", "c"}
	for r, w := range want {
		v, _ := out.GetString(r, 1)
		if v != w {
			t.Fatalf("row %d: expected tag %q, got %q", r, w, v)
		}
		name, _ := out.GetString(r, 0)
		if name != "Alice" {
			t.Fatalf("row %d: expected name Alice preserved, got %q", r, name)
		}
	}
}

func TestExplodeOpPassesThroughNullColumn(t *testing.T) {
	op, err := newExplodeOp(registry.Args{"column": {Kind: registry.ArgString, Str: "missing"}})
	if err != nil {
		t.Fatalf("newExplodeOp: %v", err)
	}
	in := csvBatch(t, "name\nAlice\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.NRows() != 1 {
		t.Fatalf("expected unexploded passthrough for unknown column, got %d rows", out.NRows())
	}
}

func TestSplitOpCreatesNamedColumns(t *testing.T) {
	op, err := newSplitOp(registry.Args{
		"column": {Kind: registry.ArgString, Str: "full"},
		"delimiter": {Kind: registry.ArgString, Str: "-"},
		"names": {Kind: registry.ArgArray, Array: []registry.ArgValue{
			{Kind: registry.ArgString, Str: "first"},
			{Kind: registry.ArgString, Str: "last"},
		}},
	})
	if err != nil {
		t.Fatalf("newSplitOp: %v", err)
	}
	in := csvBatch(t, "full\nJohn-Doe\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	first, _ := out.GetString(0, 1)
	last, _ := out.GetString(0, 2)
	if first != "John" || last != "Doe" {
		t.Fatalf("expected John,Doe got %q,%q", first, last)
	}
}

func TestSplitOpLeavesMissingTokensNull(t *testing.T) {
	op, err := newSplitOp(registry.Args{
		"column": {Kind: registry.ArgString, Str: "full"},
		"delimiter": {Kind: registry.ArgString, Str: "-"},
		"names": {Kind: registry.ArgArray, Array: []registry.ArgValue{
			{Kind: registry.ArgString, Str: "first"},
			{Kind: registry.ArgString, Str: "last"},
		}},
	})
	if err != nil {
		t.Fatalf("newSplitOp: %v", err)
	}
	in := csvBatch(t, "full\nJohn\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	first, _ := out.GetString(0, 1)
	if first != "John" {
		t.Fatalf("expected first=John, got %q", first)
	}
	if !out.IsNull(0, 2) {
		t.Fatalf("expected last to be null when token missing")
	}
}

func TestUnpivotOpMeltsValueColumns(t *testing.T) {
	op, err := newUnpivotOp(registry.Args{
		"columns": {Kind: registry.ArgArray, Array: []registry.ArgValue{
			{Kind: registry.ArgString, Str: "jan"},
			{Kind: registry.ArgString, Str: "feb"},
		}},
		"name_col":  {Kind: registry.ArgString, Str: "month"},
		"value_col": {Kind: registry.ArgString, Str: "amount"},
	})
	if err != nil {
		t.Fatalf("newUnpivotOp: %v", err)
	}
	in := csvBatch(t, "city,jan,feb\nNYC,10,20\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.NRows() != 2 {
		t.Fatalf("expected 2 melted rows, got %d", out.NRows())
	}
	city0, _ := out.GetString(0, 0)
	month0, _ := out.GetString(0, 1)
	amount0, _ := out.GetString(0, 2)
	if city0 != "NYC" || month0 != "jan" || amount0 != "10" {
		t.Fatalf("row0: got %q,%q,%q", city0, month0, amount0)
	}
	month1, _ := out.GetString(1, 1)
	amount1, _ := out.GetString(1, 2)
	if month1 != "feb" || amount1 != "20" {
		t.Fatalf("row1: got %q,%q", month1, amount1)
	}
}

func TestSplitDataOpAssignsTrainOrTest(t *testing.T) {
	op, err := newSplitDataOp(registry.Args{
		"ratio": {Kind: registry.ArgNumber, Num: 0.8},
		"seed":  {Kind: registry.ArgNumber, Num: 42},
	})
	if err != nil {
		t.Fatalf("newSplitDataOp: %v", err)
	}
	in := csvBatch(t, "name\nA\nB\nC\nD\nE\n")
	out, err := op.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	labelIdx := out.NCols() - 1
	for r := 0; r < out.NRows(); r++ {
		v, _ := out.GetString(r, labelIdx)
		if v != "train" && v != "test" {
			t.Fatalf("row %d: expected train or test, got %q", r, v)
		}
	}
}

func TestSplitDataOpDeterministicForSameSeed(t *testing.T) {
	mk := func() registry.Transform {
		op, err := newSplitDataOp(registry.Args{
			"ratio": {Kind: registry.ArgNumber, Num: 0.5},
			"seed":  {Kind: registry.ArgNumber, Num: 7},
		})
		if err != nil {
			t.Fatalf("newSplitDataOp: %v", err)
		}
		return op
	}
	labels := func(op registry.Transform) []string {
		in := csvBatch(t, "name\nA\nB\nC\nD\nE\n")
		out, err := op.Process(in)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		labelIdx := out.NCols() - 1
		var got []string
		for r := 0; r < out.NRows(); r++ {
			v, _ := out.GetString(r, labelIdx)
			got = append(got, v)
		}
		return got
	}
	a := labels(mk())
	b := labels(mk())
	if len(a) != len(b) {
		t.Fatalf("expected equal length label sequences")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected deterministic sequence for same seed; index %d: %q vs %q", i, a[i], b[i])
		}
	}
}
