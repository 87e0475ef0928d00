package ops

import (
	"strings"
	"testing"

	"github.com/doomsbay/flowkit/internal/registry"
)

func TestStatsOpComputesRequestedMeasures(t *testing.T) {
	op, err := newStatsOp(registry.Args{"stats": {Kind: registry.ArgArray, Array: []registry.ArgValue{
		{Kind: registry.ArgString, Str: "count"},
		{Kind: registry.ArgString, Str: "sum"},
		{Kind: registry.ArgString, Str: "min"},
		{Kind: registry.ArgString, Str: "max"},
	}}})
	if err != nil {
		t.Fatalf("newStatsOp: %v", err)
	}
	in := csvBatch(t, "age\n10\n20\n30\n")
	if _, err := op.Process(in); err != nil {
		t.Fatalf("Process: %v", err)
	}
	out, err := op.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if out.NRows() != 1 {
		t.Fatalf("expected 1 row (one input column), got %d", out.NRows())
	}
	col, _ := out.GetString(0, 0)
	if col != "age" {
		t.Fatalf("expected column=age, got %q", col)
	}
	count, _ := out.GetString(0, 1)
	sum, _ := out.GetString(0, 2)
	min, _ := out.GetString(0, 3)
	max, _ := out.GetString(0, 4)
	if count != "3" {
		t.Fatalf("expected count=3, got %q", count)
	}
	if sum != "60" {
		t.Fatalf("expected sum=60, got %q", sum)
	}
	if min != "10" || max != "30" {
		t.Fatalf("expected min=10 max=30, got min=%q max=%q", min, max)
	}
}

func TestStatsOpDefaultsToAllMeasures(t *testing.T) {
	op, err := newStatsOp(registry.Args{})
	if err != nil {
		t.Fatalf("newStatsOp: %v", err)
	}
	in := csvBatch(t, "age\n10\n20\n")
	if _, err := op.Process(in); err != nil {
		t.Fatalf("Process: %v", err)
	}
	out, err := op.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if out.NCols() != len(allStats)+1 {
		t.Fatalf("expected %d columns, got %d", len(allStats)+1, out.NCols())
	}
}

func TestFrequencyOpSortsByCountDescending(t *testing.T) {
	op, err := newFrequencyOp(registry.Args{})
	if err != nil {
		t.Fatalf("newFrequencyOp: %v", err)
	}
	in := csvBatch(t, "color\nred\ngreen\nred\nblue\nred\ngreen\n")
	if _, err := op.Process(in); err != nil {
		t.Fatalf("Process: %v", err)
	}
	out, err := op.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if out.NRows() != 3 {
		t.Fatalf("expected 3 distinct values, got %d", out.NRows())
	}
	v0, _ := out.GetString(0, 0)
	c0, _ := out.GetInt64(0, 1)
	if v0 != "red" || c0 != 3 {
		t.Fatalf("expected red,3 first; got %s,%d", v0, c0)
	}
}

func TestGroupAggOpSumByGroup(t *testing.T) {
	op, err := newGroupAggOp(registry.Args{
		"group_by": {Kind: registry.ArgArray, Array: []registry.ArgValue{{Kind: registry.ArgString, Str: "dept"}}},
		"aggs": {Kind: registry.ArgArray, Array: []registry.ArgValue{
			{Kind: registry.ArgObject, Object: map[string]registry.ArgValue{
				"column": {Kind: registry.ArgString, Str: "salary"},
				"func":   {Kind: registry.ArgString, Str: "sum"},
				"result": {Kind: registry.ArgString, Str: "total"},
			}},
		}},
	})
	if err != nil {
		t.Fatalf("newGroupAggOp: %v", err)
	}
	in := csvBatch(t, "dept,salary\neng,100\neng,200\nsales,50\n")
	if _, err := op.Process(in); err != nil {
		t.Fatalf("Process: %v", err)
	}
	out, err := op.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if out.NRows() != 2 {
		t.Fatalf("expected 2 groups, got %d", out.NRows())
	}
	var engTotal, salesTotal float64
	for r := 0; r < out.NRows(); r++ {
		dept, _ := out.GetString(r, 0)
		total, _ := out.GetFloat64(r, 1)
		switch dept {
		case "eng":
			engTotal = total
		case "sales":
			salesTotal = total
		}
	}
	if engTotal != 300 {
		t.Fatalf("expected eng total=300, got %v", engTotal)
	}
	if salesTotal != 50 {
		t.Fatalf("expected sales total=50, got %v", salesTotal)
	}
}

func TestHistogramFormat(t *testing.T) {
	h := histogram([]float64{1, 2, 3, 4, 5}, 5)
	if !strings.HasPrefix(h, "1:5:") {
		t.Fatalf("expected histogram to start with lo:hi:, got %q", h)
	}
}
