package ops

import (
	"testing"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

func TestCastOpStringToInt(t *testing.T) {
	op, err := newCastOp(registry.Args{"mapping": {Kind: registry.ArgObject, Object: map[string]registry.ArgValue{
		"age": {Kind: registry.ArgString, Str: "int64"},
	}}})
	if err != nil {
		t.Fatalf("newCastOp: %v", err)
	}
	in := csvBatch(t, "name,age\nAlice,30\nBob,n/a\n")
	// "n/a" widens age to a string column in the CSV decoder, so the cast
	// exercises the string-to-int64 conversion path.
	out, err := op.(*castOp).Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	v, ok := out.GetInt64(0, 1)
	if !ok || v != 30 {
		t.Fatalf("expected age=30 int64, got %v ok=%v", v, ok)
	}
}

func TestCastOpToString(t *testing.T) {
	op, err := newCastOp(registry.Args{"mapping": {Kind: registry.ArgObject, Object: map[string]registry.ArgValue{
		"age": {Kind: registry.ArgString, Str: "string"},
	}}})
	if err != nil {
		t.Fatalf("newCastOp: %v", err)
	}
	in := csvBatch(t, "name,age\nAlice,30\n")
	out, err := op.(*castOp).Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.ColumnType(1) != batch.TypeString {
		t.Fatalf("expected age cast to string type")
	}
	v, ok := out.GetString(0, 1)
	if !ok || v != "30" {
		t.Fatalf("expected age=%q, got %q ok=%v", "30", v, ok)
	}
}

func TestCastOpUnmappedColumnUnchanged(t *testing.T) {
	op, err := newCastOp(registry.Args{"mapping": {Kind: registry.ArgObject, Object: map[string]registry.ArgValue{
		"age": {Kind: registry.ArgString, Str: "string"},
	}}})
	if err != nil {
		t.Fatalf("newCastOp: %v", err)
	}
	in := csvBatch(t, "name,age\nAlice,30\n")
	out, err := op.(*castOp).Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	v, ok := out.GetString(0, 0)
	if !ok || v != "Alice" {
		t.Fatalf("expected name unchanged, got %q ok=%v", v, ok)
	}
}
