// Package registry is the static table of known operators: their kind,
// capability vector, schema-inference callback and required-arg list, plus
// the construction entry point the plan compiler uses to turn a node into a
// live operator instance. It is deliberately the layer between plan.Node
// (structured args + JSON) and internal/ops (actual behavior), so ops can
// register themselves without plan ever importing ops directly.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
)

// OpKind distinguishes the three roles a node can play in a plan.
type OpKind int

const (
	KindDecoder OpKind = iota
	KindTransform
	KindEncoder
)

// Cap is one bit of the capability vector (spec §3).
type Cap uint8

const (
	CapStreaming Cap = 1 << iota
	CapBoundedMemory
	CapBrowserSafe
	CapDeterministic
	CapFS
	CapNet
)

// CapSet is the bitset capability vector; And/Or implement the plan-level
// aggregation rule from spec §3 (AND across STREAMING/BOUNDED_MEMORY/
// BROWSER_SAFE/DETERMINISTIC, OR across FS/NET).
type CapSet uint8

func NewCapSet(caps ...Cap) CapSet {
	var s CapSet
	for _, c := range caps {
		s |= CapSet(c)
	}
	return s
}

func (s CapSet) Has(c Cap) bool { return s&CapSet(c) != 0 }

// And intersects the AND-aggregated bits and unions the OR-aggregated bits
// (FS, NET) with o, per spec §3's effective-capability rule.
func (s CapSet) And(o CapSet) CapSet {
	andBits := CapSet(CapStreaming | CapBoundedMemory | CapBrowserSafe | CapDeterministic)
	orBits := CapSet(CapFS | CapNet)
	return (s & o & andBits) | ((s | o) & orBits)
}

func (s CapSet) String() string {
	names := []struct {
		c Cap
		n string
	}{
		{CapStreaming, "STREAMING"},
		{CapBoundedMemory, "BOUNDED_MEMORY"},
		{CapBrowserSafe, "BROWSER_SAFE"},
		{CapDeterministic, "DETERMINISTIC"},
		{CapFS, "FS"},
		{CapNet, "NET"},
	}
	var parts []string
	for _, nc := range names {
		if s.Has(nc.c) {
			parts = append(parts, nc.n)
		}
	}
	return strings.Join(parts, "|")
}

// ArgValue is one leaf of the tagged-union args value (spec §3's Plan node
// args: a structured value with string/number/bool/array/object leaves).
type ArgValue struct {
	Kind   ArgKind
	Str    string
	Num    float64
	Bool   bool
	Array  []ArgValue
	Object map[string]ArgValue
}

type ArgKind int

const (
	ArgNull ArgKind = iota
	ArgString
	ArgNumber
	ArgBool
	ArgArray
	ArgObject
)

func (v ArgValue) Clone() ArgValue {
	out := v
	if v.Array != nil {
		out.Array = make([]ArgValue, len(v.Array))
		for i, e := range v.Array {
			out.Array[i] = e.Clone()
		}
	}
	if v.Object != nil {
		out.Object = make(map[string]ArgValue, len(v.Object))
		for k, e := range v.Object {
			out.Object[k] = e.Clone()
		}
	}
	return out
}

// Args is a node's structured argument object (the top-level value is
// always an object, per the plan JSON format in spec §6).
type Args map[string]ArgValue

// Clone deep-copies Args (plan.AddNode must deep-copy per spec §4.5).
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v.Clone()
	}
	return out
}

// Str reads a string arg, defaulting to def if absent or not a string.
func (a Args) Str(name, def string) string {
	v, ok := a[name]
	if !ok || v.Kind != ArgString {
		return def
	}
	return v.Str
}

// Num reads a numeric arg, defaulting to def if absent or not a number.
func (a Args) Num(name string, def float64) float64 {
	v, ok := a[name]
	if !ok || v.Kind != ArgNumber {
		return def
	}
	return v.Num
}

// Int reads a numeric arg truncated to int.
func (a Args) Int(name string, def int) int {
	return int(a.Num(name, float64(def)))
}

// BoolArg reads a bool arg, defaulting to def if absent or not a bool.
func (a Args) BoolArg(name string, def bool) bool {
	v, ok := a[name]
	if !ok || v.Kind != ArgBool {
		return def
	}
	return v.Bool
}

// StrList reads a string array arg (or a single string treated as a
// one-element list), defaulting to nil.
func (a Args) StrList(name string) []string {
	v, ok := a[name]
	if !ok {
		return nil
	}
	switch v.Kind {
	case ArgArray:
		out := make([]string, 0, len(v.Array))
		for _, e := range v.Array {
			if e.Kind == ArgString {
				out = append(out, e.Str)
			}
		}
		return out
	case ArgString:
		return []string{v.Str}
	default:
		return nil
	}
}

// ObjList reads an array-of-objects arg, used by column-list args that
// carry per-column options (e.g. sort's [{name,desc}], derive's
// [{name,expr}]).
func (a Args) ObjList(name string) []Args {
	v, ok := a[name]
	if !ok || v.Kind != ArgArray {
		return nil
	}
	out := make([]Args, 0, len(v.Array))
	for _, e := range v.Array {
		if e.Kind == ArgObject {
			out = append(out, Args(e.Object))
		}
	}
	return out
}

// Present reports whether name is present and "non-empty" per spec §4.4's
// required-arg rule: a missing key, an empty string, or an empty array all
// count as absent.
func (a Args) Present(name string) bool {
	v, ok := a[name]
	if !ok {
		return false
	}
	switch v.Kind {
	case ArgString:
		return v.Str != ""
	case ArgArray:
		return len(v.Array) > 0
	case ArgObject:
		return len(v.Object) > 0
	case ArgNull:
		return false
	default:
		return true
	}
}

// Sink is how an operator emits to the three non-MAIN side channels while
// inside Process or Flush.
type Sink interface {
	WriteErrors(line string)
	WriteStats(line string)
	WriteSamples(line string)
}

// Decoder turns raw input bytes into zero or more batches.
type Decoder interface {
	Decode(chunk []byte) ([]*batch.Batch, error)
	Flush() ([]*batch.Batch, error)
	Destroy()
}

// Encoder turns a batch into output bytes appended to MAIN.
type Encoder interface {
	Encode(b *batch.Batch) ([]byte, error)
	Flush() ([]byte, error)
	Destroy()
}

// Transform is a streaming/stateful/aggregate operator per spec §4.8: it
// emits 0 or 1 output batch per Process call and 0 or 1 on Flush.
type Transform interface {
	Process(b *batch.Batch) (*batch.Batch, error)
	Flush() (*batch.Batch, error)
	Destroy()
}

// InferFunc is an operator's best-effort schema-inference callback; it may
// return batch.Unknown if it cannot determine an output schema.
type InferFunc func(args Args, in batch.Schema) batch.Schema

// Entry is one registered operator.
type Entry struct {
	Name         string
	Kind         OpKind
	Caps         CapSet
	RequiredArgs []string
	InferSchema  InferFunc

	// Exactly one of these is populated, matching Kind.
	NewDecoder   func(args Args, sink Sink) (Decoder, error)
	NewEncoder   func(args Args) (Encoder, error)
	NewTransform func(args Args, sink Sink) (Transform, error)
}

var table = map[string]Entry{}
var aliases = map[string]string{}

// Register adds entry to the static table. Called from ops/codec package
// init()s; panics on duplicate registration (a programmer error, not a
// runtime one).
func Register(entry Entry) {
	if _, exists := table[entry.Name]; exists {
		panic(fmt.Sprintf("registry: duplicate op %q", entry.Name))
	}
	table[entry.Name] = entry
}

// Alias registers alt as another spelling of canonical (e.g. "dedup" for
// "unique", "reorder" for "select"). Lookup is case-sensitive for op names,
// matching spec §4.4.
func Alias(alt, canonical string) {
	aliases[alt] = canonical
}

// Lookup resolves an op name (applying aliases) to its entry.
func Lookup(name string) (Entry, bool) {
	if canon, ok := aliases[name]; ok {
		name = canon
	}
	e, ok := table[name]
	return e, ok
}

// Names returns every registered op name (not aliases), sorted, for
// diagnostics/tests.
func Names() []string {
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
