// Package plan implements the plan IR: a validated, schema-inferred ordered
// sequence of nodes, the compile target of the surface DSL and the JSON
// recipe format (spec §4.5).
package plan

import (
	"errors"
	"fmt"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

// Construction-time error kinds (spec §7), exported so a host can
// distinguish them without string matching.
var (
	ErrEmptyPlan       = errors.New("plan: empty plan")
	ErrUnknownOp       = errors.New("plan: unknown op")
	ErrMissingDecoder  = errors.New("plan: missing decoder as first node")
	ErrMissingEncoder  = errors.New("plan: missing encoder as last node")
	ErrMisplacedOp     = errors.New("plan: decoder/encoder in wrong position")
	ErrMissingRequired = errors.New("plan: missing required argument")
)

// Node is one step of the plan: an op name, its structured args, and the
// input/output schema assigned by InferSchema.
type Node struct {
	OpName       string
	Args         registry.Args
	InputSchema  batch.Schema
	OutputSchema batch.Schema
}

// Plan is an ordered sequence of nodes.
type Plan struct {
	Nodes          []*Node
	FinalSchema    batch.Schema
	PlanCaps       registry.CapSet
	Validated      bool
	SchemaInferred bool
	Error          string
}

// New returns an empty plan.
func New() *Plan {
	return &Plan{}
}

// AddNode appends a node, deep-copying args so later mutation of the
// caller's args value cannot affect the plan (spec §4.5).
func (p *Plan) AddNode(opName string, args registry.Args) *Node {
	n := &Node{OpName: opName, Args: args.Clone()}
	p.Nodes = append(p.Nodes, n)
	p.Validated = false
	p.SchemaInferred = false
	return n
}

// Clone returns an independent copy of the plan (nodes and args
// deep-copied; schema/caps/flags copied by value).
func (p *Plan) Clone() *Plan {
	out := &Plan{
		FinalSchema:    p.FinalSchema.Clone(),
		PlanCaps:       p.PlanCaps,
		Validated:      p.Validated,
		SchemaInferred: p.SchemaInferred,
		Error:          p.Error,
	}
	out.Nodes = make([]*Node, len(p.Nodes))
	for i, n := range p.Nodes {
		out.Nodes[i] = &Node{
			OpName:       n.OpName,
			Args:         n.Args.Clone(),
			InputSchema:  n.InputSchema.Clone(),
			OutputSchema: n.OutputSchema.Clone(),
		}
	}
	return out
}

// Validate checks plan structure per spec §4.4: exactly one decoder first,
// exactly one encoder last, every op known, every required arg present. On
// success it sets Validated and PlanCaps; on failure it populates Error and
// returns the error.
func (p *Plan) Validate() error {
	p.Validated = false
	if len(p.Nodes) == 0 {
		p.Error = ErrEmptyPlan.Error()
		return ErrEmptyPlan
	}

	entries := make([]registry.Entry, len(p.Nodes))
	for i, n := range p.Nodes {
		e, ok := registry.Lookup(n.OpName)
		if !ok {
			err := fmt.Errorf("%w: %q", ErrUnknownOp, n.OpName)
			p.Error = err.Error()
			return err
		}
		entries[i] = e
		for _, req := range e.RequiredArgs {
			if !n.Args.Present(req) {
				err := fmt.Errorf("%w: op %q missing %q", ErrMissingRequired, n.OpName, req)
				p.Error = err.Error()
				return err
			}
		}
	}

	if entries[0].Kind != registry.KindDecoder {
		p.Error = ErrMissingDecoder.Error()
		return ErrMissingDecoder
	}
	last := len(entries) - 1
	if entries[last].Kind != registry.KindEncoder {
		p.Error = ErrMissingEncoder.Error()
		return ErrMissingEncoder
	}
	for i, e := range entries {
		if i != 0 && e.Kind == registry.KindDecoder {
			err := fmt.Errorf("%w: decoder at position %d", ErrMisplacedOp, i)
			p.Error = err.Error()
			return err
		}
		if i != last && e.Kind == registry.KindEncoder {
			err := fmt.Errorf("%w: encoder at position %d", ErrMisplacedOp, i)
			p.Error = err.Error()
			return err
		}
	}

	caps := entries[0].Caps
	for _, e := range entries[1:] {
		caps = caps.And(e.Caps)
	}
	p.PlanCaps = caps
	p.Validated = true
	p.Error = ""
	return nil
}

// InferSchema walks the nodes, propagating schemas forward: node 0's input
// is unknown, node i's input is node i-1's output. Each node's output is
// computed by its registry entry's InferSchema callback. The plan's
// final_schema is the output schema of the last non-encoder node — for a
// minimal decoder+encoder plan that is the decoder's own output schema,
// which for any streaming decoder is unknown at plan time (documented open
// question, spec §9: this is reported as unknown, not guessed).
func (p *Plan) InferSchema() error {
	if !p.Validated {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	cur := batch.Unknown
	for i, n := range p.Nodes {
		n.InputSchema = cur
		e, ok := registry.Lookup(n.OpName)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownOp, n.OpName)
		}
		out := batch.Unknown
		if e.InferSchema != nil {
			out = e.InferSchema(n.Args, cur)
		}
		n.OutputSchema = out
		cur = out
		if i == len(p.Nodes)-2 {
			p.FinalSchema = out
		}
	}
	if len(p.Nodes) == 1 {
		p.FinalSchema = batch.Unknown
	}
	p.SchemaInferred = true
	return nil
}
