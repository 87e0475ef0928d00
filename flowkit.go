// Package flowkit is a streaming ETL engine for tabular data: CSV, JSON
// Lines, and line-oriented text flow through a composable pipeline of
// typed operators (filter, derive, sort, join, pivot, and the rest of the
// operator catalogue) compiled from a JSON plan or the pipe-separated
// surface DSL. A host pushes raw input bytes in chunks and pulls encoded
// output from one of four channels: MAIN, ERRORS, STATS, SAMPLES.
package flowkit

import (
	"github.com/doomsbay/flowkit/internal/dsl"
	"github.com/doomsbay/flowkit/internal/pipeline"
	"github.com/doomsbay/flowkit/internal/plan"
	"github.com/doomsbay/flowkit/internal/registry"

	_ "github.com/doomsbay/flowkit/internal/codec"
	_ "github.com/doomsbay/flowkit/internal/ops"
)

// Args is a plan node's structured argument object, re-exported so a host
// can build a plan programmatically (via Plan.AddNode) without reaching
// into the internal registry package itself.
type Args = registry.Args

// ArgValue is one leaf of Args: a tagged-union string/number/bool/array/
// object value.
type ArgValue = registry.ArgValue

// Channel ids addressed by Pipeline.Pull.
const (
	ChannelMain    = pipeline.ChannelMain
	ChannelErrors  = pipeline.ChannelErrors
	ChannelStats   = pipeline.ChannelStats
	ChannelSamples = pipeline.ChannelSamples
)

// Pipeline is a live, running instance of a compiled plan.
type Pipeline = pipeline.Pipeline

// Plan is a validated, schema-inferred ordered sequence of operator nodes.
type Plan = plan.Plan

// NewPlan returns an empty plan a caller builds up with Plan.AddNode.
func NewPlan() *Plan { return plan.New() }

// PlanFromJSON parses a plan recipe in the {"steps":[{"op","args"}]} form.
// It does not validate or infer schema; call Validate/InferSchema (or just
// CreatePipeline, which does both) afterward.
func PlanFromJSON(data []byte) (*Plan, error) { return plan.FromJSON(data) }

// PlanFromDSL compiles a pipe-separated surface string (e.g.
// `csv | filter "col(age) > 25" | head 10 | csv`) into a plan.
func PlanFromDSL(src string) (*Plan, error) { return dsl.Compile(src) }

// ResolveRecipe returns the DSL string for one of the 21 built-in recipe
// names (matched case-insensitively), or ok=false if name isn't a recipe.
func ResolveRecipe(name string) (string, bool) { return dsl.ResolveRecipe(name) }

// CreatePipeline validates p, infers its schema if that hasn't already
// happened, and constructs a live Pipeline from its nodes. A construction-
// time failure in any node returns an error and no pipeline, per the
// engine's error taxonomy: no pipeline object is produced.
func CreatePipeline(p *Plan) (*Pipeline, error) { return pipeline.Create(p) }
