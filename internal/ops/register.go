package ops

import (
	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

func passthroughSchema(args registry.Args, in batch.Schema) batch.Schema { return in }

func noSink(fn func(registry.Args) (registry.Transform, error)) func(registry.Args, registry.Sink) (registry.Transform, error) {
	return func(args registry.Args, sink registry.Sink) (registry.Transform, error) {
		return fn(args)
	}
}

var streamingCaps = registry.NewCapSet(registry.CapStreaming, registry.CapBoundedMemory, registry.CapBrowserSafe, registry.CapDeterministic)
var aggregateCaps = registry.NewCapSet(registry.CapBrowserSafe, registry.CapDeterministic)
var fileAggregateCaps = registry.NewCapSet(registry.CapDeterministic, registry.CapFS)

func reg(name string, caps registry.CapSet, required []string, infer registry.InferFunc, ctor func(registry.Args, registry.Sink) (registry.Transform, error)) {
	registry.Register(registry.Entry{
		Name:         name,
		Kind:         registry.KindTransform,
		Caps:         caps,
		RequiredArgs: required,
		InferSchema:  infer,
		NewTransform: ctor,
	})
}

func init() {
	reg("filter", streamingCaps, []string{"expr"}, passthroughSchema, newFilterOp)
	reg("validate", streamingCaps, []string{"expr"}, passthroughSchema, newValidateOp)
	reg("head", streamingCaps, []string{"n"}, passthroughSchema, noSink(newHeadOp))
	reg("skip", streamingCaps, []string{"n"}, passthroughSchema, noSink(newSkipOp))
	reg("select", streamingCaps, []string{"columns"}, inferSelect, noSink(newSelectOp))
	registry.Alias("reorder", "select")
	reg("rename", streamingCaps, []string{"mapping"}, inferRenameSchema, noSink(newRenameOp))
	reg("derive", streamingCaps, []string{"columns"}, inferDerive, noSink(newDeriveOp))
	reg("cast", streamingCaps, []string{"mapping"}, inferCast, noSink(newCastOp))
	reg("trim", streamingCaps, nil, passthroughSchema, noSink(newTrimOp))
	reg("fill_null", streamingCaps, []string{"mapping"}, passthroughSchema, noSink(newFillNullOp))
	reg("fill_down", streamingCaps, nil, passthroughSchema, noSink(newFillDownOp))
	reg("clip", streamingCaps, []string{"column"}, passthroughSchema, noSink(newClipOp))
	reg("replace", streamingCaps, []string{"column", "pattern"}, passthroughSchema, noSink(newReplaceOp))
	reg("hash", streamingCaps, nil, inferHash, noSink(newHashOp))
	reg("bin", streamingCaps, []string{"column", "boundaries"}, inferBin, noSink(newBinOp))

	reg("step", streamingCaps, []string{"column", "func"}, inferStepLike("result"), noSink(newStepOp))
	reg("window", streamingCaps, []string{"column", "size"}, inferStepLike("result"), noSink(newWindowOp))
	reg("ewma", streamingCaps, []string{"column", "alpha"}, inferStepLike("result"), noSink(newEwmaOp))
	reg("diff", streamingCaps, []string{"column"}, inferDiff, noSink(newDiffOp))
	reg("lead", streamingCaps, []string{"column"}, inferLead, noSink(newLeadOp))
	reg("anomaly", streamingCaps, []string{"column"}, inferAnomaly, noSink(newAnomalyOp))
	reg("split_data", streamingCaps, []string{"ratio"}, inferSplitData, noSink(newSplitDataOp))

	reg("interpolate", streamingCaps, []string{"column"}, passthroughSchema, noSink(newInterpolateOp))
	reg("normalize", streamingCaps, []string{"column"}, inferNormalize, noSink(newNormalizeOp))
	reg("onehot", streamingCaps, []string{"column"}, inferOnehot, noSink(newOnehotOp))
	reg("label_encode", streamingCaps, []string{"column"}, inferLabelEncode, noSink(newLabelEncodeOp))
	reg("datetime", streamingCaps, []string{"column"}, inferDatetime, noSink(newDatetimeOp))
	reg("date_trunc", streamingCaps, []string{"column"}, inferDateTrunc, noSink(newDateTruncOp))

	reg("explode", streamingCaps, []string{"column"}, passthroughSchema, noSink(newExplodeOp))
	reg("split", streamingCaps, []string{"column", "names"}, inferSplit, noSink(newSplitOp))
	reg("unpivot", streamingCaps, []string{"columns"}, inferUnpivot, noSink(newUnpivotOp))

	reg("tail", aggregateCaps, []string{"n"}, passthroughSchema, noSink(newTailOp))
	reg("top", aggregateCaps, []string{"n", "column"}, passthroughSchema, noSink(newTopOp))
	reg("sample", aggregateCaps, []string{"n"}, passthroughSchema, noSink(newSampleOp))
	reg("sort", aggregateCaps, []string{"columns"}, passthroughSchema, noSink(newSortOp))
	reg("unique", aggregateCaps, nil, passthroughSchema, noSink(newUniqueOp))
	registry.Alias("dedup", "unique")
	reg("stats", aggregateCaps, nil, statsSchema, noSink(newStatsOp))
	reg("frequency", aggregateCaps, nil, inferFrequency, noSink(newFrequencyOp))
	reg("group_agg", aggregateCaps, []string{"group_by", "aggs"}, inferGroupAgg, noSink(newGroupAggOp))
	reg("pivot", aggregateCaps, []string{"name_column", "value_column"}, nil, noSink(newPivotOp))
	reg("acf", aggregateCaps, []string{"column"}, nil, noSink(newAcfOp))

	reg("join", fileAggregateCaps, []string{"file", "on"}, nil, noSink(newJoinOp))
	reg("stack", fileAggregateCaps, []string{"file"}, nil, noSink(newStackOp))
}
