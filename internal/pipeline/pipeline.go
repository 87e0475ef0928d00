// Package pipeline implements the push/pull executor: it drives a compiled
// plan's decoder, operator chain, and encoder, multiplexing output across
// the four side channels and tracking the row/byte counters a host can
// inspect mid-run.
package pipeline

import (
	"fmt"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/bytebuf"
	"github.com/doomsbay/flowkit/internal/plan"
	"github.com/doomsbay/flowkit/internal/registry"
)

// Channel ids addressed by Pull.
const (
	ChannelMain = iota
	ChannelErrors
	ChannelStats
	ChannelSamples
)

const channelCount = 4

// Pipeline is a live, running instance of a validated plan: a decoder, zero
// or more operators, an encoder, and the four channel buffers they write
// into. It implements registry.Sink so operators can reach ERRORS/STATS/
// SAMPLES directly during Process/Flush.
type Pipeline struct {
	decoder  registry.Decoder
	ops      []registry.Transform
	encoder  registry.Encoder
	channels [channelCount]*bytebuf.Buffer

	rowsIn, rowsOut   int
	bytesIn, bytesOut int64
	lastErr           string
	finished          bool
}

// Create validates and schema-infers p if that hasn't happened yet, then
// constructs a live decoder, operator chain, and encoder from its nodes. A
// construction-time failure in any node (spec §7) returns an error and no
// pipeline.
func Create(p *plan.Plan) (*Pipeline, error) {
	if !p.Validated {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	if !p.SchemaInferred {
		if err := p.InferSchema(); err != nil {
			return nil, err
		}
	}

	pl := &Pipeline{}
	for i := range pl.channels {
		pl.channels[i] = bytebuf.New()
	}

	nodes := p.Nodes
	first := nodes[0]
	firstEntry, _ := registry.Lookup(first.OpName)
	dec, err := firstEntry.NewDecoder(first.Args, pl)
	if err != nil {
		return nil, fmt.Errorf("pipeline: create decoder %q: %w", first.OpName, err)
	}
	pl.decoder = dec

	last := nodes[len(nodes)-1]
	lastEntry, _ := registry.Lookup(last.OpName)
	enc, err := lastEntry.NewEncoder(last.Args)
	if err != nil {
		dec.Destroy()
		return nil, fmt.Errorf("pipeline: create encoder %q: %w", last.OpName, err)
	}
	pl.encoder = enc

	for _, node := range nodes[1 : len(nodes)-1] {
		entry, _ := registry.Lookup(node.OpName)
		t, err := entry.NewTransform(node.Args, pl)
		if err != nil {
			pl.Destroy()
			return nil, fmt.Errorf("pipeline: create op %q: %w", node.OpName, err)
		}
		pl.ops = append(pl.ops, t)
	}
	return pl, nil
}

// Push feeds chunk to the decoder and runs every resulting batch through
// the operator chain and encoder. Calling Push after Finish is undefined
// per spec §7; callers must not do it.
func (pl *Pipeline) Push(chunk []byte) error {
	pl.bytesIn += int64(len(chunk))
	batches, err := pl.decoder.Decode(chunk)
	if err != nil {
		pl.lastErr = err.Error()
		return err
	}
	for _, b := range batches {
		pl.rowsIn += b.NRows()
		if err := pl.runChain(b); err != nil {
			pl.lastErr = err.Error()
			return err
		}
	}
	return nil
}

// runChain drives one batch through every operator in order, then the
// encoder, stopping early if any operator drops the batch (returns nil).
func (pl *Pipeline) runChain(b *batch.Batch) error {
	cur := b
	for _, op := range pl.ops {
		if cur == nil {
			return nil
		}
		out, err := op.Process(cur)
		if err != nil {
			return err
		}
		cur = out
	}
	if cur == nil {
		return nil
	}
	return pl.encode(cur)
}

// runFrom drives a flush-emitted batch through the operators starting at
// index from, then the encoder; used by Finish to cascade an op's own
// flush output through the remainder of the chain.
func (pl *Pipeline) runFrom(from int, b *batch.Batch) error {
	cur := b
	for _, op := range pl.ops[from:] {
		if cur == nil {
			return nil
		}
		out, err := op.Process(cur)
		if err != nil {
			return err
		}
		cur = out
	}
	if cur == nil {
		return nil
	}
	return pl.encode(cur)
}

func (pl *Pipeline) encode(b *batch.Batch) error {
	data, err := pl.encoder.Encode(b)
	if err != nil {
		return err
	}
	pl.rowsOut += b.NRows()
	pl.bytesOut += int64(len(data))
	pl.channels[ChannelMain].Write(data)
	return nil
}

// Finish flushes the decoder, then every operator in order (cascading each
// flush-emitted batch through the remaining operators and the encoder),
// then the encoder itself. It sets Finished() regardless of outcome, since
// a failed finish still leaves already-delivered output pullable.
func (pl *Pipeline) Finish() error {
	if pl.finished {
		return nil
	}
	defer func() { pl.finished = true }()

	tail, err := pl.decoder.Flush()
	if err != nil {
		pl.lastErr = err.Error()
		return err
	}
	for _, b := range tail {
		pl.rowsIn += b.NRows()
		if err := pl.runChain(b); err != nil {
			pl.lastErr = err.Error()
			return err
		}
	}

	for i, op := range pl.ops {
		out, err := op.Flush()
		if err != nil {
			pl.lastErr = err.Error()
			return err
		}
		if out == nil {
			continue
		}
		if err := pl.runFrom(i+1, out); err != nil {
			pl.lastErr = err.Error()
			return err
		}
	}

	encTail, err := pl.encoder.Flush()
	if err != nil {
		pl.lastErr = err.Error()
		return err
	}
	if len(encTail) > 0 {
		pl.bytesOut += int64(len(encTail))
		pl.channels[ChannelMain].Write(encTail)
	}
	return nil
}

// Pull drains up to max bytes from channel into dst, per the buffer
// contract: 0 means nothing is currently available, not end-of-stream.
func (pl *Pipeline) Pull(channel int, dst []byte, max int) int {
	if channel < 0 || channel >= channelCount {
		return 0
	}
	return pl.channels[channel].Read(dst, max)
}

// Destroy releases the decoder, every operator, the encoder, and the four
// channel buffers. Safe to call at any point, including mid-run.
func (pl *Pipeline) Destroy() {
	if pl.decoder != nil {
		pl.decoder.Destroy()
		pl.decoder = nil
	}
	for _, op := range pl.ops {
		op.Destroy()
	}
	pl.ops = nil
	if pl.encoder != nil {
		pl.encoder.Destroy()
		pl.encoder = nil
	}
	for i, c := range pl.channels {
		if c != nil {
			c.Destroy()
		}
		pl.channels[i] = nil
	}
}

// LastError returns the last error string recorded by push/finish, or ""
// if none occurred.
func (pl *Pipeline) LastError() string { return pl.lastErr }

// Finished reports whether Finish has been called.
func (pl *Pipeline) Finished() bool { return pl.finished }

func (pl *Pipeline) RowsIn() int     { return pl.rowsIn }
func (pl *Pipeline) RowsOut() int    { return pl.rowsOut }
func (pl *Pipeline) BytesIn() int64  { return pl.bytesIn }
func (pl *Pipeline) BytesOut() int64 { return pl.bytesOut }

// WriteErrors implements registry.Sink.
func (pl *Pipeline) WriteErrors(line string) { pl.writeLine(ChannelErrors, line) }

// WriteStats implements registry.Sink.
func (pl *Pipeline) WriteStats(line string) { pl.writeLine(ChannelStats, line) }

// WriteSamples implements registry.Sink.
func (pl *Pipeline) WriteSamples(line string) { pl.writeLine(ChannelSamples, line) }

func (pl *Pipeline) writeLine(channel int, line string) {
	pl.channels[channel].WriteString(line)
	pl.channels[channel].WriteString("\n")
}
