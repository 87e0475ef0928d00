package codec

import (
	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

const textColumnName = "_line"

type textDecoder struct {
	carry   []byte
	pending []string
	target  int
}

// NewTextDecoder constructs a decoder that splits input on newlines into a
// single STRING column named "_line", with no type inference.
func NewTextDecoder(targetRows int) *textDecoder {
	if targetRows <= 0 {
		targetRows = defaultTargetRows
	}
	return &textDecoder{target: targetRows}
}

func (d *textDecoder) Decode(chunk []byte) ([]*batch.Batch, error) {
	data := append(d.carry, chunk...)
	var out []*batch.Batch
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] != '\n' {
			continue
		}
		line := data[start:i]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		start = i + 1
		d.pending = append(d.pending, string(line))
		if len(d.pending) >= d.target {
			out = append(out, d.buildBatch())
		}
	}
	d.carry = append([]byte(nil), data[start:]...)
	return out, nil
}

func (d *textDecoder) Flush() ([]*batch.Batch, error) {
	var out []*batch.Batch
	if len(d.carry) > 0 {
		d.pending = append(d.pending, string(d.carry))
		d.carry = nil
	}
	if len(d.pending) > 0 {
		out = append(out, d.buildBatch())
	}
	return out, nil
}

func (d *textDecoder) buildBatch() *batch.Batch {
	lines := d.pending
	d.pending = nil
	b := batch.New(1, len(lines))
	b.SetSchema(0, textColumnName, batch.TypeString)
	for _, line := range lines {
		r := b.AppendRow()
		b.SetString(r, 0, line)
	}
	return b
}

func (d *textDecoder) Destroy() {}

type textEncoder struct {
	col string
}

// NewTextEncoder constructs an encoder that writes the named column (or
// "_line" if unset) one value per line.
func NewTextEncoder(colName string) *textEncoder {
	return &textEncoder{col: colName}
}

func (e *textEncoder) Encode(b *batch.Batch) ([]byte, error) {
	idx := 0
	if e.col != "" {
		if i := b.ColIndex(e.col); i >= 0 {
			idx = i
		}
	} else if i := b.ColIndex(textColumnName); i >= 0 {
		idx = i
	}
	var out []byte
	for r := 0; r < b.NRows(); r++ {
		if b.IsNull(r, idx) {
			out = append(out, '\n')
			continue
		}
		switch b.ColumnType(idx) {
		case batch.TypeString:
			v, _ := b.GetString(r, idx)
			out = append(out, v...)
		default:
			out = append(out, []byte((&csvEncoder{}).renderCell(b, r, idx))...)
		}
		out = append(out, '\n')
	}
	return out, nil
}

func (e *textEncoder) Flush() ([]byte, error) { return nil, nil }
func (e *textEncoder) Destroy()               {}

func init() {
	registry.Register(registry.Entry{
		Name: "codec.text.decode",
		Kind: registry.KindDecoder,
		Caps: registry.NewCapSet(registry.CapStreaming, registry.CapBoundedMemory, registry.CapBrowserSafe, registry.CapDeterministic),
		NewDecoder: func(args registry.Args, sink registry.Sink) (registry.Decoder, error) {
			return NewTextDecoder(args.Int("batch_rows", defaultTargetRows)), nil
		},
	})
	registry.Register(registry.Entry{
		Name: "codec.text.encode",
		Kind: registry.KindEncoder,
		Caps: registry.NewCapSet(registry.CapStreaming, registry.CapBoundedMemory, registry.CapBrowserSafe, registry.CapDeterministic),
		NewEncoder: func(args registry.Args) (registry.Encoder, error) {
			return NewTextEncoder(args.Str("column", "")), nil
		},
	})
}
