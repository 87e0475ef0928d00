package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

// JSONLConfig configures the JSONL decoder/encoder.
type JSONLConfig struct {
	TargetRows int
}

func (c JSONLConfig) withDefaults() JSONLConfig {
	if c.TargetRows <= 0 {
		c.TargetRows = defaultTargetRows
	}
	return c
}

type jsonlDecoder struct {
	cfg      JSONLConfig
	carry    []byte
	colNames []string
	colIdx   map[string]int
	pending  []map[string]interface{}
	sink     registry.Sink
	lineNum  int
}

// NewJSONLDecoder constructs a JSONL decoder. Each line is one JSON object;
// the column set and their types are discovered incrementally as new keys
// appear, widening exactly like the CSV decoder. sink may be nil, in which
// case malformed lines are dropped silently.
func NewJSONLDecoder(cfg JSONLConfig, sink registry.Sink) *jsonlDecoder {
	cfg = cfg.withDefaults()
	return &jsonlDecoder{cfg: cfg, colIdx: map[string]int{}, sink: sink}
}

func (d *jsonlDecoder) Decode(chunk []byte) ([]*batch.Batch, error) {
	data := append(d.carry, chunk...)
	var out []*batch.Batch
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] != '\n' {
			continue
		}
		line := data[start:i]
		start = i + 1
		if b := d.consumeLine(line); b != nil {
			out = append(out, b)
		}
	}
	d.carry = append([]byte(nil), data[start:]...)
	return out, nil
}

func (d *jsonlDecoder) Flush() ([]*batch.Batch, error) {
	var out []*batch.Batch
	if len(strings.TrimSpace(string(d.carry))) > 0 {
		if b := d.consumeLine(d.carry); b != nil {
			out = append(out, b)
		}
	}
	d.carry = nil
	if len(d.pending) > 0 {
		out = append(out, d.buildBatch(d.pending))
		d.pending = nil
	}
	return out, nil
}

func (d *jsonlDecoder) consumeLine(line []byte) *batch.Batch {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}
	d.lineNum++
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		if d.sink != nil {
			d.sink.WriteErrors(fmt.Sprintf(`{"op":"codec.jsonl.decode","reason":"invalid_json","line":%d,"err":%q}`, d.lineNum, err.Error()))
		}
		return nil
	}
	for k := range obj {
		if _, ok := d.colIdx[k]; !ok {
			d.colIdx[k] = len(d.colNames)
			d.colNames = append(d.colNames, k)
		}
	}
	d.pending = append(d.pending, obj)
	if len(d.pending) >= d.cfg.TargetRows {
		b := d.buildBatch(d.pending)
		d.pending = nil
		return b
	}
	return nil
}

func (d *jsonlDecoder) buildBatch(rows []map[string]interface{}) *batch.Batch {
	nCols := len(d.colNames)
	types := make([]batch.Type, nCols)
	for _, row := range rows {
		for c, name := range d.colNames {
			v, ok := row[name]
			if !ok {
				continue
			}
			types[c] = widen(types[c], jsonNaturalType(v))
		}
	}
	for i, t := range types {
		if t == batch.TypeUnknown {
			types[i] = batch.TypeString
		}
	}

	b := batch.New(nCols, len(rows))
	for c := 0; c < nCols; c++ {
		b.SetSchema(c, d.colNames[c], types[c])
	}
	for _, row := range rows {
		r := b.AppendRow()
		for c, name := range d.colNames {
			v, ok := row[name]
			if !ok || v == nil {
				continue
			}
			writeJSONCell(b, r, c, types[c], v)
		}
	}
	return b
}

func jsonNaturalType(v interface{}) batch.Type {
	switch t := v.(type) {
	case string:
		return naturalType(t)
	case float64:
		if t == float64(int64(t)) {
			return batch.TypeInt64
		}
		return batch.TypeFloat64
	case bool:
		return batch.TypeBool
	case map[string]interface{}, []interface{}:
		return batch.TypeString
	default:
		return batch.TypeUnknown
	}
}

func writeJSONCell(b *batch.Batch, row, col int, typ batch.Type, v interface{}) {
	switch s := v.(type) {
	case string:
		writeCell(b, row, col, typ, s)
	case float64:
		switch typ {
		case batch.TypeInt64:
			b.SetInt64(row, col, int64(s))
		case batch.TypeFloat64:
			b.SetFloat64(row, col, s)
		default:
			b.SetString(row, col, fmt.Sprintf("%v", s))
		}
	case bool:
		if typ == batch.TypeBool {
			b.SetBool(row, col, s)
		}
	case map[string]interface{}, []interface{}:
		if encoded, err := json.Marshal(s); err == nil {
			b.SetString(row, col, string(encoded))
		}
	}
}

func (d *jsonlDecoder) Destroy() {}

type jsonlEncoder struct{}

// NewJSONLEncoder constructs a JSONL encoder: one compact JSON object per
// row, null fields omitted.
func NewJSONLEncoder() *jsonlEncoder { return &jsonlEncoder{} }

func (e *jsonlEncoder) Encode(b *batch.Batch) ([]byte, error) {
	var sb strings.Builder
	sch := b.Schema()
	for r := 0; r < b.NRows(); r++ {
		obj := make(map[string]interface{}, b.NCols())
		for c, col := range sch.Columns {
			if b.IsNull(r, c) {
				continue
			}
			obj[col.Name] = jsonCellValue(b, r, c)
		}
		line, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("jsonl encode row %d: %w", r, err)
		}
		sb.Write(line)
		sb.WriteString("\n")
	}
	return []byte(sb.String()), nil
}

func jsonCellValue(b *batch.Batch, row, col int) interface{} {
	switch b.ColumnType(col) {
	case batch.TypeBool:
		v, _ := b.GetBool(row, col)
		return v
	case batch.TypeInt64:
		v, _ := b.GetInt64(row, col)
		return v
	case batch.TypeFloat64:
		v, _ := b.GetFloat64(row, col)
		return v
	case batch.TypeDate:
		v, _ := b.GetDate(row, col)
		return formatDate(v)
	case batch.TypeTimestamp:
		v, _ := b.GetTimestamp(row, col)
		return formatTimestamp(v)
	default:
		v, _ := b.GetString(row, col)
		return v
	}
}

func (e *jsonlEncoder) Flush() ([]byte, error) { return nil, nil }
func (e *jsonlEncoder) Destroy()               {}

func init() {
	registry.Register(registry.Entry{
		Name: "codec.jsonl.decode",
		Kind: registry.KindDecoder,
		Caps: registry.NewCapSet(registry.CapStreaming, registry.CapBoundedMemory, registry.CapBrowserSafe, registry.CapDeterministic),
		NewDecoder: func(args registry.Args, sink registry.Sink) (registry.Decoder, error) {
			return NewJSONLDecoder(JSONLConfig{TargetRows: args.Int("batch_rows", defaultTargetRows)}, sink), nil
		},
	})
	registry.Register(registry.Entry{
		Name: "codec.jsonl.encode",
		Kind: registry.KindEncoder,
		Caps: registry.NewCapSet(registry.CapStreaming, registry.CapBoundedMemory, registry.CapBrowserSafe, registry.CapDeterministic),
		NewEncoder: func(args registry.Args) (registry.Encoder, error) {
			return NewJSONLEncoder(), nil
		},
	})
}
