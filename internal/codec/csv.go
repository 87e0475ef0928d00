package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

const defaultTargetRows = 1024

// csvTokenizer is a quote-aware row scanner that survives chunk boundaries
// (a quoted field may contain an embedded newline, or a chunk may end
// mid-quote). Grounded on the teacher's tail-carry pattern in
// tsv_parser.go's readBatches, generalized from "carry a trailing partial
// line" to "carry a trailing partial quoted field".
type csvTokenizer struct {
	delim        byte
	inQuotes     bool
	quotePending bool
	field        []byte
	row          []string
}

func newCSVTokenizer(delim byte) *csvTokenizer {
	return &csvTokenizer{delim: delim}
}

// feed scans data, returning every row completed within this call. Partial
// state (an open quote, a partial field) carries to the next feed call.
func (t *csvTokenizer) feed(data []byte) [][]string {
	var rows [][]string
	i := 0
	if t.quotePending {
		t.quotePending = false
		if len(data) == 0 {
			t.quotePending = true
			return rows
		}
		if data[0] == '"' {
			t.field = append(t.field, '"')
			i = 1
		} else {
			t.inQuotes = false
		}
	}
	for ; i < len(data); i++ {
		c := data[i]
		if t.inQuotes {
			if c == '"' {
				if i+1 < len(data) {
					if data[i+1] == '"' {
						t.field = append(t.field, '"')
						i++
						continue
					}
					t.inQuotes = false
					continue
				}
				t.quotePending = true
				return rows
			}
			t.field = append(t.field, c)
			continue
		}
		switch c {
		case '"':
			t.inQuotes = true
		case t.delim:
			t.row = append(t.row, string(t.field))
			t.field = t.field[:0]
		case '\r':
			// swallow; \n (or EOF) ends the row
		case '\n':
			t.row = append(t.row, string(t.field))
			t.field = t.field[:0]
			rows = append(rows, t.row)
			t.row = nil
		default:
			t.field = append(t.field, c)
		}
	}
	return rows
}

// flushRow returns the last, newline-less row at end of input, or nil if
// nothing is pending.
func (t *csvTokenizer) flushRow() []string {
	if len(t.row) == 0 && len(t.field) == 0 {
		return nil
	}
	row := append(t.row, string(t.field))
	t.row = nil
	t.field = nil
	return row
}

// CSVConfig configures the CSV decoder.
type CSVConfig struct {
	Delimiter  byte // default ','
	Header     bool // true: first row becomes column names; the zero value reads every row as data
	Repair     bool // pad short rows with nulls, truncate long rows
	TargetRows int  // batch size target, default 1024
}

func (c CSVConfig) withDefaults() CSVConfig {
	if c.Delimiter == 0 {
		c.Delimiter = ','
	}
	if c.TargetRows <= 0 {
		c.TargetRows = defaultTargetRows
	}
	return c
}

type csvDecoder struct {
	cfg       CSVConfig
	tok       *csvTokenizer
	header    []string
	pending   [][]string // raw rows buffered for the batch under construction
	colCount  int
	headerSet bool
	sink      registry.Sink
	rowNum    int
}

// NewCSVDecoder constructs a CSV decoder. sink may be nil, in which case
// malformed rows are dropped silently (used by callers like join/stack that
// read a side file outside the pipeline's ERRORS channel).
func NewCSVDecoder(cfg CSVConfig, sink registry.Sink) *csvDecoder {
	cfg = cfg.withDefaults()
	return &csvDecoder{cfg: cfg, tok: newCSVTokenizer(cfg.Delimiter), sink: sink}
}

func (d *csvDecoder) Decode(chunk []byte) ([]*batch.Batch, error) {
	rows := d.tok.feed(chunk)
	return d.consume(rows), nil
}

func (d *csvDecoder) Flush() ([]*batch.Batch, error) {
	var out []*batch.Batch
	if last := d.tok.flushRow(); last != nil {
		out = append(out, d.consume([][]string{last})...)
	}
	if len(d.pending) > 0 {
		out = append(out, d.buildBatch(d.pending))
		d.pending = nil
	}
	return out, nil
}

func (d *csvDecoder) consume(rows [][]string) []*batch.Batch {
	var out []*batch.Batch
	for _, row := range rows {
		if !d.headerSet && d.cfg.Header {
			d.header = row
			d.colCount = len(row)
			d.headerSet = true
			continue
		}
		if !d.headerSet {
			d.colCount = len(row)
			d.headerSet = true
		}
		d.rowNum++
		repaired := d.repairRow(row)
		if repaired == nil {
			if d.sink != nil {
				d.sink.WriteErrors(fmt.Sprintf(`{"op":"codec.csv.decode","reason":"column_count_mismatch","row":%d,"got":%d,"want":%d}`, d.rowNum, len(row), d.colCount))
			}
			continue
		}
		row = repaired
		d.pending = append(d.pending, row)
		if len(d.pending) >= d.cfg.TargetRows {
			out = append(out, d.buildBatch(d.pending))
			d.pending = nil
		}
	}
	return out
}

// repairRow enforces column-count consistency. With repair off, a row of
// the wrong width is dropped and reported on the decoder's sink (see
// consume). With repair on, short rows are null-padded and long rows
// truncated.
func (d *csvDecoder) repairRow(row []string) []string {
	if len(row) == d.colCount {
		return row
	}
	if !d.cfg.Repair {
		return nil
	}
	if len(row) > d.colCount {
		return row[:d.colCount]
	}
	out := make([]string, d.colCount)
	copy(out, row)
	return out
}

func (d *csvDecoder) colNames() []string {
	if d.cfg.Header && len(d.header) > 0 {
		return d.header
	}
	names := make([]string, d.colCount)
	for i := range names {
		names[i] = "col" + strconv.Itoa(i)
	}
	return names
}

func (d *csvDecoder) buildBatch(rows [][]string) *batch.Batch {
	names := d.colNames()
	nCols := len(names)
	types := make([]batch.Type, nCols)
	for _, row := range rows {
		for c := 0; c < nCols && c < len(row); c++ {
			types[c] = widen(types[c], naturalType(row[c]))
		}
	}
	for i, t := range types {
		if t == batch.TypeUnknown {
			types[i] = batch.TypeString
		}
	}

	b := batch.New(nCols, len(rows))
	for c := 0; c < nCols; c++ {
		b.SetSchema(c, names[c], types[c])
	}
	for _, row := range rows {
		r := b.AppendRow()
		for c := 0; c < nCols; c++ {
			if c >= len(row) || row[c] == "" {
				continue // stays null
			}
			writeCell(b, r, c, types[c], row[c])
		}
	}
	return b
}

func writeCell(b *batch.Batch, row, col int, typ batch.Type, raw string) {
	switch typ {
	case batch.TypeBool:
		b.SetBool(row, col, parseBool(raw))
	case batch.TypeInt64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return
		}
		b.SetInt64(row, col, v)
	case batch.TypeFloat64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return
		}
		b.SetFloat64(row, col, v)
	case batch.TypeDate:
		v, err := parseDate(raw)
		if err != nil {
			return
		}
		b.SetDate(row, col, v)
	case batch.TypeTimestamp:
		v, err := parseTimestamp(raw)
		if err != nil {
			return
		}
		b.SetTimestamp(row, col, v)
	default:
		b.SetString(row, col, raw)
	}
}

func (d *csvDecoder) Destroy() {}

type csvEncoder struct {
	cfg       CSVConfig
	wroteHead bool
	delim     string
}

// NewCSVEncoder constructs a CSV encoder.
func NewCSVEncoder(cfg CSVConfig) *csvEncoder {
	cfg = cfg.withDefaults()
	return &csvEncoder{cfg: cfg, delim: string(cfg.Delimiter)}
}

func (e *csvEncoder) Encode(b *batch.Batch) ([]byte, error) {
	var sb strings.Builder
	if !e.wroteHead {
		sch := b.Schema()
		for i, c := range sch.Columns {
			if i > 0 {
				sb.WriteString(e.delim)
			}
			sb.WriteString(e.quoteIfNeeded(c.Name))
		}
		sb.WriteString("\n")
		e.wroteHead = true
	}
	for r := 0; r < b.NRows(); r++ {
		for c := 0; c < b.NCols(); c++ {
			if c > 0 {
				sb.WriteString(e.delim)
			}
			sb.WriteString(e.renderCell(b, r, c))
		}
		sb.WriteString("\n")
	}
	return []byte(sb.String()), nil
}

func (e *csvEncoder) renderCell(b *batch.Batch, row, col int) string {
	if b.IsNull(row, col) {
		return ""
	}
	switch b.ColumnType(col) {
	case batch.TypeBool:
		v, _ := b.GetBool(row, col)
		if v {
			return "true"
		}
		return "false"
	case batch.TypeInt64:
		v, _ := b.GetInt64(row, col)
		return strconv.FormatInt(v, 10)
	case batch.TypeFloat64:
		v, _ := b.GetFloat64(row, col)
		return strconv.FormatFloat(v, 'g', -1, 64)
	case batch.TypeDate:
		v, _ := b.GetDate(row, col)
		return formatDate(v)
	case batch.TypeTimestamp:
		v, _ := b.GetTimestamp(row, col)
		return formatTimestamp(v)
	case batch.TypeString:
		v, _ := b.GetString(row, col)
		return e.quoteIfNeeded(v)
	default:
		return ""
	}
}

func (e *csvEncoder) quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, e.delim+"\"\r\n") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}

func (e *csvEncoder) Flush() ([]byte, error) { return nil, nil }
func (e *csvEncoder) Destroy()               {}

func init() {
	registry.Register(registry.Entry{
		Name:         "codec.csv.decode",
		Kind:         registry.KindDecoder,
		Caps:         registry.NewCapSet(registry.CapStreaming, registry.CapBoundedMemory, registry.CapBrowserSafe, registry.CapDeterministic),
		RequiredArgs: nil,
		NewDecoder: func(args registry.Args, sink registry.Sink) (registry.Decoder, error) {
			cfg := CSVConfig{
				Delimiter:  delimArg(args),
				Header:     args.BoolArg("header", true),
				Repair:     args.BoolArg("repair", false),
				TargetRows: args.Int("batch_rows", defaultTargetRows),
			}
			return NewCSVDecoder(cfg, sink), nil
		},
	})
	registry.Register(registry.Entry{
		Name:         "codec.csv.encode",
		Kind:         registry.KindEncoder,
		Caps:         registry.NewCapSet(registry.CapStreaming, registry.CapBoundedMemory, registry.CapBrowserSafe, registry.CapDeterministic),
		RequiredArgs: nil,
		NewEncoder: func(args registry.Args) (registry.Encoder, error) {
			cfg := CSVConfig{Delimiter: delimArg(args)}
			return NewCSVEncoder(cfg), nil
		},
	})
}

func delimArg(args registry.Args) byte {
	d := args.Str("delimiter", ",")
	if len(d) == 0 {
		return ','
	}
	return d[0]
}
