package codec

import (
	"strconv"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
	"github.com/doomsbay/flowkit/internal/registry"
)

const prettyMaxColWidth = 32

// prettyEncoder renders a Markdown-style table. Unlike the other encoders it
// cannot stream: column widths depend on every row, so rendering is deferred
// to Flush and Encode only accumulates.
type prettyEncoder struct {
	batches []*batch.Batch
}

// NewPrettyEncoder constructs a full-load pretty-table encoder.
func NewPrettyEncoder() *prettyEncoder { return &prettyEncoder{} }

func (e *prettyEncoder) Encode(b *batch.Batch) ([]byte, error) {
	e.batches = append(e.batches, b)
	return nil, nil
}

func (e *prettyEncoder) Flush() ([]byte, error) {
	if len(e.batches) == 0 {
		return nil, nil
	}
	sch := e.batches[0].Schema()
	nCols := len(sch.Columns)
	widths := make([]int, nCols)
	for i, c := range sch.Columns {
		widths[i] = clampWidth(len(c.Name))
	}

	type rendered struct{ cells []string }
	var rows []rendered
	for _, b := range e.batches {
		for r := 0; r < b.NRows(); r++ {
			cells := make([]string, nCols)
			for c := 0; c < nCols; c++ {
				cells[c] = prettyCell(b, r, c)
				if w := clampWidth(len(cells[c])); w > widths[c] {
					widths[c] = w
				}
			}
			rows = append(rows, rendered{cells})
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i, cell := range cells {
			sb.WriteString(" ")
			sb.WriteString(padTrunc(cell, widths[i]))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}
	names := make([]string, nCols)
	for i, c := range sch.Columns {
		names[i] = c.Name
	}
	writeRow(names)

	sb.WriteString("|")
	for _, w := range widths {
		sb.WriteString(" " + strings.Repeat("-", w) + " |")
	}
	sb.WriteString("\n")

	for _, row := range rows {
		writeRow(row.cells)
	}

	e.batches = nil
	return []byte(sb.String()), nil
}

func clampWidth(n int) int {
	if n > prettyMaxColWidth {
		return prettyMaxColWidth
	}
	return n
}

func padTrunc(s string, w int) string {
	if len(s) > w {
		if w <= 1 {
			return s[:w]
		}
		return s[:w-1] + "…"
	}
	return s + strings.Repeat(" ", w-len(s))
}

func prettyCell(b *batch.Batch, row, col int) string {
	if b.IsNull(row, col) {
		return ""
	}
	switch b.ColumnType(col) {
	case batch.TypeBool:
		v, _ := b.GetBool(row, col)
		return strconv.FormatBool(v)
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
	default:
		v, _ := b.GetString(row, col)
		return v
	}
}

func (e *prettyEncoder) Destroy() { e.batches = nil }

func init() {
	registry.Register(registry.Entry{
		Name: "codec.pretty.encode",
		Kind: registry.KindEncoder,
		Caps: registry.NewCapSet(registry.CapBrowserSafe, registry.CapDeterministic),
		NewEncoder: func(args registry.Args) (registry.Encoder, error) {
			return NewPrettyEncoder(), nil
		},
	})
}
