package codec

import (
	"strings"
	"testing"

	"github.com/doomsbay/flowkit/internal/batch"
)

// recordingSink captures ERRORS lines for assertions, standing in for the
// pipeline's real Sink in tests that exercise decoder-level diagnostics.
type recordingSink struct {
	errors []string
}

func (s *recordingSink) WriteErrors(line string) { s.errors = append(s.errors, line) }
func (s *recordingSink) WriteStats(line string)  {}
func (s *recordingSink) WriteSamples(line string) {}

func decodeAll(t *testing.T, d *csvDecoder, input string) []*batch.Batch {
	t.Helper()
	batches, err := d.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tail, err := d.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return append(batches, tail...)
}

func TestCSVDecodeBasic(t *testing.T) {
	d := NewCSVDecoder(CSVConfig{Header: true}, nil)
	batches := decodeAll(t, d, "name,age\nAlice,30\nBob,25\n")
	if len(batches) == 0 {
		t.Fatalf("expected at least one batch")
	}
	b := batches[0]
	if b.NCols() != 2 || b.NRows() != 2 {
		t.Fatalf("expected 2 cols, 2 rows; got %d cols %d rows", b.NCols(), b.NRows())
	}
	v, ok := b.GetString(0, 0)
	if !ok || v != "Alice" {
		t.Fatalf("expected Alice, got %q ok=%v", v, ok)
	}
	age, ok := b.GetInt64(0, 1)
	if !ok || age != 30 {
		t.Fatalf("expected age 30, got %d ok=%v", age, ok)
	}
}

func TestCSVDecodeQuotedEmbeddedNewline(t *testing.T) {
	d := NewCSVDecoder(CSVConfig{Header: true}, nil)
	batches := decodeAll(t, d, "name,note\nAlice,\"line1\nline2\"\n")
	if len(batches) == 0 || batches[0].NRows() != 1 {
		t.Fatalf("expected 1 row, got %v", batches)
	}
	note, ok := batches[0].GetString(0, 1)
	if !ok || note != "line1\nline2" {
		t.Fatalf("expected embedded newline preserved, got %q", note)
	}
}

func TestCSVDecodeAcrossChunks(t *testing.T) {
	d := NewCSVDecoder(CSVConfig{Header: true}, nil)
	part1, err := d.Decode([]byte("name,note\nAlice,\"partial"))
	if err != nil {
		t.Fatalf("Decode part1: %v", err)
	}
	if len(part1) != 0 {
		t.Fatalf("expected no complete rows from part1, got %d", len(part1))
	}
	part2, err := d.Decode([]byte(" value\"\n"))
	if err != nil {
		t.Fatalf("Decode part2: %v", err)
	}
	tail, _ := d.Flush()
	all := append(part2, tail...)
	if len(all) == 0 || all[0].NRows() != 1 {
		t.Fatalf("expected 1 row once chunk completes, got %v", all)
	}
	note, _ := all[0].GetString(0, 1)
	if note != "partial value" {
		t.Fatalf("expected %q, got %q", "partial value", note)
	}
}

func TestCSVDecodeRepairPadsShortRows(t *testing.T) {
	d := NewCSVDecoder(CSVConfig{Header: true, Repair: true}, nil)
	batches := decodeAll(t, d, "a,b,c\n1,2,3\n4,5\n")
	if len(batches) == 0 || batches[0].NRows() != 2 {
		t.Fatalf("expected 2 rows with repair on, got %v", batches)
	}
	if !batches[0].IsNull(1, 2) {
		t.Fatalf("expected short row padded with null in last column")
	}
}

func TestCSVDecodeNoRepairDropsShortRows(t *testing.T) {
	sink := &recordingSink{}
	d := NewCSVDecoder(CSVConfig{Header: true, Repair: false}, sink)
	batches := decodeAll(t, d, "a,b,c\n1,2,3\n4,5\n")
	if len(batches) == 0 || batches[0].NRows() != 1 {
		t.Fatalf("expected malformed row dropped, got %v", batches)
	}
	if len(sink.errors) != 1 {
		t.Fatalf("expected 1 ERRORS line for the dropped row, got %v", sink.errors)
	}
	if !strings.Contains(sink.errors[0], `"reason":"column_count_mismatch"`) {
		t.Fatalf("expected column_count_mismatch reason, got %q", sink.errors[0])
	}
}

func TestCSVEncodeRoundtrip(t *testing.T) {
	d := NewCSVDecoder(CSVConfig{Header: true}, nil)
	batches := decodeAll(t, d, "name,age\nAlice,30\nBob,25\n")

	e := NewCSVEncoder(CSVConfig{})
	var out []byte
	for _, b := range batches {
		chunk, err := e.Encode(b)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		out = append(out, chunk...)
	}
	got := string(out)
	want := "name,age\nAlice,30\nBob,25\n"
	if got != want {
		t.Fatalf("roundtrip mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestCSVEncodeQuotesFieldsWithDelimiter(t *testing.T) {
	e := NewCSVEncoder(CSVConfig{})
	b := batch.New(1, 1)
	b.SetSchema(0, "note", batch.TypeString)
	b.AppendRow()
	b.SetString(0, 0, "a,b")
	out, err := e.Encode(b)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "note\n\"a,b\"\n"
	if string(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestCSVCustomDelimiter(t *testing.T) {
	d := NewCSVDecoder(CSVConfig{Delimiter: '\t'}, nil)
	batches := decodeAll(t, d, "a\tb\n1\t2\n")
	if len(batches) == 0 || batches[0].NCols() != 2 {
		t.Fatalf("expected 2 tab-delimited columns, got %v", batches)
	}
}
