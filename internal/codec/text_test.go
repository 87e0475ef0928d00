package codec

import "testing"

func TestTextDecodeSplitsLines(t *testing.T) {
	d := NewTextDecoder(0)
	batches, err := d.Decode([]byte("one\ntwo\nthree\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tail, _ := d.Flush()
	batches = append(batches, tail...)
	if len(batches) == 0 || batches[0].NRows() != 3 {
		t.Fatalf("expected 3 lines, got %v", batches)
	}
	v, ok := batches[0].GetString(1, 0)
	if !ok || v != "two" {
		t.Fatalf("expected row 1 = %q, got %q", "two", v)
	}
}

func TestTextDecodeStripsCR(t *testing.T) {
	d := NewTextDecoder(0)
	batches, _ := d.Decode([]byte("one\r\ntwo\r\n"))
	tail, _ := d.Flush()
	batches = append(batches, tail...)
	v, ok := batches[0].GetString(0, 0)
	if !ok || v != "one" {
		t.Fatalf("expected CR stripped, got %q", v)
	}
}

func TestTextDecodeFlushesTrailingPartialLine(t *testing.T) {
	d := NewTextDecoder(0)
	batches, _ := d.Decode([]byte("complete\nno-newline-at-end"))
	tail, _ := d.Flush()
	all := append(batches, tail...)
	found := false
	for _, b := range all {
		for r := 0; r < b.NRows(); r++ {
			v, _ := b.GetString(r, 0)
			if v == "no-newline-at-end" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected trailing partial line flushed, got %v", all)
	}
}

func TestTextEncodeUsesNamedColumn(t *testing.T) {
	d := NewCSVDecoder(CSVConfig{Header: true}, nil)
	batches := decodeAll(t, d, "name,note\nAlice,hello\nBob,world\n")

	e := NewTextEncoder("note")
	var out []byte
	for _, b := range batches {
		chunk, err := e.Encode(b)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		out = append(out, chunk...)
	}
	want := "hello\nworld\n"
	if string(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestTextEncodeDefaultsToLineColumn(t *testing.T) {
	d := NewTextDecoder(0)
	batches, _ := d.Decode([]byte("alpha\nbeta\n"))
	tail, _ := d.Flush()
	batches = append(batches, tail...)

	e := NewTextEncoder("")
	var out []byte
	for _, b := range batches {
		chunk, _ := e.Encode(b)
		out = append(out, chunk...)
	}
	if string(out) != "alpha\nbeta\n" {
		t.Fatalf("got %q", out)
	}
}
