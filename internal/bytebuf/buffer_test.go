package bytebuf

import "testing"

func TestWriteReadRoundtrip(t *testing.T) {
	b := New()
	b.WriteString("hello")
	if b.Readable() != 5 {
		t.Fatalf("expected 5 readable bytes, got %d", b.Readable())
	}
	dst := make([]byte, 5)
	n := b.Read(dst, 5)
	if n != 5 || string(dst) != "hello" {
		t.Fatalf("expected to read %q, got %q (n=%d)", "hello", dst[:n], n)
	}
	if b.Readable() != 0 {
		t.Fatalf("expected buffer drained, got %d readable", b.Readable())
	}
}

func TestReadPartial(t *testing.T) {
	b := New()
	b.WriteString("abcdef")
	dst := make([]byte, 3)
	n := b.Read(dst, 3)
	if n != 3 || string(dst) != "abc" {
		t.Fatalf("expected abc, got %q", dst[:n])
	}
	if b.Readable() != 3 {
		t.Fatalf("expected 3 bytes remaining, got %d", b.Readable())
	}
	rest := b.ReadAll()
	if string(rest) != "def" {
		t.Fatalf("expected def, got %q", rest)
	}
}

func TestReadOnEmptyReturnsZero(t *testing.T) {
	b := New()
	dst := make([]byte, 10)
	if n := b.Read(dst, 10); n != 0 {
		t.Fatalf("expected 0 from empty buffer, got %d", n)
	}
}

func TestWriteAfterPartialReadAppendsCorrectly(t *testing.T) {
	b := New()
	b.WriteString("abc")
	dst := make([]byte, 1)
	b.Read(dst, 1) // consumes "a", leaves "bc" pending
	b.WriteString("de")
	got := string(b.ReadAll())
	if got != "bcde" {
		t.Fatalf("expected bcde after interleaved write/read, got %q", got)
	}
}

func TestCompactReclaimsConsumedPrefix(t *testing.T) {
	b := New()
	b.WriteString("xyz")
	dst := make([]byte, 1)
	b.Read(dst, 1)
	b.Compact()
	if b.Readable() != 2 {
		t.Fatalf("expected 2 bytes still readable after compact, got %d", b.Readable())
	}
	if string(b.ReadAll()) != "yz" {
		t.Fatalf("expected yz remaining after compact")
	}
}

func TestDestroyClearsBuffer(t *testing.T) {
	b := New()
	b.WriteString("abc")
	b.Destroy()
	if b.Readable() != 0 {
		t.Fatalf("expected 0 readable after destroy, got %d", b.Readable())
	}
}
