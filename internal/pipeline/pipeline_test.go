package pipeline_test

import (
	"strings"
	"testing"

	_ "github.com/doomsbay/flowkit/internal/codec"
	"github.com/doomsbay/flowkit/internal/dsl"
	_ "github.com/doomsbay/flowkit/internal/ops"
	"github.com/doomsbay/flowkit/internal/pipeline"
)

func buildPipeline(t *testing.T, source string) *pipeline.Pipeline {
	t.Helper()
	p, err := dsl.Compile(source)
	if err != nil {
		t.Fatalf("dsl.Compile(%q): %v", source, err)
	}
	pl, err := pipeline.Create(p)
	if err != nil {
		t.Fatalf("pipeline.Create: %v", err)
	}
	return pl
}

func drain(pl *pipeline.Pipeline, channel int) string {
	buf := make([]byte, 4096)
	var sb strings.Builder
	for {
		n := pl.Pull(channel, buf, len(buf))
		if n == 0 {
			break
		}
		sb.Write(buf[:n])
	}
	return sb.String()
}

func TestPushThenFinishProducesMainOutput(t *testing.T) {
	pl := buildPipeline(t, "csv|csv")
	defer pl.Destroy()

	if err := pl.Push([]byte("name,age\nAlice,30\n")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := pl.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	out := drain(pl, pipeline.ChannelMain)
	if !strings.Contains(out, "Alice,30") {
		t.Fatalf("expected Alice,30 in main output, got %q", out)
	}
	if pl.RowsIn() != 1 || pl.RowsOut() != 1 {
		t.Fatalf("expected rowsIn=rowsOut=1, got in=%d out=%d", pl.RowsIn(), pl.RowsOut())
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	pl := buildPipeline(t, "csv|csv")
	defer pl.Destroy()

	if err := pl.Push([]byte("name\nAlice\n")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := pl.Finish(); err != nil {
		t.Fatalf("first Finish: %v", err)
	}
	if err := pl.Finish(); err != nil {
		t.Fatalf("second Finish should be a no-op, got: %v", err)
	}
	if !pl.Finished() {
		t.Fatalf("expected Finished() true after Finish")
	}
}

func TestStatsOpCascadesThroughFlush(t *testing.T) {
	pl := buildPipeline(t, "csv|stats|csv")
	defer pl.Destroy()

	if err := pl.Push([]byte("age\n10\n20\n30\n")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := pl.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	out := drain(pl, pipeline.ChannelMain)
	if !strings.Contains(out, "age") {
		t.Fatalf("expected stats output to mention the source column, got %q", out)
	}
}

func TestPullOnEmptyChannelReturnsZero(t *testing.T) {
	pl := buildPipeline(t, "csv|csv")
	defer pl.Destroy()
	buf := make([]byte, 16)
	if n := pl.Pull(pipeline.ChannelErrors, buf, 16); n != 0 {
		t.Fatalf("expected 0 from untouched ERRORS channel, got %d", n)
	}
}

func TestPullWithInvalidChannelReturnsZero(t *testing.T) {
	pl := buildPipeline(t, "csv|csv")
	defer pl.Destroy()
	buf := make([]byte, 16)
	if n := pl.Pull(99, buf, 16); n != 0 {
		t.Fatalf("expected 0 for out-of-range channel, got %d", n)
	}
}

func TestDestroyIsSafeAfterFinish(t *testing.T) {
	pl := buildPipeline(t, "csv|csv")
	if err := pl.Push([]byte("name\nAlice\n")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := pl.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	pl.Destroy()
}

func TestHeadOpFlushDoesNotEmitExtraRows(t *testing.T) {
	pl := buildPipeline(t, "csv|head 2|csv")
	defer pl.Destroy()

	if err := pl.Push([]byte("name\nA\nB\nC\nD\n")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := pl.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	out := drain(pl, pipeline.ChannelMain)
	if strings.Contains(out, "C") || strings.Contains(out, "D") {
		t.Fatalf("expected head to cut off at 2 rows, got %q", out)
	}
}
