package flowkit_test

import (
	"strings"
	"testing"

	"github.com/doomsbay/flowkit"
)

// runPipeline pushes input through a DSL-compiled plan in one shot and
// returns everything pulled off MAIN.
func runPipeline(t *testing.T, dsl, input string) (main string, stats string) {
	t.Helper()
	p, err := flowkit.PlanFromDSL(dsl)
	if err != nil {
		t.Fatalf("PlanFromDSL(%q): %v", dsl, err)
	}
	pl, err := flowkit.CreatePipeline(p)
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	defer pl.Destroy()

	if err := pl.Push([]byte(input)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := pl.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	buf := make([]byte, 4096)
	var mainOut, statsOut strings.Builder
	for {
		n := pl.Pull(flowkit.ChannelMain, buf, len(buf))
		if n == 0 {
			break
		}
		mainOut.Write(buf[:n])
	}
	for {
		n := pl.Pull(flowkit.ChannelStats, buf, len(buf))
		if n == 0 {
			break
		}
		statsOut.Write(buf[:n])
	}
	return mainOut.String(), statsOut.String()
}

func TestCSVPassthrough(t *testing.T) {
	out, stats := runPipeline(t, "csv|csv", "name,age\nAlice,30\nBob,25\n")
	if !strings.Contains(out, "name,age") {
		t.Fatalf("missing header in output: %q", out)
	}
	if !strings.Contains(out, "Alice,30") || !strings.Contains(out, "Bob,25") {
		t.Fatalf("missing data rows in output: %q", out)
	}
	if !strings.Contains(stats, "rows_in") {
		t.Fatalf("expected rows_in on STATS, got %q", stats)
	}
}

func TestFilter(t *testing.T) {
	out, _ := runPipeline(t, `csv|filter "col(age) > 27"|csv`,
		"name,age,score\nAlice,30,85\nBob,25,92\nCharlie,35,78\n")
	if !strings.Contains(out, "Alice") {
		t.Fatalf("expected Alice in output: %q", out)
	}
	if !strings.Contains(out, "Charlie") {
		t.Fatalf("expected Charlie in output: %q", out)
	}
	if strings.Contains(out, "Bob") {
		t.Fatalf("did not expect Bob in output: %q", out)
	}
}

func TestSkipThenHead(t *testing.T) {
	out, _ := runPipeline(t, "csv|skip 2|head 2|csv", "name\nA\nB\nC\nD\nE\n")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %v", lines)
	}
	if lines[1] != "C" || lines[2] != "D" {
		t.Fatalf("expected C,D body, got %v", lines[1:])
	}
}

func TestSortDescending(t *testing.T) {
	out, _ := runPipeline(t, "csv|sort -age|csv", "name,age\nAlice,30\nBob,25\nCharlie,35\n")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %v", lines)
	}
	names := []string{}
	for _, l := range lines[1:] {
		names = append(names, strings.Split(l, ",")[0])
	}
	want := []string{"Charlie", "Alice", "Bob"}
	for i, n := range names {
		if n != want[i] {
			t.Fatalf("row %d: got %q want %q (full order %v)", i, n, want[i], names)
		}
	}
}

func TestPivotSum(t *testing.T) {
	out, _ := runPipeline(t, "csv|pivot metric value sum|csv", "name,metric,value\nA,x,1\nA,x,10\nA,y,2\nB,x,3\n")
	if !strings.Contains(out, "name,x,y") {
		t.Fatalf("expected pivoted header, got %q", out)
	}
	if !strings.Contains(out, "A,11,2") {
		t.Fatalf("expected A row x=11,y=2, got %q", out)
	}
	if !strings.Contains(out, "B,3,") {
		t.Fatalf("expected B row x=3, got %q", out)
	}
}

func TestAutodetectRoundtrip(t *testing.T) {
	input := "ts\n2024-03-15T10:30:00Z\n2023-12-25T23:59:59Z\n"
	out, _ := runPipeline(t, "csv|csv", input)
	if !strings.Contains(out, "2024-03-15T10:30:00Z") || !strings.Contains(out, "2023-12-25T23:59:59Z") {
		t.Fatalf("expected both ISO-8601 timestamps preserved, got %q", out)
	}
}

func TestHeadEmitsAtMostN(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name\n")
	for i := 0; i < 1000; i++ {
		sb.WriteString("row\n")
	}
	out, _ := runPipeline(t, "csv|head 10|csv", sb.String())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 11 {
		t.Fatalf("expected header + 10 rows, got %d lines", len(lines))
	}
}

func TestRecipeDedup(t *testing.T) {
	dslStr, ok := flowkit.ResolveRecipe("dedup")
	if !ok {
		t.Fatalf("expected dedup recipe to resolve")
	}
	out, _ := runPipeline(t, dslStr, "name\nA\nA\nB\n")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 unique rows, got %v", lines)
	}
}

func TestPlanJSON(t *testing.T) {
	jsonPlan := `{"steps":[
		{"op":"codec.csv.decode","args":{}},
		{"op":"filter","args":{"expr":"col('age') > 25"}},
		{"op":"head","args":{"n":10}},
		{"op":"codec.csv.encode","args":{}}
	]}`
	p, err := flowkit.PlanFromJSON([]byte(jsonPlan))
	if err != nil {
		t.Fatalf("PlanFromJSON: %v", err)
	}
	pl, err := flowkit.CreatePipeline(p)
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	defer pl.Destroy()
	if err := pl.Push([]byte("name,age\nAlice,30\nBob,20\n")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := pl.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	buf := make([]byte, 4096)
	n := pl.Pull(flowkit.ChannelMain, buf, len(buf))
	out := string(buf[:n])
	if !strings.Contains(out, "Alice") || strings.Contains(out, "Bob") {
		t.Fatalf("unexpected output: %q", out)
	}
}
