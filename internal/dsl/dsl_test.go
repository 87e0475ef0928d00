package dsl

import "testing"

func TestCompileSimplePipeline(t *testing.T) {
	p, err := Compile("csv | head 10 | csv")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(p.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(p.Nodes))
	}
	if p.Nodes[0].OpName != "codec.csv.decode" {
		t.Fatalf("expected decoder first, got %q", p.Nodes[0].OpName)
	}
	if p.Nodes[2].OpName != "codec.csv.encode" {
		t.Fatalf("expected encoder last, got %q", p.Nodes[2].OpName)
	}
	if p.Nodes[1].OpName != "head" {
		t.Fatalf("expected head op, got %q", p.Nodes[1].OpName)
	}
	if p.Nodes[1].Args["n"].Num != 10 {
		t.Fatalf("expected n=10, got %v", p.Nodes[1].Args["n"])
	}
}

func TestCompileTopPositionalArgs(t *testing.T) {
	p, err := Compile("csv | top 5 score | csv")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	args := p.Nodes[1].Args
	if args["n"].Num != 5 {
		t.Fatalf("expected n=5, got %v", args["n"])
	}
	if args["column"].Str != "score" {
		t.Fatalf("expected column=score, got %v", args["column"])
	}
}

func TestCompilePivotPositionalArgs(t *testing.T) {
	p, err := Compile("csv | pivot metric value sum | csv")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	args := p.Nodes[1].Args
	if args["name_column"].Str != "metric" {
		t.Fatalf("expected name_column=metric, got %v", args["name_column"])
	}
	if args["value_column"].Str != "value" {
		t.Fatalf("expected value_column=value, got %v", args["value_column"])
	}
	if args["agg"].Str != "sum" {
		t.Fatalf("expected agg=sum, got %v", args["agg"])
	}
}

func TestCompileSortDescending(t *testing.T) {
	p, err := Compile("csv | sort -age | csv")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cols := p.Nodes[1].Args["columns"].Array
	if len(cols) != 1 {
		t.Fatalf("expected 1 sort column, got %d", len(cols))
	}
	if cols[0].Object["name"].Str != "age" {
		t.Fatalf("expected column name age, got %v", cols[0].Object["name"])
	}
	if !cols[0].Object["desc"].Bool {
		t.Fatalf("expected desc=true for -age")
	}
}

func TestCompileSortMultiColumnMixedDirection(t *testing.T) {
	p, err := Compile("csv | sort -score name | csv")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cols := p.Nodes[1].Args["columns"].Array
	if len(cols) != 2 {
		t.Fatalf("expected 2 sort columns, got %d", len(cols))
	}
	if cols[0].Object["name"].Str != "score" || !cols[0].Object["desc"].Bool {
		t.Fatalf("expected first column score desc, got %v", cols[0].Object)
	}
	if cols[1].Object["name"].Str != "name" || cols[1].Object["desc"].Bool {
		t.Fatalf("expected second column name asc, got %v", cols[1].Object)
	}
}

func TestCompileFilterExpressionKeptIntact(t *testing.T) {
	p, err := Compile(`csv | filter "col(age) > 25" | csv`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	expr := p.Nodes[1].Args["expr"].Str
	if expr != "col(age) > 25" {
		t.Fatalf("expected quoted expression preserved, got %q", expr)
	}
}

func TestCompileFlags(t *testing.T) {
	p, err := Compile(`csv | filter -v "col(age) > 25" | csv`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !p.Nodes[1].Args["invert"].Bool {
		t.Fatalf("expected invert=true from -v flag")
	}
}

func TestCompileKeyValueArgs(t *testing.T) {
	p, err := Compile("csv delimiter=; | csv")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Nodes[0].Args["delimiter"].Str != ";" {
		t.Fatalf("expected delimiter=;, got %v", p.Nodes[0].Args["delimiter"])
	}
}

func TestCompileSelectAccumulatesColumnList(t *testing.T) {
	p, err := Compile("csv | select name age score | csv")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cols := p.Nodes[1].Args["columns"].Array
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(cols))
	}
	want := []string{"name", "age", "score"}
	for i, c := range cols {
		if c.Str != want[i] {
			t.Fatalf("column %d: got %q want %q", i, c.Str, want[i])
		}
	}
}

func TestCompileEmptyPipelineFails(t *testing.T) {
	if _, err := Compile(""); err == nil {
		t.Fatalf("expected error for empty DSL string")
	}
}

func TestCompileUnterminatedQuoteFails(t *testing.T) {
	if _, err := Compile(`csv | filter "col(age) > 25 | csv`); err == nil {
		t.Fatalf("expected error for unterminated quote")
	}
}

func TestResolveRecipeCaseInsensitive(t *testing.T) {
	s, ok := ResolveRecipe("DEDUP")
	if !ok {
		t.Fatalf("expected dedup recipe to resolve case-insensitively")
	}
	if s == "" {
		t.Fatalf("expected non-empty recipe string")
	}
}

func TestResolveRecipeUnknown(t *testing.T) {
	if _, ok := ResolveRecipe("not-a-real-recipe"); ok {
		t.Fatalf("expected unknown recipe to fail resolution")
	}
}

func TestAllRecipesCompile(t *testing.T) {
	for name := range recipes {
		src, ok := ResolveRecipe(name)
		if !ok {
			t.Fatalf("recipe %q failed to resolve", name)
		}
		if _, err := Compile(src); err != nil {
			t.Fatalf("recipe %q (%q) failed to compile: %v", name, src, err)
		}
	}
}
