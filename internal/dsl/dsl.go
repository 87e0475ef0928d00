// Package dsl is a minimal, self-contained parser for the pipe-separated
// surface syntax described in spec.md §6 ("Surface DSL (collaborator)"):
// `csv | filter "col(age) > 25" | head 10 | csv`. Like the expression
// oracle, the spec marks this a collaborator contract rather than a core
// component, so there is no teacher or pack example to ground a full
// language on; this is a small hand-rolled tokenizer/compiler built
// directly from the grammar spec.md describes, used by cmd/flowctl to turn
// a command-line pipe string into a plan.Plan.
package dsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/doomsbay/flowkit/internal/plan"
	"github.com/doomsbay/flowkit/internal/registry"
)

// codecShorthand maps a bare DSL token to its decode/encode op names.
var codecShorthand = map[string][2]string{
	"csv":   {"codec.csv.decode", "codec.csv.encode"},
	"jsonl": {"codec.jsonl.decode", "codec.jsonl.encode"},
	"text":  {"codec.text.decode", "codec.text.encode"},
	"table": {"", "codec.pretty.encode"},
}

// recipes maps the 21 built-in recipe names (spec §6) to a DSL string,
// case-insensitively.
var recipes = map[string]string{
	"profile":    "csv | stats | table",
	"preview":    "csv | head 20 | table",
	"schema":     "csv | head 1 | table",
	"summary":    "csv | stats | table",
	"count":      "csv | stats stats=count | table",
	"cardinality": "csv | stats stats=distinct | table",
	"distro":     "csv | frequency | table",
	"freq":       "csv | frequency | table",
	"dedup":      "csv | unique | csv",
	"clean":      "csv | trim | fill_down | csv",
	"sample":     "csv | sample 10 | table",
	"head":       "csv | head 10 | table",
	"tail":       "csv | tail 10 | table",
	"look":       "csv | head 20 | table",
	"csv2json":   "csv | jsonl",
	"json2csv":   "jsonl | csv",
	"tsv2csv":    "csv delimiter=\t | csv",
	"csv2tsv":    "csv | csv delimiter=\t",
	"histogram":  "csv | stats stats=hist | table",
	"hash":       "csv | hash | csv",
	"samples":    "csv | sample 10 | table",
}

// ResolveRecipe returns the DSL string for a built-in recipe name (matched
// case-insensitively), or ok=false if name is not a recipe.
func ResolveRecipe(name string) (string, bool) {
	s, ok := recipes[strings.ToLower(name)]
	return s, ok
}

// Compile parses a pipe-separated DSL string into a plan. It resolves
// codec shorthands by position (first segment decodes, last encodes) and
// everything between is a transform op. It does not call Validate or
// InferSchema; the caller does that afterward, matching plan.FromJSON's
// contract.
func Compile(src string) (*plan.Plan, error) {
	segments := splitTopLevel(src, '|')
	if len(segments) == 0 {
		return nil, fmt.Errorf("dsl: empty pipeline")
	}
	p := plan.New()
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return nil, fmt.Errorf("dsl: empty segment at position %d", i)
		}
		name, args, err := compileSegment(seg, i == 0, i == len(segments)-1)
		if err != nil {
			return nil, fmt.Errorf("dsl: segment %d (%q): %w", i, seg, err)
		}
		p.AddNode(name, args)
	}
	return p, nil
}

func compileSegment(seg string, first, last bool) (string, registry.Args, error) {
	tokens, err := tokenize(seg)
	if err != nil {
		return "", nil, err
	}
	if len(tokens) == 0 {
		return "", nil, fmt.Errorf("empty op")
	}
	head := tokens[0]
	rest := tokens[1:]

	if shorthand, ok := codecShorthand[head]; ok {
		name := shorthand[1]
		if first && shorthand[0] != "" {
			name = shorthand[0]
		}
		if name == "" {
			return "", nil, fmt.Errorf("%q cannot decode", head)
		}
		return name, argsFromTokens(head, rest), nil
	}

	if head == "sort" {
		return "sort", sortArgsFromTokens(rest), nil
	}

	return head, argsFromTokens(head, rest), nil
}

// sortArgsFromTokens builds sort's {"columns":[{"name","desc"},...]} arg
// shape from bare "-col"/"col" tokens (spec §6: a leading "-" means
// descending).
func sortArgsFromTokens(tokens []string) registry.Args {
	var cols []registry.ArgValue
	for _, tok := range tokens {
		desc := false
		name := tok
		if strings.HasPrefix(name, "-") {
			desc = true
			name = name[1:]
		}
		cols = append(cols, registry.ArgValue{Kind: registry.ArgObject, Object: map[string]registry.ArgValue{
			"name": {Kind: registry.ArgString, Str: name},
			"desc": {Kind: registry.ArgBool, Bool: desc},
		}})
	}
	return registry.Args{"columns": {Kind: registry.ArgArray, Array: cols}}
}

// listArgKeys names the args that accumulate multiple positional/bare
// tokens into one array instead of each token overwriting the last.
var listArgKeys = map[string]string{
	"select": "columns", "reorder": "columns",
	"unique": "columns", "dedup": "columns",
	"frequency": "columns",
}

// argsFromTokens builds a structured Args value from an op's remaining
// tokens: key=value pairs become named args, bare tokens become positional
// args (keyed by positionalName: a named key for the ops in its table,
// arg0/arg1/... otherwise), and the
// recognised flags from spec §6 become boolean args.
func argsFromTokens(op string, tokens []string) registry.Args {
	args := registry.Args{}
	positional := 0
	listKey := listArgKeys[op]
	for _, tok := range tokens {
		switch {
		case tok == "-v":
			args["invert"] = registry.ArgValue{Kind: registry.ArgBool, Bool: true}
		case tok == "-r" || tok == "--regex":
			args["regex"] = registry.ArgValue{Kind: registry.ArgBool, Bool: true}
		case tok == "-rv" || tok == "-vr":
			args["regex"] = registry.ArgValue{Kind: registry.ArgBool, Bool: true}
			args["invert"] = registry.ArgValue{Kind: registry.ArgBool, Bool: true}
		case tok == "--left":
			args["how"] = registry.ArgValue{Kind: registry.ArgString, Str: "left"}
		case tok == "--inner":
			args["how"] = registry.ArgValue{Kind: registry.ArgString, Str: "inner"}
		case strings.Contains(tok, "="):
			idx := strings.Index(tok, "=")
			key, val := tok[:idx], tok[idx+1:]
			args[key] = inferArgValue(op, key, val)
		case listKey != "":
			entry := args[listKey]
			entry.Kind = registry.ArgArray
			entry.Array = append(entry.Array, registry.ArgValue{Kind: registry.ArgString, Str: tok})
			args[listKey] = entry
		default:
			args[positionalName(op, positional)] = inferArgValue(op, positionalName(op, positional), tok)
			positional++
		}
	}
	return args
}

// positionalName assigns the arg key a bare positional token fills for a
// handful of common ops (e.g. `head 10`, `top 5 score`, `filter "expr"`).
func positionalName(op string, i int) string {
	names := map[string][]string{
		"head":      {"n"},
		"skip":      {"n"},
		"tail":      {"n"},
		"sample":    {"n"},
		"top":       {"n", "column"},
		"filter":    {"expr"},
		"validate":  {"expr"},
		"pivot":     {"name_column", "value_column", "agg"},
		"join":      {"file", "on"},
		"stack":     {"file"},
		"explode":   {"column"},
		"hash":      {"column"},
		"bin":       {"column", "boundaries"},
		"clip":      {"column"},
		"trim":      {"column"},
		"acf":       {"column", "lags"},
		"group_agg": {"group_by"},
	}
	if keys, ok := names[op]; ok && i < len(keys) {
		return keys[i]
	}
	return fmt.Sprintf("arg%d", i)
}

// inferArgValue parses a raw token into string/number/bool.
func inferArgValue(op, key, raw string) registry.ArgValue {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return registry.ArgValue{Kind: registry.ArgNumber, Num: n}
	}
	if raw == "true" || raw == "false" {
		return registry.ArgValue{Kind: registry.ArgBool, Bool: raw == "true"}
	}
	return registry.ArgValue{Kind: registry.ArgString, Str: raw}
}

// tokenize splits a segment into whitespace-separated tokens, honoring
// double-quoted substrings as a single token (so `filter "col(age) > 25"`
// keeps the expression intact).
func tokenize(seg string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quote")
	}
	flush()
	return tokens, nil
}

// splitTopLevel splits s on sep, ignoring occurrences inside double quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == sep && !inQuotes:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())
	return parts
}
