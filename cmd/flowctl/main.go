// Command flowctl is a demonstration host for the flowkit engine: it reads
// a plan (JSON recipe, pipe-separated DSL string, or built-in recipe name),
// pushes an input file through it in chunks, and writes each channel's
// drained bytes to stdout (MAIN) or stderr (ERRORS/STATS), with an
// optional progress bar over the input file's size.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/doomsbay/flowkit"
	"github.com/doomsbay/flowkit/internal/codec"
)

func main() {
	fs := flag.NewFlagSet("flowctl", flag.ExitOnError)
	input := fs.String("input", "", "Input file (- for stdin); gzip-transparent by .gz suffix")
	planJSON := fs.String("plan", "", "Plan JSON recipe file")
	pipe := fs.String("pipe", "", "Pipe-separated DSL string, e.g. \"csv | head 10 | table\"")
	recipe := fs.String("recipe", "", "Built-in recipe name (profile, preview, dedup, ...)")
	chunkSize := fs.Int("chunk-bytes", 1<<20, "Bytes read per push call")
	showProgress := fs.Bool("progress", true, "Show a progress bar over input size")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fatalf("parse args failed: %v", err)
	}

	p, err := loadPlan(*planJSON, *pipe, *recipe)
	if err != nil {
		fatalf("load plan: %v", err)
	}

	pl, err := flowkit.CreatePipeline(p)
	if err != nil {
		fatalf("create pipeline: %v", err)
	}
	defer pl.Destroy()

	if err := run(pl, *input, *chunkSize, *showProgress); err != nil {
		fatalf("run failed: %v", err)
	}

	drainChannel(pl, flowkit.ChannelErrors, os.Stderr)
	drainChannel(pl, flowkit.ChannelStats, os.Stderr)
	drainChannel(pl, flowkit.ChannelSamples, os.Stderr)
}

func loadPlan(planPath, pipe, recipe string) (*flowkit.Plan, error) {
	switch {
	case planPath != "":
		data, err := os.ReadFile(planPath)
		if err != nil {
			return nil, fmt.Errorf("read plan file: %w", err)
		}
		return flowkit.PlanFromJSON(data)
	case recipe != "":
		dslStr, ok := flowkit.ResolveRecipe(recipe)
		if !ok {
			return nil, fmt.Errorf("unknown recipe %q", recipe)
		}
		return flowkit.PlanFromDSL(dslStr)
	case pipe != "":
		return flowkit.PlanFromDSL(pipe)
	default:
		return nil, fmt.Errorf("one of -plan, -pipe, or -recipe is required")
	}
}

func run(pl *flowkit.Pipeline, inputPath string, chunkBytes int, showProgress bool) error {
	in, size, err := openInput(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = in.Close() }()

	bar := newProgress(size, showProgress)
	defer bar.finish()

	buf := make([]byte, chunkBytes)
	mainBuf := make([]byte, 64*1024)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if err := pl.Push(buf[:n]); err != nil {
				return fmt.Errorf("push: %w", err)
			}
			bar.add(n)
			drainChannelInto(pl, flowkit.ChannelMain, os.Stdout, mainBuf)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	if err := pl.Finish(); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	drainChannelInto(pl, flowkit.ChannelMain, os.Stdout, mainBuf)
	return nil
}

func drainChannel(pl *flowkit.Pipeline, channel int, w io.Writer) {
	buf := make([]byte, 64*1024)
	drainChannelInto(pl, channel, w, buf)
}

func drainChannelInto(pl *flowkit.Pipeline, channel int, w io.Writer, buf []byte) {
	for {
		n := pl.Pull(channel, buf, len(buf))
		if n == 0 {
			return
		}
		_, _ = w.Write(buf[:n])
	}
}

func openInput(path string) (io.ReadCloser, int64, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), 0, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	f, err := codec.OpenInput(path)
	if err != nil {
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// progress wraps schollz/progressbar with an opt-out flag, mirroring the
// teacher's progress helper but driven by bytes pushed rather than records
// processed.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(total int64, enabled bool) *progress {
	if !enabled {
		return &progress{}
	}
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(250 * time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
	}
	if total > 0 {
		return &progress{bar: progressbar.NewOptions64(total, opts...)}
	}
	opts = append(opts, progressbar.OptionSpinnerType(14))
	return &progress{bar: progressbar.NewOptions64(-1, opts...)}
}

func (p *progress) add(n int) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(n)
}

func (p *progress) finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
