// Command tendril grows climbing vines over a scripted scene and writes the
// result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/chazu/tendril/pkg/profile"
	flag "github.com/spf13/pflag"
)

var (
	scriptPath  = flag.StringP("script", "s", "", "Scene script to evaluate (required)")
	profilePath = flag.StringP("profile", "p", "", "YAML growth profile overriding the script's")
	ticks       = flag.IntP("ticks", "n", DefaultRunOptions().Ticks, "Maximum number of growth ticks")
	seed        = flag.Int64("seed", DefaultRunOptions().Seed, "Random seed")
	mesh        = flag.Bool("mesh", false, "Tessellate grown vines into meshes")
	merge       = flag.Bool("merge", false, "Merge visible vines into one graph")
	meshKernel  = flag.String("kernel", "sdfx", "Mesh kernel: sdfx or manifold")
	stopAfter   = flag.Int("stop-after", 0, "Force-stop every vine after this many ticks (0 disables)")
	interval    = flag.Duration("interval", 0, "Grow in real time, one tick per interval (e.g. 100ms)")
	outPath     = flag.StringP("out", "o", "", "Write the JSON result here instead of stdout")
	verbose     = flag.BoolP("verbose", "v", false, "Log growth details to stderr")
)

func main() {
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "tendril: --script is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	result, err := run(ctx, log)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tendril: %v\n", err)
		os.Exit(1)
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(os.Stderr, "%s:%d: %s\n", *scriptPath, e.Line, e.Message)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s\n", *scriptPath, e.Message)
			}
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) (RunResult, error) {
	source, err := os.ReadFile(*scriptPath)
	if err != nil {
		return RunResult{}, err
	}

	opts := DefaultRunOptions()
	opts.Ticks = *ticks
	opts.Seed = *seed
	opts.Mesh = *mesh
	opts.Merge = *merge
	opts.Kernel = *meshKernel
	opts.StopAfter = *stopAfter
	opts.Interval = *interval
	if *profilePath != "" {
		p, err := profile.Load(*profilePath)
		if err != nil {
			return RunResult{}, err
		}
		opts.Profile = &p
	}

	result := NewApp(log).RunContext(ctx, string(source), opts)

	if *outPath == "" {
		return result, writeResult(os.Stdout, result)
	}
	return result, writeResultFile(*outPath, result)
}

// writeResultFile writes result to a new file at path.
func writeResultFile(path string, result RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeResult(f, result); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// writeResult encodes result as indented JSON.
func writeResult(w io.Writer, result RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
