package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/report"
	"github.com/joshuapare/heapkit/malloc"
	"github.com/joshuapare/heapkit/trace"
)

var (
	replayVerifyEvery int
	replayWorkers     int
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().IntVar(&replayVerifyEvery, "verify-every", 0, "Check ledger invariants every N operations (0 = only at the end)")
	cmd.Flags().IntVar(&replayWorkers, "workers", 1, "Traces replayed concurrently, each on its own allocator")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <trace>...",
		Short: "Replay allocation traces and report statistics",
		Long: `The replay command runs each trace against a fresh allocator. Payloads
are filled with a per-id pattern and checked on every resize and free; calloc
results must read back as zero.

Example:
  heapctl replay work.trace.zst
  heapctl replay --workers 4 --verify-every 100 a.trace b.trace.gz
  heapctl replay --threshold 65536 --json work.trace`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), args)
		},
	}
}

type replayJSON struct {
	Name     string        `json:"name"`
	Ops      int           `json:"ops"`
	Live     int           `json:"live"`
	PeakLive int           `json:"peak_live"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Stats    malloc.Stats  `json:"stats"`
}

func runReplay(ctx context.Context, paths []string) error {
	cfg := allocConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	traces := make([]trace.Trace, 0, len(paths))
	for _, path := range paths {
		printVerbose("Loading trace: %s\n", path)
		ops, err := trace.Open(path)
		if err != nil {
			return fmt.Errorf("failed to load trace: %w", err)
		}
		traces = append(traces, trace.Trace{Name: path, Ops: ops})
	}

	results, err := trace.ReplayAll(ctx, traces, cfg, trace.Options{VerifyEvery: replayVerifyEvery}, replayWorkers)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	if jsonOut {
		out := make([]replayJSON, len(results))
		for i, r := range results {
			out[i] = replayJSON{r.Name, r.Ops, r.Live, r.PeakLive, r.Elapsed, r.Stats}
		}
		return printJSON(out)
	}

	for _, r := range results {
		printInfo("%s: %s ops in %s, peak %s live\n",
			r.Name, report.Number(r.Ops), r.Elapsed.Round(time.Microsecond), report.Number(r.PeakLive))
		if quiet {
			continue
		}
		if err := report.WriteStats(os.Stdout, "Replay: "+r.Name, r.Stats, report.Summarize(r.Blocks)); err != nil {
			return err
		}
		printInfo("\n")
	}
	return nil
}
