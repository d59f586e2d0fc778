package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/malloc"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// Allocator flags
	mmapThreshold   int
	callocThreshold int
	initialArena    int
	arenaLimit      int
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Replay and inspect allocation traces",
	Long: `heapctl drives the heapkit allocator with recorded or generated
allocation traces, checking payload integrity and ledger invariants as it
goes, and reports arena and mapping statistics.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	rootCmd.PersistentFlags().IntVar(&mmapThreshold, "threshold", malloc.DefaultConfig.MmapThreshold,
		"Large-object threshold in bytes")
	rootCmd.PersistentFlags().IntVar(&callocThreshold, "calloc-threshold", malloc.DefaultConfig.CallocThreshold,
		"Threshold used for calloc requests")
	rootCmd.PersistentFlags().IntVar(&initialArena, "initial", malloc.DefaultConfig.InitialArenaSize,
		"Initial arena size in bytes")
	rootCmd.PersistentFlags().IntVar(&arenaLimit, "limit", malloc.DefaultConfig.ArenaLimit,
		"Maximum arena break in bytes")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// allocConfig builds the allocator configuration from flags.
func allocConfig() *malloc.Config {
	return &malloc.Config{
		InitialArenaSize: initialArena,
		MmapThreshold:    mmapThreshold,
		CallocThreshold:  callocThreshold,
		ArenaLimit:       arenaLimit,
		Logger:           newLogger(),
	}
}

// newLogger logs allocator events to stderr in verbose mode.
func newLogger() *slog.Logger {
	if verbose && !quiet {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
