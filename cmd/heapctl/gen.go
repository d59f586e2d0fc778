package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/trace"
)

var (
	genOps     int
	genSeed    int64
	genMaxSize int
	genOutput  string
)

func init() {
	cmd := newGenCmd()
	cmd.Flags().IntVar(&genOps, "ops", 10000, "Number of random operations before the final frees")
	cmd.Flags().Int64Var(&genSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&genMaxSize, "max-size", 512*1024, "Largest request size")
	cmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output file (.zst and .gz are compressed); stdout if empty")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen",
		Short: "Generate a random allocation trace",
		Long: `The gen command writes a random but valid allocation trace. Every id
allocated is eventually freed, so replaying the trace ends with an empty heap.

Example:
  heapctl gen --ops 50000 --seed 7 -o work.trace.zst
  heapctl gen --max-size 4096 | head`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen()
		},
	}
}

func runGen() error {
	if genOps < 0 || genMaxSize <= 0 {
		return fmt.Errorf("--ops must be >= 0 and --max-size > 0")
	}
	ops := trace.Generate(genSeed, genOps, genMaxSize)
	if genOutput == "" {
		return trace.Write(os.Stdout, ops)
	}
	if err := trace.Create(genOutput, ops); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}
	printVerbose("Wrote %d operations to %s\n", len(ops), genOutput)
	return nil
}
