package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/report"
	"github.com/joshuapare/heapkit/ledger"
	"github.com/joshuapare/heapkit/malloc"
	"github.com/joshuapare/heapkit/trace"
)

var (
	blocksPrefix int
	blocksMax    int
)

func init() {
	cmd := newBlocksCmd()
	cmd.Flags().IntVar(&blocksPrefix, "prefix", 0, "Replay only the first N operations (0 = all)")
	cmd.Flags().IntVarP(&blocksMax, "max-blocks", "n", 50, "Maximum blocks to list (0 = all)")
	rootCmd.AddCommand(cmd)
}

func newBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks <trace>",
		Short: "Show the arena layout after replaying a trace",
		Long: `The blocks command replays a trace (or a prefix of it) and lists the
arena blocks in address order with a fragmentation summary.

Example:
  heapctl blocks --prefix 1000 work.trace
  heapctl blocks -n 0 --json work.trace.zst
  heapctl blocks --limit 1048576 --max-blocks 20 work.trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlocks(cmd.Context(), args[0])
		},
	}
}

type blocksJSON struct {
	Trace    string         `json:"trace"`
	Ops      int            `json:"ops"`
	Layout   report.Layout  `json:"layout"`
	Blocks   []ledger.Block `json:"blocks"`
	Mappings int            `json:"mappings"`
}

func runBlocks(ctx context.Context, path string) error {
	ops, err := trace.Open(path)
	if err != nil {
		return fmt.Errorf("failed to load trace: %w", err)
	}
	if blocksPrefix > 0 && blocksPrefix < len(ops) {
		ops = ops[:blocksPrefix]
	}

	a, err := malloc.New(allocConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := trace.Replay(ctx, a, ops, trace.Options{}); err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	blocks := a.Blocks()
	layout := report.Summarize(blocks)
	if jsonOut {
		return printJSON(blocksJSON{
			Trace:    path,
			Ops:      len(ops),
			Layout:   layout,
			Blocks:   blocks,
			Mappings: len(a.Mappings()),
		})
	}

	printInfo("Arena after %s operations of %s\n\n", report.Number(len(ops)), path)
	if !quiet {
		if err := report.WriteBlocks(os.Stdout, blocks, blocksMax); err != nil {
			return err
		}
	}
	printInfo("\n%s blocks, %s free, largest free %s, fragmentation %.1f%%\n",
		report.Number(layout.Blocks), report.Number(layout.FreeBlocks),
		report.Bytes(layout.LargestFree), layout.Fragmentation()*100)
	printInfo("%s live mappings\n", report.Number(len(a.Mappings())))
	return nil
}
