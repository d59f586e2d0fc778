// Package report renders allocator statistics and arena layouts as text for
// the command-line tools.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/ledger"
	"github.com/joshuapare/heapkit/malloc"
)

var printer = message.NewPrinter(language.English)

// Number formats n with digit grouping.
func Number[T ~int | ~int64 | ~uint64](n T) string {
	return printer.Sprintf("%d", n)
}

// Bytes formats n as a binary size followed by the exact count.
func Bytes[T ~int | ~int64](n T) string {
	if n < 1024 {
		return printer.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%s (%s bytes)", humanize.IBytes(uint64(n)), Number(n))
}

// Layout summarizes the arena from its block list.
type Layout struct {
	Blocks      int
	FreeBlocks  int
	UsedBytes   int64 // allocated payload
	FreeBytes   int64 // free payload
	HeaderBytes int64
	LargestFree int64
}

// Fragmentation is the share of free payload outside the largest free block,
// in [0, 1].
func (l Layout) Fragmentation() float64 {
	if l.FreeBytes == 0 {
		return 0
	}
	return float64(l.FreeBytes-l.LargestFree) / float64(l.FreeBytes)
}

// Summarize computes a Layout.
func Summarize(blocks []ledger.Block) Layout {
	var l Layout
	for _, b := range blocks {
		l.Blocks++
		l.HeaderBytes += format.HeaderSize
		if b.Status == format.Free {
			l.FreeBlocks++
			l.FreeBytes += int64(b.Size)
			l.LargestFree = max(l.LargestFree, int64(b.Size))
			continue
		}
		l.UsedBytes += int64(b.Size)
	}
	return l
}

// WriteStats writes a sectioned stats report.
func WriteStats(w io.Writer, title string, s malloc.Stats, l Layout) error {
	var b strings.Builder
	line := func(format string, args ...any) { b.WriteString(printer.Sprintf(format, args...)) }

	line("%s\n%s\n\n", title, strings.Repeat("=", max(len(title), 8)))

	line("Calls:\n")
	line("  malloc:  %s\n", Number(s.Mallocs))
	line("  calloc:  %s\n", Number(s.Callocs))
	line("  realloc: %s (%s relocated, %s grown in place, %s in place)\n",
		Number(s.Reallocs), Number(s.Relocations), Number(s.GrowInPlace), Number(s.ShrinkInPlace))
	line("  free:    %s\n", Number(s.Frees))
	line("  rejected: %s\n\n", Number(s.Rejected))

	line("Routing:\n")
	line("  arena:  %s\n", Number(s.ArenaRequests))
	line("  mapped: %s\n\n", Number(s.MappedRequests))

	line("Arena:\n")
	line("  break:     %s\n", Bytes(s.Ledger.BreakBytes))
	line("  blocks:    %s (%s free)\n", Number(l.Blocks), Number(l.FreeBlocks))
	line("  used:      %s\n", Bytes(l.UsedBytes))
	line("  free:      %s\n", Bytes(l.FreeBytes))
	line("  headers:   %s\n", Bytes(l.HeaderBytes))
	line("  fragmentation: %.1f%%\n", l.Fragmentation()*100)
	line("  searches:  %s (exact %s, best %s)\n", Number(s.Ledger.Searches), Number(s.Ledger.ExactFits), Number(s.Ledger.BestFits))
	line("  splits:    %s\n", Number(s.Ledger.Splits))
	line("  merges:    %s\n", Number(s.Ledger.Merges))
	line("  growth:    %s extend-last, %s appended\n\n", Number(s.Ledger.ExtendLast), Number(s.Ledger.Appends))

	line("Mappings:\n")
	line("  mapped:   %s (%s unmapped)\n", Number(s.Maps.Maps), Number(s.Maps.Unmaps))
	line("  live:     %s, %s\n", Number(s.Maps.Live), Bytes(s.Maps.LiveBytes))
	line("  peak:     %s\n", Bytes(s.Maps.PeakBytes))

	if s.Fatal > 0 {
		line("\nFatal OS failures: %s\n", Number(s.Fatal))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteBlocks writes one row per block. A positive limit truncates the
// listing.
func WriteBlocks(w io.Writer, blocks []ledger.Block, limit int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "OFFSET\tPAYLOAD\tSIZE\tSTATUS\t")
	for i, b := range blocks {
		if limit > 0 && i == limit {
			fmt.Fprintf(tw, "...\t\t\t%s more\t\n", Number(len(blocks)-limit))
			break
		}
		fmt.Fprintf(tw, "%#x\t%#x\t%s\t%s\t\n", b.Off, b.Payload(), Number(b.Size), b.Status)
	}
	return tw.Flush()
}
