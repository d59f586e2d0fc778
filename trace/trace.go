// Package trace records and replays allocation workloads.
//
// A trace is plain text, one operation per line:
//
//	# comment
//	malloc  <id> <size>
//	calloc  <id> <count> <size>
//	realloc <id> <size>
//	free    <id>
//
// Ids name live blocks within one trace. Files ending in .zst or .gz are
// compressed with zstd or gzip.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Kind is an operation type.
type Kind uint8

const (
	Malloc Kind = iota
	Calloc
	Realloc
	Free
)

var kindNames = [...]string{
	Malloc:  "malloc",
	Calloc:  "calloc",
	Realloc: "realloc",
	Free:    "free",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Op is one trace operation. Count is only meaningful for Calloc and Size is
// unused by Free.
type Op struct {
	Kind  Kind
	ID    int
	Count int
	Size  int
	Line  int // source line, 0 for generated ops
}

func (op Op) String() string {
	switch op.Kind {
	case Calloc:
		return fmt.Sprintf("%s %d %d %d", op.Kind, op.ID, op.Count, op.Size)
	case Free:
		return fmt.Sprintf("%s %d", op.Kind, op.ID)
	default:
		return fmt.Sprintf("%s %d %d", op.Kind, op.ID, op.Size)
	}
}

// Parse reads a text trace.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		op, err := parseOp(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrSyntax, line, err)
		}
		op.Line = line
		ops = append(ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trace: read: %w", err)
	}
	return ops, nil
}

func parseOp(fields []string) (Op, error) {
	var op Op
	var want int
	switch fields[0] {
	case "malloc":
		op.Kind, want = Malloc, 3
	case "calloc":
		op.Kind, want = Calloc, 4
	case "realloc":
		op.Kind, want = Realloc, 3
	case "free":
		op.Kind, want = Free, 2
	default:
		return Op{}, fmt.Errorf("unknown operation %q", fields[0])
	}
	if len(fields) != want {
		return Op{}, fmt.Errorf("%s takes %d arguments, got %d", fields[0], want-1, len(fields)-1)
	}

	nums := make([]int, len(fields)-1)
	for i, f := range fields[1:] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Op{}, fmt.Errorf("argument %d: %w", i+1, err)
		}
		nums[i] = n
	}
	op.ID = nums[0]
	switch op.Kind {
	case Calloc:
		op.Count, op.Size = nums[1], nums[2]
	case Malloc, Realloc:
		op.Size = nums[1]
	}
	return op, nil
}

// Write writes ops in text form.
func Write(w io.Writer, ops []Op) error {
	bw := bufio.NewWriter(w)
	for _, op := range ops {
		if _, err := fmt.Fprintln(bw, op.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Open reads a trace file, decompressing by extension.
func Open(path string) ([]Op, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch filepath.Ext(path) {
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("trace: %s: %w", path, err)
		}
		defer dec.Close()
		r = dec
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("trace: %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	ops, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ops, nil
}

// Create writes ops to path, compressing by extension.
func Create(path string, ops []Op) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	switch filepath.Ext(path) {
	case ".zst":
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		if err := Write(enc, ops); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	case ".gz":
		zw := gzip.NewWriter(f)
		if err := Write(zw, ops); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	default:
		return Write(f, ops)
	}
}
