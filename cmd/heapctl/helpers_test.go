package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joshuapare/heapkit/malloc"
	"github.com/joshuapare/heapkit/trace"
)

// resetFlags restores every global flag to its default.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	mmapThreshold = malloc.DefaultConfig.MmapThreshold
	callocThreshold = malloc.DefaultConfig.CallocThreshold
	initialArena = malloc.DefaultConfig.InitialArenaSize
	arenaLimit = malloc.DefaultConfig.ArenaLimit
	replayVerifyEvery, replayWorkers = 0, 1
	blocksPrefix, blocksMax = 0, 50
	genOps, genSeed, genMaxSize, genOutput = 10000, 1, 512*1024, ""
}

// writeTrace writes a generated trace into a temp dir and returns its path.
func writeTrace(t *testing.T, name string, seed int64, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := trace.Create(path, trace.Generate(seed, n, 300_000)); err != nil {
		t.Fatalf("failed to write trace: %v", err)
	}
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.String()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return <-done, fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
