package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/joshuapare/heapkit/trace"
)

func TestGenCommand(t *testing.T) {
	resetFlags()
	genOps = 300
	genOutput = filepath.Join(t.TempDir(), "gen.trace.gz")

	if _, err := captureOutput(t, runGen); err != nil {
		t.Fatalf("runGen() error = %v", err)
	}
	ops, err := trace.Open(genOutput)
	if err != nil {
		t.Fatalf("generated trace does not load: %v", err)
	}
	if len(ops) < 300 {
		t.Errorf("got %d ops, want at least 300", len(ops))
	}
}

func TestGenToStdout(t *testing.T) {
	resetFlags()
	genOps = 20
	genMaxSize = 64

	output, err := captureOutput(t, runGen)
	if err != nil {
		t.Fatalf("runGen() error = %v", err)
	}
	ops, err := trace.Parse(strings.NewReader(output))
	if err != nil {
		t.Fatalf("stdout is not a trace: %v", err)
	}
	if len(ops) < 20 {
		t.Errorf("got %d ops, want at least 20", len(ops))
	}
}

func TestGenRejectsBadFlags(t *testing.T) {
	resetFlags()
	genMaxSize = 0
	if err := runGen(); err == nil {
		t.Error("expected error for --max-size 0")
	}
}

func TestReplayCommand(t *testing.T) {
	tests := []struct {
		name        string
		files       []string
		workers     int
		json        bool
		wantContain []string
	}{
		{
			name:        "single trace text",
			files:       []string{"a.trace"},
			workers:     1,
			wantContain: []string{"a.trace", "Calls:", "Arena:", "Mappings:"},
		},
		{
			name:        "parallel compressed traces",
			files:       []string{"a.trace.zst", "b.trace.gz"},
			workers:     2,
			wantContain: []string{"a.trace.zst", "b.trace.gz"},
		},
		{
			name:        "json",
			files:       []string{"a.trace"},
			workers:     1,
			json:        true,
			wantContain: []string{`"name"`, `"peak_live"`, `"Mallocs"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			jsonOut = tt.json
			replayWorkers = tt.workers
			replayVerifyEvery = 25

			var paths []string
			for i, f := range tt.files {
				paths = append(paths, writeTrace(t, f, int64(i+1), 400))
			}

			output, err := captureOutput(t, func() error {
				return runReplay(context.Background(), paths)
			})
			if err != nil {
				t.Fatalf("runReplay() error = %v", err)
			}
			if tt.json {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestReplayCommandFailures(t *testing.T) {
	resetFlags()
	bad := filepath.Join(t.TempDir(), "bad.trace")
	if err := os.WriteFile(bad, []byte("free 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := captureOutput(t, func() error { return runReplay(context.Background(), []string{bad}) }); err == nil {
		t.Error("expected error replaying a free of an unknown id")
	}

	if _, err := captureOutput(t, func() error {
		return runReplay(context.Background(), []string{filepath.Join(t.TempDir(), "missing.trace")})
	}); err == nil {
		t.Error("expected error for a missing trace")
	}

	mmapThreshold = 8
	if _, err := captureOutput(t, func() error { return runReplay(context.Background(), []string{bad}) }); err == nil {
		t.Error("expected configuration error")
	}
}

func TestBlocksCommand(t *testing.T) {
	resetFlags()
	path := writeTrace(t, "layout.trace", 5, 500)
	blocksPrefix = 200
	blocksMax = 5

	output, err := captureOutput(t, func() error { return runBlocks(context.Background(), path) })
	if err != nil {
		t.Fatalf("runBlocks() error = %v", err)
	}
	assertContains(t, output, []string{"Arena after 200 operations", "OFFSET", "STATUS", "fragmentation", "live mappings"})
}

func TestBlocksCommandJSON(t *testing.T) {
	resetFlags()
	jsonOut = true
	blocksPrefix = 100
	path := writeTrace(t, "layout.trace.zst", 9, 300)

	output, err := captureOutput(t, func() error { return runBlocks(context.Background(), path) })
	if err != nil {
		t.Fatalf("runBlocks() error = %v", err)
	}
	var got blocksJSON
	if err := json.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Ops != 100 {
		t.Errorf("ops = %d, want 100", got.Ops)
	}
	if got.Layout.Blocks != len(got.Blocks) {
		t.Errorf("layout counts %d blocks, listing has %d", got.Layout.Blocks, len(got.Blocks))
	}
}

func TestBlocksFlagsDoNotShadowArenaLimit(t *testing.T) {
	resetFlags()
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	ops, err := trace.Parse(strings.NewReader("malloc 1 64\nmalloc 2 64\nmalloc 3 64\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "three.trace")
	if err := trace.Create(path, ops); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rootCmd.SetArgs([]string{"blocks", "--limit", "4096", "--max-blocks", "1", path})
	if _, err := captureOutput(t, rootCmd.Execute); err == nil {
		t.Fatal("expected an arena limit below the initial arena to be rejected")
	}
	if arenaLimit != 4096 {
		t.Errorf("arenaLimit = %d, want 4096", arenaLimit)
	}
	if blocksMax != 1 {
		t.Errorf("blocksMax = %d, want 1", blocksMax)
	}

	resetFlags()
	rootCmd.SetArgs([]string{"blocks", "--limit", "1048576", "-n", "1", path})
	output, err := captureOutput(t, rootCmd.Execute)
	if err != nil {
		t.Fatalf("blocks error = %v", err)
	}
	if arenaLimit != 1048576 {
		t.Errorf("arenaLimit = %d, want 1048576", arenaLimit)
	}
	assertContains(t, output, []string{"Arena after 3 operations", "3 more", "4 blocks"})
}

func TestReadBuildInfo(t *testing.T) {
	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			GoVersion: "go1.25.3",
			Main:      debug.Module{Path: "github.com/joshuapare/heapkit/cmd/heapctl", Version: "v0.3.1"},
			Deps: []*debug.Module{
				{Path: "github.com/spf13/cobra", Version: "v1.10.1"},
				{Path: libraryPath, Version: "v0.0.0", Replace: &debug.Module{Path: "../../"}},
			},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc123"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
				{Key: "vcs.modified", Value: "true"},
			},
		}, true
	}

	bi := readBuildInfo(read)
	want := buildInfo{
		Version:   "v0.3.1",
		Commit:    "abc123",
		Built:     "2026-01-02T03:04:05Z",
		Library:   "=> ../../",
		GoVersion: "go1.25.3",
		Modified:  true,
	}
	if bi != want {
		t.Errorf("readBuildInfo() = %+v, want %+v", bi, want)
	}

	var out strings.Builder
	writeVersion(&out, bi)
	assertContains(t, out.String(), []string{"heapctl v0.3.1", "commit: abc123 (modified)", "heapkit: => ../../", "go: go1.25.3"})
}

func TestReadBuildInfoPrefersLinkerValues(t *testing.T) {
	oldVersion, oldCommit := version, commit
	t.Cleanup(func() { version, commit = oldVersion, oldCommit })
	version, commit = "v1.2.3", "deadbeef"

	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main:     debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
		}, true
	}
	bi := readBuildInfo(read)
	if bi.Version != "v1.2.3" || bi.Commit != "deadbeef" {
		t.Errorf("linker values overridden: %+v", bi)
	}

	bi = readBuildInfo(func() (*debug.BuildInfo, bool) { return nil, false })
	if bi.Library != "unknown" || bi.GoVersion != "unknown" {
		t.Errorf("missing build info should report unknown: %+v", bi)
	}
}

func TestVersionCommandJSON(t *testing.T) {
	resetFlags()
	jsonOut = true
	output, err := captureOutput(t, func() error { return versionCmd.RunE(versionCmd, nil) })
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	assertJSON(t, output)
	assertContains(t, output, []string{`"version"`, `"go"`})
}
