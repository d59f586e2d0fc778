package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

const libraryPath = "github.com/joshuapare/heapkit"

// Set with -ldflags "-X main.version=...". Left at their defaults, they are
// filled from the binary's embedded build info.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// buildInfo is what the version command reports.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	Library   string `json:"library"`
	GoVersion string `json:"go"`
	Modified  bool   `json:"modified,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		bi := readBuildInfo(debug.ReadBuildInfo)
		if jsonOut {
			return printJSON(bi)
		}
		writeVersion(os.Stdout, bi)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// readBuildInfo merges the ldflags values with the module and VCS data the
// toolchain embeds. read is debug.ReadBuildInfo outside tests.
func readBuildInfo(read func() (*debug.BuildInfo, bool)) buildInfo {
	bi := buildInfo{Version: version, Commit: commit, Built: date, Library: "unknown", GoVersion: "unknown"}
	info, ok := read()
	if !ok {
		return bi
	}
	bi.GoVersion = info.GoVersion
	if bi.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		bi.Version = info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path != libraryPath {
			continue
		}
		bi.Library = dep.Version
		if dep.Replace != nil {
			bi.Library = "=> " + dep.Replace.Path
		}
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if bi.Commit == "none" {
				bi.Commit = s.Value
			}
		case "vcs.time":
			if bi.Built == "unknown" {
				bi.Built = s.Value
			}
		case "vcs.modified":
			bi.Modified = s.Value == "true"
		}
	}
	return bi
}

func writeVersion(w io.Writer, bi buildInfo) {
	fmt.Fprintf(w, "heapctl %s\n", bi.Version)
	commit := bi.Commit
	if bi.Modified {
		commit += " (modified)"
	}
	fmt.Fprintf(w, "  commit: %s\n", commit)
	fmt.Fprintf(w, "  built: %s\n", bi.Built)
	fmt.Fprintf(w, "  heapkit: %s\n", bi.Library)
	fmt.Fprintf(w, "  go: %s\n", bi.GoVersion)
}
