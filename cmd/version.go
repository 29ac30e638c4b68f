// =============================================================================
// SPED Toolkit - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   sped version
//
// OUTPUT:
//   SPED Toolkit
//   Version:    1.0.0
//   Module:     github.com/ginjaninja78/sped-toolkit
//   Commit:     3f2c9e1 (modified)
//   Build Date: 2025-01-15T10:00:00Z
//   Go Version: go1.24.0
//
// Version and BuildDate can be stamped with ldflags; when they are not, the
// module version and VCS data embedded by the Go toolchain are used.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// These variables are set at build time using ldflags:
//   go build -ldflags "-X 'github.com/ginjaninja78/sped-toolkit/cmd.Version=1.0.0'"

// Version is the application version.
var Version = ""

// BuildDate is the date the application was built.
var BuildDate = ""

// buildDetails is what the version command reports.
type buildDetails struct {
	Version   string
	Module    string
	Commit    string
	Modified  bool
	BuildDate string
	GoVersion string
}

// collectBuildDetails merges the ldflags values with the embedded build info.
// info may be nil when the binary carries none.
func collectBuildDetails(info *debug.BuildInfo) buildDetails {
	d := buildDetails{
		Version:   Version,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}

	if info != nil {
		d.Module = info.Main.Path
		if d.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			d.Version = info.Main.Version
		}
		if info.GoVersion != "" {
			d.GoVersion = info.GoVersion
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				d.Commit = s.Value
				if len(d.Commit) > 7 {
					d.Commit = d.Commit[:7]
				}
			case "vcs.modified":
				d.Modified = s.Value == "true"
			case "vcs.time":
				if d.BuildDate == "" {
					d.BuildDate = s.Value
				}
			}
		}
	}

	if d.Version == "" {
		d.Version = "dev"
	}
	if d.BuildDate == "" {
		d.BuildDate = "unknown"
	}
	return d
}

// write prints d in the version command layout.
func (d buildDetails) write(w io.Writer) {
	fmt.Fprintln(w, "SPED Toolkit")
	fmt.Fprintf(w, "Version:    %s\n", d.Version)
	if d.Module != "" {
		fmt.Fprintf(w, "Module:     %s\n", d.Module)
	}
	if d.Commit != "" {
		if d.Modified {
			fmt.Fprintf(w, "Commit:     %s (modified)\n", d.Commit)
		} else {
			fmt.Fprintf(w, "Commit:     %s\n", d.Commit)
		}
	}
	fmt.Fprintf(w, "Build Date: %s\n", d.BuildDate)
	fmt.Fprintf(w, "Go Version: %s\n", d.GoVersion)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		collectBuildDetails(info).write(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
