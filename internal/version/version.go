// Package version carries build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// SetInfo overrides the non-empty values.
func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// String returns the multi-line version report printed by the CLI.
func String() string {
	return fmt.Sprintf("taskrunner %s\nbuild: %s\ncommit: %s\ngo: %s", Version, BuildTime, GitCommit, GoVersion)
}

// FormatStartupMessage is logged when the service starts.
func FormatStartupMessage() string {
	return fmt.Sprintf("taskrunner %s started (build %s)", Version, BuildTime)
}
