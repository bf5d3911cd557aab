package version

import (
	"fmt"
	"runtime"
)

// Populated via -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

// Get returns a single-line version string for logs and the CLI.
func Get() string {
	s := "edge-gateway " + Version
	if GitCommit != "" {
		s += " (" + shortCommit(GitCommit) + ")"
	}
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return fmt.Sprintf("%s %s %s/%s", s, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
