// Package version exposes build information. The Git values are set at
// build time with -ldflags "-X github.com/jackzampolin/songbook/version.GitRelease=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag the binary was built from.
	GitRelease = "dev"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"
	// GitCommitDate is the date of GitCommit.
	GitCommitDate = "unknown"
	// GoInfo is the Go toolchain and platform the binary was built with.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)
