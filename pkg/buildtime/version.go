// Package buildtime holds values stamped at build time.
//
// Release builds overwrite VERSION and revision before `go build`.
package buildtime

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

//go:embed revision
var revision string

func init() {
	version = strings.TrimSpace(version)
	revision = strings.TrimSpace(revision)
}

// version string when this pyx has been built.
func VERSION() string {
	return version
}

func VersionString() string {
	return version + " (commit: " + revision + ")"
}

// UserAgent is the value of User-Agent header sent to pyx.ai.
func UserAgent() string {
	return "pyx-cli/" + version
}
