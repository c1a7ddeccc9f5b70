package buildtime_test

import (
	"strings"
	"testing"

	"github.com/pyx-ai/pyx-cli/pkg/buildtime"
)

func TestVersionString(t *testing.T) {
	if buildtime.VERSION() == "" {
		t.Error("VERSION is empty")
	}
	if strings.ContainsAny(buildtime.VERSION(), " \n") {
		t.Errorf("VERSION is not trimmed: %q", buildtime.VERSION())
	}

	got := buildtime.VersionString()
	if !strings.HasPrefix(got, buildtime.VERSION()+" (commit: ") {
		t.Errorf("unexpected version string: %s", got)
	}
	if !strings.HasSuffix(buildtime.UserAgent(), "/"+buildtime.VERSION()) {
		t.Errorf("unexpected user agent: %s", buildtime.UserAgent())
	}
}
