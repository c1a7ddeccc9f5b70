package extensions_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/extensions"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/commandline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/logger"
	"github.com/pyx-ai/pyx-cli/pkg/utils/try"
)

func touch(t *testing.T, name string, mode os.FileMode, content string) string {
	t.Helper()
	if err := os.WriteFile(name, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(name, mode); err != nil {
		t.Fatal(err)
	}
	return try.To(filepath.Abs(name)).OrFatal(t)
}

func TestFindSubcommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit is not available")
	}
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	dir3 := t.TempDir()

	want := []extensions.ExtensionCommand{}

	// dir1
	{
		touch(t, filepath.Join(dir1, "file1"), 0o600, "")
		want = append(want, extensions.ExtensionCommand{
			Name: "file2",
			Path: touch(t, filepath.Join(dir1, "pyx-file2"), 0o700, ""),
		})
		// not prefixed
		touch(t, filepath.Join(dir1, "not-pyx-file2"), 0o700, "")
		// not executable
		touch(t, filepath.Join(dir1, "pyx-file4"), 0o600, "")
	}

	// dir2
	{
		for _, ext := range []string{"exe", "bat", "cmd", "com"} {
			name := "with_suffix_" + ext
			want = append(want, extensions.ExtensionCommand{
				Name: name,
				Path: touch(t, filepath.Join(dir2, "pyx-"+name+"."+ext), 0o700, ""),
			})
		}
		want = append(want, extensions.ExtensionCommand{
			Name: "file3.ext",
			Path: touch(t, filepath.Join(dir2, "pyx-file3.ext"), 0o700, ""),
		})
	}

	// dir3: conflicts with dir1
	touch(t, filepath.Join(dir3, "pyx-file2"), 0o700, "")

	t.Setenv(
		"PATH",
		strings.Join([]string{dir1, dir2, dir3, dir1}, string(os.PathListSeparator)),
	)
	got := extensions.FindSubcommand(extensions.Prefix)

	byName := func(a, b extensions.ExtensionCommand) int { return strings.Compare(a.Name, b.Name) }
	slices.SortFunc(want, byName)
	slices.SortFunc(got, byName)
	if !slices.Equal(want, got) {
		t.Errorf("want %v, got %v", want, got)
	}
}

const script = `#!/bin/sh
echo "config=$PYX_CONFIG"
echo "project=$PYX_PROJECT"
echo "api=$PYX_API_URL"
echo "args=$*"
cat
echo "error message" >&2
exit %s
`

func TestTask(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script is not available")
	}

	type when struct {
		exitCode string
		args     []string
		apiURL   string
	}
	type then struct {
		stdout  string
		wantErr bool
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			t.Setenv(common.EnvAPIURL, "")
			path := touch(
				t, filepath.Join(t.TempDir(), "pyx-ext"), 0o700,
				strings.Replace(script, "%s", when.exitCode, 1),
			)
			testee := extensions.Task(extensions.ExtensionCommand{Name: "ext", Path: path})

			stdin := bytes.NewBufferString("stdin message\n")
			stdout := new(strings.Builder)
			stderr := new(strings.Builder)

			err := testee(
				context.Background(),
				logger.Null(),
				common.CommonFlags{
					Config:  "/home/user/.pyx/pyx.json",
					Project: "/work/resnet",
					APIURL:  when.apiURL,
				},
				commandline.MockCommandline[struct{}]{
					Fullname_: "pyx ext",
					Args_:     map[string][]string{extensions.PARAMS: when.args},
					Stdin_:    stdin,
					Stdout_:   stdout,
					Stderr_:   stderr,
				},
				[]any{},
			)
			if got := err != nil; got != then.wantErr {
				t.Errorf("returned error: want = %v, but got = %v (%v)", then.wantErr, got, err)
			}
			if got := stdout.String(); got != then.stdout {
				t.Errorf("stdout:\n===actual===\n%s\n===expected===\n%s", got, then.stdout)
			}
			if got := stderr.String(); got != "error message\n" {
				t.Errorf("stderr: %q", got)
			}
		}
	}

	t.Run("extension gets common flags and stdin", theory(
		when{exitCode: "0", args: []string{"-f", "--flag", "value", "arg1"}},
		then{
			stdout: "config=/home/user/.pyx/pyx.json\n" +
				"project=/work/resnet\n" +
				"api=\n" +
				"args=-f --flag value arg1\n" +
				"stdin message\n",
		},
	))
	t.Run("api url is passed when given", theory(
		when{exitCode: "0", apiURL: "http://localhost:8000/api/"},
		then{
			stdout: "config=/home/user/.pyx/pyx.json\n" +
				"project=/work/resnet\n" +
				"api=http://localhost:8000/api/\n" +
				"args=\n" +
				"stdin message\n",
		},
	))
	t.Run("failure of extension is an error", theory(
		when{exitCode: "3"},
		then{
			stdout: "config=/home/user/.pyx/pyx.json\n" +
				"project=/work/resnet\n" +
				"api=\n" +
				"args=\n" +
				"stdin message\n",
			wantErr: true,
		},
	))
}
