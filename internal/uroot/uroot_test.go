// SPDX-License-Identifier: MPL-2.0

package uroot

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/parastep/parastep/internal/testutil"
)

// runScript runs src with dir as the interpreter directory and the built-in
// utilities installed.
func runScript(t *testing.T, dir, src string) (string, error) {
	t.Helper()

	prog, err := syntax.NewParser().Parse(strings.NewReader(src), "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron("PATH=/usr/bin:/bin", "NAME=parastep")),
		interp.StdIO(nil, &stdout, &stderr),
		interp.ExecHandlers(New().ExecHandler()),
	)
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	err = runner.Run(t.Context(), prog)
	return stdout.String(), err
}

func TestNames(t *testing.T) {
	t.Parallel()

	want := []string{"base64", "cat", "chmod", "cp", "find", "gzip", "ls", "mkdir", "mktemp", "mv", "rm", "shasum", "tar", "touch"}
	if diff := cmp.Diff(want, New().Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuiltinsUseInterpreterDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "in.txt"), "hello\n")

	out, err := runScript(t, dir, `
mkdir -p out/sub
touch out/sub/marker
cp in.txt out/copy.txt
mv out/copy.txt out/moved.txt
cat out/moved.txt
rm out/sub/marker
`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if out != "hello\n" {
		t.Errorf("stdout = %q, want %q", out, "hello\n")
	}
	if got := testutil.MustReadFile(t, filepath.Join(dir, "out", "moved.txt")); got != "hello\n" {
		t.Errorf("moved file = %q, want %q", got, "hello\n")
	}
}

func TestBuiltinFollowsCd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "sub", "data.txt"), "nested\n")

	out, err := runScript(t, dir, "cd sub && cat data.txt")
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if out != "nested\n" {
		t.Errorf("stdout = %q, want %q", out, "nested\n")
	}
}

func TestBuiltinErrorIsPrefixed(t *testing.T) {
	t.Parallel()

	_, err := runScript(t, t.TempDir(), "cat missing.txt")
	if err == nil {
		t.Fatal("cat of a missing file succeeded")
	}
	if !strings.Contains(err.Error(), "[uroot] cat:") {
		t.Errorf("error = %q, want the [uroot] cat: prefix", err)
	}
}

func TestUnknownCommandFallsThrough(t *testing.T) {
	t.Parallel()

	_, err := runScript(t, t.TempDir(), "parastep-no-such-command-xyz")
	var status interp.ExitStatus
	if !errors.As(err, &status) || status != 127 {
		t.Errorf("error = %v, want exit status 127 from the default handler", err)
	}
}
