// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/parastep/parastep/internal/dispatch"
	"github.com/parastep/parastep/internal/execctx"
	"github.com/parastep/parastep/internal/issue"
	"github.com/parastep/parastep/internal/testutil"
	"github.com/parastep/parastep/pkg/cueutil"
)

// load runs the provider from an empty working directory so that a stray
// ./parastep.cue cannot leak in. Callers must not be parallel.
func load(t *testing.T, opts LoadOptions) (*Loaded, error) {
	t.Helper()
	testutil.MustChdir(t, t.TempDir())
	if opts.ConfigDirPath == "" {
		opts.ConfigDirPath = t.TempDir()
	}
	return NewProvider().Load(context.Background(), opts)
}

func TestLoadDefaults(t *testing.T) {
	got, err := load(t, LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Source != "" {
		t.Errorf("Source = %q, want none", got.Source)
	}
	if diff := cmp.Diff(DefaultConfig(), got.Config, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	testutil.MustWriteFile(t, path, `
workers: 3
environment: {
	snapshot: "batch"
	inherit:  "allow"
	allow: ["PATH", "HOME"]
}
log: level: "debug"
`)

	got, err := load(t, LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Source != path {
		t.Errorf("Source = %q, want %q", got.Source, path)
	}

	want := DefaultConfig()
	want.Workers = 3
	want.Environment = EnvironmentConfig{
		Snapshot: dispatch.SnapshotPerBatch,
		Inherit:  execctx.InheritAllow,
		Allow:    []string{"PATH", "HOME"},
	}
	want.Log.Level = LogLevelDebug
	if diff := cmp.Diff(want, got.Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLocalFile(t *testing.T) {
	work := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(work, LocalConfigFileName), `workers: 5`)
	testutil.MustChdir(t, work)

	got, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Source != LocalConfigFileName || got.Config.Workers != 5 {
		t.Errorf("Load() = %q, workers %d; want %q, 5", got.Source, got.Config.Workers, LocalConfigFileName)
	}
}

func TestLoadExplicitFileWins(t *testing.T) {
	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, ConfigFileName), `workers: 2`)
	explicit := filepath.Join(t.TempDir(), "custom.cue")
	testutil.MustWriteFile(t, explicit, `workers: 7`)

	got, err := load(t, LoadOptions{ConfigFilePath: explicit, ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Config.Workers != 7 {
		t.Errorf("Workers = %d, want 7", got.Config.Workers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, ConfigFileName), `workers: 2`)
	testutil.MustSetenv(t, "PARASTEP_WORKERS", "9")
	testutil.MustSetenv(t, "PARASTEP_ENVIRONMENT_SNAPSHOT", "batch")
	testutil.MustSetenv(t, "PARASTEP_LOG_FORMAT", "json")

	got, err := load(t, LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Config.Workers != 9 {
		t.Errorf("Workers = %d, want 9", got.Config.Workers)
	}
	if got.Config.Environment.Snapshot != dispatch.SnapshotPerBatch {
		t.Errorf("Snapshot = %q, want batch", got.Config.Environment.Snapshot)
	}
	if got.Config.Log.Format != LogFormatJSON {
		t.Errorf("Log.Format = %q, want json", got.Config.Log.Format)
	}
}

func TestLoadInvalidEnvOverride(t *testing.T) {
	testutil.MustSetenv(t, "PARASTEP_ENVIRONMENT_SNAPSHOT", "sometimes")

	_, err := load(t, LoadOptions{})
	if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, dispatch.ErrInvalidSnapshotMode) {
		t.Fatalf("Load() error = %v, want invalid snapshot mode", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.ConfigLoadFailedId {
		t.Errorf("error should be actionable with the config issue: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(error) bool
	}{
		{
			name:    "schema violation",
			content: `workers: 0`,
			check:   func(err error) bool { return errors.Is(err, cueutil.ErrValidation) },
		},
		{
			name:    "unknown field",
			content: `threads: 4`,
			check:   func(err error) bool { return errors.Is(err, cueutil.ErrValidation) },
		},
		{
			name:    "bad enum",
			content: `environment: inherit: "some"`,
			check:   func(err error) bool { return errors.Is(err, cueutil.ErrValidation) },
		},
		{
			name:    "syntax error",
			content: `workers: [`,
			check:   func(err error) bool { return err != nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.cue")
			testutil.MustWriteFile(t, path, tt.content)
			_, err := load(t, LoadOptions{ConfigFilePath: path})
			if err == nil || !tt.check(err) {
				t.Fatalf("Load() error = %v", err)
			}
			if !strings.Contains(err.Error(), "failed to load configuration") {
				t.Errorf("error should name the operation: %v", err)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := load(t, LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "missing.cue")})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("Load() error = %v, want *issue.ActionableError", err)
	}
	if len(ae.Suggestions) == 0 {
		t.Error("missing-file error has no suggestions")
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUERoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.Environment.Inherit = execctx.InheritAllow
	cfg.Environment.Allow = []string{"PATH"}
	cfg.Harness.ScratchDir = "/var/tmp/parastep"

	path := filepath.Join(t.TempDir(), "generated.cue")
	testutil.MustWriteFile(t, path, GenerateCUE(cfg))

	got, err := load(t, LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("generated config does not load: %v\n%s", err, GenerateCUE(cfg))
	}
	if diff := cmp.Diff(cfg, got.Config, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigDirHonorsXDG(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG_CONFIG_HOME applies to Linux and other Unix systems")
	}
	xdg := t.TempDir()
	testutil.MustSetenv(t, "XDG_CONFIG_HOME", xdg)

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(xdg, AppName); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}
