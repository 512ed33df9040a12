// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/parastep/parastep/internal/issue"
	"github.com/parastep/parastep/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "parastep"
	// ConfigFileName is the name of the config file in the config directory.
	ConfigFileName = "config.cue"
	// LocalConfigFileName is the name of the config file in the working directory.
	LocalConfigFileName = "parastep.cue"
	// EnvPrefix prefixes environment variable overrides.
	EnvPrefix = "PARASTEP"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the parastep configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading. It returns the
// config and the path of the file it came from ("" for defaults only).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("environment.snapshot", defaults.Environment.Snapshot)
	v.SetDefault("environment.inherit", defaults.Environment.Inherit)
	v.SetDefault("environment.allow", defaults.Environment.Allow)
	v.SetDefault("harness.scratch_dir", defaults.Harness.ScratchDir)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := findConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check PARASTEP_* environment variables for typos").
			WithSuggestion("Run 'parastep config show' to print the effective configuration").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// findConfigFile returns the file to load, or "" when none exists. An
// explicit ConfigFilePath must exist.
func findConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'parastep config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}
	if p := filepath.Join(cfgDir, ConfigFileName); fileExists(p) {
		return p, nil
	}
	if fileExists(LocalConfigFileName) {
		return LocalConfigFileName, nil
	}
	return "", nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Config decodes to map[string]any rather than a struct so that Viper keeps
// track of which keys the file set; unset keys fall through to environment
// overrides and defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a config file that validates against #Config.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// parastep configuration\n\n")
	fmt.Fprintf(&sb, "workers: %d\n", cfg.Workers)

	sb.WriteString("\nenvironment: {\n")
	fmt.Fprintf(&sb, "\tsnapshot: %q\n", cfg.Environment.Snapshot)
	fmt.Fprintf(&sb, "\tinherit:  %q\n", cfg.Environment.Inherit)
	quoted := make([]string, len(cfg.Environment.Allow))
	for i, name := range cfg.Environment.Allow {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	fmt.Fprintf(&sb, "\tallow: [%s]\n", strings.Join(quoted, ", "))
	sb.WriteString("}\n")

	sb.WriteString("\nharness: {\n")
	fmt.Fprintf(&sb, "\tscratch_dir: %q\n", cfg.Harness.ScratchDir)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel:  %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	sb.WriteString("}\n")

	return sb.String()
}
