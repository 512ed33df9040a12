// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/parastep/parastep/internal/dispatch"
	"github.com/parastep/parastep/internal/execctx"
)

const (
	// LogLevelDebug enables debug logging.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default log level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"

	// LogFormatText is human-readable output.
	LogFormatText LogFormat = "text"
	// LogFormatJSON is one JSON object per line.
	LogFormatJSON LogFormat = "json"
	// LogFormatLogfmt is key=value output.
	LogFormatLogfmt LogFormat = "logfmt"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of emitted log lines.
	LogLevel string

	// LogFormat selects the log line encoding.
	LogFormat string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the complete application configuration.
	Config struct {
		// Workers is the dispatcher pool size.
		Workers int `json:"workers" mapstructure:"workers"`
		// Environment configures how invocation snapshots are built.
		Environment EnvironmentConfig `json:"environment" mapstructure:"environment"`
		// Harness configures the dual-mode verification harness.
		Harness HarnessConfig `json:"harness" mapstructure:"harness"`
		// Log configures the CLI logger.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// EnvironmentConfig configures environment snapshots.
	EnvironmentConfig struct {
		Snapshot dispatch.SnapshotMode `json:"snapshot" mapstructure:"snapshot"`
		Inherit  execctx.InheritMode   `json:"inherit" mapstructure:"inherit"`
		// Allow lists the host variables kept when Inherit is "allow".
		Allow []string `json:"allow" mapstructure:"allow"`
	}

	// HarnessConfig configures the verification harness.
	HarnessConfig struct {
		// ScratchDir is where isolated-phase scratch directories are created.
		ScratchDir string `json:"scratch_dir" mapstructure:"scratch_dir"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}
)

// DefaultConfig returns the configuration used when no file sets a value.
func DefaultConfig() *Config {
	return &Config{
		Workers: runtime.NumCPU(),
		Environment: EnvironmentConfig{
			Snapshot: dispatch.SnapshotPerInvocation,
			Inherit:  execctx.InheritAll,
			Allow:    []string{},
		},
		Harness: HarnessConfig{ScratchDir: os.TempDir()},
		Log:     LogConfig{Level: LogLevelInfo, Format: LogFormatText},
	}
}

// EnvSource returns the snapshot source described by the environment section.
func (c EnvironmentConfig) EnvSource() execctx.EnvSource {
	return execctx.EnvSource{Inherit: c.Inherit, Allow: c.Allow}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Validate returns an *InvalidLogLevelError for unknown levels.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string { return string(f) }

// Validate returns an *InvalidLogFormatError for unknown formats.
func (f LogFormat) Validate() error {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return nil
	default:
		return &InvalidLogFormatError{Value: f}
	}
}

// Error implements the error interface.
func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

// Unwrap returns ErrInvalidLogFormat for errors.Is() compatibility.
func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

// Validate checks every field. It catches values that bypassed the CUE
// schema, such as PARASTEP_* environment overrides.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if err := c.Environment.Snapshot.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Environment.Inherit.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Format.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid config: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig and the field errors, so errors.Is
// matches either.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
