// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from the --config flag, else from
// $XDG_CONFIG_HOME/parastep/config.cue (~/Library/Application Support on
// macOS, %APPDATA% on Windows), else from ./parastep.cue. Files are validated
// against the embedded config_schema.cue before being merged over the
// defaults. PARASTEP_* environment variables override file values, with "."
// in a key spelled "_" (PARASTEP_ENVIRONMENT_SNAPSHOT).
package config
