// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/parastep/parastep/internal/config"
)

// newLogger builds the CLI logger from validated configuration. Components get
// their own prefix through WithPrefix.
func newLogger(w io.Writer, cfg config.LogConfig) *log.Logger {
	level, err := log.ParseLevel(cfg.Level.String())
	if err != nil {
		level = log.InfoLevel
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case config.LogFormatJSON:
		formatter = log.JSONFormatter
	case config.LogFormatLogfmt:
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          config.AppName,
	})
}
