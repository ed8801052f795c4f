// Package logger adapts charmbracelet/log's default logger for use across
// the engine's packages and maps spec.md's debug-level enum onto it.
package logger

import (
	"os"

	"github.com/charmbracelet/log"
)

// New creates a new default charm log.
func New(prefix string) *log.Logger {
	return log.NewWithOptions(os.Stdout, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}

// NewWithConfig creates a new charm log with custom config.
func NewWithConfig(prefix string, level log.Level, caller bool, showTimestamp bool, fmt log.Formatter) *log.Logger {
	return log.NewWithOptions(os.Stdout, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportCaller:    caller,
		ReportTimestamp: showTimestamp,
		Formatter:       fmt,
	})
}

// LevelFromName maps the config's debug-level enum (error, warning,
// usage, result, info, info1..3, debug, debug1..4) onto charmbracelet/log's
// five-level scheme. The numbered variants are finer-grained than charm's
// levels support, so info1..3 all collapse to Info and debug1..4 all
// collapse to Debug; "usage" and "result" (user-facing output levels in
// the original taxonomy, not severities) map to Info since both are meant
// to always be visible short of silencing the logger entirely.
func LevelFromName(name string) log.Level {
	switch name {
	case "error":
		return log.ErrorLevel
	case "warning":
		return log.WarnLevel
	case "usage", "result", "info", "info1", "info2", "info3":
		return log.InfoLevel
	case "debug", "debug1", "debug2", "debug3", "debug4":
		return log.DebugLevel
	default:
		return log.WarnLevel
	}
}
