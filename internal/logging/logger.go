// Package logging provides the engine's subsystem-tagged, level-gated
// logger. Grounded on internal/logging/logger.go's Info/Debug/Truncate
// shape, extended with a Warn level for non-fatal failures (best-effort
// vector indexing, hot-reload parse errors) that shouldn't be silent but
// also shouldn't panic a caller.
package logging

import (
	"log"
	"os"
	"strings"
)

var debugEnabled = os.Getenv("ENGRAM_DEBUG") == "true"

// Info logs an informational message, always shown.
func Info(subsystem, format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
}

// Warn logs a non-fatal problem a caller chose to recover from.
func Warn(subsystem, format string, args ...any) {
	log.Printf("[%s] WARN: "+format, append([]any{subsystem}, args...)...)
}

// Debug logs a debug message, only shown when ENGRAM_DEBUG=true.
func Debug(subsystem, format string, args ...any) {
	if debugEnabled {
		log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
	}
}

// Truncate shortens s to maxLen runes of single-line text, for logging
// memory content without flooding the log with embedded newlines.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
