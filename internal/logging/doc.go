// Package logging configures the process-wide slog logger.
//
// The serve command speaks MCP over stdout, so in that mode logs go only to
// a rotating JSON file under ~/.codesnip/logs/. CLI commands log to stderr.
package logging
