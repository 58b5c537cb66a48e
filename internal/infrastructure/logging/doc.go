// Package logging provides structured logging for Signage Core.
//
// It wraps log/slog so every entry carries the service name and version.
// JSON output is meant for production, text output for development.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("view reconciled", "view_id", id)
//
// Never log JWT secrets or display session tokens.
package logging
