// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// All log output goes to stderr. Stdout is reserved for the port paths the
// hub prints for its callers, so a piped reader never sees log lines mixed
// into the path list.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("hub started", zap.Int("ports", 3))
//	logger.Error("allocation failed", zap.Error(err))
package logging
