// Package logging provides structured logging for the multicontroller bridge.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the bridge: refresh cycles, parameter
// writes, and HTTP/WebSocket traffic on the hub API.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Raw cloud payloads, per-request HTTP logs, successful refreshes
//   - Info: Logins, parameter writes, entity setup, client connections
//   - Warn: Failed refresh cycles (stale data kept), skipped nodes
//   - Error: Failed writes, startup failures
//
// # Silent by Default
//
// CLI commands stay quiet unless MULTICONTROLLER_LOG_LEVEL is set or a level
// is passed explicitly:
//
//	if err := logging.Initialize(cfg.Log.Level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Structured Logging
//
//	logging.Info("Parameter set",
//	    zap.String("node_id", "n1"),
//	    zap.String("param", "temp_setpoint"),
//	)
//
// Output goes to stderr so that JSON printed by commands on stdout stays
// machine-readable.
package logging
