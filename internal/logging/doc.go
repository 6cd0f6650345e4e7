// Package logging provides structured logging with per-module log levels.
//
// Console output goes to stderr in text or JSON form so stdout stays free
// for command results. With Journal enabled and journald reachable,
// records are also sent to the journal through [MultiHandler].
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"pool":   "debug",
//			"runner": "warn",
//		},
//	})
//
// Then take a logger per module:
//
//	logger := logging.GetLogger("pool").With("pool", name)
//	logger.Debug("Process admitted", "id", id)
//
// Loggers obtained before Initialize are cached and pick up the configured
// level afterwards.
//
// Journal entries carry SYSLOG_IDENTIFIER=multirunner and one upper-case
// field per attribute:
//
//	journalctl -t multirunner MODULE=pool
//	journalctl -t multirunner -p err
//
// TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	journal = false
//	pool = "debug"
//	runner = "warn"
package logging
