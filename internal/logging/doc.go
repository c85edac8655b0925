// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Records go to stdout when it is attached, to the systemd journal when
// journald is reachable and always into an in-memory ring buffer that backs
// the log history endpoint and the live log stream.
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"ledstrip": "debug",
//			"serial":   "warn",
//		},
//	})
//
//	logger := logging.GetLogger("ledstrip")
//	logger.Info("Mode changed", "mode", mode)
//
// Module levels can be changed at runtime with SetModuleLevel.
//
// On systems with journald:
//
//	journalctl -t ambilight MODULE=serial
package logging
