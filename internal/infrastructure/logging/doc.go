// Package logging provides structured logging for Gray Logic Hub.
//
// It wraps log/slog. Entries are JSON in production and text in
// development, always carrying service=graylogic-hub and the build version.
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	sbLog := logger.Integration("switchbot")
//	sbLog.Warn("status fetch failed", "device_id", id, "error", err)
//
// # Security
//
// Never log secrets, tokens, passwords, or API keys. The SwitchBot token and
// secret and the Hue bridge username are credentials and must not appear in
// log fields.
package logging
