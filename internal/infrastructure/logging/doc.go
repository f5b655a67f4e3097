// Package logging is the daemon's structured logging layer, a thin
// shape over log/slog.
//
// One logger is built at startup from the logging section of
// config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("listening", "addr", addr)
//
// Component packages (remap, memctl, gateway, mqtt) declare their own
// small Logger interfaces rather than importing this package;
// *logging.Logger satisfies all of them, so the one configured logger
// fans out through SetLogger calls:
//
//	provider.SetLogger(logger.With("component", "memctl"))
//
// Every entry carries service and version fields. Never log secrets or
// tokens; when a credential must be referenced, log a prefix:
//
//	logger.Info("API key used", "key_prefix", key[:8]+"...")
package logging
