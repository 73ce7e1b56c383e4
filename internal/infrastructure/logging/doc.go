// Package logging provides structured logging for the virtual twin.
//
// It wraps log/slog and attaches service and version to every entry. The
// engine packages never import this package: each declares a small Logger
// interface and *Logger satisfies all of them.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	link := transport.NewLink(linkCfg, nil, logger.Component("transport"))
//	logger.Info("starting twin", "mode", cfg.Mode)
//
// Raw bus frames are logged at debug level only; the gateway can emit
// thousands of lines per second.
package logging
