// Package logging provides structured logging for the fan controller.
//
// It wraps log/slog so every component logs through one handler with the
// service and version attached. Components depend on a narrow Logger
// interface of their own (Debug/Info/Warn/Error) and receive a *Logger
// (or a component child of it) from main.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Never log the broker password; the settings package redacts it.
package logging
