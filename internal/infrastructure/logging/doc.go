// Package logging is the structured logger shared by every presence
// component. It is a thin layer over log/slog.
//
// Each entry carries the service name and build version. Components add
// their own "component" attribute through Logger.Component, so a line from
// the ingestor can be told apart from one written by the MQTT publisher:
//
//	logger := logging.New(cfg.Logging, version)
//	feedLog := logger.Component("feed")
//	feedLog.Info("subscribed", "topic", topic)
//
// Output is JSON or text on stdout or stderr, selected by the logging
// section of the config file. Every accepted sighting produces a debug
// entry, so run production at info.
package logging
