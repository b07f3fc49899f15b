// Package log provides the logging abstraction used by pushgate components.
//
// Library packages (the redo queue, the gateway connection, the feedback
// client) log only through the Logger interface so that an embedding
// application can route messages into its own logging pipeline. A zerolog
// adapter and a no-op logger are provided.
//
// # Usage
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	conn := gateway.NewConnection(dialer, queue, gateway.WithLogger(logger))
//
// Scoped loggers carry fields on every message:
//
//	sessionLog := logger.With(log.String("session", id))
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
