package gateway

import (
	"time"

	"github.com/bft-labs/pushgate/pkg/log"
)

const (
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultReportGrace is how long a failed write waits for the peer's
	// status frame before reconnecting.
	DefaultReportGrace = 500 * time.Millisecond
)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the connection logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Connection) {
		c.logger = log.OrNoop(logger)
	}
}

// WithMetrics records connection activity in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Connection) {
		c.metrics = m
	}
}

// WithWriteTimeout sets the per-frame write deadline. Zero disables it.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Connection) {
		c.writeTimeout = d
	}
}

// WithReportGrace sets how long a failed write waits for a status frame.
func WithReportGrace(d time.Duration) Option {
	return func(c *Connection) {
		c.reportGrace = d
	}
}

// WithProactiveRecovery controls whether an error observed between sends
// closes the connection and rewinds the queue right away. It is on by
// default; when off, recovery waits for the next Send.
func WithProactiveRecovery(enabled bool) Option {
	return func(c *Connection) {
		c.proactive = enabled
	}
}
