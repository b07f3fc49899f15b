package pushgate

import (
	"fmt"
	"time"

	"github.com/bft-labs/pushgate/internal/domain"
	"github.com/bft-labs/pushgate/pkg/gateway"
	"github.com/bft-labs/pushgate/pkg/sender"
)

// Defaults applied by Config.SetDefaults.
const (
	DefaultQueueSize       = 128
	DefaultRetain          = 2 * time.Second
	DefaultHTTPTimeout     = 15 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds the configuration of a Gateway. Use DefaultConfig() or call
// SetDefaults before Validate.
type Config struct {
	// Environment selects the production or sandbox endpoints.
	Environment gateway.Environment

	// GatewayAddr and FeedbackAddr override the environment's endpoints.
	GatewayAddr  string
	FeedbackAddr string

	// Plain disables TLS. Only useful against a local test server.
	Plain bool

	// CertFile is the PKCS#12 client certificate bundle, required unless
	// Plain is set or a certificate source is supplied with
	// WithCertSource.
	CertFile       string
	CertPassphrase string

	// QueueSize is the number of notifications kept for replay.
	QueueSize int
	// Retain is the minimum time a sent notification stays replayable. It
	// must outlast the gateway's error reporting delay.
	Retain time.Duration

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// HTTPEndpoint and HTTPAPIKey configure the JSON/HTTP channel. An empty
	// HTTPAPIKey disables it.
	HTTPEndpoint string
	HTTPAPIKey   string
	HTTPTimeout  time.Duration

	// SkipInactive refuses binary notifications to tokens the token store
	// reports as inactive.
	SkipInactive bool

	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Retain == 0 {
		c.Retain = DefaultRetain
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = gateway.DefaultDialTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = gateway.DefaultWriteTimeout
	}
	if c.HTTPEndpoint == "" {
		c.HTTPEndpoint = sender.DefaultEndpoint
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks the configuration. Errors match domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.QueueSize < 2 {
		return invalid("queue size must be at least 2, got %d", c.QueueSize)
	}
	if c.Retain < 0 {
		return invalid("retain must not be negative")
	}
	if c.DialTimeout < 0 || c.WriteTimeout < 0 || c.HTTPTimeout < 0 {
		return invalid("timeouts must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown timeout must be positive")
	}
	return nil
}

// GatewayEndpoint returns the dispatch address in use.
func (c *Config) GatewayEndpoint() string {
	if c.GatewayAddr != "" {
		return c.GatewayAddr
	}
	return gateway.Endpoint(c.Environment, gateway.Dispatch)
}

// FeedbackEndpoint returns the feedback address in use.
func (c *Config) FeedbackEndpoint() string {
	if c.FeedbackAddr != "" {
		return c.FeedbackAddr
	}
	return gateway.Endpoint(c.Environment, gateway.Feedback)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
