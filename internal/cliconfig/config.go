package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bft-labs/pushgate/pkg/gateway"
	"github.com/bft-labs/pushgate/pkg/pushgate"
	"github.com/bft-labs/pushgate/pkg/sender"
)

// Config holds CLI configuration for pushgate.
type Config struct {
	Environment  string
	GatewayAddr  string
	FeedbackAddr string
	Plain        bool

	CertFile       string
	CertPassphrase string

	QueueSize    int
	Retain       time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration

	HTTPEndpoint string
	HTTPAPIKey   string
	HTTPTimeout  time.Duration

	TokenDB          string
	SkipInactive     bool
	FeedbackInterval time.Duration

	MetricsAddr     string
	ShutdownTimeout time.Duration
	LogLevel        string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Environment:      gateway.Production.String(),
		QueueSize:        pushgate.DefaultQueueSize,
		Retain:           pushgate.DefaultRetain,
		DialTimeout:      gateway.DefaultDialTimeout,
		WriteTimeout:     gateway.DefaultWriteTimeout,
		HTTPEndpoint:     sender.DefaultEndpoint,
		HTTPTimeout:      pushgate.DefaultHTTPTimeout,
		FeedbackInterval: time.Hour,
		ShutdownTimeout:  pushgate.DefaultShutdownTimeout,
		LogLevel:         "info",
		TokenDB:          defaultTokenDB(),
		CertPassphrase:   os.Getenv("PUSHGATE_CERT_PASSPHRASE"),
		HTTPAPIKey:       os.Getenv("PUSHGATE_HTTP_API_KEY"),
	}
}

func defaultTokenDB() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pushgate", "tokens.db")
	}
	return ""
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := gateway.ParseEnvironment(c.Environment); err != nil {
		return err
	}
	if !c.Plain && c.CertFile == "" {
		return fmt.Errorf("cert-file is required unless --plain is set")
	}
	if c.QueueSize < 2 {
		return fmt.Errorf("queue size must be at least 2")
	}
	if c.Retain < 0 {
		return fmt.Errorf("retain must not be negative")
	}
	if c.FeedbackInterval <= 0 {
		return fmt.Errorf("feedback interval must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Gateway converts the CLI configuration into a pushgate.Config.
func (c *Config) Gateway() (pushgate.Config, error) {
	env, err := gateway.ParseEnvironment(c.Environment)
	if err != nil {
		return pushgate.Config{}, err
	}
	cfg := pushgate.Config{
		Environment:     env,
		GatewayAddr:     c.GatewayAddr,
		FeedbackAddr:    c.FeedbackAddr,
		Plain:           c.Plain,
		CertFile:        c.CertFile,
		CertPassphrase:  c.CertPassphrase,
		QueueSize:       c.QueueSize,
		Retain:          c.Retain,
		DialTimeout:     c.DialTimeout,
		WriteTimeout:    c.WriteTimeout,
		HTTPEndpoint:    c.HTTPEndpoint,
		HTTPAPIKey:      c.HTTPAPIKey,
		HTTPTimeout:     c.HTTPTimeout,
		SkipInactive:    c.SkipInactive && c.TokenDB != "",
		ShutdownTimeout: c.ShutdownTimeout,
	}
	cfg.SetDefaults()
	return cfg, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int for environment variables.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
