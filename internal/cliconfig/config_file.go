package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Environment      string `toml:"environment"`
	GatewayAddr      string `toml:"gateway_addr"`
	FeedbackAddr     string `toml:"feedback_addr"`
	Plain            *bool  `toml:"plain"`
	CertFile         string `toml:"cert_file"`
	CertPassphrase   string `toml:"cert_passphrase"`
	QueueSize        int    `toml:"queue_size"`
	Retain           string `toml:"retain"`
	DialTimeout      string `toml:"dial_timeout"`
	WriteTimeout     string `toml:"write_timeout"`
	HTTPEndpoint     string `toml:"http_endpoint"`
	HTTPAPIKey       string `toml:"http_api_key"`
	HTTPTimeout      string `toml:"http_timeout"`
	TokenDB          string `toml:"token_db"`
	SkipInactive     *bool  `toml:"skip_inactive"`
	FeedbackInterval string `toml:"feedback_interval"`
	MetricsAddr      string `toml:"metrics_addr"`
	ShutdownTimeout  string `toml:"shutdown_timeout"`
	LogLevel         string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.pushgate/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pushgate", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("environment", fc.Environment, &cfg.Environment)
	s.setString("gateway-addr", fc.GatewayAddr, &cfg.GatewayAddr)
	s.setString("feedback-addr", fc.FeedbackAddr, &cfg.FeedbackAddr)
	s.setString("cert-file", fc.CertFile, &cfg.CertFile)
	s.setString("cert-passphrase", fc.CertPassphrase, &cfg.CertPassphrase)
	s.setString("http-endpoint", fc.HTTPEndpoint, &cfg.HTTPEndpoint)
	s.setString("http-api-key", fc.HTTPAPIKey, &cfg.HTTPAPIKey)
	s.setString("token-db", fc.TokenDB, &cfg.TokenDB)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setInt("queue-size", fc.QueueSize, &cfg.QueueSize)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"retain", fc.Retain, &cfg.Retain},
		{"dial-timeout", fc.DialTimeout, &cfg.DialTimeout},
		{"write-timeout", fc.WriteTimeout, &cfg.WriteTimeout},
		{"http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout},
		{"feedback-interval", fc.FeedbackInterval, &cfg.FeedbackInterval},
		{"shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setBool("plain", fc.Plain, &cfg.Plain)
	s.setBool("skip-inactive", fc.SkipInactive, &cfg.SkipInactive)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
