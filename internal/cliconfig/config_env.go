package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (PUSHGATE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("environment", os.Getenv("PUSHGATE_ENVIRONMENT"), &cfg.Environment)
	s.setString("gateway-addr", os.Getenv("PUSHGATE_GATEWAY_ADDR"), &cfg.GatewayAddr)
	s.setString("feedback-addr", os.Getenv("PUSHGATE_FEEDBACK_ADDR"), &cfg.FeedbackAddr)
	s.setString("cert-file", os.Getenv("PUSHGATE_CERT_FILE"), &cfg.CertFile)
	s.setString("cert-passphrase", os.Getenv("PUSHGATE_CERT_PASSPHRASE"), &cfg.CertPassphrase)
	s.setString("http-endpoint", os.Getenv("PUSHGATE_HTTP_ENDPOINT"), &cfg.HTTPEndpoint)
	s.setString("http-api-key", os.Getenv("PUSHGATE_HTTP_API_KEY"), &cfg.HTTPAPIKey)
	s.setString("token-db", os.Getenv("PUSHGATE_TOKEN_DB"), &cfg.TokenDB)
	s.setString("metrics-addr", os.Getenv("PUSHGATE_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("PUSHGATE_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("queue-size", os.Getenv("PUSHGATE_QUEUE_SIZE"), &cfg.QueueSize); err != nil {
		return err
	}

	if err := s.setDuration("retain", os.Getenv("PUSHGATE_RETAIN"), &cfg.Retain); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", os.Getenv("PUSHGATE_DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("write-timeout", os.Getenv("PUSHGATE_WRITE_TIMEOUT"), &cfg.WriteTimeout); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", os.Getenv("PUSHGATE_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("feedback-interval", os.Getenv("PUSHGATE_FEEDBACK_INTERVAL"), &cfg.FeedbackInterval); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("PUSHGATE_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setBoolFromString("plain", os.Getenv("PUSHGATE_PLAIN"), &cfg.Plain)
	s.setBoolFromString("skip-inactive", os.Getenv("PUSHGATE_SKIP_INACTIVE"), &cfg.SkipInactive)

	return nil
}
