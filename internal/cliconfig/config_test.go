package cliconfig

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/pushgate/pkg/gateway"
	"github.com/bft-labs/pushgate/pkg/pushgate"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Environment != "production" {
		t.Errorf("Environment = %v, want production", cfg.Environment)
	}
	if cfg.QueueSize != 128 {
		t.Errorf("QueueSize = %v, want 128", cfg.QueueSize)
	}
	if cfg.Retain != 2*time.Second {
		t.Errorf("Retain = %v, want 2s", cfg.Retain)
	}
	if cfg.FeedbackInterval != time.Hour {
		t.Errorf("FeedbackInterval = %v, want 1h", cfg.FeedbackInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.CertFile = "/etc/pushgate/push.p12"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:   "plain without certificate",
			mutate: func(c *Config) { c.CertFile = ""; c.Plain = true },
		},
		{
			name:    "missing certificate",
			mutate:  func(c *Config) { c.CertFile = "" },
			wantErr: "cert-file",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "staging" },
			wantErr: "staging",
		},
		{
			name:    "queue too small",
			mutate:  func(c *Config) { c.QueueSize = 1 },
			wantErr: "queue size",
		},
		{
			name:    "negative retain",
			mutate:  func(c *Config) { c.Retain = -time.Second },
			wantErr: "retain",
		},
		{
			name:    "zero feedback interval",
			mutate:  func(c *Config) { c.FeedbackInterval = 0 },
			wantErr: "feedback interval",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Gateway(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = "sandbox"
	cfg.CertFile = "/certs/push.p12"
	cfg.CertPassphrase = "secret"
	cfg.QueueSize = 64
	cfg.HTTPAPIKey = "key"
	cfg.SkipInactive = true
	cfg.TokenDB = "/var/lib/pushgate/tokens.db"

	gc, err := cfg.Gateway()
	if err != nil {
		t.Fatalf("Gateway() error = %v", err)
	}

	if gc.Environment != gateway.Sandbox {
		t.Errorf("Environment = %v, want sandbox", gc.Environment)
	}
	if gc.CertFile != "/certs/push.p12" || gc.CertPassphrase != "secret" {
		t.Errorf("certificate = %q/%q", gc.CertFile, gc.CertPassphrase)
	}
	if gc.QueueSize != 64 {
		t.Errorf("QueueSize = %v, want 64", gc.QueueSize)
	}
	if !gc.SkipInactive {
		t.Error("SkipInactive = false, want true")
	}
	if gc.GatewayEndpoint() != gateway.Endpoint(gateway.Sandbox, gateway.Dispatch) {
		t.Errorf("GatewayEndpoint() = %v", gc.GatewayEndpoint())
	}
	if err := gc.Validate(); err != nil {
		t.Errorf("converted config does not validate: %v", err)
	}
}

func TestConfig_Gateway_SkipInactiveNeedsStore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipInactive = true
	cfg.TokenDB = ""

	gc, err := cfg.Gateway()
	if err != nil {
		t.Fatalf("Gateway() error = %v", err)
	}
	if gc.SkipInactive {
		t.Error("SkipInactive should be off without a token database")
	}
}

func TestConfig_Gateway_FillsDefaults(t *testing.T) {
	cfg := Config{Environment: "production"}
	gc, err := cfg.Gateway()
	if err != nil {
		t.Fatalf("Gateway() error = %v", err)
	}
	if gc.QueueSize != pushgate.DefaultQueueSize {
		t.Errorf("QueueSize = %v, want %v", gc.QueueSize, pushgate.DefaultQueueSize)
	}
	if gc.ShutdownTimeout != pushgate.DefaultShutdownTimeout {
		t.Errorf("ShutdownTimeout = %v", gc.ShutdownTimeout)
	}
}

func TestConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn"}
	logger := cfg.Logger(&buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := ParseLevel(""); err != nil {
		t.Errorf("ParseLevel(\"\") error = %v", err)
	}
	if _, err := ParseLevel("debug"); err != nil {
		t.Errorf("ParseLevel(debug) error = %v", err)
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Error("ParseLevel(chatty) expected error")
	}
}
