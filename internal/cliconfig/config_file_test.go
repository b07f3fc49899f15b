package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Environment: "sandbox",
				CertFile:    "/certs/push.p12",
				QueueSize:   256,
				Retain:      "5s",
				Plain:       &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Environment: "sandbox",
				CertFile:    "/certs/push.p12",
				QueueSize:   256,
				Retain:      5 * time.Second,
				Plain:       true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				CertFile:    "/file/push.p12",
				Environment: "sandbox",
			},
			changed: map[string]bool{"cert-file": true},
			initial: Config{
				CertFile:    "/flag/push.p12",
				Environment: "production",
			},
			expected: Config{
				CertFile:    "/flag/push.p12", // unchanged because flag was set
				Environment: "sandbox",
			},
		},
		{
			name: "handles all field types correctly",
			fileConfig: FileConfig{
				Environment:      "production",
				GatewayAddr:      "127.0.0.1:2195",
				FeedbackAddr:     "127.0.0.1:2196",
				Plain:            &falseVal,
				CertFile:         "/certs/push.p12",
				CertPassphrase:   "secret",
				QueueSize:        64,
				Retain:           "3s",
				DialTimeout:      "4s",
				WriteTimeout:     "6s",
				HTTPEndpoint:     "http://push.example.com/send",
				HTTPAPIKey:       "key",
				HTTPTimeout:      "30s",
				TokenDB:          "/var/lib/pushgate/tokens.db",
				SkipInactive:     &trueVal,
				FeedbackInterval: "30m",
				MetricsAddr:      ":9102",
				ShutdownTimeout:  "1m",
				LogLevel:         "debug",
			},
			changed: map[string]bool{},
			initial: Config{Plain: true},
			expected: Config{
				Environment:      "production",
				GatewayAddr:      "127.0.0.1:2195",
				FeedbackAddr:     "127.0.0.1:2196",
				Plain:            false,
				CertFile:         "/certs/push.p12",
				CertPassphrase:   "secret",
				QueueSize:        64,
				Retain:           3 * time.Second,
				DialTimeout:      4 * time.Second,
				WriteTimeout:     6 * time.Second,
				HTTPEndpoint:     "http://push.example.com/send",
				HTTPAPIKey:       "key",
				HTTPTimeout:      30 * time.Second,
				TokenDB:          "/var/lib/pushgate/tokens.db",
				SkipInactive:     true,
				FeedbackInterval: 30 * time.Minute,
				MetricsAddr:      ":9102",
				ShutdownTimeout:  time.Minute,
				LogLevel:         "debug",
			},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{Retain: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
environment = "sandbox"
cert_file = "/certs/push.p12"
queue_size = 256
retain = "5s"
skip_inactive = true
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.Environment != "sandbox" {
		t.Errorf("Environment = %v, want sandbox", fc.Environment)
	}
	if fc.CertFile != "/certs/push.p12" {
		t.Errorf("CertFile = %v, want /certs/push.p12", fc.CertFile)
	}
	if fc.QueueSize != 256 {
		t.Errorf("QueueSize = %v, want 256", fc.QueueSize)
	}
	if fc.Retain != "5s" {
		t.Errorf("Retain = %v, want 5s", fc.Retain)
	}
	if fc.SkipInactive == nil || !*fc.SkipInactive {
		t.Errorf("SkipInactive = %v, want true", fc.SkipInactive)
	}
	if fc.Plain != nil {
		t.Errorf("Plain = %v, want unset", *fc.Plain)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
environment = "sandbox"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".pushgate") {
		t.Errorf("DefaultConfigPath() = %v, should contain .pushgate", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
