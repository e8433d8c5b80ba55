package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}

	expected := Default()
	if cfg.Hostname != expected.Hostname {
		t.Errorf("expected hostname %q, got %q", expected.Hostname, cfg.Hostname)
	}
}

func TestLoadValidTOML(t *testing.T) {
	content := `
[server]
hostname = "mail.example.com"
log_level = "debug"

[server.tls]
cert_file = "/etc/ssl/cert.pem"
key_file = "/etc/ssl/key.pem"
min_version = "1.3"

[server.limits]
max_connections = 50

[server.timeouts]
pre_auth = "3m"
command = "2m"

[[imap.listeners]]
address = ":143"
mode = "plain"

[[imap.listeners]]
address = ":993"
mode = "tls"

[[smtp.listeners]]
address = ":587"
mode = "plain"

[smtp]
max_message_size = 1048576
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "mail.example.com" {
		t.Errorf("hostname = %q, want 'mail.example.com'", cfg.Hostname)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug'", cfg.LogLevel)
	}
	if cfg.TLS.CertFile != "/etc/ssl/cert.pem" {
		t.Errorf("tls.cert_file = %q, want '/etc/ssl/cert.pem'", cfg.TLS.CertFile)
	}
	if cfg.TLS.MinVersion != "1.3" {
		t.Errorf("tls.min_version = %q, want '1.3'", cfg.TLS.MinVersion)
	}
	if cfg.Limits.MaxConnections != 50 {
		t.Errorf("limits.max_connections = %d, want 50", cfg.Limits.MaxConnections)
	}
	if cfg.Timeouts.PreAuth != "3m" {
		t.Errorf("timeouts.pre_auth = %q, want '3m'", cfg.Timeouts.PreAuth)
	}

	if len(cfg.IMAP.Listeners) != 2 {
		t.Fatalf("expected 2 imap listeners, got %d", len(cfg.IMAP.Listeners))
	}
	if cfg.IMAP.Listeners[0].Address != ":143" || cfg.IMAP.Listeners[0].Mode != ModePlain {
		t.Errorf("imap listener[0] = %+v", cfg.IMAP.Listeners[0])
	}
	if cfg.IMAP.Listeners[1].Address != ":993" || cfg.IMAP.Listeners[1].Mode != ModeTLS {
		t.Errorf("imap listener[1] = %+v", cfg.IMAP.Listeners[1])
	}

	if len(cfg.SMTP.Listeners) != 1 || cfg.SMTP.Listeners[0].Address != ":587" {
		t.Fatalf("unexpected smtp listeners: %+v", cfg.SMTP.Listeners)
	}
	if cfg.SMTP.MaxMessageSize != 1048576 {
		t.Errorf("smtp.max_message_size = %d, want 1048576", cfg.SMTP.MaxMessageSize)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	content := `
[server
hostname = "broken
`
	path := createTempConfig(t, content)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoadPartialConfig(t *testing.T) {
	content := `
[server]
hostname = "partial.example.com"
`
	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "partial.example.com" {
		t.Errorf("hostname = %q, want 'partial.example.com'", cfg.Hostname)
	}

	defaults := Default()
	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("log_level = %q, want default %q", cfg.LogLevel, defaults.LogLevel)
	}
	if cfg.Limits.MaxConnections != defaults.Limits.MaxConnections {
		t.Errorf("max_connections = %d, want default %d", cfg.Limits.MaxConnections, defaults.Limits.MaxConnections)
	}
	if len(cfg.IMAP.Listeners) != len(defaults.IMAP.Listeners) {
		t.Errorf("imap listeners = %d, want default %d", len(cfg.IMAP.Listeners), len(defaults.IMAP.Listeners))
	}
}

func TestLoadAuthConfig(t *testing.T) {
	content := `
[server]
hostname = "mail.example.com"

[auth]
type = "passwd"
credential_backend = "shadow"

[auth.options]
shadow_path = "/etc/shadow"
`
	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.Type != "passwd" {
		t.Errorf("auth.type = %q, want 'passwd'", cfg.Auth.Type)
	}
	if cfg.Auth.CredentialBackend != "shadow" {
		t.Errorf("auth.credential_backend = %q, want 'shadow'", cfg.Auth.CredentialBackend)
	}
	if cfg.Auth.Options["shadow_path"] != "/etc/shadow" {
		t.Errorf("auth.options[shadow_path] = %q", cfg.Auth.Options["shadow_path"])
	}
	if !cfg.Auth.IsConfigured() {
		t.Error("expected IsConfigured() to be true")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()

	flags := &Flags{
		Hostname:       "flag.example.com",
		LogLevel:       "debug",
		TLSCert:        "/flag/cert.pem",
		TLSKey:         "/flag/key.pem",
		MaxConnections: 25,
		Maildir:        "/flag/maildir",
	}

	result := ApplyFlags(cfg, flags)

	if result.Hostname != "flag.example.com" {
		t.Errorf("hostname = %q, want 'flag.example.com'", result.Hostname)
	}
	if result.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug'", result.LogLevel)
	}
	if result.TLS.CertFile != "/flag/cert.pem" {
		t.Errorf("tls.cert_file = %q, want '/flag/cert.pem'", result.TLS.CertFile)
	}
	if result.Limits.MaxConnections != 25 {
		t.Errorf("max_connections = %d, want 25", result.Limits.MaxConnections)
	}
	if result.Maildir != "/flag/maildir" {
		t.Errorf("maildir = %q, want '/flag/maildir'", result.Maildir)
	}
}

func TestApplyFlagsEmptyValuesDoNotOverride(t *testing.T) {
	cfg := Default()
	cfg.Hostname = "original.example.com"
	cfg.LogLevel = "warn"
	cfg.Limits.MaxConnections = 50

	flags := &Flags{}

	result := ApplyFlags(cfg, flags)

	if result.Hostname != "original.example.com" {
		t.Errorf("hostname = %q, should not be overridden", result.Hostname)
	}
	if result.LogLevel != "warn" {
		t.Errorf("log_level = %q, should not be overridden", result.LogLevel)
	}
	if result.Limits.MaxConnections != 50 {
		t.Errorf("max_connections = %d, should not be overridden", result.Limits.MaxConnections)
	}
}

func TestApplyFlagsListenReplacesListeners(t *testing.T) {
	cfg := Default()

	flags := &Flags{
		IMAPListen: ":1143",
		SMTPListen: ":1587",
	}

	result := ApplyFlags(cfg, flags)

	if len(result.IMAP.Listeners) != 1 || result.IMAP.Listeners[0].Address != ":1143" {
		t.Fatalf("imap listeners = %+v", result.IMAP.Listeners)
	}
	if len(result.SMTP.Listeners) != 1 || result.SMTP.Listeners[0].Address != ":1587" {
		t.Fatalf("smtp listeners = %+v", result.SMTP.Listeners)
	}
}

func TestLoadMetricsConfig(t *testing.T) {
	content := `
[server]
hostname = "mail.example.com"

[metrics]
enabled = true
address = ":9200"
path = "/custom-metrics"
`
	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Metrics.Enabled {
		t.Errorf("metrics.enabled = %v, want true", cfg.Metrics.Enabled)
	}
	if cfg.Metrics.Address != ":9200" {
		t.Errorf("metrics.address = %q, want ':9200'", cfg.Metrics.Address)
	}
	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("metrics.path = %q, want '/custom-metrics'", cfg.Metrics.Path)
	}
}

func TestFlagPriorityOverConfig(t *testing.T) {
	content := `
[server]
hostname = "config.example.com"
log_level = "info"

[server.limits]
max_connections = 100
`
	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	flags := &Flags{
		Hostname:       "flag.example.com",
		MaxConnections: 50,
	}

	result := ApplyFlags(cfg, flags)

	if result.Hostname != "flag.example.com" {
		t.Errorf("hostname = %q, want 'flag.example.com' (flag should override)", result.Hostname)
	}
	if result.Limits.MaxConnections != 50 {
		t.Errorf("max_connections = %d, want 50 (flag should override)", result.Limits.MaxConnections)
	}
	if result.LogLevel != "info" {
		t.Errorf("log_level = %q, want 'info' (config value should remain)", result.LogLevel)
	}
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	return path
}
