// Package config provides configuration management for the mail server.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"
)

// ListenerMode defines the operational mode for a listener.
type ListenerMode string

const (
	// ModePlain is plaintext with optional STARTTLS/STLS upgrade.
	ModePlain ListenerMode = "plain"
	// ModeTLS is implicit TLS negotiated before any protocol data (IMAPS/SMTPS).
	ModeTLS ListenerMode = "tls"
)

// FileConfig is the top-level wrapper for the shared configuration file.
// This allows the IMAP and SMTP engines to share a single [server] block
// the way infodancer's pop3d/smtpd/msgstore daemons share one config file.
type FileConfig struct {
	Server  ServerConfig   `toml:"server"`
	IMAP    ProtocolConfig `toml:"imap"`
	SMTP    SMTPConfig     `toml:"smtp"`
	Auth    AuthConfig     `toml:"auth"`
	Metrics MetricsConfig  `toml:"metrics"`
}

// ServerConfig holds settings shared by both protocol engines.
type ServerConfig struct {
	Hostname string         `toml:"hostname"`
	LogLevel string         `toml:"log_level"`
	Maildir  string         `toml:"maildir"`
	TLS      TLSConfig      `toml:"tls"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Limits   LimitsConfig   `toml:"limits"`
}

// Config is the fully resolved, validated configuration for one mailstackd
// process. Both the IMAP and SMTP listeners run from a single Config.
type Config struct {
	Hostname string
	LogLevel string
	Maildir  string
	TLS      TLSConfig
	Timeouts TimeoutsConfig
	Limits   LimitsConfig
	Metrics  MetricsConfig
	Auth     AuthConfig
	IMAP     ProtocolConfig
	SMTP     SMTPConfig
}

// ProtocolConfig holds the listener set for one protocol.
type ProtocolConfig struct {
	Listeners []ListenerConfig `toml:"listeners"`
}

// SMTPConfig extends ProtocolConfig with SMTP-only knobs.
type SMTPConfig struct {
	Listeners      []ListenerConfig `toml:"listeners"`
	MaxMessageSize int64            `toml:"max_message_size"`
}

// ListenerConfig defines settings for a single listener address.
type ListenerConfig struct {
	Address string       `toml:"address"`
	Mode    ListenerMode `toml:"mode"`
}

// TLSConfig holds TLS certificate and minimum-version settings.
type TLSConfig struct {
	CertFile   string `toml:"cert_file"`
	KeyFile    string `toml:"key_file"`
	MinVersion string `toml:"min_version"`
}

// TimeoutsConfig defines timeout durations as parseable duration strings
// (e.g. "5m") so they round-trip through TOML as plain strings.
type TimeoutsConfig struct {
	PreAuth       string `toml:"pre_auth"`
	Authenticated string `toml:"authenticated"`
	IdleRefresh   string `toml:"idle_refresh"`
	Command       string `toml:"command"`
}

// LimitsConfig defines resource limits for the server.
type LimitsConfig struct {
	MaxConnections int `toml:"max_connections"`
}

// MetricsConfig holds configuration for the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// AuthConfig configures the user-store backend.
type AuthConfig struct {
	Type              string            `toml:"type"`
	CredentialBackend string            `toml:"credential_backend"`
	Options           map[string]string `toml:"options"`
}

// IsConfigured reports whether enough information was supplied to open an
// authentication agent.
func (a AuthConfig) IsConfigured() bool {
	return a.Type != ""
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Hostname: "localhost",
		LogLevel: "info",
		IMAP: ProtocolConfig{
			Listeners: []ListenerConfig{
				{Address: ":143", Mode: ModePlain},
				{Address: ":993", Mode: ModeTLS},
			},
		},
		SMTP: SMTPConfig{
			Listeners: []ListenerConfig{
				{Address: ":587", Mode: ModePlain},
				{Address: ":465", Mode: ModeTLS},
			},
			MaxMessageSize: 25 * 1024 * 1024,
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
		},
		Timeouts: TimeoutsConfig{
			PreAuth:       "5m",
			Authenticated: "30m",
			IdleRefresh:   "29m",
			Command:       "1m",
		},
		Limits: LimitsConfig{
			MaxConnections: 500,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9101",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}

	if len(c.IMAP.Listeners) == 0 && len(c.SMTP.Listeners) == 0 {
		return errors.New("at least one IMAP or SMTP listener is required")
	}

	for i, l := range c.IMAP.Listeners {
		if l.Address == "" {
			return fmt.Errorf("imap listener %d: address is required", i)
		}
		if !isValidMode(l.Mode) {
			return fmt.Errorf("imap listener %d: invalid mode %q", i, l.Mode)
		}
	}
	for i, l := range c.SMTP.Listeners {
		if l.Address == "" {
			return fmt.Errorf("smtp listener %d: address is required", i)
		}
		if !isValidMode(l.Mode) {
			return fmt.Errorf("smtp listener %d: invalid mode %q", i, l.Mode)
		}
	}

	if c.Limits.MaxConnections <= 0 {
		return errors.New("max_connections must be positive")
	}

	for _, d := range []string{c.Timeouts.PreAuth, c.Timeouts.Authenticated, c.Timeouts.IdleRefresh, c.Timeouts.Command} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", d, err)
		}
	}

	if c.TLS.MinVersion != "" {
		if _, ok := minTLSVersions[c.TLS.MinVersion]; !ok {
			return fmt.Errorf("invalid TLS min_version %q (valid: 1.0, 1.1, 1.2, 1.3)", c.TLS.MinVersion)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}

// MinTLSVersion returns the crypto/tls constant for the configured minimum TLS version.
// Returns tls.VersionTLS12 if not configured or invalid.
func (c *TLSConfig) MinTLSVersion() uint16 {
	if v, ok := minTLSVersions[c.MinVersion]; ok {
		return v
	}
	return tls.VersionTLS12
}

func durationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// PreAuthTimeout is the idle timeout before authentication completes (default 5m).
func (c *TimeoutsConfig) PreAuthTimeout() time.Duration {
	return durationOr(c.PreAuth, 5*time.Minute)
}

// AuthenticatedTimeout is the idle timeout once a session is authenticated (default 30m).
func (c *TimeoutsConfig) AuthenticatedTimeout() time.Duration {
	return durationOr(c.Authenticated, 30*time.Minute)
}

// IdleRefreshInterval bounds how long an IMAP IDLE may run before the server
// forces a renewal (default 29m).
func (c *TimeoutsConfig) IdleRefreshInterval() time.Duration {
	return durationOr(c.IdleRefresh, 29*time.Minute)
}

// CommandTimeout bounds how long a single command read may block (default 1m).
func (c *TimeoutsConfig) CommandTimeout() time.Duration {
	return durationOr(c.Command, time.Minute)
}

var minTLSVersions = map[string]uint16{
	"1.0": tls.VersionTLS10,
	"1.1": tls.VersionTLS11,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

func isValidMode(m ListenerMode) bool {
	switch m {
	case ModePlain, ModeTLS:
		return true
	default:
		return false
	}
}
