package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath     string
	Hostname       string
	LogLevel       string
	IMAPListen     string
	SMTPListen     string
	TLSCert        string
	TLSKey         string
	MaxConnections int
	Maildir        string
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./mailstackd.toml", "Path to configuration file")
	flag.StringVar(&f.Hostname, "hostname", "", "Server hostname")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.IMAPListen, "imap-listen", "", "IMAP listen address (replaces all configured IMAP listeners)")
	flag.StringVar(&f.SMTPListen, "smtp-listen", "", "SMTP listen address (replaces all configured SMTP listeners)")
	flag.StringVar(&f.TLSCert, "tls-cert", "", "TLS certificate file path")
	flag.StringVar(&f.TLSKey, "tls-key", "", "TLS key file path")
	flag.IntVar(&f.MaxConnections, "max-connections", 0, "Maximum concurrent connections")
	flag.StringVar(&f.Maildir, "maildir", "", "Maildir root path for message storage")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration.
// The loader reads from [server] (settings shared by both protocol engines)
// and the protocol-specific [imap]/[smtp]/[auth]/[metrics] sections.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	cfg = mergeServerConfig(cfg, fileConfig.Server)

	if len(fileConfig.IMAP.Listeners) > 0 {
		cfg.IMAP.Listeners = fileConfig.IMAP.Listeners
	}
	if len(fileConfig.SMTP.Listeners) > 0 {
		cfg.SMTP.Listeners = fileConfig.SMTP.Listeners
	}
	if fileConfig.SMTP.MaxMessageSize > 0 {
		cfg.SMTP.MaxMessageSize = fileConfig.SMTP.MaxMessageSize
	}

	cfg = mergeAuthConfig(cfg, fileConfig.Auth)
	cfg = mergeMetricsConfig(cfg, fileConfig.Metrics)

	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero/non-empty flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Hostname != "" {
		cfg.Hostname = f.Hostname
	}

	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if f.IMAPListen != "" {
		cfg.IMAP.Listeners = []ListenerConfig{{Address: f.IMAPListen, Mode: ModePlain}}
	}

	if f.SMTPListen != "" {
		cfg.SMTP.Listeners = []ListenerConfig{{Address: f.SMTPListen, Mode: ModePlain}}
	}

	if f.TLSCert != "" {
		cfg.TLS.CertFile = f.TLSCert
	}

	if f.TLSKey != "" {
		cfg.TLS.KeyFile = f.TLSKey
	}

	if f.MaxConnections > 0 {
		cfg.Limits.MaxConnections = f.MaxConnections
	}

	if f.Maildir != "" {
		cfg.Maildir = f.Maildir
	}

	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(cfg, f), nil
}

// mergeServerConfig merges shared server settings into the config.
func mergeServerConfig(dst Config, src ServerConfig) Config {
	if src.Hostname != "" {
		dst.Hostname = src.Hostname
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.Maildir != "" {
		dst.Maildir = src.Maildir
	}

	if src.TLS.CertFile != "" {
		dst.TLS.CertFile = src.TLS.CertFile
	}
	if src.TLS.KeyFile != "" {
		dst.TLS.KeyFile = src.TLS.KeyFile
	}
	if src.TLS.MinVersion != "" {
		dst.TLS.MinVersion = src.TLS.MinVersion
	}

	if src.Timeouts.PreAuth != "" {
		dst.Timeouts.PreAuth = src.Timeouts.PreAuth
	}
	if src.Timeouts.Authenticated != "" {
		dst.Timeouts.Authenticated = src.Timeouts.Authenticated
	}
	if src.Timeouts.IdleRefresh != "" {
		dst.Timeouts.IdleRefresh = src.Timeouts.IdleRefresh
	}
	if src.Timeouts.Command != "" {
		dst.Timeouts.Command = src.Timeouts.Command
	}

	if src.Limits.MaxConnections > 0 {
		dst.Limits.MaxConnections = src.Limits.MaxConnections
	}

	return dst
}

func mergeAuthConfig(dst Config, src AuthConfig) Config {
	if src.Type != "" {
		dst.Auth.Type = src.Type
	}
	if src.CredentialBackend != "" {
		dst.Auth.CredentialBackend = src.CredentialBackend
	}
	if src.Options != nil {
		if dst.Auth.Options == nil {
			dst.Auth.Options = make(map[string]string)
		}
		for k, v := range src.Options {
			dst.Auth.Options[k] = v
		}
	}
	return dst
}

func mergeMetricsConfig(dst Config, src MetricsConfig) Config {
	if src.Enabled {
		dst.Metrics.Enabled = src.Enabled
	}
	if src.Address != "" {
		dst.Metrics.Address = src.Address
	}
	if src.Path != "" {
		dst.Metrics.Path = src.Path
	}
	return dst
}
