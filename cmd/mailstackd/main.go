// Command mailstackd runs the IMAP4rev2 and SMTP submission engines as two
// independent listener sets sharing one configuration file, one auth agent,
// one mail store, and one filesystem watcher, the way cmd/pop3d/main.go
// wired a single protocol engine's dependencies before handing them to
// server.Server.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/infodancer/auth"
	_ "github.com/infodancer/auth/passwd" // Register passwd backend
	"github.com/prometheus/client_golang/prometheus"

	"github.com/infodancer/mailstackd/internal/config"
	"github.com/infodancer/mailstackd/internal/imap"
	"github.com/infodancer/mailstackd/internal/logging"
	"github.com/infodancer/mailstackd/internal/mailstore"
	"github.com/infodancer/mailstackd/internal/metrics"
	"github.com/infodancer/mailstackd/internal/server"
	"github.com/infodancer/mailstackd/internal/smtp"
	"github.com/infodancer/mailstackd/internal/userstore"
)

func main() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	var tlsConfig *tls.Config
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading TLS certificate: %v\n", err)
			os.Exit(1)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   cfg.TLS.MinTLSVersion(),
		}
		logger.Info("TLS configured",
			slog.String("cert", cfg.TLS.CertFile),
			slog.String("min_version", cfg.TLS.MinVersion))
	}

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
	}

	if !cfg.Auth.IsConfigured() {
		fmt.Fprintln(os.Stderr, "error: no [auth] backend configured")
		os.Exit(1)
	}
	users, err := userstore.Open(auth.AuthAgentConfig{
		Type:              cfg.Auth.Type,
		CredentialBackend: cfg.Auth.CredentialBackend,
		Options:           cfg.Auth.Options,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating auth agent: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := users.Close(); err != nil {
			logger.Error("error closing auth agent", "error", err)
		}
	}()
	logger.Info("authentication enabled", "type", cfg.Auth.Type)

	if cfg.Maildir == "" {
		fmt.Fprintln(os.Stderr, "error: maildir path is required")
		os.Exit(1)
	}
	mail, err := mailstore.Open(cfg.Maildir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening mail store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := mail.Close(); err != nil {
			logger.Error("error closing mail store", "error", err)
		}
	}()
	logger.Info("mail store enabled", "path", cfg.Maildir)

	watcher, err := mailstore.NewWatcher(cfg.Maildir, logger)
	if err != nil {
		// IDLE degrades to a no-push mode without a watcher; it isn't fatal
		// the way a missing mail store or auth backend is.
		logger.Warn("filesystem watcher unavailable, IDLE push disabled", "error", err)
		watcher = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if watcher != nil {
		go watcher.Run(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics server started", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
	}

	imapDeps := &imap.Deps{
		Hostname:  cfg.Hostname,
		Mail:      mail,
		Users:     users,
		Watcher:   watcher,
		TLSConfig: tlsConfig,
		Collector: collector,
		Logger:    logger,
	}
	imapSrv, err := server.New(server.Config{
		Protocol:       "imap",
		Listeners:      cfg.IMAP.Listeners,
		TLSConfig:      tlsConfig,
		Logger:         logger,
		MaxConnections: cfg.Limits.MaxConnections,
		Handler:        imap.Handler(cfg.Hostname, imapDeps),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating imap server: %v\n", err)
		os.Exit(1)
	}

	smtpDeps := &smtp.Deps{
		Hostname:       cfg.Hostname,
		Mail:           mail,
		Users:          users,
		TLSConfig:      tlsConfig,
		Collector:      collector,
		Logger:         logger,
		MaxMessageSize: cfg.SMTP.MaxMessageSize,
	}
	smtpSrv, err := server.New(server.Config{
		Protocol:       "smtp",
		Listeners:      cfg.SMTP.Listeners,
		TLSConfig:      tlsConfig,
		Logger:         logger,
		MaxConnections: cfg.Limits.MaxConnections,
		Handler:        smtp.Handler(cfg.Hostname, smtpDeps),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating smtp server: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting mailstackd",
		slog.String("hostname", cfg.Hostname),
		slog.Int("imap_listeners", len(cfg.IMAP.Listeners)),
		slog.Int("smtp_listeners", len(cfg.SMTP.Listeners)),
	)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := imapSrv.Run(ctx); err != nil && err != context.Canceled {
			errs <- fmt.Errorf("imap server: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := smtpSrv.Run(ctx); err != nil && err != context.Canceled {
			errs <- fmt.Errorf("smtp server: %w", err)
		}
	}()

	wg.Wait()
	close(errs)

	var failed bool
	for err := range errs {
		failed = true
		logger.Error("server error", "error", err)
	}

	logger.Info("mailstackd stopped")
	if failed {
		os.Exit(1)
	}
}
