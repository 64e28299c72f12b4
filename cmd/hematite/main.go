// Command hematite runs the event store's HTTP server: the stream
// manager, JWT authentication, metrics, and optional tracing, all wired
// from HEMATITE_* environment variables.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cantido/hematite/internal/auth"
	"github.com/Cantido/hematite/internal/config"
	"github.com/Cantido/hematite/internal/metrics"
	httpserver "github.com/Cantido/hematite/internal/server/http"
	"github.com/Cantido/hematite/internal/streammgr"
	"github.com/Cantido/hematite/internal/tracing"
	logpkg "github.com/Cantido/hematite/pkg/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hematite",
		Short: "An append-only event store for CloudEvents",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the hematite HTTP server",
		RunE:  runServer,
	})
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logpkg.NewLogger(
		logpkg.WithLevel(logpkg.ParseLevel(cfg.LogLevel)),
		logpkg.WithFormatter(formatterFor(cfg.LogFormat)),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	defer logpkg.RedirectStdLog(logger)()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	mgr, err := streammgr.New(cfg.StreamsDir, streammgr.Options{
		MaxOpenStreams: cfg.MaxOpenStreams,
		EvictionWait:   cfg.EvictionWait,
		Logger:         slogFor(logger),
		Metrics:        m,
	})
	if err != nil {
		return fmt.Errorf("stream manager: %w", err)
	}
	defer mgr.Close()

	verifier, err := auth.NewVerifier(auth.KeySource{
		HMACSecret:   cfg.JWTSecret,
		RSAPublicKey: cfg.JWTPublicKeyPEM,
	}, cfg.JWTAudience)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	policyExpr, err := loadPolicyExpr(cfg.AuthzPolicy)
	if err != nil {
		return fmt.Errorf("authorization policy: %w", err)
	}
	policy, err := auth.LoadPolicy(policyExpr)
	if err != nil {
		return fmt.Errorf("authorization policy: %w", err)
	}

	tracer, tracerShutdown, err := tracing.Setup(ctx, cfg.OTelEndpoint, serviceVersion)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerShutdown(sctx)
	}()

	srv := httpserver.New(mgr, verifier, policy, m, tracer, logger)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting HTTP server", logpkg.Str("addr", cfg.Listen))
		if err := srv.ListenAndServe(ctx, cfg.Listen); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting metrics server", logpkg.Str("addr", cfg.MetricsListen))
		if err := srv.ListenAndServeMetrics(ctx, cfg.MetricsListen); err != nil {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// loadPolicyExpr reads the CEL expression file named by
// HEMATITE_AUTHZ_POLICY, if set. An unset path means identity-only
// authorization: LoadPolicy("") always permits.
func loadPolicyExpr(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// serviceVersion is stamped at build time via -ldflags; defaulting to
// "dev" keeps local builds and tests working without it.
var serviceVersion = "dev"

// slogFor unwraps the facade's *slog.Logger so the stream manager's
// eviction warnings flow through the same formatter/output pipeline as
// every other log line, instead of slog's own default handler.
func slogFor(l logpkg.Logger) *slog.Logger {
	base, ok := l.(*logpkg.BaseLogger)
	if !ok {
		return slog.Default()
	}
	return base.ToSlog()
}

func formatterFor(format string) logpkg.Formatter {
	if format == "json" {
		return &logpkg.JSONFormatter{}
	}
	return &logpkg.TextFormatter{}
}
