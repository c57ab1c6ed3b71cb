package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/config"
	"github.com/alfredjeanlab/eventledger/internal/events"
	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/ledger"
	"github.com/alfredjeanlab/eventledger/internal/scheduler"
	"github.com/alfredjeanlab/eventledger/internal/server"
	"github.com/alfredjeanlab/eventledger/internal/snapshot"
	"github.com/alfredjeanlab/eventledger/internal/store"
	"github.com/alfredjeanlab/eventledger/internal/store/postgres"
	"github.com/alfredjeanlab/eventledger/internal/store/sqlite"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the ledger HTTP and gRPC server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)
		slog.SetDefault(logger)

		// Open the ledger database.
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		logger.Info("ledger store opened", "driver", cfg.DatabaseDriver)

		// Create notification publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("notifications enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("notifications disabled (LEDGER_NATS_URL not set)")
		}

		// Create ledger and server components.
		l := ledger.New(st, cfg.LedgerPolicy(),
			ledger.WithPublisher(publisher),
			ledger.WithLogger(logger),
		)
		monitor := health.NewMonitor(st, cfg.HealthConfig(), publisher, logger)
		ledgerServer := server.NewLedgerServer(l, monitor, logger)
		grpcServer, grpcHealth := server.NewGRPCServer(ledgerServer, cfg.AuthToken)

		// Start gRPC listener.
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           ledgerServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start background jobs.
		var jobs []*scheduler.Scheduler
		if cfg.HealthInterval > 0 {
			jobs = append(jobs, scheduler.New("health", cfg.HealthInterval, monitor.Job, logger))
			logger.Info("health monitor enabled", "interval", cfg.HealthInterval, "window", cfg.HealthWindow)
		}
		if cfg.SnapshotInterval > 0 {
			if dests := snapshotDestinations(cfg, logger); len(dests) > 0 {
				exporter := snapshot.NewExporter(st, dests, logger)
				jobs = append(jobs, scheduler.New("snapshot", cfg.SnapshotInterval, exporter.Job, logger))
				logger.Info("snapshot scheduler enabled", "interval", cfg.SnapshotInterval, "destinations", len(dests))
			}
		}
		for _, j := range jobs {
			j.Start()
		}

		// Log startup info.
		logger.Info("ledger server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"max_attempts", cfg.MaxAttempts,
			"fail_open", cfg.FailOpen,
			"claim_lease", cfg.ClaimLease,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		for _, j := range jobs {
			j.Stop()
		}
		logger.Info("background jobs stopped")

		grpcHealth.Shutdown()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// openStore opens the configured backend. For sqlite3 the database URL is a file path.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres, config.DriverPGX:
		s, err := postgres.New(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
}

func snapshotDestinations(cfg *config.Config, logger *slog.Logger) []snapshot.Destination {
	var dests []snapshot.Destination

	if cfg.SnapshotS3Bucket != "" {
		s3Dest, err := snapshot.NewS3Destination(
			context.Background(),
			cfg.SnapshotS3Bucket,
			cfg.SnapshotS3Key,
			cfg.SnapshotS3Region,
			cfg.SnapshotS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 snapshot destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("snapshot S3 destination enabled", "bucket", cfg.SnapshotS3Bucket, "key", cfg.SnapshotS3Key)
		}
	}

	if cfg.SnapshotFile != "" {
		dests = append(dests, &snapshot.FileDestination{Path: cfg.SnapshotFile})
		logger.Info("snapshot file destination enabled", "path", cfg.SnapshotFile)
	}

	return dests
}
