package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/config"
	"github.com/t77yq/self-healing/internal/dispatcher"
	"github.com/t77yq/self-healing/internal/events"
	"github.com/t77yq/self-healing/internal/executor"
	"github.com/t77yq/self-healing/internal/handler"
	"github.com/t77yq/self-healing/internal/logging"
	"github.com/t77yq/self-healing/internal/monitor"
	"github.com/t77yq/self-healing/internal/registry"
	"github.com/t77yq/self-healing/internal/scheduler"
	"github.com/t77yq/self-healing/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer cleanup()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting webhook service...",
		zap.String("service", cfg.App.Name),
		zap.String("address", cfg.Server.Address))

	reg := registry.New(cfg.Remediations)
	for _, r := range reg.Entries() {
		logger.Info("Remediation mapped",
			zap.String("alert_name", r.Alert),
			zap.String("playbook", r.Playbook))
	}

	var (
		sinks       []storage.Sink
		handlerOpts []handler.Option
	)

	if cfg.History.Enabled {
		history, err := storage.NewSQLiteHealingHistory(logger, cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("failed to create healing history: %w", err)
		}
		defer history.Close()

		retention, err := scheduler.NewRetentionJob(history, cfg.History.CleanupSchedule, cfg.History.Retention, logger)
		if err != nil {
			return fmt.Errorf("failed to create retention job: %w", err)
		}
		retention.Start()
		defer retention.Stop()

		sinks = append(sinks, history)
		handlerOpts = append(handlerOpts, handler.WithHistory(history))
	}

	if cfg.NATS.Enabled {
		nc, err := events.Connect(cfg.NATS, cfg.App.Name, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Drain() //nolint:errcheck

		publisher, err := newPublisher(nc, cfg.NATS, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, publisher)
	}

	actions := storage.NewActionLogger(cfg.Actions.File, logger, sinks...)
	logger.Info("Recording healing actions",
		zap.String("path", actions.Path()),
		zap.Int("sinks", len(sinks)))

	var execOpts []executor.Option
	if cfg.Monitor.Enabled {
		sampler := monitor.NewHostSampler(cfg.Monitor.Interval, logger)
		if err := sampler.Start(ctx); err != nil {
			// Host statistics are informational only.
			logger.Warn("Host sampler unavailable", zap.Error(err))
		} else {
			defer sampler.Stop()
			execOpts = append(execOpts, executor.WithHostSnapshotter(sampler))
			handlerOpts = append(handlerOpts, handler.WithHostSnapshotter(sampler))
		}
	}

	exec := executor.NewExecutor(executor.ExecutorConfig{
		Command:    cfg.Runner.Command,
		Inventory:  cfg.Runner.Inventory,
		Connection: cfg.Runner.Connection,
		Timeout:    cfg.Runner.Timeout,
	}, actions, logger, execOpts...)
	logger.Info("Remediation runner configured",
		zap.String("command", cfg.Runner.Command),
		zap.Duration("timeout", exec.Timeout()))

	d := dispatcher.New(reg, exec, logger)

	handlerOpts = append(handlerOpts, handler.WithRemediationTable(reg), handler.WithRunning(exec))
	h := handler.New(cfg.App.Name, d, actions, logger, handlerOpts...)

	srv := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     h.Routes(),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if running := exec.GetRunning(); len(running) > 0 {
		logger.Info("Waiting for running remediations to complete", zap.Int("count", len(running)))
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached, aborting running remediations", zap.Error(err))
		exec.Stop()
	}
	// Aborted runs still write their records; the sinks close after this.
	exec.Wait()

	logger.Info("Server shutting down gracefully")
	return nil
}

func newPublisher(nc *nats.Conn, cfg config.NATSConfig, logger *zap.Logger) (*events.Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher, err := events.NewPublisher(js, cfg.Stream, cfg.SubjectPrefix, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create healing event publisher: %w", err)
	}
	return publisher, nil
}
