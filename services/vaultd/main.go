package vaultd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"revault/config"
	"revault/core/events"
	"revault/native/vault"
	"revault/observability/logging"
	telemetry "revault/observability/otel"
	"revault/storage"
)

// logEmitter forwards vault events to the structured log stream so operators
// see every settlement and governance change without an indexer.
type logEmitter struct {
	log *slog.Logger
}

func (e logEmitter) Emit(event events.Event) {
	record := event.Record()
	if record == nil {
		return
	}
	attrs := make([]any, 0, len(record.Attributes)*2)
	for key, value := range record.Attributes {
		attrs = append(attrs, logging.MaskField(key, value))
	}
	e.log.Info(record.Type, attrs...)
}

// Main initialises and runs the redemption vault daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/vaultd/config.yaml", "path to vaultd configuration")
	flag.Parse()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(logging.Options{
		Service:  "vaultd",
		Env:      cfg.Environment,
		FilePath: cfg.LogFile,
	})

	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: "vaultd",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	vaultCfg, err := config.Load(cfg.VaultConfig)
	if err != nil {
		return fmt.Errorf("load vault config: %w", err)
	}
	params, err := vaultCfg.Parameters()
	if err != nil {
		return fmt.Errorf("vault parameters: %w", err)
	}

	db, err := storage.NewLevelDB(vaultCfg.DataDir)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()

	oracle := vault.NewManualOracle()
	engine := vault.NewEngine(storage.NewState(db), params, oracle)
	engine.SetEmitter(logEmitter{log: logger})
	if err := engine.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap engine: %w", err)
	}

	server := NewServer(engine, logger, cfg)
	server.SetPriceOracle(oracle)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      otelhttp.NewHandler(server, "vaultd"),
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening", "address", cfg.ListenAddress)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace.Duration)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
