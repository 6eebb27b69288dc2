package main

import (
	"context"
	"embed"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghost-labs/tradenode/pkg/custody"
)

//go:embed config/migrations/*/*.sql
var embedMigrations embed.FS

func main() {
	logger := NewLoggerIPFS("root")
	if len(os.Args) > 1 {
		// If a CLI command is provided, run it and exit
		runCli(logger, os.Args[1])
		return
	}

	config, err := LoadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	db, err := ConnectToDB(config.dbConf)
	if err != nil {
		logger.Fatal("Failed to setup database", "error", err)
	}
	store := NewStore(db)

	// Initialize Prometheus metrics
	metrics := NewMetrics()

	parentClient, err := custody.NewClient(config.custodyEnv.APIBaseURL, config.ParentCredentials(), config.custodyEnv.ParentOrgID)
	if err != nil {
		logger.Fatal("failed to initialise parent custody client", "error", err)
	}
	delegatedRoot, err := custody.NewClient(config.custodyEnv.APIBaseURL, config.DelegatedCredentials(), config.custodyEnv.ParentOrgID)
	if err != nil {
		logger.Fatal("failed to initialise delegated custody client", "error", err)
	}
	delegatedFactory := func(subOrgID string) (DelegatedScope, error) {
		return custody.NewClient(config.custodyEnv.APIBaseURL, config.DelegatedCredentials(), subOrgID)
	}

	chain := NewChainClient(ChainConfig{
		Network: config.network,
		BaseURL: config.chainEnv.APIBaseURL,
		APIKeys: config.ChainAPIKeys(),
	}, logger)

	notifier := NewNotifier(metrics, logger)
	cacheWorker := NewCacheWorker(parentClient, store, config.custodyEnv.ParentOrgID, config.network, config.serverEnv.CacheSyncInterval, metrics, logger)
	provisioner := NewCustodyProvisioner(parentClient, delegatedFactory, config.ProvisionConfig(), cacheWorker, metrics, logger)
	sequencer := NewNonceSequencer(chain, config.chainEnv.StepDelay, logger)
	pipeline := NewSigningPipeline(config.network, delegatedRoot, chain, config.chainEnv.TrustRecoveryID, metrics, logger)
	orchestrator := NewAutomationOrchestrator(AutomationConfig{
		AMMContract: config.serverEnv.AMMContract,
	}, store, pipeline, sequencer, notifier, metrics, logger)

	server := NewServer(config, provisioner, orchestrator, pipeline, sequencer, store, cacheWorker, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go cacheWorker.Start(ctx)

	metricsListenAddr := config.serverEnv.MetricsAddr
	metricsEndpoint := "/metrics"
	// Set up a separate mux for metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle(metricsEndpoint, promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    metricsListenAddr,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("Prometheus metrics available", "listenAddr", metricsListenAddr, "endpoint", metricsEndpoint)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failure", "error", err)
		}
	}()

	// Start the main HTTP server.
	go func() {
		if err := server.ListenAndServe(ctx); err != nil {
			logger.Fatal("api server failure", "error", err)
		}
	}()

	// Wait for shutdown signal.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}

	logger.Info("shutdown complete")
}

func runCli(logger Logger, name string) {
	switch name {
	case "sync-cache":
		runSyncCacheCli(logger)
	case "export-broadcasts":
		runExportBroadcastsCli(logger)
	default:
		logger.Fatal("Unknown CLI command", "name", name)
	}
}
