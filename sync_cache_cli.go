package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghost-labs/tradenode/pkg/custody"
)

// runSyncCacheCli runs one full cache reconciliation sweep and exits.
// Example: tradenode sync-cache
func runSyncCacheCli(logger Logger) {
	logger = logger.NewSystem("sync-cache")

	config, err := LoadConfig(logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	db, err := ConnectToDB(config.dbConf)
	if err != nil {
		logger.Fatal("Failed to setup database", "error", err)
	}

	parentClient, err := custody.NewClient(config.custodyEnv.APIBaseURL, config.ParentCredentials(), config.custodyEnv.ParentOrgID)
	if err != nil {
		logger.Fatal("Failed to initialise custody client", "error", err)
	}

	worker := NewCacheWorker(parentClient, NewStore(db), config.custodyEnv.ParentOrgID, config.network, config.serverEnv.CacheSyncInterval, nil, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	worker.syncOnce(ctx)
	logger.Info("cache sync finished")
}
