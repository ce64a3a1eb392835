package main

import (
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yashmane1300/two-phase-commit/config"
	"github.com/yashmane1300/two-phase-commit/controller"
	"github.com/yashmane1300/two-phase-commit/internal/telemetry"
	"github.com/yashmane1300/two-phase-commit/repository/database"
	"github.com/yashmane1300/two-phase-commit/repository/locks"
	"github.com/yashmane1300/two-phase-commit/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("reading config")
	cfg := config.NewParticipantConfig()

	logger.Info("initializing resource store")
	var store database.Store
	if cfg.DataDir != "" {
		boltStore, err := database.NewBoltStore(filepath.Join(cfg.DataDir, "participant_"+cfg.ID+".db"))
		if err != nil {
			logger.Fatal("could not open durable store", zap.Error(err))
		}
		store = boltStore
	} else {
		store = database.NewMemoryStore()
	}
	defer store.Close()

	logger.Info("initializing participant service", zap.String("participant_id", cfg.ID))
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewParticipantMetrics(registry)
	lockTable := locks.NewTable(cfg.LockTimeout)
	participant := service.NewTPCParticipant(cfg.ID, store, lockTable, logger, metrics)

	server := controller.NewParticipantServer(participant, registry, logger)

	addr := ":" + cfg.Port
	logger.Info("starting participant server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, server.Routes()); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
