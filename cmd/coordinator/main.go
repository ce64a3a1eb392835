package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yashmane1300/two-phase-commit/config"
	"github.com/yashmane1300/two-phase-commit/controller"
	"github.com/yashmane1300/two-phase-commit/internal/telemetry"
	"github.com/yashmane1300/two-phase-commit/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("reading config")
	cfg, err := config.NewCoordinatorConfig()
	if err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("initializing coordinator service")
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewCoordinatorMetrics(registry)
	coordinator := service.NewTPCCoordinator(cfg.CallTimeout, cfg.TxnTimeout, logger, metrics)

	for id, address := range cfg.Participants {
		coordinator.RegisterParticipant(id, address)
	}

	server := controller.NewCoordinatorServer(coordinator, registry, logger)

	addr := ":" + cfg.Port
	logger.Info("starting coordinator server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, server.Routes()); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
