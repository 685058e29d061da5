package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/ana"
	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpclient"
	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/inmet"
	kafkaadapter "github.com/couchcryptid/hydro-data-etl-service/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-data-etl-service/internal/catalog"
	"github.com/couchcryptid/hydro-data-etl-service/internal/config"
	"github.com/couchcryptid/hydro-data-etl-service/internal/domain"
	"github.com/couchcryptid/hydro-data-etl-service/internal/observability"
	"github.com/couchcryptid/hydro-data-etl-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	sources, err := buildSources(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to initialise data sources", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewAnalysisTransformer(sources, cfg.RainOutlierLimit, logger, metrics)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, prometheus.DefaultGatherer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// buildSources wires the ANA and INMET clients and the optional basin
// catalog.
func buildSources(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (pipeline.Sources, error) {
	anaClient := ana.NewCachedClient(
		ana.NewClient(cfg.ANABaseURL,
			httpclient.WithTimeout(cfg.ANATimeout),
			httpclient.WithLogger(logger),
			httpclient.WithMetrics(metrics),
		),
		cfg.ANACacheSize,
		metrics,
	)
	inmetClient := inmet.NewClient(cfg.INMETBaseURL,
		httpclient.WithTimeout(cfg.INMETTimeout),
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(metrics),
	)
	logger.Info("data sources configured",
		"ana_url", cfg.ANABaseURL,
		"ana_cache_size", cfg.ANACacheSize,
		"inmet_url", cfg.INMETBaseURL,
	)

	sources := pipeline.Sources{
		StageDischarge: anaClient,
		Rainfall: map[string]domain.RainfallSource{
			domain.RainSourceANA:   anaClient,
			domain.RainSourceINMET: inmetClient,
		},
	}

	if cfg.CatalogFile == "" {
		logger.Info("basin catalog disabled")
		return sources, nil
	}
	basins, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return pipeline.Sources{}, err
	}
	sources.Basins = basins
	logger.Info("basin catalog loaded", "file", cfg.CatalogFile, "basins", basins.Len())
	return sources, nil
}
