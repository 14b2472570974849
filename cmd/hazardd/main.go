package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hazard-map-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/hazard-map-service/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-map-service/internal/adapter/maplayer"
	"github.com/couchcryptid/hazard-map-service/internal/adapter/sqlite"
	"github.com/couchcryptid/hazard-map-service/internal/adapter/usgs"
	"github.com/couchcryptid/hazard-map-service/internal/config"
	"github.com/couchcryptid/hazard-map-service/internal/domain"
	"github.com/couchcryptid/hazard-map-service/internal/geo"
	"github.com/couchcryptid/hazard-map-service/internal/layersync"
	"github.com/couchcryptid/hazard-map-service/internal/observability"
	"github.com/couchcryptid/hazard-map-service/internal/pipeline"
	"github.com/couchcryptid/hazard-map-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "hazard-map-service",
		Exporter:    cfg.TracingExporter,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TracingSampleRatio,
	}, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	events := store.New()
	catalog := usgs.NewClient(cfg.FeedURL, cfg.FeedTimeout, cfg.FeedRateInterval, metrics, logger)
	coord := pipeline.New(catalog, events, pipeline.Settings{
		Timeout:            cfg.FeedTimeout,
		LatestStart:        cfg.DefaultStartDate,
		LatestMinMagnitude: cfg.DefaultMinMagnitude,
		Clock:              clock,
	}, logger, metrics)

	board := maplayer.NewBoard(clock)
	eventLayer := maplayer.NewLayer("events", clock)
	bufferLayer := maplayer.NewLayer("buffers", clock)
	riverLayer := maplayer.NewLayer("rivers", clock)

	// Buffers stay unavailable when the dataset cannot be read; events still load.
	var zones layersync.ZoneSource
	if rivers, err := geo.LoadDataset(cfg.RiversPath); err != nil {
		logger.Warn("linear-feature dataset unavailable, buffers disabled", "path", cfg.RiversPath, "error", err)
	} else {
		zones = geo.NewZoneCache(rivers, cfg.BufferCacheSize)
		board.SetDatasetSummary(len(rivers.Features), geo.CountHighRisk(rivers))
		riverLayer.Replace(geo.RiverCollection(rivers))
		logger.Info("linear-feature dataset loaded", "path", cfg.RiversPath, "feature_count", len(rivers.Features))
	}

	filter := domain.DefaultFilter(clock.Now())
	filter.StartDate = cfg.DefaultStartDate
	filter.MinMagnitude = cfg.DefaultMinMagnitude
	ctrl := layersync.New(events, eventLayer, bufferLayer, board, zones, filter, clock, logger, metrics)
	coord.AddListener(ctrl)

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		coord.AddSink(writer)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	var archive *sqlite.Archive
	if cfg.ArchivePath != "" {
		archive, err = sqlite.Open(cfg.ArchivePath)
		if err != nil {
			logger.Error("failed to open archive", "path", cfg.ArchivePath, "error", err)
			os.Exit(1)
		}
		coord.AddSink(archive)
		logger.Info("sqlite archive enabled", "path", cfg.ArchivePath)
	}

	api := httpadapter.NewAPI(coord, ctrl, eventLayer, bufferLayer, riverLayer, board, events, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, coord, api, metrics, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Initial load of the real-time preset. A failure only flags the board.
	g.Go(func() error {
		if _, err := coord.FetchLatest(gctx); err != nil {
			logger.Warn("initial fetch failed", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if writer != nil {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		if archive != nil {
			if err := archive.Close(); err != nil {
				logger.Error("archive close error", "error", err)
			}
		}
		observability.ShutdownTracing(shutdownCtx, shutdownTracing, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
