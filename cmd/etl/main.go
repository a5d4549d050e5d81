// Command etl enriches one run's worth of FAA UAS sighting chunks: it reads
// the split chunk CSVs for a run date, derives the enrichment columns from
// each narrative, assigns airports, and writes Enriched_ CSVs alongside an
// optional Kafka feed.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aerowatch/uas-sighting-etl/internal/adapter/csvfile"
	"github.com/aerowatch/uas-sighting-etl/internal/adapter/geocache"
	"github.com/aerowatch/uas-sighting-etl/internal/adapter/httpserver"
	kafkaadapter "github.com/aerowatch/uas-sighting-etl/internal/adapter/kafka"
	"github.com/aerowatch/uas-sighting-etl/internal/adapter/nominatim"
	"github.com/aerowatch/uas-sighting-etl/internal/airports"
	"github.com/aerowatch/uas-sighting-etl/internal/config"
	"github.com/aerowatch/uas-sighting-etl/internal/domain"
	"github.com/aerowatch/uas-sighting-etl/internal/enrich"
	"github.com/aerowatch/uas-sighting-etl/internal/observability"
	"github.com/aerowatch/uas-sighting-etl/internal/pipeline"
	"github.com/aerowatch/uas-sighting-etl/internal/resolver"
)

func main() {
	runDate := flag.String("run-date", time.Now().Format("2006-01-02"), "run date folder under Split_Chunks")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	lib, err := domain.LoadPatternLibrary()
	if err != nil {
		logger.Error("failed to load pattern library", "error", err)
		os.Exit(1)
	}
	extractor := domain.NewExtractor(lib, cfg.MaxNarrativeLen, cfg.MatchTimeout, logger)
	extractor.OnTimeout = metrics.MatchTimeouts.Inc

	directory, err := airports.Load()
	if err != nil {
		logger.Error("failed to load airport directory", "error", err)
		os.Exit(1)
	}

	cache := geocache.Load(cfg.CachePath(), logger, metrics)

	// Geocoding is feature-flagged via GEOCODE_ENABLED; without it the
	// fallback tier serves cached locations only.
	var geocoder domain.Geocoder
	if cfg.GeocodeEnabled {
		geocoder = nominatim.NewClient(cfg, logger, metrics)
		logger.Info("geocoding enabled", "base_url", cfg.GeocodeBaseURL, "min_interval", cfg.GeocodeMinInterval)
	} else {
		logger.Info("geocoding disabled")
	}

	res := resolver.New(extractor, directory, cache, geocoder, cfg.Bounds, logger, metrics)
	enricher := enrich.New(extractor, res, logger, metrics)

	source, err := csvfile.NewSource(cfg.SplitDir(*runDate), cfg.ProcessedDir(*runDate), logger)
	if err != nil {
		logger.Error("failed to open chunk source", "error", err, "run_date", *runDate)
		os.Exit(1)
	}
	sink, err := csvfile.NewSink(cfg.ProcessedDir(*runDate), logger)
	if err != nil {
		logger.Error("failed to open enriched sink", "error", err)
		os.Exit(1)
	}

	loader := pipeline.MultiLoader{sink}
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		loader = append(loader, kafkaWriter)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(source, enricher, loader, logger, metrics, cfg.BatchSize)

	srv := httpserver.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// The pipeline runs in the foreground: this is a batch job that exits
	// once every chunk for the run date is enriched.
	if err := p.Run(ctx); err != nil {
		logger.Error("pipeline error", "error", err)
	}

	if err := cache.Save(); err != nil {
		logger.Error("geocode cache save error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("run complete", "run_date", *runDate)
}
