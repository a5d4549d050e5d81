package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Bounds is the geographic rectangle accepted coordinates must fall in.
// The defaults cover the contiguous United States.
type Bounds struct {
	LonMin float64
	LonMax float64
	LatMin float64
	LatMax float64
}

// Contains reports whether the coordinate lies inside the rectangle.
func (b Bounds) Contains(lon, lat float64) bool {
	return lon >= b.LonMin && lon <= b.LonMax && lat >= b.LatMin && lat <= b.LatMax
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataPath        string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Pipeline batching.
	BatchSize int

	// Narrative extraction limits.
	MaxNarrativeLen int
	MatchTimeout    time.Duration

	// Coordinate validation.
	Bounds Bounds

	// Geocoding configuration.
	GeocodeEnabled     bool
	GeocodeBaseURL     string
	GeocodeUserAgent   string
	GeocodeTimeout     time.Duration
	GeocodeMaxAttempts int
	GeocodeRetryBase   time.Duration
	GeocodeMinInterval time.Duration

	// Optional Kafka sink for enriched records.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	dataPath := envOrDefault("UAS_DATA_PATH", defaultDataPath())

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	matchTimeout, err := parseDuration("MATCH_TIMEOUT", "2s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	retryBase, err := parseDuration("GEOCODE_RETRY_BASE", "30s")
	if err != nil {
		return nil, err
	}
	minInterval, err := parseDuration("GEOCODE_MIN_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}

	maxNarrative, err := parseInt("MAX_NARRATIVE_LENGTH", 50000)
	if err != nil {
		return nil, err
	}
	batchSize, err := parseInt("BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := parseInt("GEOCODE_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}

	bounds, err := parseBounds()
	if err != nil {
		return nil, err
	}

	geocodeEnabled := true
	if v := os.Getenv("GEOCODE_ENABLED"); v != "" {
		geocodeEnabled = v == "true"
	}

	kafkaBrokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		DataPath:        dataPath,
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BatchSize: batchSize,

		MaxNarrativeLen: maxNarrative,
		MatchTimeout:    matchTimeout,
		Bounds:          bounds,

		GeocodeEnabled:     geocodeEnabled,
		GeocodeBaseURL:     envOrDefault("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeUserAgent:   envOrDefault("GEOCODE_USER_AGENT", "uas-sighting-etl/1.0"),
		GeocodeTimeout:     geocodeTimeout,
		GeocodeMaxAttempts: maxAttempts,
		GeocodeRetryBase:   retryBase,
		GeocodeMinInterval: minInterval,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   kafkaBrokers,
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "enriched-uas-sightings"),
	}

	if cfg.DataPath == "" {
		return nil, errors.New("UAS_DATA_PATH is required")
	}
	if cfg.MaxNarrativeLen <= 0 {
		return nil, errors.New("MAX_NARRATIVE_LENGTH must be positive")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("BATCH_SIZE must be positive")
	}
	if cfg.GeocodeMaxAttempts < 1 {
		return nil, errors.New("GEOCODE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Bounds.LonMin >= cfg.Bounds.LonMax || cfg.Bounds.LatMin >= cfg.Bounds.LatMax {
		return nil, errors.New("bounding box is empty")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

// SplitDir is where the upstream splitter drops chunk CSVs for a run date.
func (c *Config) SplitDir(runDate string) string {
	return filepath.Join(c.DataPath, "Split_Chunks", runDate)
}

// ProcessedDir is where enriched chunk CSVs are written for a run date.
func (c *Config) ProcessedDir(runDate string) string {
	return filepath.Join(c.DataPath, "Processed_Files", runDate)
}

// ProcessedRoot is the parent of all dated processed folders.
func (c *Config) ProcessedRoot() string {
	return filepath.Join(c.DataPath, "Processed_Files")
}

// YearlyDir holds the consolidated yearly master datasets.
func (c *Config) YearlyDir() string {
	return filepath.Join(c.DataPath, "Yearly_Masters")
}

// CachePath is the geocoding cache document.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataPath, "geocoding_cache.json")
}

func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "FAA_UAS_Sightings"
	}
	return filepath.Join(home, "FAA_UAS_Sightings")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func parseBounds() (Bounds, error) {
	lonMin, err := parseFloat("BBOX_LON_MIN", -125)
	if err != nil {
		return Bounds{}, err
	}
	lonMax, err := parseFloat("BBOX_LON_MAX", -65)
	if err != nil {
		return Bounds{}, err
	}
	latMin, err := parseFloat("BBOX_LAT_MIN", 25)
	if err != nil {
		return Bounds{}, err
	}
	latMax, err := parseFloat("BBOX_LAT_MAX", 50)
	if err != nil {
		return Bounds{}, err
	}
	return Bounds{LonMin: lonMin, LonMax: lonMax, LatMin: latMin, LatMax: latMax}, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
