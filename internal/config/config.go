package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

// DefaultFeedURL is the USGS FDSN event query endpoint.
const DefaultFeedURL = "https://earthquake.usgs.gov/fdsnws/event/1/query"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Catalog feed configuration.
	FeedURL             string
	FeedTimeout         time.Duration
	FeedRateInterval    time.Duration
	DefaultStartDate    time.Time
	DefaultMinMagnitude float64

	// Linear-feature dataset for buffer zones.
	RiversPath      string
	BufferCacheSize int

	// Optional sinks.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	ArchivePath  string

	// Tracing.
	TracingEnabled     bool
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampleRatio float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	rateInterval, err := parsePositiveDuration("FEED_RATE_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}

	startDate, err := domain.ParseDate(sharedcfg.EnvOrDefault("DEFAULT_START_DATE", domain.FormatDate(domain.DefaultStartDate)))
	if err != nil {
		return nil, errors.New("invalid DEFAULT_START_DATE")
	}

	minMag, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("DEFAULT_MIN_MAGNITUDE", "4"), 64)
	if err != nil || minMag < 0 {
		return nil, errors.New("invalid DEFAULT_MIN_MAGNITUDE")
	}

	ratio, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("TRACING_SAMPLE_RATIO", "1"), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return nil, errors.New("invalid TRACING_SAMPLE_RATIO")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FeedURL:             sharedcfg.EnvOrDefault("FEED_URL", DefaultFeedURL),
		FeedTimeout:         feedTimeout,
		FeedRateInterval:    rateInterval,
		DefaultStartDate:    startDate,
		DefaultMinMagnitude: minMag,

		RiversPath:      sharedcfg.EnvOrDefault("RIVERS_PATH", "data/nepal_rivers.geojson"),
		BufferCacheSize: parseBufferCacheSize(),

		KafkaEnabled: parseBool("KAFKA_ENABLED"),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "hazard-events"),
		ArchivePath:  os.Getenv("ARCHIVE_PATH"),

		TracingEnabled:     parseBool("TRACING_ENABLED"),
		TracingExporter:    strings.ToLower(sharedcfg.EnvOrDefault("TRACING_EXPORTER", "stdout")),
		OTLPEndpoint:       os.Getenv("OTLP_ENDPOINT"),
		TracingSampleRatio: ratio,
	}

	if cfg.FeedURL == "" {
		return nil, errors.New("FEED_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.TracingExporter != "stdout" && cfg.TracingExporter != "otlp" {
		return nil, errors.New("TRACING_EXPORTER must be stdout or otlp")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func parseBufferCacheSize() int {
	if s := os.Getenv("BUFFER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 16
}
