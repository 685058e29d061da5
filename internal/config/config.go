package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Upstream data sources.
	ANABaseURL   string
	ANATimeout   time.Duration
	ANACacheSize int

	INMETBaseURL string
	INMETTimeout time.Duration

	MergeBaseURL string
	MergeWorkers int

	// CatalogFile is an optional basin catalog (YAML). Empty disables basin
	// lookups.
	CatalogFile string

	// RainOutlierLimit is the daily rainfall depth (mm) above which a
	// reading is discarded as an outlier.
	RainOutlierLimit float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	anaTimeout, err := parseDuration("ANA_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	inmetTimeout, err := parseDuration("INMET_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	anaCacheSize, err := parsePositiveInt("ANA_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	mergeWorkers, err := parsePositiveInt("MERGE_WORKERS", 20)
	if err != nil {
		return nil, err
	}
	outlierLimit, err := parseOutlierLimit()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "hydro-analysis-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "hydro-analysis-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "hydro-data-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		ANABaseURL:   sharedcfg.EnvOrDefault("ANA_BASE_URL", "http://telemetriaws1.ana.gov.br/ServiceANA.asmx"),
		ANATimeout:   anaTimeout,
		ANACacheSize: anaCacheSize,

		INMETBaseURL: sharedcfg.EnvOrDefault("INMET_BASE_URL", "https://apitempo.inmet.gov.br"),
		INMETTimeout: inmetTimeout,

		MergeBaseURL: sharedcfg.EnvOrDefault("MERGE_BASE_URL", "http://ftp.cptec.inpe.br/modelos/tempo/MERGE/GPM"),
		MergeWorkers: mergeWorkers,

		CatalogFile:      os.Getenv("CATALOG_FILE"),
		RainOutlierLimit: outlierLimit,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseOutlierLimit() (float64, error) {
	s := os.Getenv("RAIN_OUTLIER_LIMIT")
	if s == "" {
		return 400, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid RAIN_OUTLIER_LIMIT: must be a positive number")
	}
	return v, nil
}
