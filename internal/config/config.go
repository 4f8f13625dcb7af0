package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputPath    string
	OutputDir    string
	StationsFile string
	SummaryFile  string

	// Flume geometry and jump bounds. Width, offset and bounds are specific
	// to each experiment and must be set explicitly.
	Flume  domain.Flume
	Bounds domain.JumpBounds

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Schedule        string
	MetricsTextfile string
	ResultCacheSize int

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	SQLitePath string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	flume, err := loadFlume()
	if err != nil {
		return nil, err
	}

	bounds, err := loadBounds()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("RESULT_CACHE_SIZE", 128)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid KAFKA_ENABLED")
		}
	}

	cfg := &Config{
		InputPath:    sharedcfg.EnvOrDefault("INPUT_PATH", "base.txt"),
		OutputDir:    sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),
		StationsFile: sharedcfg.EnvOrDefault("STATIONS_FILE", "df.output.csv"),
		SummaryFile:  sharedcfg.EnvOrDefault("SUMMARY_FILE", "df.output.02.csv"),

		Flume:  flume,
		Bounds: bounds,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Schedule:        strings.TrimSpace(os.Getenv("ETL_SCHEDULE")),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
		ResultCacheSize: cacheSize,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "flume-jump-results"),

		SQLitePath: os.Getenv("SQLITE_PATH"),
	}

	if cfg.StationsFile == cfg.SummaryFile {
		return nil, errors.New("STATIONS_FILE and SUMMARY_FILE must differ")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

func loadFlume() (domain.Flume, error) {
	width, err := requireFloat("FLUME_WIDTH_M")
	if err != nil {
		return domain.Flume{}, err
	}
	offset, err := requireFloat("REFERENCE_OFFSET_M")
	if err != nil {
		return domain.Flume{}, err
	}

	f := domain.NewFlume(width, offset)
	if f.Gravity, err = optionalFloat("GRAVITY_MS2", domain.DefaultGravity); err != nil {
		return domain.Flume{}, err
	}
	if f.FlowDivisor, err = optionalFloat("FLOW_UNIT_DIVISOR", domain.DefaultFlowDivisor); err != nil {
		return domain.Flume{}, err
	}
	if f.Viscosity, err = optionalFloat("KINEMATIC_VISCOSITY_M2S", domain.DefaultViscosity); err != nil {
		return domain.Flume{}, err
	}

	if err := f.Validate(); err != nil {
		return domain.Flume{}, fmt.Errorf("invalid flume configuration: %w", err)
	}
	return f, nil
}

func loadBounds() (domain.JumpBounds, error) {
	up, err := requireInt("JUMP_UPSTREAM_SEQ")
	if err != nil {
		return domain.JumpBounds{}, err
	}
	down, err := requireInt("JUMP_DOWNSTREAM_SEQ")
	if err != nil {
		return domain.JumpBounds{}, err
	}
	if up < 1 || down < 1 {
		return domain.JumpBounds{}, errors.New("JUMP_UPSTREAM_SEQ and JUMP_DOWNSTREAM_SEQ are 1-based station sequence numbers")
	}
	if up >= down {
		return domain.JumpBounds{}, errors.New("JUMP_UPSTREAM_SEQ must be less than JUMP_DOWNSTREAM_SEQ")
	}
	return domain.JumpBounds{Upstream: up, Downstream: down}, nil
}

func requireFloat(key string) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func optionalFloat(key string, def float64) (float64, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return def, nil
	}
	return requireFloat(key)
}

func requireInt(key string) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
