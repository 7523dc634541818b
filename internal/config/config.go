package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned by RequireAPIKey when EIA_API_KEY is unset.
var ErrMissingAPIKey = errors.New("EIA_API_KEY not found - check your .env file")

// Config holds all settings, populated from environment variables.
type Config struct {
	EIAAPIKey    string
	EIAAPIURL    string
	EIARateLimit float64 // requests per second

	RawDataDir     string
	OutputDir      string
	HTTPTimeout    time.Duration
	ArchiveTimeout time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	MetricsTextfile string

	// Optional mirrors for published documents. Empty disables them.
	KafkaBrokers []string
	KafkaTopic   string

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3Prefix    string
}

// Load reads .env (when present) and then the process environment,
// applying defaults where unset.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	archiveTimeout, err := parseDuration("ARCHIVE_TIMEOUT", "300s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(envOrDefault("EIA_RATE_LIMIT", "5"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid EIA_RATE_LIMIT")
	}

	useSSL, err := strconv.ParseBool(envOrDefault("S3_USE_SSL", "true"))
	if err != nil {
		return nil, errors.New("invalid S3_USE_SSL")
	}

	cfg := &Config{
		EIAAPIKey:       os.Getenv("EIA_API_KEY"),
		EIAAPIURL:       strings.TrimRight(envOrDefault("EIA_API_URL", "https://api.eia.gov/v2"), "/"),
		EIARateLimit:    rateLimit,
		RawDataDir:      envOrDefault("RAW_DATA_DIR", "raw_data"),
		OutputDir:       envOrDefault("OUTPUT_DIR", "public/data"),
		HTTPTimeout:     httpTimeout,
		ArchiveTimeout:  archiveTimeout,
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      envOrDefault("KAFKA_TOPIC", "grid-reliability-datasets"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:        useSSL,
		S3Prefix:        strings.Trim(os.Getenv("S3_PREFIX"), "/"),
	}

	if _, err := url.ParseRequestURI(cfg.EIAAPIURL); err != nil {
		return nil, fmt.Errorf("invalid EIA_API_URL: %w", err)
	}
	if cfg.RawDataDir == "" {
		return nil, errors.New("RAW_DATA_DIR is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.S3Endpoint != "" && cfg.S3Bucket == "" {
		return nil, errors.New("S3_BUCKET is required when S3_ENDPOINT is set")
	}

	return cfg, nil
}

// RequireAPIKey fails when the EIA API key is missing. Only the commands
// that call the EIA API need it.
func (c *Config) RequireAPIKey() error {
	if c.EIAAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// KafkaEnabled reports whether documents are mirrored to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// S3Enabled reports whether documents are mirrored to object storage.
func (c *Config) S3Enabled() bool { return c.S3Endpoint != "" }

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
