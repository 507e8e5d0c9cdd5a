// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	BusNone  = "none"
	BusKafka = "kafka"
	BusNATS  = "nats"
)

type Config struct {
	HTTPAddr string

	MetadataDriver string
	DatabaseURL    string
	SQLitePath     string

	UploadDir       string
	StaticURLPrefix string
	MaxUploadBytes  int64

	ThumbWidth    int
	ThumbHeight   int
	ThumbQuality  int
	FrameAt       time.Duration
	DecodeTimeout time.Duration
	DecodeWorkers int
	FFmpegPath    string
	FFprobePath   string

	ReconcileInterval time.Duration
	OrphanGrace       time.Duration
	ReconcileBatch    int

	EventBus       string
	KafkaBrokers   []string
	KafkaTopic     string
	NATSURL        string
	NATSSubject    string
	OutboxInterval time.Duration
	OutboxBatch    int

	UploadRateLimit int // requests per minute per client IP, 0 disables

	LogLevel string

	OTelExporter string
	OTelEndpoint string
	OTelSampling float64
}

// Load reads .env (if present) and the environment. Variables already set in
// the environment win over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8081"),
		MetadataDriver: strings.ToLower(getenv("METADATA_DRIVER", DriverPostgres)),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		SQLitePath:     getenv("SQLITE_PATH", "data/videos.db"),

		UploadDir:       getenv("UPLOAD_DIR", "static/uploads"),
		StaticURLPrefix: getenv("STATIC_URL_PREFIX", "/static/uploads"),
		MaxUploadBytes:  p.int64("MAX_UPLOAD_BYTES", 100<<20),

		ThumbWidth:    p.int("THUMB_WIDTH", 640),
		ThumbHeight:   p.int("THUMB_HEIGHT", 360),
		ThumbQuality:  p.int("THUMB_QUALITY", 85),
		FrameAt:       p.duration("FRAME_AT", time.Second),
		DecodeTimeout: p.duration("DECODE_TIMEOUT", 15*time.Second),
		DecodeWorkers: p.int("DECODE_WORKERS", 2),
		FFmpegPath:    getenv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:   getenv("FFPROBE_PATH", "ffprobe"),

		ReconcileInterval: p.duration("RECONCILE_INTERVAL", time.Minute),
		OrphanGrace:       p.duration("ORPHAN_GRACE", 10*time.Minute),
		ReconcileBatch:    p.int("RECONCILE_BATCH", 100),

		EventBus:       strings.ToLower(getenv("EVENT_BUS", BusNone)),
		KafkaBrokers:   splitList(getenv("KAFKA_BROKERS", "")),
		KafkaTopic:     getenv("KAFKA_TOPIC", "video-events"),
		NATSURL:        getenv("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubject:    getenv("NATS_SUBJECT", "video.events"),
		OutboxInterval: p.duration("OUTBOX_INTERVAL", 2*time.Second),
		OutboxBatch:    p.int("OUTBOX_BATCH", 50),

		UploadRateLimit: p.int("UPLOAD_RATE_LIMIT", 30),

		LogLevel: getenv("LOG_LEVEL", "info"),

		OTelExporter: strings.ToLower(getenv("OTEL_EXPORTER", "none")),
		OTelEndpoint: getenv("OTEL_ENDPOINT", ""),
		OTelSampling: p.float("OTEL_SAMPLING", 1.0),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.MetadataDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("METADATA_DRIVER %q is not one of postgres, sqlite, memory", c.MetadataDriver))
	}

	switch c.EventBus {
	case BusNone:
	case BusKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka event bus"))
		}
	case BusNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required for the nats event bus"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVENT_BUS %q is not one of none, kafka, nats", c.EventBus))
	}

	switch c.OTelExporter {
	case "none", "":
	case "http", "grpc":
		if c.OTelEndpoint == "" {
			errs = append(errs, errors.New("OTEL_ENDPOINT is required when OTEL_EXPORTER is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("OTEL_EXPORTER %q is not one of none, http, grpc", c.OTelExporter))
	}

	if c.UploadDir == "" {
		errs = append(errs, errors.New("UPLOAD_DIR must not be empty"))
	}
	if !strings.HasPrefix(c.StaticURLPrefix, "/") {
		errs = append(errs, fmt.Errorf("STATIC_URL_PREFIX %q must start with /", c.StaticURLPrefix))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.ThumbWidth <= 0 || c.ThumbHeight <= 0 {
		errs = append(errs, errors.New("THUMB_WIDTH and THUMB_HEIGHT must be positive"))
	}
	if c.ThumbQuality < 1 || c.ThumbQuality > 100 {
		errs = append(errs, errors.New("THUMB_QUALITY must be within 1..100"))
	}
	if c.DecodeWorkers <= 0 {
		errs = append(errs, errors.New("DECODE_WORKERS must be positive"))
	}
	if c.DecodeTimeout <= 0 || c.FrameAt <= 0 {
		errs = append(errs, errors.New("DECODE_TIMEOUT and FRAME_AT must be positive"))
	}
	if c.ReconcileInterval <= 0 || c.OrphanGrace <= 0 || c.ReconcileBatch <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL, ORPHAN_GRACE and RECONCILE_BATCH must be positive"))
	}
	if c.OutboxInterval <= 0 || c.OutboxBatch <= 0 {
		errs = append(errs, errors.New("OUTBOX_INTERVAL and OUTBOX_BATCH must be positive"))
	}
	if c.UploadRateLimit < 0 {
		errs = append(errs, errors.New("UPLOAD_RATE_LIMIT cannot be negative"))
	}

	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects parse errors so Load reports every bad variable at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) int64(key string, def int64) int64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
