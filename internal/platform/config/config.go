package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	pstrings "riskwatch/pkg/platform/strings"
)

// Backend names accepted for VIEWS_BACKEND and EVENTS_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server    Server
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Screening ScreeningConfig
	Auth      AuthConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Format string
	Level  string
}

// DatabaseConfig configures both the database/sql handle used by the event
// store and the pgx pool used by the view store.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxConnLife  time.Duration
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the ingestion consumer and the audit relay.
// An empty broker list disables both.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	AuditTopic    string
	Partitions    int32
	Replication   int16
}

// ScreeningConfig controls the screening cycle.
type ScreeningConfig struct {
	Interval      time.Duration
	CycleTimeout  time.Duration
	Partitions    int
	ViewsBackend  string
	EventsBackend string
	ViewsRetire   time.Duration
}

// AuthConfig configures bearer token validation on the reporting API.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var p parser
	cfg := Config{
		Server: Server{
			Addr:            p.str("RISKWATCH_ADDR", ":8080"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Format: strings.ToLower(p.str("LOG_FORMAT", "json")),
			Level:  strings.ToLower(p.str("LOG_LEVEL", "info")),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: p.integer("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: p.integer("DATABASE_MAX_IDLE_CONNS", 5),
			MaxConnLife:  p.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       pstrings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			ConsumerGroup: p.str("KAFKA_CONSUMER_GROUP", "riskwatch-ingest"),
			AuditTopic:    p.str("KAFKA_AUDIT_TOPIC", "riskwatch.audit"),
			Partitions:    int32(p.integer("KAFKA_TOPIC_PARTITIONS", 1)),
			Replication:   int16(p.integer("KAFKA_TOPIC_REPLICATION", 1)),
		},
		Screening: ScreeningConfig{
			Interval:      p.duration("SCREENING_INTERVAL", 15*time.Minute),
			CycleTimeout:  p.duration("SCREENING_CYCLE_TIMEOUT", 10*time.Minute),
			Partitions:    p.integer("SCREENING_PARTITIONS", runtime.GOMAXPROCS(0)),
			ViewsBackend:  strings.ToLower(p.str("VIEWS_BACKEND", BackendMemory)),
			EventsBackend: strings.ToLower(p.str("EVENTS_BACKEND", BackendMemory)),
			ViewsRetire:   p.duration("VIEWS_RETIRE_AFTER", 5*time.Minute),
		},
		Auth: AuthConfig{
			// Development default; production deployments must override it.
			JWTSigningKey: p.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        p.str("JWT_ISSUER", "riskwatch"),
			Audience:      p.str("JWT_AUDIENCE", "riskwatch-reporting"),
		},
	}
	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the process cannot run with.
func (c Config) Validate() error {
	if c.Screening.Interval <= 0 {
		return fmt.Errorf("SCREENING_INTERVAL must be positive, got %s", c.Screening.Interval)
	}
	if c.Screening.CycleTimeout <= 0 {
		return fmt.Errorf("SCREENING_CYCLE_TIMEOUT must be positive, got %s", c.Screening.CycleTimeout)
	}
	if c.Screening.Partitions <= 0 {
		return fmt.Errorf("SCREENING_PARTITIONS must be positive, got %d", c.Screening.Partitions)
	}
	switch c.Screening.ViewsBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("VIEWS_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("VIEWS_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown VIEWS_BACKEND %q", c.Screening.ViewsBackend)
	}
	switch c.Screening.EventsBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("EVENTS_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.Screening.EventsBackend)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.Log.Format)
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	return nil
}

// KafkaEnabled reports whether brokers are configured.
func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// parser keeps the first malformed variable it sees.
type parser struct {
	err error
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return d
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("parse %s=%q: %w", key, raw, err)
	}
}
