package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	eventstore "riskwatch/internal/eventstore/store"
	"riskwatch/internal/ingest"
	"riskwatch/internal/platform/config"
	"riskwatch/internal/platform/httpserver"
	"riskwatch/internal/platform/kafka"
	"riskwatch/internal/platform/postgres"
	redisclient "riskwatch/internal/platform/redis"
	"riskwatch/internal/screening"
	"riskwatch/internal/views/handler"
	viewstore "riskwatch/internal/views/store"
	audit "riskwatch/pkg/platform/audit"
	auditmemory "riskwatch/pkg/platform/audit/store/memory"
	auditpostgres "riskwatch/pkg/platform/audit/store/postgres"
)

// infra holds the connections opened for the configured backends. Unused
// backends stay nil.
type infra struct {
	cfg    config.Config
	logger *slog.Logger

	db    *sql.DB
	pool  *pgxpool.Pool
	redis *redis.Client
	kafka *kafkaClients
}

type kafkaClients struct {
	consumer *kgo.Client
	producer *kgo.Client
}

func openInfra(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *infra, err error) {
	in := &infra{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			in.Close()
		}
	}()

	if cfg.Database.URL != "" {
		if in.db, err = postgres.OpenDB(ctx, cfg.Database); err != nil {
			return nil, err
		}
	}
	if cfg.Screening.ViewsBackend == config.BackendPostgres {
		if in.pool, err = postgres.OpenPool(ctx, cfg.Database); err != nil {
			return nil, err
		}
	}
	if cfg.Screening.ViewsBackend == config.BackendRedis {
		if in.redis, err = redisclient.Open(ctx, cfg.Redis); err != nil {
			return nil, err
		}
	}
	if cfg.KafkaEnabled() {
		if in.kafka, err = openKafka(ctx, cfg.Kafka, logger); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func openKafka(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (*kafkaClients, error) {
	producer, err := kafka.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := kafka.EnsureTopics(ctx, producer, cfg, logger, append(ingest.FactTopics(), cfg.AuditTopic)...); err != nil {
		producer.Close()
		return nil, err
	}
	single := cfg
	single.Partitions = 1
	if err := kafka.EnsureTopics(ctx, producer, single, logger, ingest.WatchlistTopics()...); err != nil {
		producer.Close()
		return nil, err
	}

	consumer, err := kafka.NewClient(cfg,
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(ingest.Topics()...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		producer.Close()
		return nil, err
	}
	return &kafkaClients{consumer: consumer, producer: producer}, nil
}

func (in *infra) Close() {
	if in.kafka != nil {
		in.kafka.consumer.Close()
		in.kafka.producer.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.pool != nil {
		in.pool.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}

func (in *infra) healthChecks() map[string]httpserver.HealthCheck {
	checks := map[string]httpserver.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.pool != nil {
		checks["postgres_views"] = in.pool.Ping
	}
	if in.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return in.redis.Ping(ctx).Err() }
	}
	if in.kafka != nil {
		checks["kafka"] = in.kafka.producer.Ping
	}
	return checks
}

// buildAuditStore uses the Postgres outbox when a database is configured
// and keeps events in memory otherwise. The outbox is returned separately
// so the relay can drain it.
func buildAuditStore(ctx context.Context, in *infra) (audit.Store, *auditpostgres.Store, error) {
	if in.db == nil {
		in.logger.Warn("DATABASE_URL not set; compliance audit events are kept in memory")
		return auditmemory.NewInMemoryStore(), nil, nil
	}
	outbox := auditpostgres.New(in.db)
	if err := outbox.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	return outbox, outbox, nil
}

type eventStore interface {
	screening.EventSource
	ingest.Store
}

func buildEventStore(ctx context.Context, cfg config.Config, in *infra) (eventStore, error) {
	switch cfg.Screening.EventsBackend {
	case config.BackendMemory:
		return eventstore.NewInMemoryStore(), nil
	case config.BackendPostgres:
		s := eventstore.NewPostgresStore(in.db)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported events backend %q", cfg.Screening.EventsBackend)
	}
}

type viewStore interface {
	screening.ViewPublisher
	handler.Reader
}

func buildViewStore(ctx context.Context, cfg config.Config, in *infra) (viewStore, error) {
	switch cfg.Screening.ViewsBackend {
	case config.BackendMemory:
		return viewstore.NewInMemoryStore(), nil
	case config.BackendPostgres:
		s := viewstore.NewPostgresStore(in.pool)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		return viewstore.NewRedisStore(in.redis, viewstore.WithRetireAfter(cfg.Screening.ViewsRetire)), nil
	default:
		return nil, errors.New("unsupported views backend " + cfg.Screening.ViewsBackend)
	}
}
