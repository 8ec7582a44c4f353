package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"riskwatch/internal/ingest"
	ingestmetrics "riskwatch/internal/ingest/metrics"
	jwttoken "riskwatch/internal/jwt_token"
	"riskwatch/internal/platform/config"
	"riskwatch/internal/platform/httpserver"
	"riskwatch/internal/platform/logger"
	"riskwatch/internal/platform/metrics"
	"riskwatch/internal/scheduler"
	"riskwatch/internal/screening"
	screeningmetrics "riskwatch/internal/screening/metrics"
	"riskwatch/internal/views/handler"
	"riskwatch/pkg/platform/audit/publishers/compliance"
	"riskwatch/pkg/platform/audit/worker"
)

// main wires high-level dependencies and owns the process lifecycle.
// Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("riskwatch stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("riskwatch stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	deps, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	auditStore, outbox, err := buildAuditStore(ctx, deps)
	if err != nil {
		return err
	}
	events, err := buildEventStore(ctx, cfg, deps)
	if err != nil {
		return err
	}
	views, err := buildViewStore(ctx, cfg, deps)
	if err != nil {
		return err
	}

	auditor := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(prometheus.DefaultRegisterer)),
	)
	engine := screening.New(events, views,
		screening.WithLogger(log),
		screening.WithMetrics(screeningmetrics.New()),
		screening.WithPartitions(cfg.Screening.Partitions),
		screening.WithAuditor(auditor),
	)
	runner := scheduler.New(engine, cfg.Screening.Interval,
		scheduler.WithLogger(log),
		scheduler.WithTimeout(cfg.Screening.CycleTimeout),
	)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:    log,
		Metrics:   metrics.New(),
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Scope:     jwttoken.ScopeRiskRead,
		Checks:    deps.healthChecks(),
		Protected: []httpserver.Routes{handler.New(views, log)},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCanceled(runner.Run(ctx)) })

	if deps.kafka != nil {
		consumer := ingest.New(deps.kafka.consumer, events,
			ingest.WithLogger(log),
			ingest.WithMetrics(ingestmetrics.New()),
			ingest.WithAuditStore(auditStore),
		)
		g.Go(func() error { return ignoreCanceled(consumer.Run(ctx)) })

		if outbox != nil {
			relay := worker.NewRelay(outbox, deps.kafka.producer, cfg.Kafka.AuditTopic, worker.WithLogger(log))
			g.Go(func() error { return ignoreCanceled(relay.Run(ctx)) })
		}
	} else {
		log.Warn("KAFKA_BROKERS not set; ingestion feed and audit relay disabled")
	}

	g.Go(func() error {
		log.Info("starting riskwatch", "addr", cfg.Server.Addr,
			"views_backend", cfg.Screening.ViewsBackend, "events_backend", cfg.Screening.EventsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
