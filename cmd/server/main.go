package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"custodian/pkg/platform/privacy"

	"custodian/internal/abuse"
	abusehandler "custodian/internal/abuse/handler"
	"custodian/internal/audit"
	audithandler "custodian/internal/audit/handler"
	"custodian/internal/jobs"
	"custodian/internal/platform/config"
	"custodian/internal/platform/geoip"
	"custodian/internal/platform/httpserver"
	"custodian/internal/platform/kafka"
	"custodian/internal/platform/logger"
	"custodian/internal/platform/metrics"
	platformredis "custodian/internal/platform/redis"
	"custodian/internal/retention/backfill"
	retentionhandler "custodian/internal/retention/handler"
	"custodian/internal/retention/orchestrator"
	"custodian/internal/retention/policy"
	"custodian/internal/retention/rowstore"
	policiesstore "custodian/internal/retention/store/policies"
	runsstore "custodian/internal/retention/store/runs"
	"custodian/internal/scheduler"
	"custodian/internal/tenant"
	httptransport "custodian/internal/transport/http"
)

// main wires dependencies and keeps the process lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	hasher, err := privacy.NewHasher([]byte(cfg.ProcessSecret))
	if err != nil {
		return err
	}

	geo, err := geoip.Open(cfg.GeoIPPath)
	if err != nil {
		// Annotation only; the engine runs without it.
		log.Warn("geoip database unavailable", "path", cfg.GeoIPPath, "error", err)
	}
	defer geo.Close()

	// Store selection: Postgres when configured, in-memory otherwise.
	var (
		tenantStore tenant.Store
		policyStore policy.PolicyStore
		runStore    orchestrator.RunStore
		rowStore    rowstore.Store
		jobStore    jobs.Store
		eventSource backfill.EventSource
		auditStore  audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			return err
		}
		tenantStore = tenant.NewPostgres(db)
		policyStore = policiesstore.NewPostgres(db)
		runStore = runsstore.NewPostgres(db)
		rowStore = rowstore.NewPostgres(db)
		jobStore = jobs.NewPostgres(db)
		eventSource = backfill.NewPostgresEventSource(db)
		auditStore = audit.NewPostgresStore(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		tenantStore = tenant.NewInMemoryStore()
		policyStore = policiesstore.NewInMemoryStore()
		runStore = runsstore.NewInMemoryStore()
		rowStore = rowstore.NewInMemoryStore()
		jobStore = jobs.NewInMemoryStore()
		eventSource = backfill.NewInMemoryEventSource()
		auditStore = audit.NewInMemoryStore()
	}

	var abuseStore abuse.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		abuseStore = abuse.NewRedisStore(redisClient.Client)
	} else {
		log.Warn("no redis configured, abuse state is process-local")
		abuseStore = abuse.NewInMemoryStore()
	}

	kafkaProducer, err := kafka.New(cfg.Kafka)
	if err != nil {
		return err
	}

	auditPublisher := audit.NewPublisher(log)
	workerOpts := []audit.WorkerOption{}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		if err := kafkaProducer.EnsureTopic(context.Background(), cfg.Kafka.AuditTopic); err != nil {
			return err
		}
		workerOpts = append(workerOpts,
			audit.WithSink(audit.NewKafkaSink(kafkaProducer, cfg.Kafka.AuditTopic)))
	} else {
		log.Warn("no kafka configured, audit events are not mirrored to a topic")
	}
	auditWorker := audit.NewWorker(auditStore, auditPublisher.Inbox(), log, workerOpts...)

	engine, err := abuse.New(abuseStore,
		abuse.WithLogger(log),
		abuse.WithMetrics(m),
		abuse.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return err
	}

	cutoffs, err := policy.New(policyStore, tenantStore, policy.WithLogger(log))
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(runStore, cutoffs, rowStore,
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(m),
		orchestrator.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return err
	}

	runner, err := jobs.NewRunner(jobStore,
		jobs.WithLogger(log),
		jobs.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	backfiller, err := backfill.New(eventSource, hasher, runner, backfill.WithLogger(log))
	if err != nil {
		return err
	}

	sched, err := scheduler.New(tenantStore, orch,
		scheduler.WithLogger(log),
		scheduler.WithInterval(cfg.RetentionInterval),
		scheduler.WithStaleAfter(cfg.StaleRunTimeout),
		scheduler.WithBackfill(backfiller),
	)
	if err != nil {
		return err
	}

	routerOpts := []httptransport.Option{
		httptransport.WithAuditHandler(audithandler.New(auditStore, log)),
	}
	if redisClient != nil {
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("redis", redisClient.Health))
	}
	if kafkaProducer != nil {
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("kafka", kafkaProducer.Health))
	}
	router := httptransport.NewRouter(
		retentionhandler.New(orch, log),
		abusehandler.New(engine, hasher, cfg.Abuse, log,
			abusehandler.WithAuditPublisher(auditPublisher),
			abusehandler.WithGeo(geo),
		),
		routerOpts...,
	)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := auditWorker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	go func() { _ = sched.Run(ctx) }()

	go func() {
		log.Info("starting custodian", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
