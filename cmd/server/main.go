package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pension/internal/audit"
	auditmetrics "pension/internal/audit/metrics"
	auditstore "pension/internal/audit/store"
	"pension/internal/audit/stream"
	benefithandler "pension/internal/benefit/handler"
	benefitmetrics "pension/internal/benefit/metrics"
	benefitmodels "pension/internal/benefit/models"
	benefitservice "pension/internal/benefit/service"
	benefitstore "pension/internal/benefit/store"
	contributionhandler "pension/internal/contribution/handler"
	contributionmetrics "pension/internal/contribution/metrics"
	contributionservice "pension/internal/contribution/service"
	contributionstore "pension/internal/contribution/store"
	employerhandler "pension/internal/employer/handler"
	employermetrics "pension/internal/employer/metrics"
	employerservice "pension/internal/employer/service"
	employerstore "pension/internal/employer/store"
	jwttoken "pension/internal/jwt_token"
	memberhandler "pension/internal/member/handler"
	membermetrics "pension/internal/member/metrics"
	memberservice "pension/internal/member/service"
	memberstore "pension/internal/member/store"
	"pension/internal/platform/config"
	"pension/internal/platform/httpserver"
	"pension/internal/platform/kafka"
	"pension/internal/platform/logger"
	"pension/internal/platform/metrics"
	"pension/internal/platform/postgres"
	"pension/internal/platform/redis"
	"pension/internal/report"
	"pension/internal/report/sink"
	"pension/internal/scheduler"
	schedulerhandler "pension/internal/scheduler/handler"
	schedulermetrics "pension/internal/scheduler/metrics"
	httptransport "pension/internal/transport/http"
	"pension/pkg/platform/tx"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("pension server exited", "error", err)
		os.Exit(1)
	}
}

// stores is the storage backend selected by STORAGE_DRIVER.
type stores struct {
	members       memberservice.Store
	employers     employerservice.Store
	contributions contributionservice.Store
	benefits      benefitservice.Store
	history       audit.Store
	runner        tx.Runner
	close         func() error
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*stores, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		return &stores{
			members:       memberstore.NewInMemory(),
			employers:     employerstore.NewInMemory(),
			contributions: contributionstore.NewInMemory(),
			benefits:      benefitstore.NewInMemory(),
			history:       auditstore.NewInMemory(),
			runner:        tx.NewMemoryRunner(),
			close:         func() error { return nil },
		}, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("database migrations applied")
	}
	return postgresStores(db, cfg.TxTimeout), nil
}

func postgresStores(db *sql.DB, txTimeout time.Duration) *stores {
	return &stores{
		members:       memberstore.NewPostgres(db),
		employers:     employerstore.NewPostgres(db),
		contributions: contributionstore.NewPostgres(db),
		benefits:      benefitstore.NewPostgres(db),
		history:       auditstore.NewPostgres(db),
		runner:        tx.NewSQLRunner(db, txTimeout),
		close:         db.Close,
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	rates, err := cfg.Accrual.Parse()
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() { _ = st.close() }()

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	g, ctx := errgroup.WithContext(ctx)

	auditMetrics := auditmetrics.New()
	trailOpts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(auditMetrics)}
	if cfg.KafkaEnabled() {
		client, err := kafka.NewClient(ctx, cfg.Kafka)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer client.Close()
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		publisher := stream.NewPublisher(
			stream.NewKafkaSink(client, cfg.Kafka.HistoryTopic),
			stream.WithLogger(log),
			stream.WithMetrics(auditMetrics),
			stream.WithBufferSize(cfg.Kafka.BufferSize),
		)
		trailOpts = append(trailOpts, audit.WithStreamer(publisher))
		g.Go(func() error { return publisher.Run(ctx) })
		log.Info("streaming transaction history", "topic", cfg.Kafka.HistoryTopic)
	}
	trail := audit.NewTrail(st.history, trailOpts...)

	members := memberservice.New(st.members, trail,
		memberservice.WithLogger(log),
		memberservice.WithMetrics(membermetrics.New()),
		memberservice.WithTx(st.runner),
		memberservice.WithEmployers(employerservice.NewChecker(st.employers)),
	)
	employers := employerservice.New(st.employers, members, trail,
		employerservice.WithLogger(log),
		employerservice.WithMetrics(employermetrics.New()),
		employerservice.WithTx(st.runner),
	)
	ledger := contributionservice.New(st.contributions, trail,
		contributionservice.WithLogger(log),
		contributionservice.WithMetrics(contributionmetrics.New()),
		contributionservice.WithTx(st.runner),
		contributionservice.WithInterestRate(rates.MonthlyInterest),
	)
	benefits := benefitservice.New(ledger, st.benefits, trail,
		benefitservice.WithLogger(log),
		benefitservice.WithMetrics(benefitmetrics.New()),
		benefitservice.WithTx(st.runner),
		benefitservice.WithRules(benefitmodels.Rules{Threshold: rates.BenefitThreshold, Rate: rates.BenefitRate}),
	)

	var reportSink report.Sink = sink.NewLogSink(log)
	if redisClient != nil {
		reportSink = sink.NewRedisSink(redisClient.Client, cfg.Redis.StatementTTL)
	}
	reporter := report.New(ledger, members, reportSink, report.WithLogger(log))

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("scheduler timezone: %w", err)
	}
	schedOpts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithMetrics(schedulermetrics.New()),
		scheduler.WithLocation(location),
	}
	if redisClient != nil {
		schedOpts = append(schedOpts, scheduler.WithLocker(scheduler.NewRedisLocker(redisClient.Client, cfg.Scheduler.LockTTL, log)))
	}
	sched, err := scheduler.New(scheduler.PensionTasks(cfg.Scheduler, scheduler.Jobs{
		ValidationReport:    reporter.GenerateContributionValidationReport,
		EligibilityRefresh:  benefits.RefreshEligibilityForAll,
		InterestAccrual:     ledger.AccrueMonthlyInterest,
		StatementGeneration: reporter.GenerateMemberStatements,
	}), schedOpts...)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	routes := httptransport.Config{
		Logger:        log,
		Metrics:       metrics.New(),
		Validator:     jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)),
		AdminToken:    cfg.Server.AdminToken,
		Members:       memberhandler.New(members, log),
		Contributions: contributionhandler.New(ledger, log),
		Benefits:      benefithandler.New(benefits, log),
		Employers:     employerhandler.New(employers, log),
	}
	if cfg.Scheduler.Enabled {
		routes.Jobs = schedulerhandler.New(sched, log)
		g.Go(func() error { return sched.Run(ctx) })
	} else {
		log.Info("scheduler disabled")
	}
	if cfg.Server.AdminToken == "" {
		log.Warn("ADMIN_API_TOKEN is not set; admin routes will reject every request")
	}

	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(routes))
	g.Go(func() error {
		log.Info("starting pension server", "addr", cfg.Server.Addr, "storage", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownGrace)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
