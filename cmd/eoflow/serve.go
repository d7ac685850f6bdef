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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/djlord-it/eoflow/internal/analytics"
	"github.com/djlord-it/eoflow/internal/api"
	"github.com/djlord-it/eoflow/internal/config"
	"github.com/djlord-it/eoflow/internal/cron"
	"github.com/djlord-it/eoflow/internal/dispatcher"
	"github.com/djlord-it/eoflow/internal/ledger"
	"github.com/djlord-it/eoflow/internal/logging"
	"github.com/djlord-it/eoflow/internal/metrics"
	"github.com/djlord-it/eoflow/internal/process"
	"github.com/djlord-it/eoflow/internal/registry"
	"github.com/djlord-it/eoflow/internal/remote"
	"github.com/djlord-it/eoflow/internal/scheduler"
	"github.com/djlord-it/eoflow/internal/seed"
	"github.com/djlord-it/eoflow/internal/statestore"
)

const tracerName = "github.com/djlord-it/eoflow"

func runServe(ctx context.Context, cfg config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return invalidConfig(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)
	logConfigWarnings(cfg, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkers := make(map[string]api.HealthChecker)

	backend, closeBackend, err := openStateBackend(ctx, cfg, checkers)
	if err != nil {
		return err
	}
	defer closeBackend()
	store := statestore.New(backend, cfg.StatePersist, logger)
	logger.Info("eoflow: state store ready", "backend", cfg.StateBackend, "persist", store.Enabled())

	parser := cron.NewParser()
	jobs := ledger.New(store)
	workflows := registry.NewWorkflows(store)
	schedules := registry.NewSchedules(store, parser)

	procs, err := loadProcesses(cfg)
	if err != nil {
		return invalidConfig(err)
	}
	logger.Info("eoflow: processes loaded", "count", len(procs.Definitions()))

	if cfg.SeedFile != "" {
		f, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			return invalidConfig(err)
		}
		res, err := seed.Apply(f, workflows, schedules, logger)
		if err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		logger.Info("eoflow: seed applied",
			"workflows", res.WorkflowsCreated, "schedules", res.SchedulesCreated, "skipped", res.Skipped)
	}

	var sink metrics.Sink = metrics.NewNoopSink()
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux}
		logger.Info("eoflow: metrics enabled", "port", cfg.MetricsPort, "path", cfg.MetricsPath)
	}

	disp := dispatcher.New(jobs, procs, workflows, schedules, logger).
		WithMetrics(sink).
		WithTracer(otel.Tracer(tracerName))

	if cfg.RemoteEnabled {
		rb, err := remote.NewHTTPBackend(remote.Config{
			APIURL:           cfg.RemoteAPIURL,
			APIKey:           cfg.RemoteAPIKey,
			DeploymentID:     cfg.RemoteDeploymentID,
			Timeout:          cfg.RemoteTimeout,
			RateLimit:        cfg.RemoteRateLimit,
			BreakerThreshold: cfg.RemoteBreakerThreshold,
			BreakerCooldown:  cfg.RemoteBreakerCooldown,
		}, logger)
		if err != nil {
			return invalidConfig(err)
		}
		disp = disp.WithRemote(rb)
		checkers["remote"] = rb
		logger.Info("eoflow: remote execution enabled", "api", cfg.RemoteAPIURL, "deployment", cfg.RemoteDeploymentID)
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		rs := analytics.NewRedisSink(redisClient, 0, 0)
		disp = disp.WithAnalytics(rs)
		checkers["redis"] = rs
		logger.Info("eoflow: analytics enabled", "redis", cfg.RedisAddr)
	}

	handler := api.NewHandler(disp, jobs, procs, workflows, schedules, logger).
		WithSchedulerToken(cfg.SchedulerToken).
		WithMetrics(sink)
	for name, c := range checkers {
		handler = handler.WithHealthChecker(name, c)
	}
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched, err = scheduler.New(
			scheduler.Config{PollInterval: cfg.SchedulerPollInterval},
			schedules,
			&cronParserAdapter{parser: parser},
			&scheduleRunner{d: disp},
			logger,
		)
		if err != nil {
			return invalidConfig(err)
		}
		sched = sched.WithMetrics(sink)
	}

	g, gctx := errgroup.WithContext(ctx)

	// The scheduler gets its own context so shutdown can stop it before HTTP.
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	schedulerDone := make(chan struct{})
	if sched != nil {
		g.Go(func() error {
			defer close(schedulerDone)
			return sched.Run(schedulerCtx)
		})
	} else {
		close(schedulerDone)
	}

	g.Go(func() error {
		logger.Info("eoflow: http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("eoflow: metrics server listening", "port", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("eoflow: shutting down")

		logger.Info("eoflow: stopping scheduler...")
		cancelScheduler()
		<-schedulerDone
		logger.Info("eoflow: scheduler stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		logger.Info("eoflow: stopping http server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("eoflow: http server shutdown error", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("eoflow: metrics server shutdown error", "error", err)
			}
		}
		return nil
	})

	logger.Info("eoflow: started",
		"http", cfg.HTTPAddr, "scheduler", cfg.SchedulerEnabled, "poll_interval", cfg.SchedulerPollInterval)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("eoflow: stopped")
	return nil
}

// openStateBackend returns nil for the file backend when persistence is
// off; statestore treats a nil backend as disabled.
func openStateBackend(ctx context.Context, cfg config.Config, checkers map[string]api.HealthChecker) (statestore.Backend, func(), error) {
	noop := func() {}
	switch cfg.StateBackend {
	case config.BackendPostgres, config.BackendSQLite:
		driver := statestore.DriverPostgres
		if cfg.StateBackend == config.BackendSQLite {
			driver = statestore.DriverSQLite
		}
		b, err := statestore.OpenSQL(ctx, driver, cfg.StateDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open state backend: %w", err)
		}
		checkers["state"] = b
		return b, func() { _ = b.Close() }, nil
	default:
		if !cfg.StatePersist {
			return nil, noop, nil
		}
		return statestore.NewFileBackend(cfg.StateDir), noop, nil
	}
}

func loadProcesses(cfg config.Config) (*process.Registry, error) {
	procs := []process.Process{process.Echo{}}
	if cfg.ProcessesFile != "" {
		loaded, err := process.LoadFile(cfg.ProcessesFile)
		if err != nil {
			return nil, err
		}
		procs = append(procs, loaded...)
	}
	return process.NewRegistry(procs...)
}
