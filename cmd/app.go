package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/example/checkin-scheduler/internal/auth"
	"github.com/example/checkin-scheduler/internal/checkin"
	"github.com/example/checkin-scheduler/internal/config"
	"github.com/example/checkin-scheduler/internal/db"
	"github.com/example/checkin-scheduler/internal/logger"
	"github.com/example/checkin-scheduler/internal/metrics"
	"github.com/example/checkin-scheduler/internal/migrate"
	"github.com/example/checkin-scheduler/internal/notify"
	"github.com/example/checkin-scheduler/internal/runner"
	"github.com/example/checkin-scheduler/internal/southwest"
	"github.com/example/checkin-scheduler/internal/tasks"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	airline  *southwest.Client
	notifier checkin.Notifier

	closers []func()
}

type appOptions struct {
	noEmail bool
}

func newApp(opts appOptions) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.SetupDefault(os.Stderr, level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col := metrics.NewCollector(reg)

	airline := southwest.New(southwest.Options{
		BaseURL:           cfg.SouthwestBaseURL,
		APIKey:            cfg.SouthwestAPIKey,
		Timeout:           cfg.SouthwestTimeout,
		RequestsPerSecond: cfg.SouthwestRPS,
		Logger:            log.With(slog.String("component", "southwest")),
	})
	airline.OnResponse(col.RecordAPIResponse)

	a := &app{cfg: cfg, log: log, registry: reg, metrics: col, airline: airline}
	a.notifier = a.buildNotifier(opts.noEmail)
	return a, nil
}

func (a *app) buildNotifier(noEmail bool) checkin.Notifier {
	if noEmail {
		return notify.Discard{}
	}
	mailer := notify.NewMailer(notify.SMTPConfig{
		Host:     a.cfg.SMTPHost,
		Port:     a.cfg.SMTPPort,
		Username: a.cfg.SMTPUsername,
		Password: a.cfg.SMTPPassword,
		From:     a.cfg.SMTPFrom,
	})
	if a.cfg.BoardingPassEmail == config.DeliveryAirline {
		return notify.Split{Scheduled: mailer, Airline: a.airline}
	}
	return mailer
}

func (a *app) scheduler() *checkin.Scheduler {
	return &checkin.Scheduler{
		Reservations: a.airline,
		Notifier:     a.notifier,
		Logger:       a.log.With(slog.String("component", "scheduler")),
	}
}

func (a *app) executor() *checkin.Executor {
	return &checkin.Executor{
		Reservations: a.airline,
		Notifier:     a.notifier,
		Logger:       a.log.With(slog.String("component", "executor")),
	}
}

// sealer uses the configured token keys, or throwaway keys when none are set.
func (a *app) sealer() *auth.Sealer {
	hashKey, blockKey := a.cfg.TokenHashKey, a.cfg.TokenBlockKey
	if len(hashKey) == 0 {
		a.log.Warn("no token keys configured; issued tokens will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(32)
		blockKey = securecookie.GenerateRandomKey(32)
	}
	return auth.NewSealer(hashKey, blockKey, a.cfg.TokenMaxAge)
}

// openQueue connects the configured backend. migrateUp applies the Postgres
// schema first.
func (a *app) openQueue(ctx context.Context, migrateUp bool) (tasks.Queue, error) {
	switch a.cfg.QueueBackend {
	case config.BackendMemory:
		return tasks.NewMemory(), nil
	case config.BackendRedis:
		rdb, err := tasks.OpenRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		return tasks.NewRedis(rdb, a.cfg.RedisPrefix), nil
	case config.BackendPostgres:
		d, err := a.openDB(ctx)
		if err != nil {
			return nil, err
		}
		if migrateUp {
			if err := migrate.Up(ctx, d); err != nil {
				return nil, err
			}
		}
		return tasks.NewPostgres(d), nil
	}
	return nil, fmt.Errorf("unknown queue backend %q", a.cfg.QueueBackend)
}

func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	d, err := db.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, d.Close)
	if err := d.Ping(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return d, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) runner(q tasks.Queue) *runner.Runner {
	return &runner.Runner{
		Queue:          q,
		Executor:       a.executor(),
		Metrics:        a.metrics,
		Logger:         a.log.With(slog.String("component", "runner")),
		Interval:       a.cfg.PollInterval,
		BatchSize:      a.cfg.BatchSize,
		AttemptTimeout: a.cfg.AttemptTimeout,
		StaleAfter:     a.cfg.StaleAfter,
	}
}
