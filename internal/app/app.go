package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/semmidev/dailybackup/internal/adapter/database"
	"github.com/semmidev/dailybackup/internal/adapter/notify"
	"github.com/semmidev/dailybackup/internal/adapter/remote"
	"github.com/semmidev/dailybackup/internal/adapter/secret"
	"github.com/semmidev/dailybackup/internal/adapter/storage"
	"github.com/semmidev/dailybackup/internal/config"
	"github.com/semmidev/dailybackup/internal/domain"
	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
	"github.com/semmidev/dailybackup/internal/infrastructure/scheduler"
	"github.com/semmidev/dailybackup/internal/usecase"
)

type App struct {
	config  *config.Config
	logger  *logger.Logger
	sources *database.Factory
	runner  *usecase.Runner
	prober  *usecase.Prober

	scheduler *scheduler.Scheduler
}

// New wires the application. Targets are re-read from configPath on every
// tick; cfg supplies the process wide settings.
func New(configPath string, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	resolver := secret.NewResolver()
	dialer := remote.NewDialer(cfg.App.KnownHosts)
	sources := database.NewFactory(resolver)
	local := storage.NewLocal()

	runner := usecase.NewRunner(
		config.NewFileSource(configPath),
		sources,
		local,
		usecase.NewMirror(dialer, resolver),
		usecase.NewLocalSweep(local),
		initializeAlerters(cfg, resolver, log),
		usecase.Options{
			Concurrency:   cfg.App.Concurrency,
			TickTimeout:   cfg.App.TickTimeout,
			TargetTimeout: cfg.App.TargetTimeout,
		},
	)

	return &App{
		config:  cfg,
		logger:  log,
		sources: sources,
		runner:  runner,
		prober:  usecase.NewProber(remote.NewReadOnlyDialer(cfg.App.KnownHosts), resolver),
	}, nil
}

// initializeAlerters returns nil when no channel is usable.
func initializeAlerters(cfg *config.Config, resolver domain.SecretResolver, log *logger.Logger) domain.Alerter {
	var alerters notify.Multi

	if cfg.Notify.SMTP.Enabled {
		email, err := notify.NewEmail(&cfg.Notify.SMTP, resolver)
		if err != nil {
			log.Errorf("Failed to initialize e-mail alerts: %v", err)
		} else {
			alerters = append(alerters, email)
			log.Infof("✓ E-mail alerts enabled (relay: %s)", cfg.Notify.SMTP.Host)
		}
	}

	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(&cfg.Notify.Telegram, resolver)
		if err != nil {
			log.Errorf("Failed to initialize Telegram alerts: %v", err)
		} else {
			alerters = append(alerters, tg)
			log.Infof("✓ Telegram alerts enabled")
		}
	}

	if len(alerters) == 0 {
		return nil
	}
	return alerters
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

func (a *App) context(ctx context.Context) context.Context {
	return logger.WithContext(ctx, a.logger)
}

// Run schedules the backup tick and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = a.context(ctx)
	a.logger.Infof("Starting %s with %d target(s)", a.config.App.Name, len(a.config.Targets))

	a.scheduler = scheduler.New(ctx, a.logger)
	if err := a.scheduler.AddJob(a.config.App.Schedule, func(ctx context.Context) {
		a.runner.RunScheduledBackups(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule backups %q: %w", a.config.App.Schedule, err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started (schedule: %s)", a.config.App.Schedule)

	<-ctx.Done()
	return nil
}

// RunOnce runs a single tick immediately.
func (a *App) RunOnce(ctx context.Context) usecase.Report {
	return a.runner.RunScheduledBackups(a.context(ctx))
}

func (a *App) TestConnection(ctx context.Context, name string) (usecase.ProbeResult, error) {
	rec, ok := a.config.Target(name)
	if !ok {
		return usecase.ProbeResult{}, fmt.Errorf("unknown target %q", name)
	}
	return a.prober.TestConnection(a.context(ctx), &rec), nil
}

// Validate checks every target, including that its database exists on the
// source server.
func (a *App) Validate(ctx context.Context) error {
	ctx = a.context(ctx)

	var errs []error
	for i := range a.config.Targets {
		rec := &a.config.Targets[i]

		source, err := a.sources.ForRecord(rec)
		if err != nil {
			errs = append(errs, domain.ValidationError(fmt.Sprintf("target %q", rec.Name), err))
			continue
		}
		if err := domain.ValidateRecord(ctx, rec, source); err != nil {
			errs = append(errs, err)
			continue
		}
		a.logger.Infof("✓ Target %s: database %s found on %s", rec.Name, rec.DatabaseName, rec.Host)
	}
	return errors.Join(errs...)
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.logger.Close()
}
