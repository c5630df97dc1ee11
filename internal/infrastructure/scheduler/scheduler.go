package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
)

type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// New creates a seconds-precision scheduler. Jobs receive ctx and a tick is
// skipped while the previous run of the same job is still in progress.
// Recover wraps the job inside the skip guard so a panic still releases it.
func New(ctx context.Context, log *logger.Logger) *Scheduler {
	cl := cronLogger{log}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		ctx: ctx,
	}
}

func (s *Scheduler) AddJob(spec string, job func(context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		job(s.ctx)
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new ticks and waits for running jobs to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
