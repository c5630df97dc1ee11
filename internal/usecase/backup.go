package usecase

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/semmidev/dailybackup/internal/domain"
	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
)

type Options struct {
	Concurrency   int
	TickTimeout   time.Duration
	TargetTimeout time.Duration
}

// Report summarizes one tick.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Targets  []TargetReport
}

// Failed returns the number of targets that recorded at least one error.
func (r Report) Failed() int {
	n := 0
	for _, t := range r.Targets {
		if len(t.Errors) > 0 {
			n++
		}
	}
	return n
}

type TargetReport struct {
	Name            string
	Database        string
	DatabaseMissing bool
	Archive         string
	Mirror          MirrorResult
	LocalDeleted    int
	Errors          []error
}

func (t *TargetReport) fail(err error) {
	t.Errors = append(t.Errors, err)
}

// Runner executes the backup pipeline of every configured target.
type Runner struct {
	records domain.RecordSource
	sources domain.SourceFactory
	store   domain.LocalStore
	mirror  *Mirror
	sweep   *LocalSweep
	alerter domain.Alerter
	opts    Options
	now     func() time.Time
}

func NewRunner(
	records domain.RecordSource,
	sources domain.SourceFactory,
	store domain.LocalStore,
	mirror *Mirror,
	sweep *LocalSweep,
	alerter domain.Alerter,
	opts Options,
) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{
		records: records,
		sources: sources,
		store:   store,
		mirror:  mirror,
		sweep:   sweep,
		alerter: alerter,
		opts:    opts,
		now:     time.Now,
	}
}

// RunScheduledBackups runs one tick. Failures stay inside the target they
// happened in and are reported, never returned.
func (r *Runner) RunScheduledBackups(ctx context.Context) Report {
	report := Report{RunID: uuid.NewString(), Started: r.now()}
	log := logger.FromContext(ctx).With("run_id", report.RunID)
	ctx = logger.WithContext(ctx, log)

	if r.opts.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.TickTimeout)
		defer cancel()
	}

	records, err := r.records.Records(ctx)
	if err != nil {
		log.Errorw("Failed to load backup targets", "error", err)
		report.Finished = r.now()
		return report
	}
	log.Infow("Starting scheduled backups", "targets", len(records))

	report.Targets = make([]TargetReport, len(records))
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i := range records {
		g.Go(func() error {
			report.Targets[i] = r.runTarget(ctx, &records[i])
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = r.now()
	log.Infow("Scheduled backups finished",
		"targets", len(records),
		"failed", report.Failed(),
		"duration", report.Finished.Sub(report.Started).Round(time.Second))
	return report
}

func (r *Runner) runTarget(ctx context.Context, rec *domain.Record) (tr TargetReport) {
	tr = TargetReport{Name: rec.Name, Database: rec.DatabaseName}
	log := logger.FromContext(ctx).With("target", rec.Name, "database", rec.DatabaseName)
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if p := recover(); p != nil {
			log.Errorw("Backup target panicked", "panic", p)
			tr.fail(fmt.Errorf("panic: %v", p))
		}
	}()

	if r.opts.TargetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.TargetTimeout)
		defer cancel()
	}

	if source := r.checkDatabase(ctx, rec, &tr); source != nil {
		r.createArchive(ctx, rec, source, &tr)
	}

	if rec.Remote.Enabled {
		r.mirrorArchives(ctx, rec, &tr)
	}

	if rec.AutoRemoveLocal {
		deleted, err := r.sweep.Sweep(ctx, rec)
		tr.LocalDeleted = deleted
		if err != nil {
			log.Errorw("Local retention sweep failed", "error", err)
			tr.fail(err)
		}
	}

	return tr
}

// checkDatabase returns the source of rec when its database exists on the
// server. Listing failures are recorded and count as absent.
func (r *Runner) checkDatabase(ctx context.Context, rec *domain.Record, tr *TargetReport) domain.Source {
	log := logger.FromContext(ctx)

	source, err := r.sources.ForRecord(rec)
	if err != nil {
		err = domain.ValidationError("build database source", err)
		log.Errorw("Cannot reach database source", "error", err)
		tr.fail(err)
		return nil
	}

	dbs, err := source.ListDatabases(ctx, rec.Host, rec.Port)
	if err != nil {
		err = domain.ConnectivityError(fmt.Sprintf("list databases on %s:%d", rec.Host, rec.Port), err)
		log.Errorw("Failed to list databases", "error", err)
		tr.fail(err)
		return nil
	}

	if !slices.Contains(dbs, rec.DatabaseName) {
		log.Warnw("Database not found on server, skipping archive", "host", rec.Host)
		tr.DatabaseMissing = true
		return nil
	}
	return source
}

func (r *Runner) createArchive(ctx context.Context, rec *domain.Record, source domain.ArchiveProducer, tr *TargetReport) {
	log := logger.FromContext(ctx)

	if err := r.store.Ensure(rec.BackupDirectory); err != nil {
		err = domain.ArchiveError("ensure backup directory", err)
		log.Errorw("Failed to prepare backup directory", "dir", rec.BackupDirectory, "error", err)
		tr.fail(err)
		return
	}

	start := time.Now()
	name := domain.ArchiveName(r.now(), rec.DatabaseName, rec.ArchiveKind)
	f, err := r.store.Create(rec.BackupDirectory, name, func(w io.Writer) error {
		return source.ProduceArchive(ctx, rec.DatabaseName, rec.ArchiveKind, w)
	})
	if err != nil {
		err = domain.ArchiveError(fmt.Sprintf("create %s", name), err)
		log.Errorw("Failed to create archive", "file", name, "error", err)
		tr.fail(err)
		return
	}

	tr.Archive = f.Name
	log.Infow("Archive created",
		"file", f.Name,
		"size", humanize.Bytes(uint64(f.Size)),
		"duration", time.Since(start).Round(time.Millisecond))
}

func (r *Runner) mirrorArchives(ctx context.Context, rec *domain.Record, tr *TargetReport) {
	log := logger.FromContext(ctx)

	local, err := r.store.List(rec.BackupDirectory)
	if err != nil {
		log.Warnw("Cannot list backup directory, nothing to upload", "dir", rec.BackupDirectory, "error", err)
	}

	res, err := r.mirror.Run(ctx, rec, local)
	tr.Mirror = res
	if err == nil {
		log.Infow("Remote mirror finished",
			"uploaded", res.Uploaded, "present", res.Present, "failed", res.Failed, "deleted", res.Deleted)
		return
	}

	log.Errorw("Remote mirror failed", "remote", rec.Remote.Host, "error", err)
	tr.fail(err)

	if !rec.NotifyOnFailure {
		return
	}
	if r.alerter == nil {
		log.Warnw("No alert channel configured, failure not notified")
		return
	}
	if aerr := r.alerter.SendAlert(ctx, failureAlert(rec, err)); aerr != nil {
		log.Warnw("Failed to send failure alert", "error", aerr)
	}
}

// failureAlert never includes the remote credential.
func failureAlert(rec *domain.Record, err error) domain.Alert {
	return domain.Alert{
		From:    fmt.Sprintf("auto_backup@%s.com", rec.DatabaseName),
		To:      rec.NotifyEmail,
		Subject: fmt.Sprintf("Backup from %s(%s) failed", rec.Host, rec.Remote.Host),
		Body: fmt.Sprintf(
			"The backup of database %s on %s could not be mirrored.\n\n"+
				"Remote host: %s\n"+
				"Remote user: %s\n"+
				"Remote path: %s\n\n"+
				"Error: %v\n",
			rec.DatabaseName, rec.Host, rec.Remote.Host, rec.Remote.User, rec.Remote.Path, err),
	}
}
