package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dailybackup/internal/adapter/secret"
	"github.com/semmidev/dailybackup/internal/adapter/storage"
	"github.com/semmidev/dailybackup/internal/domain"
)

type runnerFixture struct {
	runner  *Runner
	session *memSession
	dialer  *memDialer
	alerter *recordingAlerter
	sources fakeFactory
}

func newRunnerFixture(records []domain.Record, sources fakeFactory, opts Options) *runnerFixture {
	session := newMemSession()
	dialer := &memDialer{session: session}
	alerter := &recordingAlerter{}

	store := storage.NewLocal()
	mirror := NewMirror(dialer, secret.NewResolver())
	mirror.clock = instantClock{clock.WallClock}

	runner := NewRunner(staticRecords{records: records}, sources, store, mirror, NewLocalSweep(store), alerter, opts)
	runner.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local) }

	return &runnerFixture{runner: runner, session: session, dialer: dialer, alerter: alerter, sources: sources}
}

func targetRecord(dir, db string) domain.Record {
	r := domain.Record{
		DatabaseName:    db,
		Host:            "erp",
		Port:            8069,
		BackupDirectory: filepath.Join(dir, db),
	}
	r.ApplyDefaults()
	return r
}

func TestRunScheduledBackups(t *testing.T) {
	Convey("Given a runner with one healthy target", t, func() {
		dir := t.TempDir()
		rec := targetRecord(dir, "shop")
		rec.Remote = domain.RemoteSettings{Enabled: true, Host: "192.168.0.5", User: "backup", Path: "/backups", Credential: "hunter2"}
		rec.Remote.Port = 22
		rec.ApplyDefaults()

		f := newRunnerFixture([]domain.Record{rec}, fakeFactory{
			"shop": {dbs: []string{"shop", "other"}, content: "PK-zip-bytes"},
		}, Options{})

		Convey("A tick creates the archive and mirrors it", func() {
			report := f.runner.RunScheduledBackups(context.Background())

			So(report.RunID, ShouldNotBeEmpty)
			So(report.Failed(), ShouldEqual, 0)
			So(len(report.Targets), ShouldEqual, 1)

			tr := report.Targets[0]
			So(tr.Archive, ShouldEqual, "2024_05_01_10_00_00_shop.zip")
			So(tr.Mirror.Uploaded, ShouldEqual, 1)

			content, err := os.ReadFile(filepath.Join(rec.BackupDirectory, tr.Archive))
			So(err, ShouldBeNil)
			So(string(content), ShouldEqual, "PK-zip-bytes")
			So(f.session.names("/backups"), ShouldResemble, []string{"2024_05_01_10_00_00_shop.zip"})
		})

		Convey("Two ticks with nothing new leave the remote listing unchanged", func() {
			f.runner.RunScheduledBackups(context.Background())
			first := f.session.names("/backups")
			puts := f.session.puts

			report := f.runner.RunScheduledBackups(context.Background())
			So(report.Failed(), ShouldEqual, 0)
			So(f.session.puts, ShouldEqual, puts)
			So(f.session.names("/backups"), ShouldResemble, first)
		})

		Convey("When the database is absent the archive is skipped but mirroring still runs", func() {
			So(os.MkdirAll(rec.BackupDirectory, 0755), ShouldBeNil)
			So(os.WriteFile(filepath.Join(rec.BackupDirectory, "2024_04_30_10_00_00_shop.zip"), []byte("old"), 0644), ShouldBeNil)
			f.sources["shop"].dbs = []string{"other"}

			report := f.runner.RunScheduledBackups(context.Background())
			tr := report.Targets[0]
			So(tr.DatabaseMissing, ShouldBeTrue)
			So(tr.Archive, ShouldBeEmpty)
			So(tr.Errors, ShouldBeEmpty)
			So(f.session.names("/backups"), ShouldResemble, []string{"2024_04_30_10_00_00_shop.zip"})
		})

		Convey("A failing producer leaves no archive and cleanup still runs", func() {
			f.sources["shop"].produceErr = errors.New("Access Denied")

			report := f.runner.RunScheduledBackups(context.Background())
			tr := report.Targets[0]
			So(len(tr.Errors), ShouldEqual, 1)
			So(errors.Is(tr.Errors[0], domain.ErrArchive), ShouldBeTrue)

			entries, err := os.ReadDir(rec.BackupDirectory)
			So(err, ShouldBeNil)
			So(entries, ShouldBeEmpty)
			So(f.dialer.calls, ShouldEqual, 1)
		})
	})

	Convey("Given a target whose remote is unreachable", t, func() {
		dir := t.TempDir()
		rec := targetRecord(dir, "shop")
		rec.NotifyOnFailure = true
		rec.NotifyEmail = "ops@example.com"
		rec.Remote = domain.RemoteSettings{Enabled: true, Host: "192.168.0.5", User: "backup", Path: "/backups", Credential: "hunter2"}
		rec.ApplyDefaults()

		f := newRunnerFixture([]domain.Record{rec}, fakeFactory{"shop": {dbs: []string{"shop"}}}, Options{})
		f.dialer.errs = []error{errors.New("connection refused")}

		Convey("An alert without the credential is sent", func() {
			report := f.runner.RunScheduledBackups(context.Background())
			So(errors.Is(report.Targets[0].Errors[0], domain.ErrRemoteTransfer), ShouldBeTrue)

			So(len(f.alerter.alerts), ShouldEqual, 1)
			a := f.alerter.alerts[0]
			So(a.From, ShouldEqual, "auto_backup@shop.com")
			So(a.To, ShouldEqual, "ops@example.com")
			So(a.Subject, ShouldEqual, "Backup from erp(192.168.0.5) failed")
			So(a.Body, ShouldContainSubstring, "backup")
			So(a.Body, ShouldContainSubstring, "connection refused")
			So(a.Body, ShouldNotContainSubstring, "hunter2")
		})

		Convey("A failing alert is swallowed", func() {
			f.alerter.err = errors.New("smtp down")
			report := f.runner.RunScheduledBackups(context.Background())
			So(len(report.Targets[0].Errors), ShouldEqual, 1)
		})

		Convey("No alert is sent when notification is off", func() {
			f.runner.records = staticRecords{records: []domain.Record{func() domain.Record {
				r := rec
				r.NotifyOnFailure = false
				return r
			}()}}
			f.runner.RunScheduledBackups(context.Background())
			So(f.alerter.alerts, ShouldBeEmpty)
		})
	})

	Convey("Given several targets", t, func() {
		dir := t.TempDir()
		broken := targetRecord(dir, "broken")
		crashing := targetRecord(dir, "crashing")
		healthy := targetRecord(dir, "shop")

		sources := fakeFactory{
			"broken":   {listErr: errors.New("connection refused")},
			"crashing": {dbs: []string{"crashing"}, panicMsg: "boom"},
			"shop":     {dbs: []string{"shop"}, content: "data"},
		}

		for _, concurrency := range []int{1, 3} {
			f := newRunnerFixture([]domain.Record{broken, crashing, healthy}, sources, Options{Concurrency: concurrency, TargetTimeout: time.Minute})

			report := f.runner.RunScheduledBackups(context.Background())

			So(len(report.Targets), ShouldEqual, 3)
			So(errors.Is(report.Targets[0].Errors[0], domain.ErrConnectivity), ShouldBeTrue)
			So(report.Targets[1].Errors[0].Error(), ShouldContainSubstring, "panic: boom")
			So(report.Targets[2].Errors, ShouldBeEmpty)
			So(report.Targets[2].Archive, ShouldEqual, "2024_05_01_10_00_00_shop.zip")
			So(report.Failed(), ShouldEqual, 2)

			So(os.RemoveAll(healthy.BackupDirectory), ShouldBeNil)
		}
	})

	Convey("Given records that cannot be loaded", t, func() {
		f := newRunnerFixture(nil, fakeFactory{}, Options{})
		f.runner.records = staticRecords{err: errors.New("config unreadable")}

		Convey("The tick ends with an empty report", func() {
			report := f.runner.RunScheduledBackups(context.Background())
			So(report.Targets, ShouldBeEmpty)
			So(report.Finished.IsZero(), ShouldBeFalse)
		})
	})
}
