package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dailybackup/internal/domain"
)

const sampleConfig = `
app:
  log_level: debug
  concurrency: 2
  target_timeout: 30m
notify:
  smtp:
    enabled: true
    host: smtp.example.com
targets:
  - database: shop
    host: localhost
    port: 8069
    auto_remove_local: true
    local_retention_days: 7
    source:
      master_password: env:ODOO_MASTER
    remote:
      enabled: true
      host: 192.168.0.5
      user: backup
      path: /srv/backups
      credential: file:/run/secrets/sftp
      retry_attempts: 3
      retry_delay: 10s
  - name: reports
    database: reports
    host: db.internal
    port: 5432
    archive_kind: dump
    source:
      type: postgresql
      username: postgres
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a configuration file", t, func() {
		Convey("When it is valid", func() {
			cfg, err := Load(writeConfig(t, sampleConfig))
			So(err, ShouldBeNil)

			Convey("App settings and defaults are applied", func() {
				So(cfg.App.Name, ShouldEqual, "dailybackup")
				So(cfg.App.LogLevel, ShouldEqual, "debug")
				So(cfg.App.Schedule, ShouldEqual, "@daily")
				So(cfg.App.Concurrency, ShouldEqual, 2)
				So(cfg.App.KnownHosts, ShouldEqual, "known_hosts")
				So(cfg.App.TargetTimeout, ShouldEqual, 30*time.Minute)
				So(cfg.Notify.SMTP.Port, ShouldEqual, 25)
			})

			Convey("Targets are decoded with record defaults", func() {
				So(len(cfg.Targets), ShouldEqual, 2)

				shop := cfg.Targets[0]
				So(shop.Name, ShouldEqual, "shop")
				So(shop.BackupDirectory, ShouldEqual, domain.DefaultBackupDirectory)
				So(shop.ArchiveKind, ShouldEqual, domain.ArchiveZip)
				So(shop.Source.Type, ShouldEqual, domain.SourceOdoo)
				So(shop.Source.MasterPassword, ShouldEqual, "env:ODOO_MASTER")
				So(shop.Remote.Port, ShouldEqual, 22)
				So(shop.Remote.RetentionDays, ShouldEqual, 30)
				So(shop.Remote.RetryAttempts, ShouldEqual, 3)
				So(shop.Remote.RetryDelay, ShouldEqual, 10*time.Second)

				reports, ok := cfg.Target("reports")
				So(ok, ShouldBeTrue)
				So(reports.ArchiveKind, ShouldEqual, domain.ArchiveDump)
				So(reports.Remote.Enabled, ShouldBeFalse)

				_, ok = cfg.Target("missing")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When an environment variable overrides a value", func() {
			t.Setenv("DAILYBACKUP_APP_LOG_LEVEL", "warn")
			cfg, err := Load(writeConfig(t, sampleConfig))
			So(err, ShouldBeNil)
			So(cfg.App.LogLevel, ShouldEqual, "warn")
		})

		Convey("When a target is invalid", func() {
			_, err := Load(writeConfig(t, `
targets:
  - database: shop
    host: localhost
    archive_kind: tar
`))
			So(err, ShouldNotBeNil)
			So(errors.Is(err, domain.ErrValidation), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "archive_kind")
		})

		Convey("When two targets share a name", func() {
			_, err := Load(writeConfig(t, `
targets:
  - database: shop
    host: a
  - database: shop
    host: b
`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "duplicate name")
		})

		Convey("When the file does not exist", func() {
			_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to read config")
		})
	})
}

func TestFileSource(t *testing.T) {
	Convey("Given a FileSource", t, func() {
		path := writeConfig(t, sampleConfig)
		src := NewFileSource(path)

		Convey("It returns every valid target", func() {
			records, err := src.Records(context.Background())
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 2)
		})

		Convey("It picks up edits on the next call and drops invalid targets", func() {
			So(os.WriteFile(path, []byte(`
targets:
  - database: shop
    host: localhost
  - database: broken
`), 0644), ShouldBeNil)

			records, err := src.Records(context.Background())
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 1)
			So(records[0].DatabaseName, ShouldEqual, "shop")
		})

		Convey("An unreadable file is an error", func() {
			So(os.Remove(path), ShouldBeNil)
			_, err := src.Records(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}
