package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

type ArchiveKind string

const (
	ArchiveZip  ArchiveKind = "zip"
	ArchiveDump ArchiveKind = "dump"
)

func (k ArchiveKind) Valid() bool {
	return k == ArchiveZip || k == ArchiveDump
}

// MatchMode decides how a filename is associated with a target's database.
type MatchMode string

const (
	// MatchSubstring associates any filename containing the database name.
	MatchSubstring MatchMode = "substring"
	// MatchExact parses the archive name and compares the database field.
	MatchExact MatchMode = "exact"
)

// RetentionClock selects which timestamps the retention sweeps measure age from.
type RetentionClock string

const (
	// ClockLegacy uses creation time locally and access time remotely.
	ClockLegacy RetentionClock = "legacy"
	// ClockModTime uses modification time on both sides.
	ClockModTime RetentionClock = "mtime"
)

const (
	SourceOdoo       = "odoo"
	SourcePostgreSQL = "postgresql"
	SourceMySQL      = "mysql"
	SourceMongoDB    = "mongodb"

	RemoteSFTP   = "sftp"
	RemoteS3     = "s3"
	RemoteGDrive = "gdrive"

	HostKeyTOFU   = "tofu"
	HostKeyStrict = "strict"
)

const (
	DefaultBackupDirectory     = "db_backup"
	DefaultRemotePort          = 22
	DefaultRemoteRetentionDays = 30
	DefaultRetryDelay          = 5 * time.Second
)

// Record describes one backup target. It is read once per tick and never
// mutated by the backup pipeline.
type Record struct {
	Name               string         `mapstructure:"name"`
	Host               string         `mapstructure:"host"`
	Port               int            `mapstructure:"port"`
	DatabaseName       string         `mapstructure:"database"`
	BackupDirectory    string         `mapstructure:"backup_directory"`
	ArchiveKind        ArchiveKind    `mapstructure:"archive_kind"`
	AutoRemoveLocal    bool           `mapstructure:"auto_remove_local"`
	LocalRetentionDays int            `mapstructure:"local_retention_days"`
	MatchMode          MatchMode      `mapstructure:"match_mode"`
	RetentionClock     RetentionClock `mapstructure:"retention_clock"`

	Source SourceSettings `mapstructure:"source"`
	Remote RemoteSettings `mapstructure:"remote"`

	NotifyOnFailure bool   `mapstructure:"notify_on_failure"`
	NotifyEmail     string `mapstructure:"notify_email"`
}

type SourceSettings struct {
	Type           string `mapstructure:"type"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	MasterPassword string `mapstructure:"master_password"`
	UseTLS         bool   `mapstructure:"use_tls"`

	// MongoDB specific
	AuthDatabase string `mapstructure:"auth_database"`
}

type RemoteSettings struct {
	Enabled       bool          `mapstructure:"enabled"`
	Type          string        `mapstructure:"type"`
	Path          string        `mapstructure:"path"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Credential    string        `mapstructure:"credential"`
	RetentionDays int           `mapstructure:"retention_days"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`

	// SFTP specific
	KeyFile       string `mapstructure:"key_file"`
	HostKeyPolicy string `mapstructure:"host_key_policy"`

	// AWS S3
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`

	// Google Drive
	FolderID         string `mapstructure:"folder_id"`
	CredentialsFile  string `mapstructure:"credentials_file"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
}

// ApplyDefaults fills zero-valued optional fields.
func (r *Record) ApplyDefaults() {
	if r.Name == "" {
		r.Name = r.DatabaseName
	}
	if r.BackupDirectory == "" {
		r.BackupDirectory = DefaultBackupDirectory
	}
	if r.ArchiveKind == "" {
		r.ArchiveKind = ArchiveZip
	}
	if r.MatchMode == "" {
		r.MatchMode = MatchSubstring
	}
	if r.RetentionClock == "" {
		r.RetentionClock = ClockLegacy
	}
	if r.Source.Type == "" {
		r.Source.Type = SourceOdoo
	}

	rm := &r.Remote
	if rm.Type == "" {
		rm.Type = RemoteSFTP
	}
	if rm.Port == 0 {
		rm.Port = DefaultRemotePort
	}
	if rm.RetentionDays == 0 {
		rm.RetentionDays = DefaultRemoteRetentionDays
	}
	if rm.RetryAttempts < 1 {
		rm.RetryAttempts = 1
	}
	if rm.RetryDelay <= 0 {
		rm.RetryDelay = DefaultRetryDelay
	}
	if rm.HostKeyPolicy == "" {
		rm.HostKeyPolicy = HostKeyTOFU
	}
}

// Validate checks the record's own fields. It does not contact the source
// server; see ValidateRecord for the existence check.
func (r *Record) Validate() error {
	var errs []error

	if r.DatabaseName == "" {
		errs = append(errs, errors.New("database is required"))
	}
	switch r.Source.Type {
	case SourceOdoo, SourcePostgreSQL, SourceMySQL, SourceMongoDB:
	default:
		errs = append(errs, fmt.Errorf("unsupported source type %q", r.Source.Type))
	}
	if r.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if !r.ArchiveKind.Valid() {
		errs = append(errs, fmt.Errorf("archive_kind must be zip or dump, got %q", r.ArchiveKind))
	}
	if r.MatchMode != MatchExact && r.MatchMode != MatchSubstring {
		errs = append(errs, fmt.Errorf("unknown match_mode %q", r.MatchMode))
	}
	if r.RetentionClock != ClockLegacy && r.RetentionClock != ClockModTime {
		errs = append(errs, fmt.Errorf("unknown retention_clock %q", r.RetentionClock))
	}
	if r.LocalRetentionDays < 0 {
		errs = append(errs, errors.New("local_retention_days must not be negative"))
	}

	if r.Remote.Enabled {
		errs = append(errs, r.Remote.validate()...)
	}

	if len(errs) > 0 {
		return ValidationError(fmt.Sprintf("target %q", r.Name), errors.Join(errs...))
	}
	return nil
}

func (rm *RemoteSettings) validate() []error {
	var errs []error

	if rm.RetentionDays < 0 {
		errs = append(errs, errors.New("remote.retention_days must not be negative"))
	}

	switch rm.Type {
	case RemoteSFTP:
		if rm.Host == "" {
			errs = append(errs, errors.New("remote.host is required for sftp"))
		}
		if rm.User == "" {
			errs = append(errs, errors.New("remote.user is required for sftp"))
		}
		if rm.Path == "" {
			errs = append(errs, errors.New("remote.path is required for sftp"))
		}
		if rm.HostKeyPolicy != HostKeyTOFU && rm.HostKeyPolicy != HostKeyStrict {
			errs = append(errs, fmt.Errorf("unknown remote.host_key_policy %q", rm.HostKeyPolicy))
		}
	case RemoteS3:
		if rm.Bucket == "" {
			errs = append(errs, errors.New("remote.bucket is required for s3"))
		}
		if rm.Region == "" {
			errs = append(errs, errors.New("remote.region is required for s3"))
		}
	case RemoteGDrive:
		if rm.FolderID == "" {
			errs = append(errs, errors.New("remote.folder_id is required for gdrive"))
		}
		if rm.CredentialsFile == "" && rm.ClientSecretFile == "" {
			errs = append(errs, errors.New("remote.credentials_file or remote.client_secret_file is required for gdrive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported remote type %q", rm.Type))
	}

	return errs
}

// Address returns host:port for the remote endpoint.
func (rm *RemoteSettings) Address() string {
	return net.JoinHostPort(rm.Host, strconv.Itoa(rm.Port))
}
