package domain

import (
	"context"
	"io"
	"time"
)

// RemoteFile describes one entry of a remote directory listing.
type RemoteFile struct {
	Name       string
	Size       int64
	IsRegular  bool
	ModTime    time.Time
	AccessTime time.Time
}

// RemoteSession is one open connection to a remote storage endpoint. Paths
// are slash separated. Chdir succeeds only for an existing directory. Stat
// returns an error wrapping fs.ErrNotExist for missing paths. Close may be
// called more than once.
type RemoteSession interface {
	Chdir(ctx context.Context, p string) error
	Mkdir(ctx context.Context, p string) error
	Stat(ctx context.Context, p string) (RemoteFile, error)
	ReadDir(ctx context.Context, p string) ([]RemoteFile, error)
	Put(ctx context.Context, localPath, remotePath string) error
	Remove(ctx context.Context, p string) error
	Close() error
}

// Endpoint is a remote configuration with its secrets already resolved.
type Endpoint struct {
	Settings   RemoteSettings
	Credential string
	Timeout    time.Duration
}

type RemoteDialer interface {
	Dial(ctx context.Context, ep Endpoint) (RemoteSession, error)
}

// LocalFile describes one entry of a local backup directory.
type LocalFile struct {
	Name      string
	Path      string
	Size      int64
	IsRegular bool
	CreatedAt time.Time
	ModTime   time.Time
}

type LocalStore interface {
	Ensure(dir string) error
	Create(dir, name string, produce func(w io.Writer) error) (LocalFile, error)
	List(dir string) ([]LocalFile, error)
	Delete(dir, name string) error
}
