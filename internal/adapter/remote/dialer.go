package remote

import (
	"context"
	"fmt"

	"github.com/semmidev/dailybackup/internal/domain"
)

// Dialer picks the transport for an endpoint from its remote type.
type Dialer struct {
	SFTP   domain.RemoteDialer
	S3     domain.RemoteDialer
	GDrive domain.RemoteDialer
}

func NewDialer(knownHostsPath string) *Dialer {
	return &Dialer{
		SFTP:   NewSFTPDialer(NewHostKeyStore(knownHostsPath)),
		S3:     NewS3Dialer(),
		GDrive: NewGDriveDialer(),
	}
}

// NewReadOnlyDialer returns a Dialer that never writes the known_hosts file.
func NewReadOnlyDialer(knownHostsPath string) *Dialer {
	return &Dialer{
		SFTP:   NewSFTPDialer(NewReadOnlyHostKeyStore(knownHostsPath)),
		S3:     NewS3Dialer(),
		GDrive: NewGDriveDialer(),
	}
}

func (d *Dialer) Dial(ctx context.Context, ep domain.Endpoint) (domain.RemoteSession, error) {
	var target domain.RemoteDialer
	switch ep.Settings.Type {
	case domain.RemoteSFTP, "":
		target = d.SFTP
	case domain.RemoteS3:
		target = d.S3
	case domain.RemoteGDrive:
		target = d.GDrive
	}
	if target == nil {
		return nil, fmt.Errorf("unsupported remote type %q", ep.Settings.Type)
	}
	return target.Dial(ctx, ep)
}
