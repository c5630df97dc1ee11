package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/semmidev/dailybackup/internal/domain"
	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
	"github.com/semmidev/dailybackup/internal/retention"
)

const (
	MirrorConnectTimeout = 20 * time.Second
	maxRetryDelay        = 2 * time.Minute
)

type MirrorResult struct {
	Uploaded int
	Present  int
	Failed   int
	Deleted  int
}

// Mirror copies a target's archives to its remote endpoint and applies the
// remote retention period.
type Mirror struct {
	dialer   domain.RemoteDialer
	resolver domain.SecretResolver
	clock    clock.Clock
	now      func() time.Time
}

func NewMirror(dialer domain.RemoteDialer, resolver domain.SecretResolver) *Mirror {
	return &Mirror{
		dialer:   dialer,
		resolver: resolver,
		clock:    clock.WallClock,
		now:      time.Now,
	}
}

// Run opens one session for the whole step and closes it before returning.
// Failures of individual uploads or deletions are logged and counted; the
// returned error covers connecting, preparing the directory and listing it.
func (m *Mirror) Run(ctx context.Context, rec *domain.Record, local []domain.LocalFile) (MirrorResult, error) {
	var res MirrorResult
	log := logger.FromContext(ctx)
	rm := &rec.Remote

	ep, err := endpointFor(rec, m.resolver, MirrorConnectTimeout)
	if err != nil {
		return res, domain.RemoteTransferError("connect", err)
	}

	session, err := m.connect(ctx, ep)
	if err != nil {
		return res, domain.RemoteTransferError(fmt.Sprintf("connect to %s", rm.Address()), err)
	}
	defer session.Close()
	stop := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stop()

	if err := ensureDirectory(ctx, session, rm.Path); err != nil {
		return res, domain.RemoteTransferError("ensure remote directory", err)
	}

	for _, f := range uploadCandidates(local, domain.NewMatcher(rec)) {
		remotePath := path.Join(rm.Path, f.Name)
		uploaded, err := uploadIfAbsent(ctx, session, f.Path, remotePath)
		switch {
		case err != nil:
			res.Failed++
			log.Errorw("Failed to upload archive", "file", f.Name, "error", err)
		case uploaded:
			res.Uploaded++
			log.Infow("Uploaded archive", "file", f.Name, "size", humanize.Bytes(uint64(f.Size)))
		default:
			res.Present++
		}
	}

	deleted, err := sweepRetention(ctx, session, rec, m.now())
	res.Deleted = deleted
	if err != nil {
		return res, domain.RemoteTransferError("remote retention sweep", err)
	}

	return res, nil
}

// connect dials the endpoint, retrying with exponential backoff when the
// target allows more than one attempt.
func (m *Mirror) connect(ctx context.Context, ep domain.Endpoint) (domain.RemoteSession, error) {
	log := logger.FromContext(ctx)

	attempts := ep.Settings.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := ep.Settings.RetryDelay
	if delay <= 0 {
		delay = domain.DefaultRetryDelay
	}

	var session domain.RemoteSession
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			dialCtx, cancel := context.WithTimeout(ctx, ep.Timeout)
			defer cancel()

			s, err := m.dialer.Dial(dialCtx, ep)
			if err != nil {
				return err
			}
			session = s
			return nil
		},
		NotifyFunc: func(err error, attempt int) {
			if attempt < attempts {
				log.Warnw("Remote connection failed, retrying", "attempt", attempt, "error", err)
			}
		},
		Attempts:    attempts,
		Delay:       delay,
		MaxDelay:    maxRetryDelay,
		BackoffFunc: retry.ExpBackoff(delay, maxRetryDelay, 2, true),
		Clock:       m.clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		return nil, retry.LastError(err)
	}
	return session, nil
}

// ensureDirectory makes p the existing remote directory, creating missing
// components one at a time from the root.
func ensureDirectory(ctx context.Context, s domain.RemoteSession, p string) error {
	if err := s.Chdir(ctx, p); err == nil {
		return nil
	}

	current := ""
	if strings.HasPrefix(p, "/") {
		current = "/"
	}
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)

		if err := s.Chdir(ctx, current); err == nil {
			continue
		}
		if err := s.Mkdir(ctx, current); err != nil {
			return fmt.Errorf("failed to create remote directory %s: %w", current, err)
		}
		if err := s.Chdir(ctx, current); err != nil {
			return fmt.Errorf("failed to enter remote directory %s: %w", current, err)
		}
	}
	return nil
}

// uploadIfAbsent uploads localPath unless remotePath already exists. Existing
// remote copies are never compared or replaced.
func uploadIfAbsent(ctx context.Context, s domain.RemoteSession, localPath, remotePath string) (bool, error) {
	_, err := s.Stat(ctx, remotePath)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", remotePath, err)
	}

	if err := s.Put(ctx, localPath, remotePath); err != nil {
		return false, err
	}
	return true, nil
}

// sweepRetention deletes the target's expired archives from the remote
// directory.
func sweepRetention(ctx context.Context, s domain.RemoteSession, rec *domain.Record, now time.Time) (int, error) {
	log := logger.FromContext(ctx)
	dir := rec.Remote.Path
	days := rec.Remote.RetentionDays
	if days == 0 {
		days = domain.DefaultRemoteRetentionDays
	}

	entries, err := s.ReadDir(ctx, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	matcher := domain.NewMatcher(rec)
	deleted := 0
	for _, e := range entries {
		if !matcher.Match(e.Name) {
			continue
		}
		if !retention.Expired(now, remoteEntry(e, rec.RetentionClock), days) {
			continue
		}

		if err := s.Remove(ctx, path.Join(dir, e.Name)); err != nil {
			log.Errorw("Failed to delete remote archive", "file", e.Name, "error", err)
			continue
		}
		deleted++
		log.Infow("Deleted expired remote archive", "file", e.Name)
	}
	return deleted, nil
}
