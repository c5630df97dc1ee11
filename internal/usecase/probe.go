package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/semmidev/dailybackup/internal/domain"
	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
)

const (
	ProbeConnectTimeout = 10 * time.Second

	shortHostThreshold = 8
	shortHostHint      = "Your IP address seems to be too short."
)

type ProbeResult struct {
	Success    bool
	Title      string
	Message    string
	Diagnostic string
	Error      error
}

// Prober checks that a target's remote endpoint accepts a connection.
type Prober struct {
	dialer   domain.RemoteDialer
	resolver domain.SecretResolver
}

func NewProber(dialer domain.RemoteDialer, resolver domain.SecretResolver) *Prober {
	return &Prober{dialer: dialer, resolver: resolver}
}

// TestConnection dials once and closes the session straight away.
func (p *Prober) TestConnection(ctx context.Context, rec *domain.Record) ProbeResult {
	log := logger.FromContext(ctx).With("target", rec.Name, "remote", rec.Remote.Host)

	err := p.dial(ctx, rec)
	if err == nil {
		log.Infow("Connection test succeeded")
		return ProbeResult{
			Success: true,
			Title:   "Connection Test Succeeded!",
			Message: "Everything seems properly set up for remote backups!",
		}
	}

	log.Warnw("Connection test failed", "error", err)
	res := ProbeResult{
		Title: "Connection Test Failed!",
		Error: err,
	}
	if isSFTP(rec) && len(rec.Remote.Host) < shortHostThreshold {
		res.Diagnostic = shortHostHint
	}

	var msg strings.Builder
	if res.Diagnostic != "" {
		msg.WriteString(res.Diagnostic)
		msg.WriteString("\n\n")
	}
	msg.WriteString("Here is what we got instead:\n")
	msg.WriteString(err.Error())
	res.Message = msg.String()
	return res
}

func (p *Prober) dial(ctx context.Context, rec *domain.Record) error {
	if !rec.Remote.Enabled {
		return errors.New("remote mirroring is not enabled for this target")
	}

	ep, err := endpointFor(rec, p.resolver, ProbeConnectTimeout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeConnectTimeout)
	defer cancel()

	session, err := p.dialer.Dial(ctx, ep)
	if err != nil {
		return domain.RemoteTransferError("connect to "+rec.Remote.Address(), err)
	}
	return session.Close()
}

func isSFTP(rec *domain.Record) bool {
	return rec.Remote.Type == domain.RemoteSFTP || rec.Remote.Type == ""
}
