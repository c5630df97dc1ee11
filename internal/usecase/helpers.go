package usecase

import (
	"fmt"
	"time"

	"github.com/semmidev/dailybackup/internal/domain"
	"github.com/semmidev/dailybackup/internal/retention"
)

// endpointFor resolves the remote credential of rec.
func endpointFor(rec *domain.Record, resolver domain.SecretResolver, timeout time.Duration) (domain.Endpoint, error) {
	ep := domain.Endpoint{Settings: rec.Remote, Timeout: timeout}
	if rec.Remote.Credential == "" {
		return ep, nil
	}

	cred, err := resolver.Resolve(rec.Remote.Credential)
	if err != nil {
		return ep, fmt.Errorf("failed to resolve remote credential: %w", err)
	}
	ep.Credential = cred
	return ep, nil
}

func localEntry(f domain.LocalFile, clock domain.RetentionClock) retention.Entry {
	stamp := f.CreatedAt
	if clock == domain.ClockModTime || stamp.IsZero() {
		stamp = f.ModTime
	}
	return retention.Entry{Name: f.Name, IsRegular: f.IsRegular, Stamp: stamp}
}

func remoteEntry(f domain.RemoteFile, clock domain.RetentionClock) retention.Entry {
	stamp := f.AccessTime
	if clock == domain.ClockModTime || stamp.IsZero() {
		stamp = f.ModTime
	}
	return retention.Entry{Name: f.Name, IsRegular: f.IsRegular, Stamp: stamp}
}

// uploadCandidates returns the regular archive files of the directory that
// belong to the matcher's database.
func uploadCandidates(files []domain.LocalFile, m domain.Matcher) []domain.LocalFile {
	var out []domain.LocalFile
	for _, f := range files {
		if f.IsRegular && retention.HasArchiveExtension(f.Name) && m.Match(f.Name) {
			out = append(out, f)
		}
	}
	return out
}
