package config

import (
	"context"

	"github.com/semmidev/dailybackup/internal/domain"
	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
)

// FileSource re-reads the configuration file on every call so edits apply
// on the next tick without a restart.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Records returns the valid targets of the current file. Invalid targets are
// logged and left out.
func (s *FileSource) Records(ctx context.Context) ([]domain.Record, error) {
	log := logger.FromContext(ctx)

	cfg, err := read(s.path)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if err := t.Validate(); err != nil {
			log.Warnw("Skipping invalid target", "target", t.Name, "error", err)
			continue
		}
		records = append(records, t)
	}
	return records, nil
}
