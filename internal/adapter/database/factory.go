package database

import (
	"fmt"

	"github.com/semmidev/dailybackup/internal/domain"
)

// Factory builds the Source for a record, resolving its secrets.
type Factory struct {
	resolver domain.SecretResolver
}

func NewFactory(resolver domain.SecretResolver) *Factory {
	return &Factory{resolver: resolver}
}

func (f *Factory) ForRecord(r *domain.Record) (domain.Source, error) {
	s := r.Source

	password, err := f.resolve(s.Password, "password")
	if err != nil {
		return nil, err
	}

	switch s.Type {
	case domain.SourceOdoo, "":
		master, err := f.resolve(s.MasterPassword, "master password")
		if err != nil {
			return nil, err
		}
		return NewOdoo(r.Host, r.Port, s.UseTLS, master), nil
	case domain.SourcePostgreSQL:
		return NewPostgreSQL(r.Host, r.Port, s.Username, password), nil
	case domain.SourceMySQL:
		return NewMySQL(r.Host, r.Port, s.Username, password), nil
	case domain.SourceMongoDB:
		return NewMongoDB(r.Host, r.Port, s.Username, password, s.AuthDatabase), nil
	}

	return nil, fmt.Errorf("unsupported database type: %s", s.Type)
}

func (f *Factory) resolve(ref, what string) (string, error) {
	if ref == "" {
		return "", nil
	}
	v, err := f.resolver.Resolve(ref)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", what, err)
	}
	return v, nil
}
