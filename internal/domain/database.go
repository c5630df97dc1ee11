package domain

import (
	"context"
	"io"
)

type DatabaseLister interface {
	ListDatabases(ctx context.Context, host string, port int) ([]string, error)
}

type ArchiveProducer interface {
	ProduceArchive(ctx context.Context, databaseName string, kind ArchiveKind, w io.Writer) error
}

// Source is a database server that can both list and dump its databases.
type Source interface {
	DatabaseLister
	ArchiveProducer
	GetType() string
}

// SourceFactory builds the Source serving a record.
type SourceFactory interface {
	ForRecord(r *Record) (Source, error)
}

// RecordSource yields the configured backup targets.
type RecordSource interface {
	Records(ctx context.Context) ([]Record, error)
}
