package database

import (
	"context"
	"fmt"
	"io"

	"github.com/semmidev/dailybackup/internal/domain"
)

type PostgreSQLDatabase struct {
	conn
	psql   string
	pgDump string
}

func NewPostgreSQL(host string, port int, username, password string) *PostgreSQLDatabase {
	return &PostgreSQLDatabase{
		conn:   conn{host: host, port: port, username: username, password: password},
		psql:   "psql",
		pgDump: "pg_dump",
	}
}

func (p *PostgreSQLDatabase) GetType() string {
	return domain.SourcePostgreSQL
}

func (p *PostgreSQLDatabase) env() []string {
	return []string{fmt.Sprintf("PGPASSWORD=%s", p.password)}
}

func (p *PostgreSQLDatabase) ListDatabases(ctx context.Context, host string, port int) ([]string, error) {
	out, err := output(ctx, p.psql, []string{
		fmt.Sprintf("--host=%s", host),
		fmt.Sprintf("--port=%d", port),
		fmt.Sprintf("--username=%s", p.username),
		"--dbname=postgres",
		"--no-align",
		"--tuples-only",
		"-c", "SELECT datname FROM pg_database WHERE NOT datistemplate",
	}, p.env())
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	return parseLines(out), nil
}

// ProduceArchive writes a custom format dump for the dump kind and a zipped
// plain SQL script for the zip kind.
func (p *PostgreSQLDatabase) ProduceArchive(ctx context.Context, databaseName string, kind domain.ArchiveKind, w io.Writer) error {
	format := "--format=plain"
	if kind == domain.ArchiveDump {
		format = "--format=custom"
	}

	return stream(ctx, p.pgDump, []string{
		fmt.Sprintf("--host=%s", p.host),
		fmt.Sprintf("--port=%d", p.port),
		fmt.Sprintf("--username=%s", p.username),
		format,
		"--no-owner",
		databaseName,
	}, p.env(), kind, databaseName+".sql", w)
}
