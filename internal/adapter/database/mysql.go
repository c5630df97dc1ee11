package database

import (
	"context"
	"fmt"
	"io"

	"github.com/semmidev/dailybackup/internal/domain"
)

type MySQLDatabase struct {
	conn
	mysql     string
	mysqldump string
}

func NewMySQL(host string, port int, username, password string) *MySQLDatabase {
	return &MySQLDatabase{
		conn:      conn{host: host, port: port, username: username, password: password},
		mysql:     "mysql",
		mysqldump: "mysqldump",
	}
}

func (m *MySQLDatabase) GetType() string {
	return domain.SourceMySQL
}

// env passes the password through MYSQL_PWD so it stays off the command line.
func (m *MySQLDatabase) env() []string {
	return []string{fmt.Sprintf("MYSQL_PWD=%s", m.password)}
}

func (m *MySQLDatabase) ListDatabases(ctx context.Context, host string, port int) ([]string, error) {
	out, err := output(ctx, m.mysql, []string{
		fmt.Sprintf("--host=%s", host),
		fmt.Sprintf("--port=%d", port),
		fmt.Sprintf("--user=%s", m.username),
		"--batch",
		"--skip-column-names",
		"-e", "SHOW DATABASES",
	}, m.env())
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	return parseLines(out), nil
}

func (m *MySQLDatabase) ProduceArchive(ctx context.Context, databaseName string, kind domain.ArchiveKind, w io.Writer) error {
	return stream(ctx, m.mysqldump, []string{
		fmt.Sprintf("--host=%s", m.host),
		fmt.Sprintf("--port=%d", m.port),
		fmt.Sprintf("--user=%s", m.username),
		"--single-transaction",
		"--quick",
		"--lock-tables=false",
		"--routines",
		"--triggers",
		"--events",
		databaseName,
	}, m.env(), kind, databaseName+".sql", w)
}
