package database

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/semmidev/dailybackup/internal/domain"
)

type MongoDBDatabase struct {
	conn
	authDatabase string
	mongosh      string
	mongodump    string
}

func NewMongoDB(host string, port int, username, password, authDatabase string) *MongoDBDatabase {
	return &MongoDBDatabase{
		conn:         conn{host: host, port: port, username: username, password: password},
		authDatabase: authDatabase,
		mongosh:      "mongosh",
		mongodump:    "mongodump",
	}
}

func (m *MongoDBDatabase) GetType() string {
	return domain.SourceMongoDB
}

func (m *MongoDBDatabase) uri(host string, port int, database string) string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + database,
	}
	if m.username != "" {
		u.User = url.UserPassword(m.username, m.password)
	}
	if m.authDatabase != "" {
		u.RawQuery = url.Values{"authSource": {m.authDatabase}}.Encode()
	}
	return u.String()
}

func (m *MongoDBDatabase) ListDatabases(ctx context.Context, host string, port int) ([]string, error) {
	out, err := output(ctx, m.mongosh, []string{
		m.uri(host, port, "admin"),
		"--quiet",
		"--eval", "db.adminCommand({listDatabases: 1, nameOnly: true}).databases.forEach(d => print(d.name))",
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	return parseLines(out), nil
}

func (m *MongoDBDatabase) ProduceArchive(ctx context.Context, databaseName string, kind domain.ArchiveKind, w io.Writer) error {
	return stream(ctx, m.mongodump, []string{
		fmt.Sprintf("--uri=%s", m.uri(m.host, m.port, databaseName)),
		"--archive",
		"--gzip",
	}, nil, kind, databaseName+".archive", w)
}
