package database

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"

	"github.com/semmidev/dailybackup/internal/domain"
)

// listTimeout bounds ListDatabases when the caller sets no deadline.
const listTimeout = time.Minute

// OdooDatabase talks to the database manager service of an Odoo server.
type OdooDatabase struct {
	host           string
	port           int
	scheme         string
	masterPassword string
	transport      http.RoundTripper
}

func NewOdoo(host string, port int, useTLS bool, masterPassword string) *OdooDatabase {
	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	return &OdooDatabase{
		host:           host,
		port:           port,
		scheme:         scheme,
		masterPassword: masterPassword,
		transport:      http.DefaultTransport,
	}
}

func (o *OdooDatabase) GetType() string {
	return domain.SourceOdoo
}

func (o *OdooDatabase) ListDatabases(ctx context.Context, host string, port int) ([]string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, listTimeout)
		defer cancel()
	}

	var dbs []string
	if err := o.call(ctx, host, port, "list", nil, &dbs); err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	return dbs, nil
}

// ProduceArchive asks the server for a dump of databaseName and writes the
// decoded archive to w.
func (o *OdooDatabase) ProduceArchive(ctx context.Context, databaseName string, kind domain.ArchiveKind, w io.Writer) error {
	// The dump service returns the whole archive as one base64 string, so
	// unlike the CLI sources the dump is held in memory before decoding.
	var encoded string
	args := []interface{}{o.masterPassword, databaseName, string(kind)}
	if err := o.call(ctx, o.host, o.port, "dump", args, &encoded); err != nil {
		return fmt.Errorf("failed to dump database %s: %w", databaseName, err)
	}

	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(encoded))
	if _, err := io.Copy(w, dec); err != nil {
		return fmt.Errorf("failed to decode dump of %s: %w", databaseName, err)
	}
	return nil
}

func (o *OdooDatabase) endpoint(host string, port int) string {
	return fmt.Sprintf("%s://%s/xmlrpc/db", o.scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

// call performs one xmlrpc request bound to ctx.
func (o *OdooDatabase) call(ctx context.Context, host string, port int, method string, args, reply interface{}) error {
	client, err := xmlrpc.NewClient(o.endpoint(host, port), contextTransport{ctx: ctx, base: o.transport})
	if err != nil {
		return fmt.Errorf("failed to create xmlrpc client: %w", err)
	}
	defer client.Close()

	if err := client.Call(method, args, reply); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// contextTransport attaches ctx to every request, since the xmlrpc client
// performs the HTTP exchange without one.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
