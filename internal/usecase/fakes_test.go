package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/semmidev/dailybackup/internal/domain"
)

// memSession is an in-memory remote directory tree.
type memSession struct {
	mu      sync.Mutex
	dirs    map[string]bool
	files   map[string]domain.RemoteFile
	putErrs map[string]error
	onPut   func()

	mkdirs  int
	puts    int
	removes int
	closed  int
}

func newMemSession() *memSession {
	return &memSession{
		dirs:    map[string]bool{"/": true},
		files:   map[string]domain.RemoteFile{},
		putErrs: map[string]error{},
	}
}

func notExist(p string) error {
	return &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (s *memSession) Chdir(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirs[path.Clean(p)] {
		return notExist(p)
	}
	return nil
}

func (s *memSession) Mkdir(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = path.Clean(p)
	if !s.dirs[path.Dir(p)] {
		return notExist(path.Dir(p))
	}
	s.mkdirs++
	s.dirs[p] = true
	return nil
}

func (s *memSession) Stat(ctx context.Context, p string) (domain.RemoteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = path.Clean(p)
	if f, ok := s.files[p]; ok {
		return f, nil
	}
	if s.dirs[p] {
		return domain.RemoteFile{Name: path.Base(p)}, nil
	}
	return domain.RemoteFile{}, notExist(p)
}

func (s *memSession) ReadDir(ctx context.Context, p string) ([]domain.RemoteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = path.Clean(p)
	if !s.dirs[p] {
		return nil, notExist(p)
	}

	var out []domain.RemoteFile
	for fp, f := range s.files {
		if path.Dir(fp) == p {
			out = append(out, f)
		}
	}
	for dp := range s.dirs {
		if dp != p && path.Dir(dp) == p {
			out = append(out, domain.RemoteFile{Name: path.Base(dp)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memSession) Put(ctx context.Context, localPath, remotePath string) error {
	if s.onPut != nil {
		s.onPut()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++

	remotePath = path.Clean(remotePath)
	if err := s.putErrs[path.Base(remotePath)]; err != nil {
		return err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	now := time.Now()
	s.files[remotePath] = domain.RemoteFile{
		Name:       path.Base(remotePath),
		Size:       info.Size(),
		IsRegular:  true,
		ModTime:    now,
		AccessTime: now,
	}
	return nil
}

func (s *memSession) Remove(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes++
	p = path.Clean(p)
	if _, ok := s.files[p]; !ok {
		return notExist(p)
	}
	delete(s.files, p)
	return nil
}

func (s *memSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *memSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *memSession) addFile(p string, f domain.RemoteFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.Name = path.Base(p)
	s.files[path.Clean(p)] = f
}

func (s *memSession) names(dir string) []string {
	entries, _ := s.ReadDir(context.Background(), dir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

// memDialer hands out the same session, failing first with the queued errors.
type memDialer struct {
	mu       sync.Mutex
	session  *memSession
	errs     []error
	calls    int
	lastEp   domain.Endpoint
	deadline bool
}

func (d *memDialer) Dial(ctx context.Context, ep domain.Endpoint) (domain.RemoteSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.lastEp = ep
	_, d.deadline = ctx.Deadline()
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	return d.session, nil
}

// instantClock fires every retry delay immediately.
type instantClock struct {
	clock.Clock
}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

type fakeSource struct {
	dbs        []string
	listErr    error
	content    string
	produceErr error
	panicMsg   string
}

func (s *fakeSource) GetType() string { return domain.SourceOdoo }

func (s *fakeSource) ListDatabases(ctx context.Context, host string, port int) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.dbs, nil
}

func (s *fakeSource) ProduceArchive(ctx context.Context, databaseName string, kind domain.ArchiveKind, w io.Writer) error {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.produceErr != nil {
		return s.produceErr
	}
	_, err := io.WriteString(w, s.content)
	return err
}

// fakeFactory maps a record's database name to its source.
type fakeFactory map[string]*fakeSource

func (f fakeFactory) ForRecord(r *domain.Record) (domain.Source, error) {
	if s, ok := f[r.DatabaseName]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no source for %s", r.DatabaseName)
}

type staticRecords struct {
	records []domain.Record
	err     error
}

func (s staticRecords) Records(ctx context.Context) ([]domain.Record, error) {
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out, s.err
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
}

func (a *recordingAlerter) SendAlert(ctx context.Context, alert domain.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return a.err
}

// listStore is a LocalStore over a fixed listing.
type listStore struct {
	files     []domain.LocalFile
	deleted   []string
	deleteErr map[string]error
}

func (s *listStore) Ensure(dir string) error { return nil }

func (s *listStore) Create(dir, name string, produce func(io.Writer) error) (domain.LocalFile, error) {
	return domain.LocalFile{}, errors.New("not supported")
}

func (s *listStore) List(dir string) ([]domain.LocalFile, error) {
	return s.files, nil
}

func (s *listStore) Delete(dir, name string) error {
	if err := s.deleteErr[name]; err != nil {
		return err
	}
	s.deleted = append(s.deleted, name)
	return nil
}
