package remote

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/semmidev/dailybackup/internal/domain"
)

// HostKeyStore verifies SSH host keys against a known_hosts file.
//
// With the tofu policy an unknown host is trusted on first use and its key is
// appended to the file. With the strict policy unknown hosts are rejected.
// A host whose key differs from the recorded one is always rejected.
//
// A read-only store never touches the file: a missing file counts as empty
// and tofu accepts unknown hosts without recording them.
type HostKeyStore struct {
	path     string
	readOnly bool
	mu       sync.Mutex
}

func NewHostKeyStore(path string) *HostKeyStore {
	return &HostKeyStore{path: path}
}

func NewReadOnlyHostKeyStore(path string) *HostKeyStore {
	return &HostKeyStore{path: path, readOnly: true}
}

func (h *HostKeyStore) Callback(policy string) (ssh.HostKeyCallback, error) {
	known, err := h.load()
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := known(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}
		if policy != domain.HostKeyTOFU {
			return fmt.Errorf("host %s is not in %s: %w", hostname, h.path, err)
		}
		if h.readOnly {
			return nil
		}
		return h.add(hostname, remote, key)
	}, nil
}

func (h *HostKeyStore) load() (ssh.HostKeyCallback, error) {
	if h.readOnly {
		if _, err := os.Stat(h.path); errors.Is(err, fs.ErrNotExist) {
			return func(string, net.Addr, ssh.PublicKey) error {
				return &knownhosts.KeyError{}
			}, nil
		}
	} else if err := h.ensureFile(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	known, err := knownhosts.New(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	return known, nil
}

func (h *HostKeyStore) add(hostname string, remote net.Addr, key ssh.PublicKey) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	addrs := []string{knownhosts.Normalize(hostname)}
	if remote != nil {
		if ra := knownhosts.Normalize(remote.String()); ra != addrs[0] {
			addrs = append(addrs, ra)
		}
	}

	f, err := os.OpenFile(h.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known hosts: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, knownhosts.Line(addrs, key)); err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}
	return nil
}

func (h *HostKeyStore) ensureFile() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0700); err != nil {
		return fmt.Errorf("failed to create known hosts directory: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known hosts: %w", err)
	}
	return f.Close()
}
