package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/semmidev/dailybackup/internal/domain"
)

type SFTPDialer struct {
	hostKeys *HostKeyStore
}

func NewSFTPDialer(hostKeys *HostKeyStore) *SFTPDialer {
	return &SFTPDialer{hostKeys: hostKeys}
}

func (d *SFTPDialer) Dial(ctx context.Context, ep domain.Endpoint) (domain.RemoteSession, error) {
	s := ep.Settings

	auth, err := authMethods(s.KeyFile, ep.Credential)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := d.hostKeys.Callback(s.HostKeyPolicy)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            s.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         ep.Timeout,
	}

	addr := s.Address()
	dialer := net.Dialer{Timeout: ep.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	// bound the handshake by the same timeout as the TCP dial
	if ep.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(ep.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish ssh session with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(c, chans, reqs)
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to open sftp subsystem: %w", err)
	}

	return newSFTPSession(sftpClient, sshClient), nil
}

func authMethods(keyFile, credential string) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if keyFile != "" {
		pem, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}

		var signer ssh.Signer
		if credential != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(credential))
		} else {
			signer, err = ssh.ParsePrivateKey(pem)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	} else if credential != "" {
		methods = append(methods,
			ssh.Password(credential),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = credential
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, errors.New("no ssh credential configured")
	}
	return methods, nil
}

// sftpSession maps RemoteSession onto an sftp client. The ctx arguments are
// not consulted per call; callers cancel by closing the session.
type sftpSession struct {
	client *sftp.Client
	conn   *ssh.Client

	closeOnce sync.Once
	closeErr  error
}

func newSFTPSession(client *sftp.Client, conn *ssh.Client) *sftpSession {
	return &sftpSession{client: client, conn: conn}
}

func (s *sftpSession) Chdir(ctx context.Context, p string) error {
	info, err := s.client.Stat(p)
	if err != nil {
		return normalise(p, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", p)
	}
	return nil
}

func (s *sftpSession) Mkdir(ctx context.Context, p string) error {
	if err := s.client.Mkdir(p); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p, err)
	}
	return nil
}

func (s *sftpSession) Stat(ctx context.Context, p string) (domain.RemoteFile, error) {
	info, err := s.client.Stat(p)
	if err != nil {
		return domain.RemoteFile{}, normalise(p, err)
	}
	return toRemoteFile(info), nil
}

func (s *sftpSession) ReadDir(ctx context.Context, p string) ([]domain.RemoteFile, error) {
	infos, err := s.client.ReadDir(p)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p, normalise(p, err))
	}

	files := make([]domain.RemoteFile, 0, len(infos))
	for _, info := range infos {
		files = append(files, toRemoteFile(info))
	}
	return files, nil
}

// Put uploads localPath to remotePath. A failed transfer removes the partial
// remote file so that a later run does not mistake it for a mirrored copy.
func (s *sftpSession) Put(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	dst, err := s.client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", remotePath, err)
	}

	if _, err := dst.ReadFrom(src); err != nil {
		dst.Close()
		_ = s.client.Remove(remotePath)
		return fmt.Errorf("failed to upload %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		_ = s.client.Remove(remotePath)
		return fmt.Errorf("failed to finish %s: %w", remotePath, err)
	}
	return nil
}

func (s *sftpSession) Remove(ctx context.Context, p string) error {
	if err := s.client.Remove(p); err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}

func (s *sftpSession) Close() error {
	s.closeOnce.Do(func() {
		// the client waits for its receive loop, which only ends once the
		// transport is gone
		if s.conn != nil {
			s.closeErr = s.conn.Close()
			_ = s.client.Close()
			return
		}
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func toRemoteFile(info os.FileInfo) domain.RemoteFile {
	f := domain.RemoteFile{
		Name:       path.Base(info.Name()),
		Size:       info.Size(),
		IsRegular:  info.Mode().IsRegular(),
		ModTime:    info.ModTime(),
		AccessTime: info.ModTime(),
	}
	if st, ok := info.Sys().(*sftp.FileStat); ok && st.Atime != 0 {
		f.AccessTime = time.Unix(int64(st.Atime), 0)
	}
	return f
}

func normalise(p string, err error) error {
	var se *sftp.StatusError
	if errors.Is(err, fs.ErrNotExist) ||
		(errors.As(err, &se) && se.FxCode() == sftp.ErrSSHFxNoSuchFile) {
		return fmt.Errorf("%s: %w", p, fs.ErrNotExist)
	}
	return err
}
