package remote

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/dailybackup/internal/domain"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	driveFields    = "id, name, mimeType, size, modifiedTime, viewedByMeTime"
)

// GDriveDialer opens sessions rooted at a Google Drive folder. Remote paths
// are resolved folder by folder below that root.
type GDriveDialer struct{}

func NewGDriveDialer() *GDriveDialer {
	return &GDriveDialer{}
}

func (d *GDriveDialer) Dial(ctx context.Context, ep domain.Endpoint) (domain.RemoteSession, error) {
	opts, err := driveOptions(ep)
	if err != nil {
		return nil, err
	}

	// the service outlives ctx, which only bounds the dial
	service, err := drive.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	probeCtx := ctx
	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}
	root := ep.Settings.FolderID
	if _, err := service.Files.Get(root).Fields("id").Context(probeCtx).Do(); err != nil {
		return nil, fmt.Errorf("failed to reach drive folder %s: %w", root, err)
	}

	return &gdriveSession{
		service: service,
		folders: map[string]string{"": root},
	}, nil
}

// OAuthConfig reads an OAuth client secret file for the Drive file scope.
func OAuthConfig(clientSecretFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}
	return cfg, nil
}

func driveOptions(ep domain.Endpoint) ([]option.ClientOption, error) {
	s := ep.Settings
	if s.ClientSecretFile == "" {
		return []option.ClientOption{option.WithCredentialsFile(s.CredentialsFile)}, nil
	}

	cfg, err := OAuthConfig(s.ClientSecretFile)
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{RefreshToken: ep.Credential}
	return []option.ClientOption{option.WithTokenSource(cfg.TokenSource(context.Background(), token))}, nil
}

type gdriveSession struct {
	service *drive.Service

	mu      sync.Mutex
	folders map[string]string // clean relative path -> folder id
}

func (g *gdriveSession) Chdir(ctx context.Context, p string) error {
	_, err := g.folderID(ctx, cleanDrivePath(p))
	return err
}

func (g *gdriveSession) Mkdir(ctx context.Context, p string) error {
	rel := cleanDrivePath(p)
	parentID, err := g.folderID(ctx, parentOf(rel))
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p, err)
	}

	created, err := g.service.Files.Create(&drive.File{
		Name:     path.Base(rel),
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p, err)
	}

	g.mu.Lock()
	g.folders[rel] = created.Id
	g.mu.Unlock()
	return nil
}

func (g *gdriveSession) Stat(ctx context.Context, p string) (domain.RemoteFile, error) {
	f, err := g.lookup(ctx, cleanDrivePath(p))
	if err != nil {
		return domain.RemoteFile{}, err
	}
	return toDriveRemoteFile(f), nil
}

func (g *gdriveSession) ReadDir(ctx context.Context, p string) ([]domain.RemoteFile, error) {
	id, err := g.folderID(ctx, cleanDrivePath(p))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p, err)
	}

	var files []domain.RemoteFile
	query := fmt.Sprintf("'%s' in parents and trashed=false", id)
	err = g.service.Files.List().
		Q(query).
		Fields("nextPageToken, files(" + driveFields + ")").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, toDriveRemoteFile(f))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (g *gdriveSession) Put(ctx context.Context, localPath, remotePath string) error {
	rel := cleanDrivePath(remotePath)
	parentID, err := g.folderID(ctx, parentOf(rel))
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	_, err = g.service.Files.Create(&drive.File{
		Name:    path.Base(rel),
		Parents: []string{parentID},
	}).Media(file).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}
	return nil
}

func (g *gdriveSession) Remove(ctx context.Context, p string) error {
	f, err := g.lookup(ctx, cleanDrivePath(p))
	if err != nil {
		return fmt.Errorf("failed to find file: %w", err)
	}
	if err := g.service.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (g *gdriveSession) Close() error {
	return nil
}

func (g *gdriveSession) folderID(ctx context.Context, rel string) (string, error) {
	g.mu.Lock()
	id, ok := g.folders[rel]
	g.mu.Unlock()
	if ok {
		return id, nil
	}

	f, err := g.lookup(ctx, rel)
	if err != nil {
		return "", err
	}
	if f.MimeType != folderMimeType {
		return "", fmt.Errorf("%s is not a directory", rel)
	}

	g.mu.Lock()
	g.folders[rel] = f.Id
	g.mu.Unlock()
	return f.Id, nil
}

// lookup resolves a non-root path to its Drive file.
func (g *gdriveSession) lookup(ctx context.Context, rel string) (*drive.File, error) {
	if rel == "" {
		return nil, fmt.Errorf("cannot stat drive root")
	}

	parentID, err := g.folderID(ctx, parentOf(rel))
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false",
		parentID, escapeDriveQuery(path.Base(rel)))
	list, err := g.service.Files.List().
		Q(query).
		Fields("files(" + driveFields + ")").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", rel, err)
	}
	if len(list.Files) == 0 {
		return nil, fmt.Errorf("%s: %w", rel, fs.ErrNotExist)
	}
	return list.Files[0], nil
}

func toDriveRemoteFile(f *drive.File) domain.RemoteFile {
	mod, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	access := mod
	if viewed, err := time.Parse(time.RFC3339, f.ViewedByMeTime); err == nil {
		access = viewed
	}
	return domain.RemoteFile{
		Name:       f.Name,
		Size:       f.Size,
		IsRegular:  f.MimeType != folderMimeType,
		ModTime:    mod,
		AccessTime: access,
	}
}

func cleanDrivePath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func parentOf(rel string) string {
	dir := path.Dir(rel)
	if dir == "." {
		return ""
	}
	return dir
}

func escapeDriveQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
