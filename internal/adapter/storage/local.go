package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/semmidev/dailybackup/internal/domain"
)

const partSuffix = ".part"

// LocalStorage manages archives inside local backup directories.
type LocalStorage struct{}

func NewLocal() *LocalStorage {
	return &LocalStorage{}
}

// Ensure creates dir and its parents when missing.
func (l *LocalStorage) Ensure(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("backup directory %s is not a directory", dir)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat backup directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	return nil
}

// Create streams produce's output into dir/name. The data is written to a
// temporary sibling first so a failed producer never leaves a file under the
// final name.
func (l *LocalStorage) Create(dir, name string, produce func(w io.Writer) error) (domain.LocalFile, error) {
	finalPath := filepath.Join(dir, name)
	partPath := finalPath + partSuffix

	f, err := os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return domain.LocalFile{}, fmt.Errorf("failed to create dest: %w", err)
	}

	if err := produce(f); err != nil {
		f.Close()
		os.Remove(partPath)
		return domain.LocalFile{}, err
	}

	if err := f.Close(); err != nil {
		os.Remove(partPath)
		return domain.LocalFile{}, fmt.Errorf("failed to flush archive: %w", err)
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		os.Remove(partPath)
		return domain.LocalFile{}, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return l.stat(dir, name)
}

// List returns every entry of dir, directories included.
func (l *LocalStorage) List(dir string) ([]domain.LocalFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]domain.LocalFile, 0, len(entries))
	for _, entry := range entries {
		f, err := l.stat(dir, entry.Name())
		if err != nil {
			// vanished between ReadDir and stat
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		files = append(files, f)
	}

	return files, nil
}

func (l *LocalStorage) Delete(dir, name string) error {
	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) stat(dir, name string) (domain.LocalFile, error) {
	path := filepath.Join(dir, name)

	// Lstat: a symlink is not treated as a regular archive file.
	info, err := os.Lstat(path)
	if err != nil {
		return domain.LocalFile{}, fmt.Errorf("failed to get file info for %s: %w", name, err)
	}

	return domain.LocalFile{
		Name:      name,
		Path:      path,
		Size:      info.Size(),
		IsRegular: info.Mode().IsRegular(),
		CreatedAt: creationTime(path, info),
		ModTime:   info.ModTime(),
	}, nil
}
