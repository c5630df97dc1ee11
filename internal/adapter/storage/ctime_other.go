//go:build !(linux || freebsd || openbsd)

package storage

import (
	"os"
	"time"
)

func creationTime(path string, info os.FileInfo) time.Time {
	return info.ModTime()
}
