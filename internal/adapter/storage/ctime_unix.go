//go:build linux || freebsd || openbsd

package storage

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// creationTime returns the inode change time, which is what the backup
// tooling has always used as an archive's creation time on Unix.
func creationTime(path string, info os.FileInfo) time.Time {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return info.ModTime()
	}
	return time.Unix(st.Ctim.Unix())
}
