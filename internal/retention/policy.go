// Package retention decides which backup archives have outlived their
// retention period. It is shared by the local and the remote sweep.
package retention

import (
	"path"
	"time"
)

const day = 24 * time.Hour

// ShouldDelete reports whether an entry is a regular archive file at least
// retentionDays whole days old.
func ShouldDelete(ageInWholeDays, retentionDays int, isRegularFile, hasArchiveExtension bool) bool {
	return isRegularFile && hasArchiveExtension && ageInWholeDays >= retentionDays
}

// AgeInWholeDays returns the number of complete 24h periods between t and now.
// Timestamps in the future count as age zero.
func AgeInWholeDays(now, t time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d / day)
}

// HasArchiveExtension reports whether name ends in .zip or .dump.
func HasArchiveExtension(name string) bool {
	switch path.Ext(name) {
	case ".zip", ".dump":
		return true
	}
	return false
}

// Entry is the minimal view of a file both sweeps evaluate.
type Entry struct {
	Name      string
	IsRegular bool
	Stamp     time.Time
}

// Expired reports whether e should be deleted under a retention of days.
func Expired(now time.Time, e Entry, days int) bool {
	return ShouldDelete(AgeInWholeDays(now, e.Stamp), days, e.IsRegular, HasArchiveExtension(e.Name))
}
