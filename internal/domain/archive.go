package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ArchiveTimeLayout is the timestamp prefix of every archive name.
const ArchiveTimeLayout = "2006_01_02_15_04_05"

// ArchiveName builds "YYYY_MM_DD_HH_MM_SS_<database>.<kind>".
func ArchiveName(t time.Time, databaseName string, kind ArchiveKind) string {
	return fmt.Sprintf("%s_%s.%s", t.Format(ArchiveTimeLayout), databaseName, kind)
}

// ArchiveInfo is the parsed form of an archive name.
type ArchiveInfo struct {
	Timestamp    time.Time
	DatabaseName string
	Kind         ArchiveKind
}

// ParseArchiveName is the inverse of ArchiveName. The timestamp is parsed in
// the local time zone, which is the zone ArchiveName writes with.
func ParseArchiveName(name string) (ArchiveInfo, error) {
	ext := path.Ext(name)
	kind := ArchiveKind(strings.TrimPrefix(ext, "."))
	if !kind.Valid() {
		return ArchiveInfo{}, fmt.Errorf("invalid archive name %q: unknown extension", name)
	}

	stem := strings.TrimSuffix(name, ext)
	if len(stem) < len(ArchiveTimeLayout)+2 || stem[len(ArchiveTimeLayout)] != '_' {
		return ArchiveInfo{}, fmt.Errorf("invalid archive name %q: no timestamp found", name)
	}

	ts, err := time.ParseInLocation(ArchiveTimeLayout, stem[:len(ArchiveTimeLayout)], time.Local)
	if err != nil {
		return ArchiveInfo{}, fmt.Errorf("invalid archive name %q: %w", name, err)
	}

	return ArchiveInfo{
		Timestamp:    ts,
		DatabaseName: stem[len(ArchiveTimeLayout)+1:],
		Kind:         kind,
	}, nil
}

// Matcher reports whether a file name belongs to a database.
type Matcher struct {
	DatabaseName string
	Mode         MatchMode
}

func NewMatcher(r *Record) Matcher {
	return Matcher{DatabaseName: r.DatabaseName, Mode: r.MatchMode}
}

func (m Matcher) Match(name string) bool {
	if m.DatabaseName == "" {
		return false
	}
	if m.Mode == MatchSubstring {
		return strings.Contains(name, m.DatabaseName)
	}
	info, err := ParseArchiveName(name)
	if err != nil {
		return false
	}
	return info.DatabaseName == m.DatabaseName
}
