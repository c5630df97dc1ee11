package database

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/semmidev/dailybackup/internal/adapter/archive"
	"github.com/semmidev/dailybackup/internal/domain"
)

// conn holds what every command line client needs to reach a server.
type conn struct {
	host     string
	port     int
	username string
	password string
}

func output(ctx context.Context, bin string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w, output: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// stream runs a dump tool with its stdout going to w. For the zip kind the
// output becomes the single entry of a zip archive.
func stream(ctx context.Context, bin string, args, env []string, kind domain.ArchiveKind, entryName string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var zw *archive.ZipWriter
	if kind == domain.ArchiveZip {
		var err error
		if zw, err = archive.NewZipWriter(w, entryName); err != nil {
			return err
		}
		cmd.Stdout = zw
	} else {
		cmd.Stdout = w
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w, output: %s", bin, err, strings.TrimSpace(stderr.String()))
	}

	if zw != nil {
		return zw.Close()
	}
	return nil
}

// parseLines returns the non-empty trimmed lines of out.
func parseLines(out []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
