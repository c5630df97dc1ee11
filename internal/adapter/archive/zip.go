package archive

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// ZipWriter stores everything written to it as a single deflated entry of a
// zip archive. Close must be called to flush the central directory.
type ZipWriter struct {
	zw    *zip.Writer
	entry io.Writer
}

func NewZipWriter(w io.Writer, entryName string) (*ZipWriter, error) {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entryName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create zip entry: %w", err)
	}

	return &ZipWriter{zw: zw, entry: entry}, nil
}

func (z *ZipWriter) Write(p []byte) (int, error) {
	return z.entry.Write(p)
}

func (z *ZipWriter) Close() error {
	if err := z.zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zip archive: %w", err)
	}
	return nil
}

// ReadEntry copies the named entry of the zip archive in r to dst.
func ReadEntry(r io.ReaderAt, size int64, entryName string, dst io.Writer) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry: %w", err)
		}
		defer rc.Close()

		if _, err := io.Copy(dst, rc); err != nil {
			return fmt.Errorf("failed to read zip entry: %w", err)
		}
		return nil
	}

	return fmt.Errorf("zip entry %s not found", entryName)
}
