package install

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/gamewarden/gamewarden/internal/logger"
)

var (
	errUnknownCompression = errors.New("unknown compression")
	errUnsafeArchivePath  = errors.New("archive entry escapes target directory")
	errUnsafeArchiveLink  = errors.New("archive symlink escapes target directory")
)

const defaultDirMode fs.FileMode = 0o755

// ExtractPayload decompresses and unpacks the archive at archivePath into
// the payload directory. The archive file itself is left untouched on
// failure so the caller decides whether to retry or discard it.
func (r *Reconciler) ExtractPayload(ctx context.Context, archivePath string) error {
	archive, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = archive.Close()
	}()

	decompressed, closeDecoder, err := newDecompressor(archive, r.compression)
	if err != nil {
		return err
	}
	defer closeDecoder()

	if err = os.MkdirAll(r.target.PayloadDir, defaultDirMode); err != nil {
		return fmt.Errorf("create payload dir: %w", err)
	}

	entries := 0

	reader := tar.NewReader(decompressed)
	for {
		header, readErr := reader.Next()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return fmt.Errorf("read archive: %w", readErr)
		}

		if err = r.extractEntry(reader, header); err != nil {
			return err
		}

		entries++
	}

	logger.InfoKV(ctx, "Extracted payload", "path", r.target.PayloadDir, "entries", entries)

	return nil
}

// extractEntry materializes a single tar entry under the payload directory.
// Entry names, symlink targets and the realized parent directory (with any
// already-created symlinks resolved) must all stay inside the target.
func (r *Reconciler) extractEntry(reader *tar.Reader, header *tar.Header) error {
	path, err := r.securePath(header.Name)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return fmt.Errorf("create parent of %s: %w", path, err)
	}

	if err = r.ensureRealParent(path); err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err = os.MkdirAll(path, fs.FileMode(header.Mode)); err != nil {
			return fmt.Errorf("create dir %s: %w", path, err)
		}
	case tar.TypeReg:
		if err = writeFileFrom(reader, path, fs.FileMode(header.Mode)); err != nil {
			return err
		}
	case tar.TypeSymlink:
		if err = r.secureLinkname(path, header.Linkname); err != nil {
			return err
		}

		if err = os.Symlink(header.Linkname, path); err != nil {
			return fmt.Errorf("create symlink %s: %w", path, err)
		}
	default:
		// Device nodes, fifos and hard links have no business in a game
		// server package; skip them.
	}

	return nil
}

// securePath joins an archive entry name to the payload directory and
// rejects entries that would escape it.
func (r *Reconciler) securePath(name string) (string, error) {
	path := filepath.Join(r.target.PayloadDir, filepath.Clean("/"+name))

	if escapes(r.target.PayloadDir, path) {
		return "", fmt.Errorf("%s: %w", name, errUnsafeArchivePath)
	}

	return path, nil
}

// secureLinkname rejects symlink targets that would point outside the
// payload directory: absolute targets and relative targets that climb past
// it when resolved against the entry's own directory.
func (r *Reconciler) secureLinkname(entryPath, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("%s -> %s: %w", entryPath, linkname, errUnsafeArchiveLink)
	}

	resolved := filepath.Join(filepath.Dir(entryPath), linkname)
	if escapes(r.target.PayloadDir, resolved) {
		return fmt.Errorf("%s -> %s: %w", entryPath, linkname, errUnsafeArchiveLink)
	}

	return nil
}

// ensureRealParent re-checks an entry's parent directory with symlinks
// materialized on disk resolved: a name that is lexically inside the target
// can still land outside it when routed through a symlinked directory.
func (r *Reconciler) ensureRealParent(path string) error {
	root, err := filepath.EvalSymlinks(r.target.PayloadDir)
	if err != nil {
		return fmt.Errorf("resolve payload dir: %w", err)
	}

	parent, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("resolve parent of %s: %w", path, err)
	}

	if escapes(root, parent) {
		return fmt.Errorf("%s: %w", path, errUnsafeArchivePath)
	}

	return nil
}

// escapes reports whether candidate lies outside the tree rooted at base.
func escapes(base, candidate string) bool {
	rel, err := filepath.Rel(base, candidate)
	if err != nil {
		return true
	}

	return rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// writeFileFrom streams a tar entry body into a new file at path.
func writeFileFrom(reader io.Reader, path string, mode fs.FileMode) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err = io.Copy(file, reader); err != nil {
		_ = file.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

// newDecompressor wraps the archive stream in the configured decoder.
// The remote index publishes tar+xz today, but the format is configuration,
// not an assumption.
func newDecompressor(source io.Reader, compression string) (io.Reader, func(), error) {
	noop := func() {}

	switch compression {
	case "xz":
		reader, err := xz.NewReader(source)
		if err != nil {
			return nil, noop, fmt.Errorf("open xz stream: %w", err)
		}

		return reader, noop, nil
	case "gz":
		reader, err := gzip.NewReader(source)
		if err != nil {
			return nil, noop, fmt.Errorf("open gzip stream: %w", err)
		}

		return reader, func() { _ = reader.Close() }, nil
	case "zst":
		decoder, err := zstd.NewReader(source)
		if err != nil {
			return nil, noop, fmt.Errorf("open zstd stream: %w", err)
		}

		return decoder, decoder.Close, nil
	case "none":
		return source, noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %s", errUnknownCompression, compression)
	}
}
