package cudabuild

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"
)

const (
	codecXZ   = "xz"
	codecZstd = "zst"
	codecGzip = "gz"
	codecNone = "none"

	latestLogLink = "latest"
)

var errNoBuildLog = errors.New("no build log archived yet")

type logCodec struct {
	ext       string
	newWriter func(io.Writer) (io.WriteCloser, error)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

var logCodecs = map[string]logCodec{
	codecXZ: {".xz", func(w io.Writer) (io.WriteCloser, error) {
		return xz.NewWriter(w)
	}},
	codecZstd: {".zst", func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	}},
	codecGzip: {".gz", func(w io.Writer) (io.WriteCloser, error) {
		return pgzip.NewWriter(w), nil
	}},
	codecNone: {"", func(w io.Writer) (io.WriteCloser, error) {
		return nopWriteCloser{w}, nil
	}},
}

// withLogDirLock holds an exclusive flock on the log directory while fn runs.
func withLogDirLock(logDir string, fn func() error) error {
	f, err := os.OpenFile(filepath.Join(logDir, ".lock"), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock %s: %w", logDir, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return fn()
}

// ArchiveBuildLog compresses srcPath into logDir as
// build-<stamp>.log<ext> and points the "latest" link at it.
func ArchiveBuildLog(srcPath, logDir, codec, stamp string) (string, error) {
	c, ok := logCodecs[codec]
	if !ok {
		return "", fmt.Errorf("unknown log compression %q", codec)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	name := "build-" + stamp + ".log" + c.ext
	destPath := filepath.Join(logDir, name)

	err := withLogDirLock(logDir, func() error {
		src, err := os.Open(srcPath)
		if err != nil {
			return err
		}
		defer src.Close()

		tmpPath := destPath + ".tmp"
		dest, err := os.Create(tmpPath)
		if err != nil {
			return err
		}
		defer os.Remove(tmpPath)

		w, err := c.newWriter(dest)
		if err != nil {
			dest.Close()
			return err
		}
		if _, err := io.Copy(w, src); err != nil {
			w.Close()
			dest.Close()
			return fmt.Errorf("failed to compress build log: %w", err)
		}
		if err := w.Close(); err != nil {
			dest.Close()
			return err
		}
		if err := dest.Close(); err != nil {
			return err
		}
		if err := os.Rename(tmpPath, destPath); err != nil {
			return err
		}

		link := filepath.Join(logDir, latestLogLink)
		_ = os.Remove(link)
		return os.Symlink(name, link)
	})
	if err != nil {
		return "", err
	}
	return destPath, nil
}

// latestBuildLog resolves the "latest" link in logDir.
func latestBuildLog(logDir string) (string, error) {
	target, err := os.Readlink(filepath.Join(logDir, latestLogLink))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errNoBuildLog
		}
		return "", err
	}
	if filepath.IsAbs(target) {
		return target, nil
	}
	return filepath.Join(logDir, target), nil
}

type decodedLog struct {
	io.Reader
	closers []func() error
}

func (d *decodedLog) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenBuildLog opens an archived log, decompressing by file extension.
func OpenBuildLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return &decodedLog{Reader: xr, closers: []func() error{f.Close}}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		rc := zr.IOReadCloser()
		return &decodedLog{Reader: rc, closers: []func() error{rc.Close, f.Close}}, nil
	case strings.HasSuffix(path, ".gz"):
		gr, err := pgzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return &decodedLog{Reader: gr, closers: []func() error{gr.Close, f.Close}}, nil
	default:
		return f, nil
	}
}
