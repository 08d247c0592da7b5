package cudabuild

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"lukechampine.com/blake3"
)

// ManifestEntry is one hashed build artifact.
type ManifestEntry struct {
	Name string
	Sum  string
}

// listArtifacts returns the regular, non-hidden files directly under dir.
func listArtifacts(dir string) ([]string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}
	var names []string
	var total int64
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, 0, err
		}
		names = append(names, e.Name())
		total += info.Size()
	}
	sort.Strings(names)
	return names, total, nil
}

func b3File(path string, progress io.Writer) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(io.MultiWriter(h, progress), f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashArtifacts computes BLAKE3 sums for the artifacts under dir. The
// progress bar is only drawn when showProgress is set.
func HashArtifacts(dir string, showProgress bool) ([]ManifestEntry, error) {
	names, total, err := listArtifacts(dir)
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.DefaultBytes(total, "hashing artifacts")
	} else {
		bar = progressbar.DefaultBytesSilent(total, "hashing artifacts")
	}
	defer bar.Finish()

	entries := make([]ManifestEntry, 0, len(names))
	for _, name := range names {
		sum, err := b3File(filepath.Join(dir, name), bar)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}
		entries = append(entries, ManifestEntry{Name: name, Sum: sum})
	}
	return entries, nil
}

// WriteManifest writes entries in b3sum format.
func WriteManifest(path string, entries []ManifestEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s  %s\n", e.Sum, e.Name)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
