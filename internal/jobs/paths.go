package jobs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoArtifact is returned when a job directory holds no regular file.
var ErrNoArtifact = errors.New("no artifact found")

// ArchiveExt is the suffix of playlist archives in the download root.
const ArchiveExt = ".zip"

// ValidID reports whether id is safe to use as a path segment.
func ValidID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// IsJobID reports whether name has the shape of a generated job id:
// idLength lowercase hex characters.
func IsJobID(name string) bool {
	if len(name) != idLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// JobDir returns the per-job artifact directory under root.
func JobDir(root, id string) string {
	return filepath.Join(root, id)
}

// ArchivePath returns the playlist archive path for id under root.
func ArchivePath(root, id string) string {
	return filepath.Join(root, id+ArchiveExt)
}

// NewestFile walks dir and returns the regular file with the latest
// modification time.
func NewestFile(dir string) (string, fs.FileInfo, error) {
	var (
		bestPath string
		bestInfo fs.FileInfo
		bestTime time.Time
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if bestInfo == nil || info.ModTime().After(bestTime) {
			bestPath, bestInfo, bestTime = path, info, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if bestInfo == nil {
		return "", nil, ErrNoArtifact
	}
	return bestPath, bestInfo, nil
}

// RemoveArtifacts deletes the job directory and archive for id. Missing
// paths are not an error.
func RemoveArtifacts(root, id string) error {
	if strings.TrimSpace(root) == "" || !ValidID(id) {
		return nil
	}
	var errs []error
	if err := os.RemoveAll(JobDir(root, id)); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(ArchivePath(root, id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
