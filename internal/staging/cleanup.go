package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
)

// CleanupResult contains the outcome of a cleanup operation.
type CleanupResult struct {
	// Removed lists the job ids whose records were deleted.
	Removed []string
	// Orphans lists download-root paths removed without a record.
	Orphans []string
	Errors  []CleanupError
}

// CleanupError pairs a job id or path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// SweepExpired deletes every record whose reference time (finished, else
// created) is older than maxAge. Per-job errors are collected and never stop
// the sweep.
func SweepExpired(ctx context.Context, store jobs.Store, maxAge time.Duration, now time.Time, logger *slog.Logger) CleanupResult {
	result := CleanupResult{}
	if store == nil || maxAge <= 0 {
		return result
	}
	cutoff := now.Add(-maxAge)

	for _, record := range store.List() {
		if ctx.Err() != nil {
			return result
		}
		snap := record.Snapshot()
		ref := snap.ReferenceTime()
		if !ref.Before(cutoff) {
			continue
		}
		err := store.Delete(snap.ID)
		if errors.Is(err, jobs.ErrNotFound) {
			continue
		}
		result.Removed = append(result.Removed, snap.ID)
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: snap.ID, Error: err})
			if logger != nil {
				logger.Warn("expired job removed but artifacts remain",
					logging.String(logging.FieldJobID, snap.ID),
					logging.Error(err),
					logging.String(logging.FieldEventType, "job_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check download_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		if logger != nil {
			logger.Info("removed expired job",
				logging.String(logging.FieldJobID, snap.ID),
				logging.String(logging.FieldStatus, string(snap.Status)),
				logging.Duration("age", now.Sub(ref)),
				logging.String(logging.FieldEventType, "job_cleanup"),
			)
		}
	}
	return result
}

// CleanOrphaned removes job directories and archives under root that have
// no record in store and were last modified before maxAge. Entries whose
// names are not job ids are never touched.
func CleanOrphaned(ctx context.Context, root string, store jobs.Store, maxAge time.Duration, now time.Time, logger *slog.Logger) CleanupResult {
	result := CleanupResult{}

	root = strings.TrimSpace(root)
	if root == "" || store == nil {
		return result
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return result
	}

	cutoff := now.Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		id, ok := artifactID(entry)
		if !ok {
			continue
		}
		if _, known := store.Get(id); known {
			continue
		}
		path := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove orphaned download",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "orphan_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check download_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Orphans = append(result.Orphans, path)
		if logger != nil {
			logger.Info("removed orphaned download",
				logging.String("path", path),
				logging.String(logging.FieldEventType, "orphan_cleanup"),
			)
		}
	}

	return result
}

// artifactID maps a download-root entry to the job id it belongs to. Only
// names shaped like generated ids qualify; anything else in root is left alone.
func artifactID(entry fs.DirEntry) (string, bool) {
	name := entry.Name()
	if entry.IsDir() {
		return name, jobs.IsJobID(name)
	}
	if entry.Type().IsRegular() && strings.HasSuffix(name, jobs.ArchiveExt) {
		id := strings.TrimSuffix(name, jobs.ArchiveExt)
		return id, jobs.IsJobID(id)
	}
	return "", false
}

// CleanAll drops every record and empties root. Running jobs observe their
// cancel flag on the next progress callback.
func CleanAll(store jobs.Store, root string, logger *slog.Logger) (int, error) {
	cleared := 0
	if store != nil {
		cleared = store.Clear()
	}

	root = strings.TrimSpace(root)
	if root == "" {
		return cleared, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return cleared, nil
		}
		return cleared, err
	}
	reclaimed, _ := dirSize(root)
	var errs []error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if logger != nil {
		logger.Info("cleared all jobs and downloads",
			logging.Int("jobs", cleared),
			logging.String("reclaimed", humanize.IBytes(uint64(reclaimed))),
			logging.String(logging.FieldEventType, "clean_all"),
		)
	}
	return cleared, errors.Join(errs...)
}

// LocalFile describes a downloadable file found in the download root.
type LocalFile struct {
	Name  string  `json:"name"`
	Path  string  `json:"path"`
	Size  int64   `json:"size"`
	MTime float64 `json:"mtime"`
	JobID string  `json:"job_id"`
}

// ListLocalFiles lists files one level inside each job directory plus
// playlist archives in root, newest first.
func ListLocalFiles(root string) ([]LocalFile, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	files := []LocalFile{}
	for _, entry := range entries {
		switch {
		case entry.IsDir():
			subEntries, err := os.ReadDir(filepath.Join(root, entry.Name()))
			if err != nil {
				continue
			}
			for _, sub := range subEntries {
				if !sub.Type().IsRegular() {
					continue
				}
				info, err := sub.Info()
				if err != nil {
					continue
				}
				files = append(files, newLocalFile(sub.Name(), filepath.Join(entry.Name(), sub.Name()), info, entry.Name()))
			}
		case entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), jobs.ArchiveExt):
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, newLocalFile(entry.Name(), entry.Name(), info, strings.TrimSuffix(entry.Name(), jobs.ArchiveExt)))
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].MTime > files[j].MTime
	})
	return files, nil
}

func newLocalFile(name, rel string, info fs.FileInfo, jobID string) LocalFile {
	return LocalFile{
		Name:  name,
		Path:  filepath.ToSlash(rel),
		Size:  info.Size(),
		MTime: float64(info.ModTime().UnixNano()) / float64(time.Second),
		JobID: jobID,
	}
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if info.Mode().IsRegular() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
