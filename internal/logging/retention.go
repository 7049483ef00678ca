package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// CurrentLogName is the stable name in the log directory that points at the
// active daemon run's log.
const CurrentLogName = "mediagrab.log"

const (
	runLogPrefix = "mediagrab-"
	runLogSuffix = ".log"
)

// RunLogPath returns the log file for one daemon run.
func RunLogPath(dir, runID string) string {
	return filepath.Join(dir, runLogPrefix+runID+runLogSuffix)
}

// CurrentLogPath returns the path of the current-run pointer in dir.
func CurrentLogPath(dir string) string {
	return filepath.Join(dir, CurrentLogName)
}

// LinkCurrentLog points <dir>/mediagrab.log at target, using a symlink when
// the filesystem allows it and a hard link otherwise.
func LinkCurrentLog(dir, target string) error {
	if strings.TrimSpace(dir) == "" || strings.TrimSpace(target) == "" {
		return nil
	}
	current := CurrentLogPath(dir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func isRunLog(name string) bool {
	return len(name) > len(runLogPrefix)+len(runLogSuffix) &&
		strings.HasPrefix(name, runLogPrefix) &&
		strings.HasSuffix(name, runLogSuffix)
}

// PruneRunLogs removes daemon run logs in dir last modified more than
// retentionDays before now and returns their names, sorted. The active run
// log and whatever mediagrab.log resolves to are always kept. A
// retentionDays value of 0 disables pruning.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, now time.Time, active string) []string {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	current, _ := os.Stat(CurrentLogPath(dir))
	activeName := filepath.Base(strings.TrimSpace(active))

	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !isRunLog(name) || name == activeName {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if current != nil && os.SameFile(info, current) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "run log not pruned", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "old run log stays on disk"),
			)
			continue
		}
		removed = append(removed, name)
	}
	sort.Strings(removed)
	if len(removed) > 0 && logger != nil {
		logger.Debug("run logs pruned",
			Int("count", len(removed)),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}
