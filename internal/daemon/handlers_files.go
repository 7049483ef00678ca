package daemon

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/text/unicode/norm"

	"mediagrab/internal/api"
	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
	"mediagrab/internal/staging"
)

const (
	fileNotFound   = "File not found on disk"
	cleanedMessage = "All jobs and files cleared."
)

// handleFile serves a finished job's artifact. When the record is gone the
// download root is searched for the job's archive, then its newest file.
func (s *apiServer) handleFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["job_id"]
	var path, name string
	if record, ok := s.daemon.store.Get(id); ok {
		snap := record.Snapshot()
		if snap.Status != jobs.StatusDone {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Job status is '%s', not done", snap.Status))
			return
		}
		path, name = snap.Filepath, snap.Filename
	} else if jobs.ValidID(id) {
		path = locateArtifact(s.cfg.Paths.DownloadDir, id)
	}
	if strings.TrimSpace(path) == "" {
		s.writeError(w, http.StatusNotFound, fileNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, http.StatusNotFound, fileNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		s.writeError(w, http.StatusNotFound, fileNotFound)
		return
	}
	if name == "" {
		name = filepath.Base(path)
	}

	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	header := w.Header()
	header.Set("Content-Type", "application/octet-stream")
	header.Set("Content-Disposition", contentDisposition(name))
	header.Set("Access-Control-Expose-Headers", "Content-Disposition")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// locateArtifact returns the playlist archive for id if present, otherwise
// the newest file in the job directory, otherwise "".
func locateArtifact(root, id string) string {
	archive := jobs.ArchivePath(root, id)
	if info, err := os.Stat(archive); err == nil && info.Mode().IsRegular() {
		return archive
	}
	path, _, err := jobs.NewestFile(jobs.JobDir(root, id))
	if err != nil {
		return ""
	}
	return path
}

// contentDisposition builds an attachment header carrying the NFC form of
// name in RFC 5987 extended notation.
func contentDisposition(name string) string {
	return "attachment; filename*=UTF-8''" + encodeExtValue(norm.NFC.String(name))
}

// encodeExtValue percent-encodes every byte outside the unreserved set.
func encodeExtValue(value string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(value) * 3)
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

func (s *apiServer) handleStorage(w http.ResponseWriter, r *http.Request) {
	usage, err := staging.DiskUsage(s.cfg.Paths.DownloadDir)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "disk usage unavailable", "storage_usage_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "storage figures reported as zero"),
		)
	}
	s.writeJSON(w, http.StatusOK, api.FromUsage(usage, s.daemon.store.Len(), err))
}

func (s *apiServer) handleLocalFiles(w http.ResponseWriter, _ *http.Request) {
	files, err := staging.ListLocalFiles(s.cfg.Paths.DownloadDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []staging.LocalFile{}
	}
	s.writeJSON(w, http.StatusOK, api.LocalFilesResponse{Files: files})
}

func (s *apiServer) handleCleanAll(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithContext(r.Context(), s.logger)
	if _, err := staging.CleanAll(s.daemon.store, s.cfg.Paths.DownloadDir, logger); err != nil {
		logging.ErrorWithContext(logger, "clean-all failed", "clean_all_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the download directory"),
		)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.OKResponse{OK: true, Message: cleanedMessage})
}
