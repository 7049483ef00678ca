package daemon

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"

	"mediagrab/internal/api"
	"mediagrab/internal/engine"
	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
	"mediagrab/internal/services"
	"mediagrab/internal/workflow"
)

const jobNotFound = "Job not found"

func (s *apiServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req api.InfoRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, jobs.ErrMissingURL.Error())
		return
	}

	maxEntries := s.cfg.Playlist.MaxEntries
	info, err := s.daemon.engine.Probe(r.Context(), req.URL, engine.ProbeOptions{Limit: maxEntries})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "info probe failed", "info_probe_failed",
			logging.String("url", req.URL),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the URL is reachable and supported"),
			logging.String(logging.FieldImpact, "preview unavailable"),
		)
		s.writeError(w, http.StatusBadRequest, services.UserMessage(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromInfo(info, maxEntries))
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	var payload api.DownloadRequest
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	req := payload.JobRequest()
	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := s.daemon.workflow.Submit(r.Context(), req)
	switch {
	case errors.Is(err, workflow.ErrNotRunning):
		s.writeError(w, http.StatusServiceUnavailable, "Daemon is shutting down")
		return
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.DownloadResponse{OK: true, JobID: record.ID()})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.FromRecords(s.daemon.store.List()))
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	record, ok := s.daemon.store.Get(mux.Vars(r)["job_id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, jobNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, record.Snapshot())
}

func (s *apiServer) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["job_id"]
	err := s.daemon.store.Delete(id)
	if errors.Is(err, jobs.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, jobNotFound)
		return
	}
	logger := logging.WithContext(r.Context(), s.logger)
	if err != nil {
		logging.WarnWithContext(logger, "job artifacts not fully removed", "job_delete_partial",
			logging.Error(err),
			logging.String(logging.FieldImpact, "files may remain until the next sweep"),
		)
	}
	logger.Info("job deleted", logging.String(logging.FieldEventType, "job_deleted"))
	s.writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.daemon.Status()
	report := s.daemon.deps
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		OK:           true,
		YtDlp:        report.Ytdlp.Available,
		FFmpeg:       report.FFmpeg.Available,
		JSRuntime:    report.JSRuntime.String(),
		PID:          os.Getpid(),
		JobCount:     status.JobCount,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}
