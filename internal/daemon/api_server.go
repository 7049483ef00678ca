package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"mediagrab/internal/api"
	"mediagrab/internal/config"
	"mediagrab/internal/logging"
	"mediagrab/internal/services"
)

type apiServer struct {
	cfg     *config.Config
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	s := &apiServer{
		cfg:    cfg,
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	s.handler = s.routes()
	return s
}

func (s *apiServer) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestContext)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(authMiddleware(s.cfg.Paths.APIToken))
	apiRouter.HandleFunc("/info", s.handleInfo).Methods(http.MethodPost)
	apiRouter.HandleFunc("/download", s.handleDownload).Methods(http.MethodPost)
	apiRouter.HandleFunc("/progress/{job_id}", s.handleProgress).Methods(http.MethodGet)
	apiRouter.HandleFunc("/jobs", s.handleJobs).Methods(http.MethodGet)
	apiRouter.HandleFunc("/job/{job_id}", s.handleJob).Methods(http.MethodGet)
	apiRouter.HandleFunc("/job/{job_id}", s.handleDeleteJob).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/file/{job_id}", s.handleFile).Methods(http.MethodGet)
	apiRouter.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	apiRouter.HandleFunc("/storage", s.handleStorage).Methods(http.MethodGet)
	apiRouter.HandleFunc("/local-files", s.handleLocalFiles).Methods(http.MethodGet)
	apiRouter.HandleFunc("/clean-all", s.handleCleanAll).Methods(http.MethodPost)
	apiRouter.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "Not Found")
	})
	apiRouter.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	if m := s.daemon.metrics; m != nil {
		r.Handle("/metrics", authMiddleware(s.cfg.Paths.APIToken)(m.Handler())).Methods(http.MethodGet)
	}
	if dir := strings.TrimSpace(s.cfg.Paths.StaticDir); dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.PathPrefix("/").Handler(http.FileServer(http.Dir(dir)))
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition"},
	})
	return c.Handler(r)
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled", logging.String(logging.FieldEventType, "api_disabled"))
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check api_bind and restart the daemon"),
			)
		}
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestContext tags each request with a correlation id.
func (s *apiServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := services.WithRequestID(r.Context(), requestID)
		if id := mux.Vars(r)["job_id"]; id != "" {
			ctx = services.WithJobID(ctx, id)
		}
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, api.ErrorResponse{Detail: detail})
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
