package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/webscan/docs/swagger" // registers the swagger document
	"github.com/raysh454/webscan/internal/app"
	"github.com/raysh454/webscan/internal/logging"
	"github.com/raysh454/webscan/internal/scanerr"
	"github.com/raysh454/webscan/internal/utils"
)

// Pinger checks a dependency's health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP + WebSocket API surface for webscan.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	cache        Pinger
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
	now          func() time.Time
}

// NewServer builds the router around orch. cache may be nil, in which case
// the health check does not probe storage.
func NewServer(cfg Config, orch *app.Orchestrator, cache Pinger) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		cache:        cache,
		router:       chi.NewRouter(),
		logger:       logger.With(logging.Field{Key: "component", Value: "server"}),
		now:          time.Now,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Post("/scan", s.handleScan)

	// Jobs over REST
	r.Post("/jobs/scan", s.handleStartScanJob)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)

	// WebSocket for job progress
	r.Get("/ws/scan", s.handleScanWS)

	r.Get("/healthz", s.handleHealth)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(s.cfg.AllowedOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && s.originAllowed(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && r.Method == http.MethodPost {
		if bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 4<<10)); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(bodyBytes), r.Body))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // scans and websockets are long-lived
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) writeScanFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ScanResponse{Status: "failed", Error: msg, Timestamp: s.now().UnixMilli()})
}

// decodeScanURL reads a ScanRequest and returns its normalized URL. The
// error is always *scanerr.ValidationError.
func decodeScanURL(r *http.Request) (string, error) {
	var body ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", &scanerr.ValidationError{Reason: "invalid JSON body"}
	}
	return utils.ValidateScanURL(body.URL)
}

// --- HTTP handlers ---

// handleScan godoc
// @Summary Scan a URL
// @Description Returns the cached result when fresh, otherwise runs a performance and accessibility scan.
// @Tags scan
// @Accept json
// @Produce json
// @Param request body ScanRequest true "URL to scan"
// @Success 200 {object} ScanResponse
// @Failure 400 {object} ScanResponse
// @Failure 500 {object} ScanResponse
// @Router /scan [post]
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	url, err := decodeScanURL(r)
	if err != nil {
		s.logger.Warn("rejecting scan request", logging.Field{Key: "error", Value: err})
		s.writeScanFailure(w, http.StatusBadRequest, "Invalid URL")
		return
	}

	result, err := s.orchestrator.ScanURL(r.Context(), url)
	if err != nil {
		s.logger.Warn("scan failed", logging.Field{Key: "url", Value: url}, logging.Field{Key: "error", Value: err})
		s.writeScanFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("scan served", logging.Field{Key: "url", Value: url})
	writeJSON(w, http.StatusOK, ScanResponse{Status: result.Status, Data: result, Timestamp: s.now().UnixMilli()})
}

// Jobs (REST)

// handleStartScanJob godoc
// @Summary Start an asynchronous scan
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body ScanRequest true "URL to scan"
// @Success 202 {object} app.Job
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /jobs/scan [post]
func (s *Server) handleStartScanJob(w http.ResponseWriter, r *http.Request) {
	url, err := decodeScanURL(r)
	if err != nil {
		s.logger.Warn("rejecting scan job", logging.Field{Key: "error", Value: err})
		writeError(w, http.StatusBadRequest, "Invalid URL")
		return
	}

	job, err := s.orchestrator.StartScanJob(context.Background(), url)
	if err != nil {
		s.logger.Warn("starting scan job", logging.Field{Key: "error", Value: err})
		writeError(w, jobStartStatus(err), err.Error())
		return
	}
	s.logger.Info("started scan job", logging.Field{Key: "job_id", Value: job.ID}, logging.Field{Key: "url", Value: url})
	writeJSON(w, http.StatusAccepted, job)
}

func jobStartStatus(err error) int {
	if errors.Is(err, app.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// handleGetJob godoc
// @Summary Get a job
// @Tags jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} app.Job
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{jobID} [get]
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		s.logger.Warn("getting job: not found", logging.Field{Key: "job_id", Value: jobID})
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelJob godoc
// @Summary Cancel a job
// @Description Stops waiting for the job; a scan already running still completes and is cached.
// @Tags jobs
// @Param jobID path string true "Job ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{jobID} [delete]
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.orchestrator.CancelJob(jobID) && s.orchestrator.GetJob(jobID) == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	w.WriteHeader(http.StatusNoContent)
}

// handleListJobs godoc
// @Summary List retained jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} app.Job
// @Router /jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.orchestrator.ListJobs()
	writeJSON(w, http.StatusOK, jobs)
}

// handleHealth godoc
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Queue: s.orchestrator.QueueStats(), Cache: "unchecked"}
	status := http.StatusOK
	if s.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.cache.Ping(ctx); err != nil {
			s.logger.Warn("health check: cache unreachable", logging.Field{Key: "error", Value: err})
			resp.Status, resp.Cache = "degraded", err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Cache = "ok"
		}
	}
	writeJSON(w, status, resp)
}

// WebSockets

// handleScanWS starts a scan job for ?url= and streams its events, ending
// with the final job snapshot. Closing the socket cancels the job.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	url, err := utils.ValidateScanURL(r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid URL")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err})
		return
	}
	defer conn.Close()

	job, err := s.orchestrator.StartScanJob(context.Background(), url)
	if err != nil {
		s.logger.Warn("starting scan job", logging.Field{Key: "error", Value: err})
		_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("started scan job", logging.Field{Key: "job_id", Value: job.ID})
	_ = conn.WriteJSON(job)

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected; cancel job
			s.orchestrator.CancelJob(job.ID)
			return
		}
	}
	if final := s.orchestrator.GetJob(job.ID); final != nil {
		_ = conn.WriteJSON(final)
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
}
