package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/parallel"
	"github.com/cwbudde/holefill/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	runner     *runner
	addr       string
	server     *http.Server

	// jobs run under baseCtx so Shutdown can stop them
	baseCtx context.Context
	stop    context.CancelFunc
}

// NewServer creates a new HTTP server. A nil st keeps results in memory
// only; defaults supply every solver setting a job request leaves zero.
func NewServer(addr string, st *store.FSStore, defaults inpaint.Options, exec parallel.Executor) *Server {
	jm := NewJobManager()
	r := &runner{jm: jm, defaults: defaults, exec: exec}
	if st != nil {
		r.store = st
		r.traceDir = st.BaseDir()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		jobManager: jm,
		runner:     r,
		addr:       addr,
		baseCtx:    ctx,
		stop:       stop,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/results", s.handleListResults)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels running jobs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))
	s.stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	jobID, sub := splitJobPath(r.URL.Path)
	if jobID == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		s.handleDeleteJob(w, r, jobID)
	case sub == "" || sub == "status":
		s.handleGetJobStatus(w, r, jobID)
	case sub == "result.png":
		s.handleGetResultImage(w, r, jobID)
	case sub == "stream":
		s.handleJobStream(w, r, jobID)
	case sub == "trace":
		s.handleGetTrace(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if config.ImagePath == "" {
		http.Error(w, "imagePath is required", http.StatusBadRequest)
		return
	}
	if config.MaskPath == "" {
		http.Error(w, "maskPath is required", http.StatusBadRequest)
		return
	}
	if config.Channels != 0 && config.Channels != 1 && config.Channels != 3 {
		http.Error(w, "channels must be 1 or 3", http.StatusBadRequest)
		return
	}
	if _, err := config.Apply(s.runner.defaults); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(config)

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.jobManager.setCancel(job.ID, cancel)
	go func() {
		defer cancel()
		defer s.jobManager.clearCancel(job.ID)
		s.runner.runJob(ctx, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetJobStatus handles GET /api/v1/jobs/:id. Jobs from a previous
// server run are answered from the store.
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		if s.runner.store == nil {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		record, err := s.runner.store.LoadRecord(jobID)
		if err != nil {
			http.Error(w, "Job not found", statusForStoreError(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     record.JobID,
			"state":  StateCompleted,
			"record": record,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":        job.ID,
		"state":     job.State,
		"config":    job.Config,
		"step":      job.Step,
		"steps":     job.Steps,
		"width":     job.Width,
		"height":    job.Height,
		"iteration": job.Iteration,
		"meanCost":  job.MeanCost,
		"unknown":   job.Unknown,
		"levels":    job.Levels,
		"elapsed":   job.Elapsed().Seconds(),
		"startTime": job.StartTime,
		"endTime":   job.EndTime,
		"error":     job.Error,
	})
}

// handleDeleteJob handles DELETE /api/v1/jobs/:id. Active jobs are
// cancelled; finished jobs are forgotten and their stored artifacts removed.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if exists && !job.State.Done() {
		if err := s.jobManager.CancelJob(jobID); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if exists {
		if err := s.jobManager.RemoveJob(jobID); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}
	if s.runner.store != nil {
		err := s.runner.store.DeleteRecord(jobID)
		if err != nil && !(exists && statusForStoreError(err) == http.StatusNotFound) {
			http.Error(w, err.Error(), statusForStoreError(err))
			return
		}
	} else if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetResultImage handles GET /api/v1/jobs/:id/result.png
func (s *Server) handleGetResultImage(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.runner.store == nil {
		http.Error(w, "Results are not persisted", http.StatusNotFound)
		return
	}
	if job, exists := s.jobManager.GetJob(jobID); exists && job.State != StateCompleted {
		http.Error(w, "No result yet", http.StatusNotFound)
		return
	}

	path := s.runner.store.ImagePath(jobID)
	if !fileExists(path) {
		http.Error(w, "Result not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// handleGetTrace handles GET /api/v1/jobs/:id/trace
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.runner.traceDir == "" {
		http.Error(w, "Traces are not recorded", http.StatusNotFound)
		return
	}
	entries, err := store.ReadTrace(s.runner.traceDir, jobID)
	if err != nil {
		http.Error(w, err.Error(), statusForStoreError(err))
		return
	}
	if entries == nil {
		entries = []store.TraceEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleListResults handles GET /api/v1/results
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.runner.store == nil {
		writeJSON(w, http.StatusOK, []store.RecordInfo{})
		return
	}
	infos, err := s.runner.store.ListRecords()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>holefill</title></head>
<body>
<h1>Fill jobs</h1>
{{if not .}}<p>No jobs yet.</p>{{else}}
<table>
<tr><th>ID</th><th>State</th><th>Image</th><th>Level</th><th>Mean cost</th><th></th></tr>
{{range .}}<tr>
<td>{{.ID}}</td><td>{{.State}}</td><td>{{.Config.ImagePath}}</td>
<td>{{.Step}}/{{.Steps}} ({{.Width}}x{{.Height}})</td><td>{{printf "%.1f" .MeanCost}}</td>
<td>{{if eq .State "completed"}}<a href="/api/v1/jobs/{{.ID}}/result.png">result</a>{{else if .Error}}{{.Error}}{{end}}</td>
</tr>{{end}}
</table>{{end}}
</body></html>
`))

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, s.jobManager.ListJobs()); err != nil {
		slog.Error("Failed to render index", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
