// Package server exposes the audit pipeline over HTTP for the
// embeddable widget and other clients.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okuzmin/a11ylens/internal/audit"
)

// auditRunner is the slice of the auditor the server needs. Narrowed to
// an interface so handler tests run against a fake.
type auditRunner interface {
	Run(ctx context.Context, url string) (*audit.Response, error)
}

// Server handles audit API requests with a bound on concurrent audits.
// Each audit holds a real browser process on the engine side, so
// unbounded concurrency would let a burst of requests exhaust the host.
type Server struct {
	auditor auditRunner
	slots   chan struct{}
	timeout time.Duration
	logger  io.Writer
}

// Options configures a Server.
type Options struct {
	// MaxAudits bounds concurrent in-flight audits. Default 2.
	MaxAudits int
	// Timeout bounds one request end to end. Default 90s.
	Timeout time.Duration
	// Logger receives one line per request. Default discard.
	Logger io.Writer
}

// New builds a Server around an auditor.
func New(auditor auditRunner, opts Options) *Server {
	maxAudits := opts.MaxAudits
	if maxAudits <= 0 {
		maxAudits = 2
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = io.Discard
	}
	return &Server{
		auditor: auditor,
		slots:   make(chan struct{}, maxAudits),
		timeout: timeout,
		logger:  logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/audit", s.handleAudit)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

type auditRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	// The widget embeds on arbitrary origins.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req auditRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	default:
		w.Header().Set("Retry-After", "10")
		s.writeError(w, http.StatusServiceUnavailable, "too many concurrent audits, retry later")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.auditor.Run(ctx, req.URL)
	if err != nil {
		// Validation failure: the engine was never invoked.
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logRequest(req.URL, resp, time.Since(start))
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) logRequest(url string, resp *audit.Response, elapsed time.Duration) {
	status := "ok"
	if !resp.Success {
		status = "failed"
	}
	_, _ = fmt.Fprintf(s.logger, "[%s] audit url=%s status=%s score=%d elapsed=%s\n",
		time.Now().UTC().Format(time.RFC3339), url, status, resp.Score, elapsed.Round(time.Millisecond))
}

// ListenAndServe runs the HTTP server until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
