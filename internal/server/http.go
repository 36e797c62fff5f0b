package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ishbor_bitrix/internal/repo"
	"ishbor_bitrix/internal/webhook"
)

// Pipeline processes one webhook submission.
type Pipeline interface {
	Process(ctx context.Context, sub webhook.Submission) (webhook.Result, error)
}

// FileStore serves stored attachments and answers liveness checks.
type FileStore interface {
	GetFile(ctx context.Context, id int64) (repo.StoredFile, error)
	Ping(ctx context.Context) error
}

type Server struct {
	pipeline Pipeline
	files    FileStore
	log      *zap.Logger
}

func New(pipeline Pipeline, files FileStore, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		pipeline: pipeline,
		files:    files,
		log:      log,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/files/", s.handleFile)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type errorResponse struct {
	Message     string          `json:"message"`
	Error       string          `json:"error"`
	RequestBody json.RawMessage `json:"requestBody,omitempty"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Health probe used by the chat-bot platform.
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "candidate-webhook",
		})
	case http.MethodPost:
		s.processWebhook(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) processWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	log := s.log.With(zap.String("request_id", requestID))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Message: "Failed to read request body",
			Error:   err.Error(),
		})
		return
	}

	var sub webhook.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		log.Warn("webhook body is not valid json", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Message:     "Request body is not valid JSON",
			Error:       err.Error(),
			RequestBody: rawOrNull(body),
		})
		return
	}

	result, err := s.pipeline.Process(r.Context(), sub)
	if err != nil {
		log.Error("webhook processing failed", zap.Error(err))
		// The caller is the trusted internal bot service; echoing the
		// original body back makes operator debugging possible without
		// log access.
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Message:     "Failed to process webhook",
			Error:       err.Error(),
			RequestBody: rawOrNull(body),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/files/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid file id", http.StatusBadRequest)
		return
	}

	f, err := s.files.GetFile(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.log.Error("file fetch failed", zap.Int64("file_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", f.Mimetype)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", f.Filename))
	_, _ = w.Write(f.Data)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.files.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// rawOrNull guards against echoing invalid JSON inside a JSON field.
func rawOrNull(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}
