// Package server is the thin HTTP glue over the inference core. Handlers
// resolve a pipeline from the startup-loaded bundle, call into the
// services, and map error kinds to status codes; no decision logic lives
// here.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"credit-serve/internal/artifacts"
	"credit-serve/internal/audit"
	"credit-serve/internal/batch"
	"credit-serve/internal/importance"
	"credit-serve/internal/infer"
	"credit-serve/internal/meta"
	"credit-serve/internal/metrics"
	"credit-serve/internal/schema"
)

// Server serves the inference API.
type Server struct {
	bundle       *artifacts.Bundle
	service      *infer.Service
	metrics      *metrics.Metrics
	audit        *audit.Store
	artifactsDir string
	srv          *http.Server
}

type PredictionRequest struct {
	Payload map[string]any `json:"payload"`
}

type RegressionResponse struct {
	ModelName            string  `json:"model_name"`
	PredictedCreditLimit float64 `json:"predicted_credit_limit"`
	RuntimeMS            float64 `json:"runtime_ms"`
}

type ClassificationResponse struct {
	ModelName     string             `json:"model_name"`
	PredictedTier string             `json:"predicted_tier"`
	Proba         map[string]float64 `json:"proba"`
	RuntimeMS     float64            `json:"runtime_ms"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type GlobalImportanceResponse struct {
	Features []importance.Entry `json:"features"`
}

// New creates the HTTP server for the inference API.
func New(addr string, bundle *artifacts.Bundle, m *metrics.Metrics, auditStore *audit.Store, artifactsDir string) *Server {
	s := &Server{
		bundle:       bundle,
		service:      infer.NewService(m),
		metrics:      m,
		audit:        auditStore,
		artifactsDir: artifactsDir,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/schema", s.handleSchema)
	mux.HandleFunc("/meta", s.handleMeta)
	mux.HandleFunc("/global-importance", s.handleGlobalImportance)
	mux.HandleFunc("/predict/regression", s.handlePredictRegression)
	mux.HandleFunc("/predict/classification", s.handlePredictClassification)
	mux.HandleFunc("/predict/batch", s.handlePredictBatch)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("starting inference server")
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	resp := HealthResponse{Status: "ok"}
	if s.bundle == nil || s.bundle.Regression == nil || s.bundle.Classification == nil {
		status = http.StatusServiceUnavailable
		resp.Status = "unavailable"
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, schema.Extract(s.bundle.Regression))
}

func (s *Server) handleMeta(w http.ResponseWriter, _ *http.Request) {
	sch := schema.Extract(s.bundle.Regression)
	writeJSON(w, http.StatusOK, meta.Build(s.artifactsDir, sch))
}

func (s *Server) handleGlobalImportance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, GlobalImportanceResponse{
		Features: importance.Global(s.bundle.Regression),
	})
}

func (s *Server) handlePredictRegression(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	result, runtimeMS, err := s.service.PredictWithTiming(s.bundle.Regression, req.Payload, infer.TaskRegression)
	if err != nil {
		log.Error().Err(err).Msg("regression prediction failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logAudit(audit.Record{
		Task:      string(infer.TaskRegression),
		Output:    fmt.Sprintf("%g", result.Value),
		LatencyMS: runtimeMS,
	})

	writeJSON(w, http.StatusOK, RegressionResponse{
		ModelName:            "RandomForestRegressor",
		PredictedCreditLimit: result.Value,
		RuntimeMS:            runtimeMS,
	})
}

func (s *Server) handlePredictClassification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	result, runtimeMS, err := s.service.PredictWithTiming(s.bundle.Classification, req.Payload, infer.TaskClassification)
	if err != nil {
		log.Error().Err(err).Msg("classification prediction failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logAudit(audit.Record{
		Task:      string(infer.TaskClassification),
		Output:    result.Label,
		LatencyMS: runtimeMS,
	})

	writeJSON(w, http.StatusOK, ClassificationResponse{
		ModelName:     "RandomForestClassifier",
		PredictedTier: result.Label,
		Proba:         result.Probabilities,
		RuntimeMS:     runtimeMS,
	})
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mode := batch.Mode(r.URL.Query().Get("mode"))
	var pipe = s.bundle.Regression
	switch mode {
	case batch.ModeRegression:
	case batch.ModeClassification:
		pipe = s.bundle.Classification
	default:
		http.Error(w, fmt.Sprintf("unknown mode: %s", mode), http.StatusBadRequest)
		return
	}

	content, filename, err := readUpload(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid upload: %v", err), http.StatusBadRequest)
		return
	}

	if s.metrics != nil {
		s.metrics.BatchRequests.Inc()
	}
	scored, err := batch.ScoreCSV(content, mode, pipe)
	if err != nil {
		if s.metrics != nil {
			s.metrics.BatchFailures.Inc()
		}
		log.Error().Err(err).Str("mode", string(mode)).Msg("batch scoring failed")
		status := http.StatusBadRequest
		if !errors.Is(err, batch.ErrScoring) {
			status = http.StatusInternalServerError
		}
		http.Error(w, err.Error(), status)
		return
	}
	if s.metrics != nil {
		s.metrics.BatchRows.Observe(float64(strings.Count(string(scored), "\n") - 1))
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=scored_%s", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(scored); err != nil {
		log.Error().Err(err).Msg("failed to write batch response")
	}
}

// readUpload accepts either a multipart form with a "file" part or a raw
// CSV body.
func readUpload(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		return content, header.Filename, nil
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	return content, "input.csv", nil
}

func (s *Server) logAudit(rec audit.Record) {
	if err := s.audit.LogPrediction(rec); err != nil {
		log.Warn().Err(err).Msg("failed to write audit record")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
