// Package httpapi exposes the wall analysis pipeline over HTTP.
//
// Routes:
//
//	GET  /         service banner
//	GET  /health   liveness plus model service reachability
//	POST /analyze  full analysis of a multipart "file" upload
//	POST /upload   segmentation only
//
// Error bodies have the form {"detail": "..."}.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ironsheep/wall-measure/internal/imaging"
	"github.com/ironsheep/wall-measure/internal/pipeline"
)

// healthTimeout bounds the model service probe made by GET /health.
const healthTimeout = 5 * time.Second

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// Analyzer runs the pipeline. *pipeline.Analyzer satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, img image.Image, opts pipeline.Options) (*pipeline.Result, error)
	Segment(ctx context.Context, img image.Image, opts pipeline.Options) (*pipeline.SegmentationResult, error)
}

// HealthChecker probes the model inference service. *ml.Client satisfies it.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
	BaseURL() string
}

// Handler serves the HTTP API.
type Handler struct {
	analyzer  Analyzer
	models    HealthChecker
	maxUpload int64
	logger    *slog.Logger
}

// NewHandler creates a Handler. maxUpload is the request body limit in bytes.
func NewHandler(analyzer Analyzer, models HealthChecker, maxUpload int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		analyzer:  analyzer,
		models:    models,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Router returns the routed API wrapped in the CORS middleware.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", h.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/analyze", h.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/upload", h.handleUpload).Methods(http.MethodPost)
	return corsMiddleware(r)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"message": "Wall Analysis API with Depth Estimation is running"}, http.StatusOK)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	InferenceURL    string `json:"inference_url"`
	ModelsReachable bool   `json:"models_reachable"`
	Error           string `json:"error,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy"}
	if h.models == nil {
		resp.Status = "degraded"
		resp.Error = "no model service configured"
		respondJSON(w, resp, http.StatusOK)
		return
	}

	resp.InferenceURL = h.models.BaseURL()
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := h.models.CheckHealth(ctx); err != nil {
		resp.Status = "degraded"
		resp.Error = err.Error()
	} else {
		resp.ModelsReachable = true
	}
	respondJSON(w, resp, http.StatusOK)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	img, opts, name, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), img, opts)
	if err != nil {
		h.logFailure("analysis failed", name, err)
		respondError(w, fmt.Sprintf("Error analyzing image: %v", err), http.StatusInternalServerError)
		return
	}

	h.logger.Info("analysis served", "file", name, "run_id", result.RunID, "success", result.Success, "walls", result.WallCount)
	respondJSON(w, result, http.StatusOK)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	img, opts, name, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.analyzer.Segment(r.Context(), img, opts)
	if err != nil {
		h.logFailure("segmentation failed", name, err)
		respondError(w, fmt.Sprintf("Error processing image: %v", err), http.StatusInternalServerError)
		return
	}

	h.logger.Info("segmentation served", "file", name, "run_id", result.RunID, "walls", result.WallCount)
	respondJSON(w, result, http.StatusOK)
}

func (h *Handler) logFailure(msg, file string, err error) {
	attrs := []any{"file", file, "error", err}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		attrs = append(attrs, "stage", stageErr.Stage)
	}
	h.logger.Error(msg, attrs...)
}

// readUpload parses the multipart "file" field and an optional "confidence"
// form or query value. On failure it writes the error response and returns
// ok == false.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (img image.Image, opts pipeline.Options, name string, ok bool) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, fmt.Sprintf("File exceeds the %d byte upload limit", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return nil, opts, "", false
		}
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return nil, opts, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file uploaded", http.StatusBadRequest)
		return nil, opts, "", false
	}
	defer file.Close()
	name = header.Filename

	if !imaging.IsImageContentType(header.Header.Get("Content-Type")) {
		respondError(w, "Only image files are supported", http.StatusBadRequest)
		return nil, opts, name, false
	}

	if v := r.FormValue("confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil || c <= 0 || c > 1 {
			respondError(w, "confidence must be a number in (0, 1]", http.StatusBadRequest)
			return nil, opts, name, false
		}
		opts.Confidence = c
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusInternalServerError)
		return nil, opts, name, false
	}
	h.logger.Info("processing upload", "file", name, "bytes", len(data))

	img, err = imaging.Decode(data)
	if err != nil {
		respondError(w, "Could not decode image", http.StatusBadRequest)
		return nil, opts, name, false
	}
	return img, opts, name, true
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"detail": message}, status)
}

// corsMiddleware allows browser clients from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
