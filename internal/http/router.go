// Package http exposes the pipeline's HTTP API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"speech-pii-redaction-service/internal/events"
	"speech-pii-redaction-service/internal/models"
	"speech-pii-redaction-service/internal/observability/logging"
	"speech-pii-redaction-service/internal/observability/metrics"
)

const maxBodyBytes = 1 << 20

// Service is what the HTTP layer calls into.
type Service interface {
	SubmitBatch(ctx context.Context, body []byte) (models.DispatchResult, error)
	RequestAnalysis(ctx context.Context, audioKey string) models.AnalysisResponse
	HandleStorageEvent(ctx context.Context, ev models.StorageEvent) []models.RecordOutcome
}

// ReadinessFunc reports whether the service can take traffic.
type ReadinessFunc func(ctx context.Context) error

type messageBody struct {
	Message string `json:"message"`
}

type outcomesBody struct {
	Outcomes []models.RecordOutcome `json:"outcomes"`
}

// NewRouter constructs the HTTP router for the service. ready may be nil.
func NewRouter(svc Service, ready ReadinessFunc, m *metrics.Metrics) http.Handler {
	if m == nil {
		m = metrics.DefaultMetrics
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logging.WithComponent("http")))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("requestId", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("HTTP request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(instrument(m))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("Readiness check failed")
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handlers{svc: svc}
	r.Post("/transcribe", h.transcribe)
	r.Get("/analyze/*", h.analyze)
	r.Post("/events/storage", h.storageEvent)

	return r
}

type handlers struct {
	svc Service
}

func (h *handlers) transcribe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: "Could not read request body"})
		return
	}

	res, err := h.svc.SubmitBatch(r.Context(), body)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, messageBody{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(key); err == nil {
		key = decoded
	}
	if key == "" {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: "Object key is required"})
		return
	}

	resp := h.svc.RequestAnalysis(r.Context(), key)
	writeJSON(w, analysisStatus(resp), resp)
}

func (h *handlers) storageEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: "Could not read request body"})
		return
	}
	ev, err := events.DecodeStorageEvent(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: err.Error()})
		return
	}

	outcomes := h.svc.HandleStorageEvent(r.Context(), ev)
	writeJSON(w, http.StatusOK, outcomesBody{Outcomes: outcomes})
}

// analysisStatus maps a failed analysis onto an HTTP status by error kind.
func analysisStatus(resp models.AnalysisResponse) int {
	if resp.OK() {
		return http.StatusOK
	}
	switch resp.Failure.Kind {
	case "not_found":
		return http.StatusNotFound
	case "malformed_transcript":
		return http.StatusUnprocessableEntity
	case "validation":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// instrument records request counts and latency per route pattern.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), time.Since(start).Seconds())
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
