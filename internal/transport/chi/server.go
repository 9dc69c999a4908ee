package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memcore/internal/domain"
	domunit "github.com/kailas-cloud/memcore/internal/domain/unit"
	"github.com/kailas-cloud/memcore/internal/logger"
	healthuc "github.com/kailas-cloud/memcore/internal/usecase/health"
	unituc "github.com/kailas-cloud/memcore/internal/usecase/unit"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 4 << 20

// LivenessMessage is the plain-text body of GET /.
const LivenessMessage = "memcore API is running."

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeUnitNotFound       ErrorCode = "unit_not_found"
	CodeRouteNotFound      ErrorCode = "route_not_found"
	CodeMethodNotAllowed   ErrorCode = "method_not_allowed"
	CodePayloadTooLarge    ErrorCode = "payload_too_large"
	CodeStorageUnavailable ErrorCode = "storage_unavailable"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// TypeListResponse is the body of GET /knowledge-units?type=.
type TypeListResponse struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the knowledge unit HTTP API.
type Server struct {
	units         *unituc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(units *unituc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		units:  units,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnitNotFound, http.StatusNotFound, CodeUnitNotFound),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrStorageIO, http.StatusServiceUnavailable, CodeStorageUnavailable),
		sentinelHandler(domain.ErrStoreClosed, http.StatusServiceUnavailable, CodeStorageUnavailable),
		sentinelHandler(domain.ErrNotInitialized, http.StatusServiceUnavailable, CodeStorageUnavailable),
	}
	return s
}

// Register mounts every route on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.Liveness)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/knowledge-units", func(r chi.Router) {
		r.Post("/", s.CreateUnit)
		r.Get("/", s.ListUnits)
		r.Get("/{id}", s.GetUnit)
		r.Patch("/{id}", s.UpdateUnit)
	})
}

// CreateUnit handles POST /knowledge-units.
func (s *Server) CreateUnit(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.decodeUnit(w, r)
	if !ok {
		return
	}

	u, err := s.units.Create(r.Context(), draft)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("Created knowledge unit",
		zap.String("unit_id", u.ID()),
		zap.String("base_type", u.BaseType()),
	)
	writeJSON(w, http.StatusCreated, u)
}

// GetUnit handles GET /knowledge-units/{id}.
func (s *Server) GetUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := s.units.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateUnit handles PATCH /knowledge-units/{id}.
func (s *Server) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	patch, ok := s.decodeUnit(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	u, err := s.units.Update(r.Context(), id, patch)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ListUnits handles GET /knowledge-units?type=<t>.
func (s *Server) ListUnits(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	ids, err := s.units.ListByType(r.Context(), typ)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TypeListResponse{Type: typ, IDs: ids})
}

// Liveness handles GET /.
func (s *Server) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, LivenessMessage)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeUnit reads a JSON object body. On failure it writes the response and
// returns false.
func (s *Server) decodeUnit(w http.ResponseWriter, r *http.Request) (domunit.Unit, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", mbe.Limit))
			return domunit.Unit{}, false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body")
		return domunit.Unit{}, false
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: malformed JSON")
		return domunit.Unit{}, false
	}
	u, err := domunit.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: expected a JSON object")
		return domunit.Unit{}, false
	}
	return u, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message without exposing internals.
// Validation errors carry the failing field, so their full text is kept.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrUnitNotFound,
		domain.ErrStorageIO,
		domain.ErrStoreClosed,
		domain.ErrNotInitialized,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
