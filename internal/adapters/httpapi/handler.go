// Package httpapi exposes the astrocore record store over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"astrocore/pkg/domain"
)

const (
	msgValidation = "validation errors"
	msgNotFound   = "Scientist not found"
	msgInternal   = "internal server error"
)

// Service is the record store surface served over HTTP.
type Service interface {
	ListScientists(ctx context.Context) ([]domain.Scientist, error)
	CreateScientist(ctx context.Context, sc domain.Scientist) (domain.Scientist, domain.Result, error)
	GetScientist(ctx context.Context, id int64) (domain.ScientistDetail, error)
	UpdateScientist(ctx context.Context, id int64, patch domain.ScientistPatch) (domain.ScientistDetail, domain.Result, error)
	DeleteScientist(ctx context.Context, id int64) (domain.Result, error)
	ListPlanets(ctx context.Context) ([]domain.Planet, error)
	CreateMission(ctx context.Context, m domain.Mission) (domain.MissionDetail, domain.Result, error)
	Ping(ctx context.Context) error
}

// Handler routes requests to the service.
type Handler struct {
	svc     Service
	logger  *slog.Logger
	metrics http.Handler
	mux     *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(metrics http.Handler) Option {
	return func(h *Handler) { h.metrics = metrics }
}

// NewHandler builds the routed handler.
func NewHandler(svc Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: slog.Default(), mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(h)
	}
	h.mux.HandleFunc("GET /{$}", h.home)
	h.mux.HandleFunc("GET /scientists", h.listScientists)
	h.mux.HandleFunc("POST /scientists", h.createScientist)
	h.mux.HandleFunc("GET /scientists/{id}", h.getScientist)
	h.mux.HandleFunc("PATCH /scientists/{id}", h.updateScientist)
	h.mux.HandleFunc("DELETE /scientists/{id}", h.deleteScientist)
	h.mux.HandleFunc("GET /planets", h.listPlanets)
	h.mux.HandleFunc("POST /missions", h.createMission)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}
	return h
}

// Routes returns the handler wrapped with request logging.
func (h *Handler) Routes() http.Handler {
	return withRequestLog(h.logger, h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) home(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) listScientists(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListScientists(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeScientists(list))
}

type createScientistRequest struct {
	Name         string `json:"name"`
	FieldOfStudy string `json:"field_of_study"`
}

func (h *Handler) createScientist(w http.ResponseWriter, r *http.Request) {
	var req createScientistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w)
		return
	}
	created, _, err := h.svc.CreateScientist(r.Context(), domain.Scientist{Name: req.Name, FieldOfStudy: req.FieldOfStudy})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newScientistView(domain.ScientistDetail{Scientist: created}))
}

func (h *Handler) getScientist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	detail, err := h.svc.GetScientist(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScientistView(detail))
}

func (h *Handler) updateScientist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeValidationError(w)
		return
	}
	patch, err := decodeScientistPatch(raw)
	if err != nil {
		writeValidationError(w)
		return
	}
	detail, _, err := h.svc.UpdateScientist(r.Context(), id, patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newScientistView(detail))
}

// decodeScientistPatch builds a field mask from the keys present in the body.
// Unknown keys are ignored and null clears the field, which validation rejects.
func decodeScientistPatch(raw map[string]json.RawMessage) (domain.ScientistPatch, error) {
	var patch domain.ScientistPatch
	if v, ok := raw["name"]; ok {
		s, err := nullableString(v)
		if err != nil {
			return patch, fmt.Errorf("name: %w", err)
		}
		patch.SetName(s)
	}
	if v, ok := raw["field_of_study"]; ok {
		s, err := nullableString(v)
		if err != nil {
			return patch, fmt.Errorf("field_of_study: %w", err)
		}
		patch.SetFieldOfStudy(s)
	}
	return patch, nil
}

func nullableString(v json.RawMessage) (string, error) {
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

func (h *Handler) deleteScientist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if _, err := h.svc.DeleteScientist(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPlanets(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPlanets(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizePlanets(list))
}

type createMissionRequest struct {
	Name        string `json:"name"`
	ScientistID int64  `json:"scientist_id"`
	PlanetID    int64  `json:"planet_id"`
}

func (h *Handler) createMission(w http.ResponseWriter, r *http.Request) {
	var req createMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w)
		return
	}
	detail, _, err := h.svc.CreateMission(r.Context(), domain.Mission{
		Name:        req.Name,
		ScientistID: req.ScientistID,
		PlanetID:    req.PlanetID,
	})
	if err != nil {
		// Unresolved references are a client error here, not a missing route.
		if errors.Is(err, domain.ErrNotFound) {
			writeValidationError(w)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMissionView(detail))
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeValidationError(w)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// pathID parses {id} as an unsigned integer; anything else is an unknown route.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 63)
	if err != nil {
		return 0, false
	}
	return int64(id), true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeValidationError(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{msgValidation}})
}
