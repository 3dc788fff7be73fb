package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/apperrors"
	"github.com/mapform-hq/mapform-engine/pkg/models"
	"github.com/mapform-hq/mapform-engine/pkg/services"
)

// EngineHandler exposes the engine operations the embedding product calls
// over HTTP: form submissions and viewport point queries. Requests must
// pass through the teamspace scope middleware first.
type EngineHandler struct {
	datasetService  services.DatasetService
	geometryService services.GeometryService
	logger          *zap.Logger
}

// NewEngineHandler creates a new EngineHandler with dependencies.
func NewEngineHandler(datasetService services.DatasetService, geometryService services.GeometryService, logger *zap.Logger) *EngineHandler {
	return &EngineHandler{
		datasetService:  datasetService,
		geometryService: geometryService,
		logger:          logger,
	}
}

// RegisterRoutes registers the engine handler's routes on the given mux.
func (h *EngineHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /projects/{id}/responses", h.SubmitResponse)
	mux.HandleFunc("GET /columns/{id}/points", h.QueryPoints)
}

// SubmitResponse handles POST /projects/{id}/responses.
// The body maps column ids to raw JSON values for the project's
// submissions dataset.
func (h *EngineHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "invalid project id")
		return
	}

	var values map[uuid.UUID]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must map column ids to values")
		return
	}

	row, err := h.datasetService.SubmitResponse(r.Context(), projectID, values)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, row); err != nil {
		h.logger.Error("Failed to encode submission response", zap.Error(err))
	}
}

// QueryPoints handles GET /columns/{id}/points.
// Bounds come from min_lng/min_lat/max_lng/max_lat query parameters; the
// box boundary is inclusive.
func (h *EngineHandler) QueryPoints(w http.ResponseWriter, r *http.Request) {
	columnID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "invalid column id")
		return
	}

	bounds, err := boundsFromQuery(r)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_bounds", err.Error())
		return
	}

	features, err := h.geometryService.QueryPointsInBounds(r.Context(), columnID, bounds)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if features == nil {
		features = []models.PointFeature{}
	}

	if err := WriteJSON(w, http.StatusOK, features); err != nil {
		h.logger.Error("Failed to encode points response", zap.Error(err))
	}
}

func boundsFromQuery(r *http.Request) (models.Bounds, error) {
	var bounds models.Bounds
	for _, field := range []struct {
		name string
		dst  *float64
	}{
		{"min_lng", &bounds.MinLng},
		{"min_lat", &bounds.MinLat},
		{"max_lng", &bounds.MaxLng},
		{"max_lat", &bounds.MaxLat},
	} {
		value, err := strconv.ParseFloat(r.URL.Query().Get(field.name), 64)
		if err != nil {
			return bounds, errors.New("missing or invalid " + field.name)
		}
		*field.dst = value
	}
	return bounds, bounds.Validate()
}

func (h *EngineHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, apperrors.ErrInvalidValue), errors.Is(err, apperrors.ErrTypeMismatch):
		_ = ErrorResponse(w, http.StatusUnprocessableEntity, "invalid_value", err.Error())
	default:
		h.logger.Error("Request failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
