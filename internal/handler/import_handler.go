package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examkb/internal/middleware"
	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/response"
	"github.com/stemsi/examkb/internal/service"
	"github.com/stemsi/examkb/internal/validator"
)

// ImportJobs submits batch imports and reports their state.
type ImportJobs interface {
	Submit(ctx context.Context, req model.CreateImportRequest, requestedBy string) (string, error)
	Status(ctx context.Context, importID string) (*model.ImportState, error)
}

// ImportHandler handles batch import endpoints.
type ImportHandler struct {
	jobs ImportJobs
	log  zerolog.Logger
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(jobs ImportJobs, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		jobs: jobs,
		log:  log.With().Str("component", "import_handler").Logger(),
	}
}

// CreateImport godoc
// POST /api/v1/imports
// Queues a batch import and returns its ID.
func (h *ImportHandler) CreateImport(c *gin.Context) {
	var req model.CreateImportRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	requestedBy := ""
	if claims := middleware.GetClaims(c); claims != nil {
		requestedBy = claims.Subject
	}

	id, err := h.jobs.Submit(c.Request.Context(), req, requestedBy)
	if err != nil {
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Submit import failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrQueueUnavailable)
		return
	}

	h.log.Info().
		Str("import_id", id).
		Str("request_id", response.RequestID(c)).
		Str("requested_by", requestedBy).
		Int("sources", len(req.Sources)).
		Msg("Import queued")

	response.Success(c, http.StatusAccepted, gin.H{"import_id": id})
}

// GetImport godoc
// GET /api/v1/imports/:id
// Returns the status and, once finished, the report of an import.
func (h *ImportHandler) GetImport(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	st, err := h.jobs.Status(c.Request.Context(), id)
	if errors.Is(err, service.ErrImportNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrImportNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("import_id", id).Msg("Get import status failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"import": st})
}
