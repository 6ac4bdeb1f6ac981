package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/repository"
)

// ErrImportNotFound is returned for unknown or expired import IDs.
var ErrImportNotFound = errors.New("import not found")

// ImportQueue is the subset of the import repository used for submission.
type ImportQueue interface {
	Enqueue(ctx context.Context, job model.ImportJob) error
	GetState(ctx context.Context, importID string) (*model.ImportState, error)
}

// ImportJobService queues batch imports for the worker and reports their state.
type ImportJobService struct {
	queue ImportQueue
	log   zerolog.Logger
}

// NewImportJobService creates a new ImportJobService.
func NewImportJobService(queue ImportQueue, log zerolog.Logger) *ImportJobService {
	return &ImportJobService{
		queue: queue,
		log:   log.With().Str("component", "import_job_service").Logger(),
	}
}

// Submit enqueues req and returns the new import ID.
func (s *ImportJobService) Submit(ctx context.Context, req model.CreateImportRequest, requestedBy string) (string, error) {
	job := model.ImportJob{
		ID:            uuid.New().String(),
		Sources:       req.ToSources(),
		Policy:        req.Policy,
		MinBodyLength: req.MinBodyLength,
		RequestedBy:   requestedBy,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("submit import: %w", err)
	}

	s.log.Info().
		Str("import_id", job.ID).
		Int("sources", len(job.Sources)).
		Str("requested_by", requestedBy).
		Msg("Import queued")

	return job.ID, nil
}

// Status returns the cached state of an import.
func (s *ImportJobService) Status(ctx context.Context, importID string) (*model.ImportState, error) {
	st, err := s.queue.GetState(ctx, importID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("import status: %w", err)
	}
	return st, nil
}
