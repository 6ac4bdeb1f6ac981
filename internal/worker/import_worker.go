package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/service"
)

// pollTimeout bounds each BLPop so the loop notices shutdown.
const pollTimeout = time.Second

// JobQueue is the Redis side of the import pipeline.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*model.ImportJob, []byte, error)
	DeadLetter(ctx context.Context, raw []byte) error
	SaveState(ctx context.Context, st model.ImportState) error
	PublishProgress(ctx context.Context, ev model.ProgressEvent) error
}

// BatchRunner runs one batch and returns its report.
type BatchRunner interface {
	Run(ctx context.Context, sources []model.Source, opts service.BatchOptions) (*model.BatchReport, error)
}

// ImportWorker consumes the import queue and runs each job through the batch
// pipeline, caching the state and publishing progress as it goes.
type ImportWorker struct {
	queue  JobQueue
	runner BatchRunner
	log    zerolog.Logger
}

// NewImportWorker creates a new ImportWorker.
func NewImportWorker(queue JobQueue, runner BatchRunner, log zerolog.Logger) *ImportWorker {
	return &ImportWorker{
		queue:  queue,
		runner: runner,
		log:    log.With().Str("component", "import_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine. A job in progress when
// ctx is cancelled stops between questions and is saved as cancelled.
func (w *ImportWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ImportWorker) processNext(ctx context.Context) {
	job, raw, err := w.queue.Dequeue(ctx, pollTimeout)
	switch {
	case errors.Is(err, redis.Nil):
		return
	case err != nil && job == nil && raw != nil:
		w.log.Error().Err(err).Msg("Undecodable job, moving to dead letter")
		if dlErr := w.queue.DeadLetter(context.WithoutCancel(ctx), raw); dlErr != nil {
			w.log.Error().Err(dlErr).Msg("Dead letter push failed")
		}
		return
	case err != nil:
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(pollTimeout)
		}
		return
	}

	w.Process(ctx, job)
}

// Process runs a single job to completion and records its final state.
func (w *ImportWorker) Process(ctx context.Context, job *model.ImportJob) {
	log := w.log.With().Str("import_id", job.ID).Logger()
	// State writes must land even when the worker is shutting down.
	stateCtx := context.WithoutCancel(ctx)

	w.saveState(stateCtx, model.ImportState{ID: job.ID, Status: model.ImportStatusRunning}, log)

	opts := service.BatchOptions{
		ID:            job.ID,
		Policy:        job.Policy,
		MinBodyLength: job.MinBodyLength,
		Progress: func(ev model.ProgressEvent) {
			if err := w.queue.PublishProgress(stateCtx, ev); err != nil {
				log.Warn().Err(err).Str("event", string(ev.Type)).Msg("Progress publish failed")
			}
		},
	}

	start := time.Now()
	report, err := w.runSafely(ctx, job, opts)

	final := model.ImportState{ID: job.ID, Status: model.ImportStatusCompleted, Report: report}
	if err != nil {
		final.Status = model.ImportStatusFailed
		final.Error = err.Error()
	}
	w.saveState(stateCtx, final, log)

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	if report != nil {
		ev = ev.Int("inserted", report.Totals.Inserted).Bool("cancelled", report.Cancelled)
	}
	ev.Str("status", string(final.Status)).Dur("elapsed", time.Since(start)).Msg("Import finished")
}

// runSafely turns a panic inside the pipeline into a failed job so one bad
// payload cannot stop the worker.
func (w *ImportWorker) runSafely(ctx context.Context, job *model.ImportJob, opts service.BatchOptions) (report *model.BatchReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import panicked: %v", r)
		}
	}()
	return w.runner.Run(ctx, job.Sources, opts)
}

func (w *ImportWorker) saveState(ctx context.Context, st model.ImportState, log zerolog.Logger) {
	st.UpdatedAt = time.Now().UTC()
	if err := w.queue.SaveState(ctx, st); err != nil {
		log.Error().Err(err).Str("status", string(st.Status)).Msg("Save import state failed")
	}
}
