package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/service"
)

type fakeQueue struct {
	mu         sync.Mutex
	pending    []*model.ImportJob
	bad        [][]byte
	dead       [][]byte
	states     []model.ImportState
	events     []model.ProgressEvent
	dequeueErr error
}

func (q *fakeQueue) Dequeue(ctx context.Context, _ time.Duration) (*model.ImportJob, []byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.dequeueErr != nil {
		return nil, nil, q.dequeueErr
	}
	if len(q.bad) > 0 {
		raw := q.bad[0]
		q.bad = q.bad[1:]
		return nil, raw, errors.New("decode job: bad json")
	}
	if len(q.pending) == 0 {
		return nil, nil, redis.Nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job, []byte("{}"), nil
}

func (q *fakeQueue) DeadLetter(_ context.Context, raw []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, raw)
	return nil
}

func (q *fakeQueue) SaveState(_ context.Context, st model.ImportState) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.states = append(q.states, st)
	return nil
}

func (q *fakeQueue) PublishProgress(_ context.Context, ev model.ProgressEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
	return nil
}

type runnerFunc func(ctx context.Context, sources []model.Source, opts service.BatchOptions) (*model.BatchReport, error)

func (f runnerFunc) Run(ctx context.Context, sources []model.Source, opts service.BatchOptions) (*model.BatchReport, error) {
	return f(ctx, sources, opts)
}

func TestProcessCompletes(t *testing.T) {
	q := &fakeQueue{}
	runner := runnerFunc(func(_ context.Context, sources []model.Source, opts service.BatchOptions) (*model.BatchReport, error) {
		if opts.ID != "job-1" || opts.Policy != "flag" {
			t.Errorf("opts = %+v", opts)
		}
		opts.Progress(model.ProgressEvent{Type: model.ProgressSourceStarted, ImportID: opts.ID})
		rep := &model.BatchReport{ID: opts.ID, PerSource: []model.SourceReport{{Inserted: len(sources), Errors: []string{}}}}
		rep.Summarize()
		return rep, nil
	})
	w := NewImportWorker(q, runner, zerolog.Nop())

	w.Process(context.Background(), &model.ImportJob{ID: "job-1", Policy: "flag", Sources: []model.Source{{ExamYear: 7}}})

	if len(q.states) != 2 {
		t.Fatalf("states = %+v", q.states)
	}
	if q.states[0].Status != model.ImportStatusRunning {
		t.Errorf("first state = %s", q.states[0].Status)
	}
	last := q.states[1]
	if last.Status != model.ImportStatusCompleted || last.Report == nil || last.Report.Totals.Inserted != 1 {
		t.Errorf("final state = %+v", last)
	}
	if len(q.events) != 1 {
		t.Errorf("events = %+v", q.events)
	}
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name   string
		runner runnerFunc
	}{
		{"error", func(context.Context, []model.Source, service.BatchOptions) (*model.BatchReport, error) {
			return &model.BatchReport{}, errors.New("batch options: bad policy")
		}},
		{"panic", func(context.Context, []model.Source, service.BatchOptions) (*model.BatchReport, error) {
			panic("boom")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{}
			NewImportWorker(q, tt.runner, zerolog.Nop()).Process(context.Background(), &model.ImportJob{ID: "job-2"})

			last := q.states[len(q.states)-1]
			if last.Status != model.ImportStatusFailed || last.Error == "" {
				t.Errorf("final state = %+v", last)
			}
		})
	}
}

func TestStartDeadLettersAndStops(t *testing.T) {
	q := &fakeQueue{
		bad:     [][]byte{[]byte("{not json")},
		pending: []*model.ImportJob{{ID: "job-3"}},
	}
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	runner := runnerFunc(func(context.Context, []model.Source, service.BatchOptions) (*model.BatchReport, error) {
		defer close(done)
		return &model.BatchReport{}, nil
	})
	w := NewImportWorker(q, runner, zerolog.Nop())

	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job not processed")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.dead) != 1 || string(q.dead[0]) != "{not json" {
		t.Errorf("dead letters = %q", q.dead)
	}
}
