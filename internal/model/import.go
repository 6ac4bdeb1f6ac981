package model

import "time"

// Source is one document fed to the batch pipeline. Text wins over Path when
// both are set.
type Source struct {
	ExamYear  int    `json:"exam_year"`
	ExamRound int    `json:"exam_round,omitempty"`
	Name      string `json:"source,omitempty"`
	Text      string `json:"text,omitempty"`
	Path      string `json:"path,omitempty"`
	Variant   string `json:"variant,omitempty"`
}

// Label returns a display name for logs and reports.
func (s Source) Label() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Path != "":
		return s.Path
	default:
		return "inline"
	}
}

// SourceReport carries per-source pipeline counts.
type SourceReport struct {
	ExamYear         int      `json:"exam_year"`
	ExamRound        int      `json:"exam_round"`
	Source           string   `json:"source"`
	Extracted        int      `json:"extracted"`
	Inserted         int      `json:"inserted"`
	SkippedDuplicate int      `json:"skipped_duplicate"`
	RejectedInvalid  int      `json:"rejected_invalid"`
	Incomplete       int      `json:"incomplete"`
	Errors           []string `json:"errors"`
}

// ReportTotals aggregates SourceReport counts across a batch.
type ReportTotals struct {
	Sources          int `json:"sources"`
	FailedSources    int `json:"failed_sources"`
	Extracted        int `json:"extracted"`
	Inserted         int `json:"inserted"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	RejectedInvalid  int `json:"rejected_invalid"`
	Incomplete       int `json:"incomplete"`
	Errors           int `json:"errors"`
}

// BatchReport is the summary emitted by every batch run.
type BatchReport struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Cancelled  bool           `json:"cancelled,omitempty"`
	PerSource  []SourceReport `json:"per_source"`
	Totals     ReportTotals   `json:"totals"`
}

// Summarize recomputes Totals from PerSource.
func (r *BatchReport) Summarize() {
	t := ReportTotals{Sources: len(r.PerSource)}
	for _, s := range r.PerSource {
		t.Extracted += s.Extracted
		t.Inserted += s.Inserted
		t.SkippedDuplicate += s.SkippedDuplicate
		t.RejectedInvalid += s.RejectedInvalid
		t.Incomplete += s.Incomplete
		t.Errors += len(s.Errors)
		if len(s.Errors) > 0 {
			t.FailedSources++
		}
	}
	r.Totals = t
}

// ImportStatus tracks a queued batch through the worker.
type ImportStatus string

const (
	ImportStatusQueued    ImportStatus = "QUEUED"
	ImportStatusRunning   ImportStatus = "RUNNING"
	ImportStatusCompleted ImportStatus = "COMPLETED"
	ImportStatusFailed    ImportStatus = "FAILED"
)

// ImportJob is the payload pushed onto the import queue.
type ImportJob struct {
	ID            string    `json:"id"`
	Sources       []Source  `json:"sources"`
	Policy        string    `json:"policy,omitempty"`
	MinBodyLength int       `json:"min_body_length,omitempty"`
	RequestedBy   string    `json:"requested_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ImportState is the cached status of an import job.
type ImportState struct {
	ID        string       `json:"id"`
	Status    ImportStatus `json:"status"`
	Report    *BatchReport `json:"report,omitempty"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ProgressEventType names the events published while a batch runs.
type ProgressEventType string

const (
	ProgressSourceStarted  ProgressEventType = "source_started"
	ProgressSourceFinished ProgressEventType = "source_finished"
	ProgressBatchFinished  ProgressEventType = "batch_finished"
)

// ProgressEvent is published on the import's progress channel.
type ProgressEvent struct {
	Type      ProgressEventType `json:"type"`
	ImportID  string            `json:"import_id,omitempty"`
	Index     int               `json:"index"`
	ExamYear  int               `json:"exam_year,omitempty"`
	Source    string            `json:"source,omitempty"`
	Report    *SourceReport     `json:"report,omitempty"`
	Totals    *ReportTotals     `json:"totals,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ─── Requests ──────────────────────────────────────────────────────────

// ImportSourceRequest is one document in a CreateImportRequest.
type ImportSourceRequest struct {
	ExamYear  int    `json:"exam_year" binding:"required,min=1"`
	ExamRound int    `json:"exam_round" binding:"omitempty,min=1"`
	Source    string `json:"source" binding:"omitempty,max=255"`
	Text      string `json:"text" binding:"required,notblank"`
	Variant   string `json:"variant" binding:"omitempty,oneof=standard numbered bracketed labeled"`
}

// CreateImportRequest is the payload for enqueueing a batch import.
type CreateImportRequest struct {
	Sources       []ImportSourceRequest `json:"sources" binding:"required,min=1,max=50,dive"`
	Policy        string                `json:"policy" binding:"omitempty,oneof=drop flag"`
	MinBodyLength int                   `json:"min_body_length" binding:"omitempty,min=1,max=200"`
}

// ToSources converts request documents into pipeline sources.
func (r CreateImportRequest) ToSources() []Source {
	out := make([]Source, len(r.Sources))
	for i, s := range r.Sources {
		out[i] = Source{
			ExamYear:  s.ExamYear,
			ExamRound: s.ExamRound,
			Name:      s.Source,
			Text:      s.Text,
			Variant:   s.Variant,
		}
	}
	return out
}
