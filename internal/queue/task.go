package queue

import (
	"time"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/installer"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/progress"
)

// task is owned by the Manager and only touched under its mutex
type task struct {
	id         string
	pkg        core.PackageFile
	meta       core.PackageMetadata
	opts       installer.Options
	status     core.TaskStatus
	stage      progress.Stage
	attempt    int
	message    string
	err        *pkgerr.Record
	enqueuedAt time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// TaskSnapshot is a read-only copy of a task
type TaskSnapshot struct {
	ID         string               `json:"id"`
	Package    core.PackageFile     `json:"package"`
	Metadata   core.PackageMetadata `json:"metadata"`
	Status     core.TaskStatus      `json:"status"`
	Stage      progress.Stage       `json:"stage"`
	Percent    int                  `json:"percent"`
	Attempt    int                  `json:"attempt"`
	Message    string               `json:"message,omitempty"`
	Error      *pkgerr.Record       `json:"error,omitempty"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
	StartedAt  time.Time            `json:"started_at,omitzero"`
	FinishedAt time.Time            `json:"finished_at,omitzero"`
}

// Name returns the display name of the package
func (s TaskSnapshot) Name() string {
	return s.Metadata.DisplayName(s.Package.Path)
}

// Duration returns how long the task ran
func (s TaskSnapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (t *task) snapshot() TaskSnapshot {
	snap := TaskSnapshot{
		ID:         t.id,
		Package:    t.pkg,
		Metadata:   t.meta,
		Status:     t.status,
		Stage:      t.stage,
		Percent:    t.stage.Percent(),
		Attempt:    t.attempt,
		Message:    t.message,
		EnqueuedAt: t.enqueuedAt,
		StartedAt:  t.startedAt,
		FinishedAt: t.finishedAt,
	}
	if t.err != nil {
		rec := *t.err
		snap.Error = &rec
	}
	return snap
}

func (t *task) historyRecord() core.HistoryRecord {
	rec := core.HistoryRecord{
		TaskID:      t.id,
		PackageName: t.meta.DisplayName(t.pkg.Path),
		PackagePath: t.pkg.Path,
		Format:      t.pkg.Format,
		Version:     t.meta.Version,
		Status:      t.status,
		Message:     t.message,
		Timestamp:   t.finishedAt,
	}
	if !t.startedAt.IsZero() {
		rec.Attempts = t.attempt
	}
	if t.err != nil {
		rec.ErrorKind = t.err.Kind.String()
		rec.Message = t.err.Message
	}
	return rec
}

// BatchResult summarizes a RunAll
type BatchResult struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Cancelled int            `json:"cancelled"`
	Tasks     []TaskSnapshot `json:"tasks"`
	Duration  time.Duration  `json:"duration"`
}

func (r *BatchResult) add(s TaskSnapshot) {
	r.Total++
	r.Tasks = append(r.Tasks, s)
	switch s.Status {
	case core.StatusSucceeded:
		r.Succeeded++
	case core.StatusFailed:
		r.Failed++
	case core.StatusCancelled:
		r.Cancelled++
	}
}

// AllSucceeded reports whether every task succeeded
func (r BatchResult) AllSucceeded() bool {
	return r.Total == r.Succeeded
}
