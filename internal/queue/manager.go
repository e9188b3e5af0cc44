// Package queue holds installation tasks in FIFO order and runs them one at
// a time on a single worker goroutine.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/installer"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/progress"
	"github.com/rs/zerolog"
)

var (
	// ErrQueueFull is returned when the hard cap is reached
	ErrQueueFull = errors.New("installation queue is full")
	// ErrTaskNotFound is returned for unknown task ids
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskNotPending is returned when a task can no longer be removed
	ErrTaskNotPending = errors.New("task is not pending")
	// ErrAlreadyRunning is returned when the worker is already started
	ErrAlreadyRunning = errors.New("queue is already running")
)

// Detector validates a package path
type Detector interface {
	Detect(path string) (*core.PackageFile, error)
}

// Installer runs one task through the pipeline
type Installer interface {
	Install(ctx context.Context, req installer.Request, observer progress.Observer) installer.Result
}

// MetadataFunc reads package metadata at submission time
type MetadataFunc func(ctx context.Context, pkg *core.PackageFile) core.PackageMetadata

// Deps are the collaborators of a Manager. Metadata and History are optional.
type Deps struct {
	Detector  Detector
	Installer Installer
	Metadata  MetadataFunc
	History   core.HistoryWriter
	NewID     func() string
}

// EventType distinguishes worker events
type EventType int

// Worker event types
const (
	EventProgress EventType = iota
	EventCompleted
)

// Event is emitted by the worker. Events of one task are ordered and tasks
// complete in FIFO order.
type Event struct {
	Type     EventType
	TaskID   string
	Progress progress.Event
	Task     TaskSnapshot
}

// Manager is the batch queue
type Manager struct {
	mu              sync.Mutex
	tasks           []*task
	running         bool
	cancelRequested bool
	interrupt       chan struct{}

	maxSize     int
	recommended int
	deps        Deps
	log         *zerolog.Logger
}

// NewManager creates a queue with the configured caps
func NewManager(cfg *config.Config, log *zerolog.Logger, deps Deps) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.New().String() }
	}
	return &Manager{
		maxSize:     cfg.Queue.MaxSize,
		recommended: cfg.Queue.RecommendedSize,
		deps:        deps,
		log:         log,
	}
}

// Submit detects the package at path, reads its metadata and enqueues it.
// Nothing is enqueued when detection fails.
func (m *Manager) Submit(ctx context.Context, path string, opts installer.Options) (string, error) {
	pkg, err := m.deps.Detector.Detect(path)
	if err != nil {
		m.log.Warn().Err(err).Str("package_path", path).Msg("package rejected")
		return "", err
	}

	var meta core.PackageMetadata
	if m.deps.Metadata != nil {
		meta = m.deps.Metadata(ctx, pkg)
	}
	return m.Enqueue(pkg, meta, opts)
}

// Enqueue appends a Pending task for an already detected package
func (m *Manager) Enqueue(pkg *core.PackageFile, meta core.PackageMetadata, opts installer.Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := m.activeLocked()
	if m.maxSize > 0 && active >= m.maxSize {
		return "", fmt.Errorf("%w: %d tasks (max %d)", ErrQueueFull, active, m.maxSize)
	}

	t := &task{
		id:         m.deps.NewID(),
		pkg:        *pkg,
		meta:       meta,
		opts:       opts,
		status:     core.StatusPending,
		attempt:    1,
		enqueuedAt: time.Now(),
	}
	m.tasks = append(m.tasks, t)

	if m.recommended > 0 && active+1 > m.recommended {
		m.log.Warn().
			Int("tasks", active+1).
			Int("recommended", m.recommended).
			Msg("queue exceeds recommended size, installation may take a long time")
	}

	m.log.Debug().
		Str("task_id", t.id).
		Str("package_path", pkg.Path).
		Str("format", string(pkg.Format)).
		Msg("task enqueued")
	return t.id, nil
}

// Remove deletes a Pending task
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range m.tasks {
		if t.id != id {
			continue
		}
		if t.status != core.StatusPending {
			return fmt.Errorf("%w: %s is %s", ErrTaskNotPending, id, t.status)
		}
		m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

// ClearFinished drops terminal tasks and returns how many were dropped
func (m *Manager) ClearFinished() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.status.IsTerminal() {
			kept = append(kept, t)
		}
	}
	dropped := len(m.tasks) - len(kept)
	m.tasks = kept
	return dropped
}

// Tasks returns snapshots of every task in queue order
func (m *Manager) Tasks() []TaskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]TaskSnapshot, len(m.tasks))
	for i, t := range m.tasks {
		out[i] = t.snapshot()
	}
	return out
}

// Task returns a snapshot of one task
func (m *Manager) Task(id string) (TaskSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t := m.findLocked(id); t != nil {
		return t.snapshot(), true
	}
	return TaskSnapshot{}, false
}

// Len returns the number of pending and running tasks
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

// Degraded reports whether the queue holds more tasks than recommended
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recommended > 0 && m.activeLocked() > m.recommended
}

// Running reports whether the worker is active
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Cancel stops the queue. The running task finishes its current attempt
// and is not retried; pending tasks are cancelled and never started.
func (m *Manager) Cancel() {
	m.mu.Lock()
	m.cancelRequested = true
	if m.interrupt != nil {
		close(m.interrupt)
		m.interrupt = nil
	}
	if m.running {
		// the worker cancels the rest once the running task ends
		m.mu.Unlock()
		m.log.Info().Msg("cancellation requested, waiting for the running task")
		return
	}
	cancelled := m.cancelPendingLocked()
	m.mu.Unlock()

	m.recordHistory(context.Background(), cancelled)
}

// Start launches the worker. Events are delivered on the returned channel,
// which is closed when no pending task remains or the queue is cancelled.
// The caller must drain the channel.
func (m *Manager) Start(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	m.running = true
	m.cancelRequested = false
	m.interrupt = make(chan struct{})
	interrupt := m.interrupt
	m.mu.Unlock()

	events := make(chan Event, 16)
	go m.work(ctx, interrupt, events)
	return events, nil
}

// RunAll runs every pending task and invokes the callbacks on the caller's
// goroutine, in event order. A failed task does not stop the batch.
func (m *Manager) RunAll(ctx context.Context, onTaskProgress func(progress.Event), onTaskComplete func(TaskSnapshot)) (BatchResult, error) {
	start := time.Now()
	events, err := m.Start(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for ev := range events {
		switch ev.Type {
		case EventProgress:
			if onTaskProgress != nil {
				onTaskProgress(ev.Progress)
			}
		case EventCompleted:
			result.add(ev.Task)
			if onTaskComplete != nil {
				onTaskComplete(ev.Task)
			}
		}
	}
	result.Duration = time.Since(start)

	m.log.Info().
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("cancelled", result.Cancelled).
		Dur("duration", result.Duration).
		Msg("batch finished")
	return result, nil
}

func (m *Manager) work(ctx context.Context, interrupt chan struct{}, events chan<- Event) {
	defer close(events)
	defer func() {
		m.mu.Lock()
		m.running = false
		if m.interrupt == interrupt {
			m.interrupt = nil
		}
		m.mu.Unlock()
	}()

	for {
		t, req, cancelled := m.next(ctx, interrupt)
		if t == nil {
			m.recordHistory(ctx, cancelled)
			for _, c := range cancelled {
				events <- Event{Type: EventCompleted, TaskID: c.id, Task: c.snapshot()}
			}
			return
		}

		res := m.deps.Installer.Install(ctx, req, func(ev progress.Event) {
			m.mu.Lock()
			t.stage = ev.Stage
			t.attempt = ev.Attempt
			m.mu.Unlock()
			events <- Event{Type: EventProgress, TaskID: t.id, Progress: ev}
		})

		snap := m.complete(t, res)
		m.recordHistory(ctx, []*task{t})
		events <- Event{Type: EventCompleted, TaskID: t.id, Task: snap}
	}
}

// next marks the first pending task Running. When the queue is cancelled or
// drained it returns nil plus any tasks it cancelled.
func (m *Manager) next(ctx context.Context, interrupt chan struct{}) (*task, installer.Request, []*task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelRequested || ctx.Err() != nil {
		return nil, installer.Request{}, m.cancelPendingLocked()
	}

	for _, t := range m.tasks {
		if t.status != core.StatusPending {
			continue
		}
		if !m.transitionLocked(t, core.StatusRunning) {
			continue
		}
		t.startedAt = time.Now()
		pkg := t.pkg
		return t, installer.Request{
			TaskID:    t.id,
			Package:   &pkg,
			Metadata:  t.meta,
			Options:   t.opts,
			Interrupt: interrupt,
		}, nil
	}
	return nil, installer.Request{}, nil
}

func (m *Manager) complete(t *task, res installer.Result) TaskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.finishedAt = time.Now()
	if res.Metadata.Name != "" {
		t.meta = res.Metadata
	}
	if res.Package != nil {
		t.pkg = *res.Package
	}
	if res.Attempts > 0 {
		t.attempt = res.Attempts
	}

	// a task that already started can only succeed or fail
	switch {
	case res.Err == nil:
		m.transitionLocked(t, core.StatusSucceeded)
		t.message = fmt.Sprintf("%s installed successfully", t.meta.DisplayName(t.pkg.Path))
	case installer.IsCancelled(res.Err):
		m.transitionLocked(t, core.StatusFailed)
		t.err = pkgerr.RecordOf(pkgerr.Wrap(pkgerr.InstallationCancelled{}, res.Err))
	default:
		m.transitionLocked(t, core.StatusFailed)
		t.err = pkgerr.RecordOf(res.Err)
	}
	return t.snapshot()
}

// transitionLocked moves t to next when the task state machine allows it
func (m *Manager) transitionLocked(t *task, next core.TaskStatus) bool {
	if !t.status.CanTransitionTo(next) {
		m.log.Error().
			Str("task_id", t.id).
			Str("from", string(t.status)).
			Str("to", string(next)).
			Msg("illegal task transition")
		return false
	}
	t.status = next
	return true
}

func (m *Manager) cancelPendingLocked() []*task {
	var cancelled []*task
	now := time.Now()
	for _, t := range m.tasks {
		if t.status != core.StatusPending || !m.transitionLocked(t, core.StatusCancelled) {
			continue
		}
		t.finishedAt = now
		t.err = pkgerr.RecordOf(pkgerr.New(pkgerr.InstallationCancelled{}))
		cancelled = append(cancelled, t)
	}
	return cancelled
}

func (m *Manager) recordHistory(ctx context.Context, tasks []*task) {
	if m.deps.History == nil || len(tasks) == 0 {
		return
	}

	m.mu.Lock()
	records := make([]core.HistoryRecord, len(tasks))
	for i, t := range tasks {
		records[i] = t.historyRecord()
	}
	m.mu.Unlock()

	// history must be written even when the batch context was cancelled
	ctx = context.WithoutCancel(ctx)
	for _, rec := range records {
		if err := m.deps.History.Record(ctx, rec); err != nil {
			m.log.Warn().Err(err).Str("task_id", rec.TaskID).Msg("failed to write history record")
		}
	}
}

func (m *Manager) activeLocked() int {
	n := 0
	for _, t := range m.tasks {
		if !t.status.IsTerminal() {
			n++
		}
	}
	return n
}

func (m *Manager) findLocked(id string) *task {
	for _, t := range m.tasks {
		if t.id == id {
			return t
		}
	}
	return nil
}
