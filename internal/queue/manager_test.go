package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/detect"
	"github.com/quantmind-br/snapwiz/internal/installer"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/progress"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type installFunc func(ctx context.Context, req installer.Request, observer progress.Observer) installer.Result

func (f installFunc) Install(ctx context.Context, req installer.Request, observer progress.Observer) installer.Result {
	return f(ctx, req, observer)
}

// succeed walks every stage and reports success
func succeed(_ context.Context, req installer.Request, observer progress.Observer) installer.Result {
	tracker := progress.NewTracker(req.TaskID, observer)
	for _, s := range progress.Stages() {
		_ = tracker.Advance(s)
	}
	return installer.Result{Package: req.Package, Metadata: req.Metadata, Attempts: 1, Stage: progress.StageComplete}
}

type historyLog struct {
	mu      sync.Mutex
	records []core.HistoryRecord
}

func (h *historyLog) Record(_ context.Context, rec core.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *historyLog) all() []core.HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]core.HistoryRecord(nil), h.records...)
}

type harness struct {
	fs      afero.Fs
	history *historyLog
	writer  core.HistoryWriter
	cfg     *config.Config
	install installFunc
	calls   []string
	mu      sync.Mutex
}

func newHarness() *harness {
	h := &harness{fs: afero.NewMemMapFs(), history: &historyLog{}, cfg: config.Default()}
	h.install = succeed
	return h
}

func (h *harness) manager(t *testing.T) *Manager {
	t.Helper()
	n := 0
	log := zerolog.Nop()
	var history core.HistoryWriter = h.history
	if h.writer != nil {
		history = h.writer
	}
	return NewManager(h.cfg, &log, Deps{
		Detector: detect.NewWithFs(h.fs, nil),
		Installer: installFunc(func(ctx context.Context, req installer.Request, obs progress.Observer) installer.Result {
			h.mu.Lock()
			h.calls = append(h.calls, req.TaskID)
			h.mu.Unlock()
			return h.install(ctx, req, obs)
		}),
		Metadata: func(_ context.Context, pkg *core.PackageFile) core.PackageMetadata {
			return core.PackageMetadata{Name: "meta-" + string(pkg.Format)}
		},
		History: history,
		NewID: func() string {
			n++
			return fmt.Sprintf("task-%d", n)
		},
	})
}

func (h *harness) file(t *testing.T, path string, size int) string {
	t.Helper()
	require.NoError(t, afero.WriteFile(h.fs, path, bytes.Repeat([]byte{1}, size), 0o644))
	return path
}

func (h *harness) installCalls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func TestSubmit_RejectsWithoutEnqueueing(t *testing.T) {
	h := newHarness()
	m := h.manager(t)

	_, err := m.Submit(context.Background(), h.file(t, "/pkgs/empty.deb", 0), installer.Options{})
	pe, ok := pkgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pkgerr.KindInvalidPackage, pe.Kind())
	assert.Equal(t, pkgerr.ReasonEmptyFile, pe.Record().Context["reason"])

	_, err = m.Submit(context.Background(), h.file(t, "/pkgs/app.AppImage", 10), installer.Options{})
	assert.True(t, pkgerr.Is(err, pkgerr.KindUnsupportedFormat))

	_, err = m.Submit(context.Background(), "/pkgs/missing.rpm", installer.Options{})
	assert.True(t, pkgerr.Is(err, pkgerr.KindPackageNotFound))

	assert.Empty(t, m.Tasks())
	assert.Empty(t, h.history.all())
}

func TestSubmit_ReadsMetadata(t *testing.T) {
	h := newHarness()
	m := h.manager(t)

	id, err := m.Submit(context.Background(), h.file(t, "/pkgs/a.snap", 10), installer.Options{})
	require.NoError(t, err)

	snap, ok := m.Task(id)
	require.True(t, ok)
	assert.Equal(t, core.StatusPending, snap.Status)
	assert.Equal(t, core.FormatSnap, snap.Package.Format)
	assert.Equal(t, "meta-snap", snap.Metadata.Name)
	assert.Equal(t, 1, snap.Attempt)
}

func TestRunAll_FIFOAndContinueOnError(t *testing.T) {
	h := newHarness()
	h.install = func(ctx context.Context, req installer.Request, obs progress.Observer) installer.Result {
		if req.Package.Format == core.FormatRpm {
			tracker := progress.NewTracker(req.TaskID, obs)
			_ = tracker.Advance(progress.StageInit)
			return installer.Result{
				Package:  req.Package,
				Metadata: req.Metadata,
				Attempts: 1,
				Err:      pkgerr.New(pkgerr.DependencyError{Manager: "dnf", Dependencies: []string{"libfoo"}}),
			}
		}
		return succeed(ctx, req, obs)
	}
	m := h.manager(t)

	for _, p := range []string{"/pkgs/a.deb", "/pkgs/b.rpm", "/pkgs/c.flatpak"} {
		_, err := m.Submit(context.Background(), h.file(t, p, 10), installer.Options{})
		require.NoError(t, err)
	}

	var progressTasks []string
	var completed []TaskSnapshot
	result, err := m.RunAll(context.Background(),
		func(ev progress.Event) { progressTasks = append(progressTasks, ev.TaskID) },
		func(s TaskSnapshot) { completed = append(completed, s) })
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.AllSucceeded())

	require.Len(t, completed, 3)
	assert.Equal(t, []string{"task-1", "task-2", "task-3"}, []string{completed[0].ID, completed[1].ID, completed[2].ID})
	assert.Equal(t, core.StatusFailed, completed[1].Status)
	require.NotNil(t, completed[1].Error)
	assert.Equal(t, pkgerr.KindDependencyError, completed[1].Error.Kind)

	// progress of a task never interleaves with the next one
	for i := 1; i < len(progressTasks); i++ {
		assert.LessOrEqual(t, progressTasks[i-1], progressTasks[i])
	}
	assert.Len(t, progressTasks, 9+1+9)

	records := h.history.all()
	require.Len(t, records, 3)
	assert.Equal(t, "dependency_error", records[1].ErrorKind)
	assert.Equal(t, core.StatusSucceeded, records[2].Status)
	assert.Equal(t, "meta-flatpak", records[2].PackageName)
	assert.Equal(t, 1, records[2].Attempts)

	assert.False(t, m.Running())
	assert.Zero(t, m.Len())
}

func TestEnqueue_Caps(t *testing.T) {
	h := newHarness()
	h.cfg.Queue.MaxSize = 2
	h.cfg.Queue.RecommendedSize = 1
	m := h.manager(t)
	pkg := &core.PackageFile{Path: "/pkgs/a.deb", Format: core.FormatDeb, Size: 10}

	_, err := m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})
	require.NoError(t, err)
	assert.False(t, m.Degraded())

	_, err = m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})
	require.NoError(t, err)
	assert.True(t, m.Degraded())

	_, err = m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, m.Len())

	// finished tasks no longer count against the cap
	_, err = m.RunAll(context.Background(), nil, nil)
	require.NoError(t, err)
	_, err = m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})
	assert.NoError(t, err)
	assert.Equal(t, 2, m.ClearFinished())
	assert.Len(t, m.Tasks(), 1)
}

func TestRemove(t *testing.T) {
	h := newHarness()
	m := h.manager(t)
	pkg := &core.PackageFile{Path: "/pkgs/a.deb", Format: core.FormatDeb}

	first, _ := m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})
	second, _ := m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})

	require.NoError(t, m.Remove(second))
	assert.ErrorIs(t, m.Remove(second), ErrTaskNotFound)
	assert.ErrorIs(t, m.Remove("nope"), ErrTaskNotFound)

	_, err := m.RunAll(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Remove(first), ErrTaskNotPending)
	assert.Equal(t, []string{first}, h.installCalls())
}

func TestCancel_Idle(t *testing.T) {
	h := newHarness()
	m := h.manager(t)
	pkg := &core.PackageFile{Path: "/pkgs/a.deb", Format: core.FormatDeb}
	_, _ = m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})
	_, _ = m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})

	m.Cancel()

	for _, s := range m.Tasks() {
		assert.Equal(t, core.StatusCancelled, s.Status)
		require.NotNil(t, s.Error)
		assert.Equal(t, pkgerr.KindInstallationCancelled, s.Error.Kind)
	}
	records := h.history.all()
	require.Len(t, records, 2)
	assert.Equal(t, "installation_cancelled", records[0].ErrorKind)
	assert.Zero(t, records[0].Attempts)

	result, err := m.RunAll(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, result.Total)
	assert.Empty(t, h.installCalls())
}

func TestCancel_WhileRunning(t *testing.T) {
	h := newHarness()
	var m *Manager
	var interrupted bool
	h.install = func(ctx context.Context, req installer.Request, obs progress.Observer) installer.Result {
		m.Cancel()
		select {
		case <-req.Interrupt:
			interrupted = true
		default:
		}
		return succeed(ctx, req, obs)
	}
	m = h.manager(t)
	pkg := &core.PackageFile{Path: "/pkgs/a.deb", Format: core.FormatDeb}
	for range 3 {
		_, err := m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})
		require.NoError(t, err)
	}

	var completed []TaskSnapshot
	result, err := m.RunAll(context.Background(), nil, func(s TaskSnapshot) { completed = append(completed, s) })
	require.NoError(t, err)

	assert.True(t, interrupted)
	assert.Equal(t, []string{"task-1"}, h.installCalls())
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 2, result.Cancelled)
	require.Len(t, completed, 3)
	assert.Equal(t, core.StatusSucceeded, completed[0].Status)
	assert.Equal(t, core.StatusCancelled, completed[2].Status)
	assert.True(t, completed[2].StartedAt.IsZero())

	assert.Len(t, h.history.all(), 3)
}

func TestStart_AlreadyRunning(t *testing.T) {
	h := newHarness()
	release := make(chan struct{})
	started := make(chan struct{})
	h.install = func(ctx context.Context, req installer.Request, obs progress.Observer) installer.Result {
		close(started)
		<-release
		return succeed(ctx, req, obs)
	}
	m := h.manager(t)
	_, _ = m.Enqueue(&core.PackageFile{Path: "/pkgs/a.deb", Format: core.FormatDeb}, core.PackageMetadata{}, installer.Options{})

	events, err := m.Start(context.Background())
	require.NoError(t, err)
	<-started

	assert.True(t, m.Running())
	_, err = m.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = m.RunAll(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	running := m.Tasks()[0]
	assert.Equal(t, core.StatusRunning, running.Status)
	assert.ErrorIs(t, m.Remove(running.ID), ErrTaskNotPending)

	close(release)
	for range events {
	}
	assert.False(t, m.Running())
}

func TestRunAll_ContextCancelled(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	h.install = func(_ context.Context, req installer.Request, _ progress.Observer) installer.Result {
		cancel()
		return installer.Result{Package: req.Package, Err: pkgerr.Wrap(pkgerr.InstallationCancelled{}, context.Canceled)}
	}
	m := h.manager(t)
	pkg := &core.PackageFile{Path: "/pkgs/a.deb", Format: core.FormatDeb}
	_, _ = m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})
	_, _ = m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})

	result, err := m.RunAll(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, h.installCalls(), 1)
	assert.Len(t, h.history.all(), 2)

	// the started task fails, the pending one never starts
	require.Len(t, result.Tasks, 2)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Cancelled)
	started := result.Tasks[0]
	assert.Equal(t, core.StatusFailed, started.Status)
	require.NotNil(t, started.Error)
	assert.Equal(t, pkgerr.KindInstallationCancelled, started.Error.Kind)
	assert.False(t, started.StartedAt.IsZero())
	assert.Equal(t, core.StatusCancelled, result.Tasks[1].Status)
	assert.True(t, result.Tasks[1].StartedAt.IsZero())
}

func TestTasks_ReturnsCopies(t *testing.T) {
	h := newHarness()
	m := h.manager(t)
	id, _ := m.Enqueue(&core.PackageFile{Path: "/pkgs/a.deb", Format: core.FormatDeb}, core.PackageMetadata{Name: "a"}, installer.Options{})

	tasks := m.Tasks()
	tasks[0].Status = core.StatusFailed
	tasks[0].Metadata.Name = "changed"

	snap, _ := m.Task(id)
	assert.Equal(t, core.StatusPending, snap.Status)
	assert.Equal(t, "a", snap.Name())

	_, ok := m.Task("missing")
	assert.False(t, ok)
}

func TestRunAll_HistoryFailureDoesNotStopBatch(t *testing.T) {
	h := newHarness()
	var attempted []string
	h.writer = core.HistoryWriterFunc(func(_ context.Context, rec core.HistoryRecord) error {
		attempted = append(attempted, rec.TaskID)
		return errors.New("database is locked")
	})
	m := h.manager(t)
	pkg := &core.PackageFile{Path: "/pkgs/a.deb", Format: core.FormatDeb}
	for range 2 {
		_, err := m.Enqueue(pkg, core.PackageMetadata{}, installer.Options{})
		require.NoError(t, err)
	}

	result, err := m.RunAll(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, []string{"task-1", "task-2"}, attempted)
}
