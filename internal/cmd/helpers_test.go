package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/quantmind-br/snapwiz/internal/backends"
	"github.com/quantmind-br/snapwiz/internal/backends/base"
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/detect"
	"github.com/quantmind-br/snapwiz/internal/diskspace"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/installer"
	"github.com/quantmind-br/snapwiz/internal/progress"
	"github.com/quantmind-br/snapwiz/internal/syspkg"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// fakeInstaller records requests and answers with result
type fakeInstaller struct {
	mu       sync.Mutex
	requests []installer.Request
	result   func(req installer.Request) installer.Result
}

func (f *fakeInstaller) Install(_ context.Context, req installer.Request, observer progress.Observer) installer.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	tracker := progress.NewTracker(req.TaskID, observer)
	_ = tracker.Advance(progress.StageInit)

	if f.result != nil {
		return f.result(req)
	}
	_ = tracker.Advance(progress.StageComplete)
	return installer.Result{Package: req.Package, Metadata: req.Metadata, Attempts: 1, Stage: progress.StageComplete}
}

func (f *fakeInstaller) calls() []installer.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]installer.Request(nil), f.requests...)
}

type testEnv struct {
	s         *services
	fs        afero.Fs
	runner    *helpers.MockCommandRunner
	installer *fakeInstaller
	commands  map[string]bool
}

func newTestEnv(t *testing.T, commands ...string) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.DBFile = filepath.Join(t.TempDir(), "history.db")
	log := zerolog.Nop()

	env := &testEnv{
		fs:        afero.NewMemMapFs(),
		installer: &fakeInstaller{},
		commands:  map[string]bool{},
	}
	for _, c := range commands {
		env.commands[c] = true
	}
	env.runner = &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return env.commands[name] },
	}

	b := base.NewWithDeps(cfg, &log, env.fs, env.runner)
	env.s = &services{
		cfg:       cfg,
		log:       &log,
		fs:        env.fs,
		runner:    env.runner,
		resolver:  b.Resolver,
		elevator:  syspkg.NewElevatorWithRoot("pkexec", env.runner, func() bool { return false }),
		registry:  backends.NewRegistryWithBase(b),
		detector:  detect.NewWithFs(env.fs, nil),
		disk:      diskspace.NewWithUsage("/", 100, func(string) (uint64, error) { return 50 << 30, nil }),
		installer: env.installer,
		metadata: func(_ context.Context, pkg *core.PackageFile) core.PackageMetadata {
			return core.PackageMetadata{Name: "pkg-" + filepath.Base(pkg.Path), Version: "1.0"}
		},
		confirm: func(string) (bool, error) { return true, nil },
	}
	return env
}

func (e *testEnv) file(t *testing.T, path string, content []byte) string {
	t.Helper()
	require.NoError(t, afero.WriteFile(e.fs, path, content, 0o644))
	return path
}

func (e *testEnv) pkg(t *testing.T, path string) string {
	return e.file(t, path, bytes.Repeat([]byte{0x42}, 4096))
}

// execute runs cmd with args and returns stdout, stderr and the error
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
