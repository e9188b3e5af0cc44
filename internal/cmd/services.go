package cmd

import (
	"context"
	"os"

	"github.com/quantmind-br/snapwiz/internal/backends"
	"github.com/quantmind-br/snapwiz/internal/backends/base"
	"github.com/quantmind-br/snapwiz/internal/cache"
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/detect"
	"github.com/quantmind-br/snapwiz/internal/diskspace"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/history"
	"github.com/quantmind-br/snapwiz/internal/installer"
	"github.com/quantmind-br/snapwiz/internal/queue"
	"github.com/quantmind-br/snapwiz/internal/syspkg"
	"github.com/quantmind-br/snapwiz/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

// services are the collaborators commands build from the configuration.
// Tests replace individual fields.
type services struct {
	cfg      *config.Config
	log      *zerolog.Logger
	fs       afero.Fs
	runner   helpers.CommandRunner
	resolver *syspkg.Resolver
	elevator *syspkg.Elevator
	registry *backends.Registry
	detector queue.Detector
	disk     installer.SpaceChecker

	installer   queue.Installer
	metadata    queue.MetadataFunc
	confirm     func(label string) (bool, error)
	interactive bool
}

func newServices(cfg *config.Config, log *zerolog.Logger) *services {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	b := base.New(cfg, log)
	s := &services{
		cfg:      cfg,
		log:      log,
		fs:       b.Fs,
		runner:   b.Runner,
		resolver: b.Resolver,
		elevator: b.Elevator,
		registry: backends.NewRegistryWithBase(b),
		detector: detect.New(cfg),
		disk:     diskspace.New(cfg),
		confirm:  ui.ConfirmPrompt,
		interactive: term.IsTerminal(int(os.Stdin.Fd())) &&
			term.IsTerminal(int(os.Stderr.Fd())),
	}
	s.metadata = s.readMetadata
	s.installer = installer.NewWithDeps(cfg, log, installer.Deps{
		Fs:         s.fs,
		Detector:   s.detector,
		Backends:   s.registry,
		Privileges: s.elevator,
		Disk:       s.disk,
		Refresher:  cache.NewCacheManager(),
	})
	return s
}

func (s *services) readMetadata(ctx context.Context, pkg *core.PackageFile) core.PackageMetadata {
	b, err := s.registry.Get(pkg.Format)
	if err != nil {
		return core.PackageMetadata{}
	}
	return b.ReadMetadata(ctx, pkg)
}

func (s *services) openHistory(ctx context.Context) (*history.Store, error) {
	return history.New(ctx, s.cfg.Paths.DBFile, s.cfg.History.MaxEntries, s.log)
}
