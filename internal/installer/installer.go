// Package installer runs one package through the staged installation
// pipeline: validation, verification, metadata, requirement checks, the
// retried native install and post-install configuration.
package installer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantmind-br/snapwiz/internal/backends"
	"github.com/quantmind-br/snapwiz/internal/backends/base"
	"github.com/quantmind-br/snapwiz/internal/cache"
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/detect"
	"github.com/quantmind-br/snapwiz/internal/diskspace"
	"github.com/quantmind-br/snapwiz/internal/logging"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/progress"
	"github.com/quantmind-br/snapwiz/internal/retry"
	"github.com/quantmind-br/snapwiz/internal/security"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Detector validates a package path and determines its format
type Detector interface {
	Detect(path string) (*core.PackageFile, error)
}

// BackendProvider returns the installer strategy for a format
type BackendProvider interface {
	Get(format core.PackageFormat) (backends.Backend, error)
}

// PrivilegeChecker verifies that elevated commands can be run
type PrivilegeChecker interface {
	Check() error
}

// SpaceChecker verifies free disk space for a package
type SpaceChecker interface {
	Check(pkg *core.PackageFile) error
}

// Deps are the collaborators of an Installer. Nil Disk and Refresher
// disable the corresponding step.
type Deps struct {
	Fs           afero.Fs
	Detector     Detector
	Backends     BackendProvider
	Privileges   PrivilegeChecker
	Disk         SpaceChecker
	Refresher    cache.Refresher
	RetryOptions []retry.Option
}

// Options are per-task installation options
type Options struct {
	Checksum *security.ExpectedChecksum
}

// Request is one package to install
type Request struct {
	TaskID   string
	Package  *core.PackageFile
	Metadata core.PackageMetadata
	Options  Options
	// Interrupt, when closed, stops further install attempts. The attempt
	// in progress is never killed.
	Interrupt <-chan struct{}
}

// Result is the outcome of an installation
type Result struct {
	Package  *core.PackageFile
	Metadata core.PackageMetadata
	Output   string
	Attempts int
	Stage    progress.Stage
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the package was installed
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Installer drives the installation pipeline
type Installer struct {
	cfg    *config.Config
	log    *zerolog.Logger
	deps   Deps
	policy retry.Policy
}

// New creates an Installer wired to the system
func New(cfg *config.Config, log *zerolog.Logger) *Installer {
	if cfg == nil {
		cfg = config.Default()
	}
	b := base.New(cfg, log)
	return NewWithDeps(cfg, log, Deps{
		Fs:         b.Fs,
		Detector:   detect.New(cfg),
		Backends:   backends.NewRegistryWithBase(b),
		Privileges: b.Elevator,
		Disk:       diskspace.New(cfg),
		Refresher:  cache.NewCacheManager(),
	})
}

// NewWithDeps creates an Installer with injected collaborators
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, deps Deps) *Installer {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}

	policy, err := retry.FromConfig(cfg.Retry.Install)
	if err != nil {
		log.Warn().Err(err).Msg("invalid install retry policy, using defaults")
		policy = retry.InstallPolicy()
	}

	return &Installer{cfg: cfg, log: log, deps: deps, policy: policy}
}

// Policy returns the retry policy applied to the install stage
func (i *Installer) Policy() retry.Policy {
	return i.policy
}

// Install runs req through every stage, reporting each transition to
// observer. The returned Result carries a *pkgerr.Error on failure.
func (i *Installer) Install(ctx context.Context, req Request, observer progress.Observer) Result {
	start := time.Now()
	log := logging.ForTask(i.log, req.TaskID, req.Package.Path)
	tracker := progress.NewTracker(req.TaskID, observer)

	res := Result{Package: req.Package, Metadata: req.Metadata}
	finish := func(err error) Result {
		res.Err = err
		res.Stage = tracker.Stage()
		res.Duration = time.Since(start)
		if err != nil {
			log.Error().
				Err(err).
				Str("kind", pkgerr.KindOf(err).String()).
				Str("stage", res.Stage.String()).
				Int("attempts", res.Attempts).
				Msg("installation failed")
		} else {
			log.Info().
				Str("package", res.Metadata.DisplayName(res.Package.Path)).
				Int("attempts", res.Attempts).
				Dur("duration", res.Duration).
				Msg("installation completed")
		}
		return res
	}

	steps := []struct {
		stage progress.Stage
		run   func() error
	}{
		{progress.StageInit, func() error { return nil }},
		{progress.StageValidate, func() error {
			pkg, err := i.validate(req.Package)
			if err == nil {
				res.Package = pkg
			}
			return err
		}},
		{progress.StageVerify, func() error { return i.verify(res.Package, req.Options) }},
		{progress.StageReadMetadata, func() error {
			res.Metadata = i.readMetadata(ctx, res.Package, res.Metadata, log)
			return nil
		}},
		{progress.StageCheckDependencies, func() error { return i.checkRequirements(ctx, res.Package, log) }},
		{progress.StageInstall, func() error {
			out, attempts, err := i.install(ctx, req, res.Package, tracker, log)
			res.Output, res.Attempts = out, attempts
			return err
		}},
		{progress.StageConfigure, func() error {
			i.configure(ctx, res.Package, log)
			return nil
		}},
		{progress.StageFinalize, func() error { return nil }},
		{progress.StageComplete, func() error { return nil }},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil && step.stage <= progress.StageInstall {
			return finish(pkgerr.Wrap(pkgerr.InstallationCancelled{}, err))
		}
		if err := tracker.Advance(step.stage); err != nil {
			return finish(fmt.Errorf("advance to %s: %w", step.stage, err))
		}
		log.Debug().Str("stage", step.stage.String()).Int("percent", step.stage.Percent()).Msg("stage started")
		if err := step.run(); err != nil {
			return finish(err)
		}
	}

	return finish(nil)
}

// validate re-runs detection: the file may have changed since it was queued
func (i *Installer) validate(pkg *core.PackageFile) (*core.PackageFile, error) {
	if i.deps.Detector == nil {
		return pkg, nil
	}
	detected, err := i.deps.Detector.Detect(pkg.Path)
	if err != nil {
		return nil, err
	}
	return detected, nil
}

func (i *Installer) readMetadata(ctx context.Context, pkg *core.PackageFile, known core.PackageMetadata, log *zerolog.Logger) core.PackageMetadata {
	if !known.IsEmpty() {
		return known
	}
	b, err := i.deps.Backends.Get(pkg.Format)
	if err != nil {
		return known
	}
	m := b.ReadMetadata(ctx, pkg)
	if m.IsEmpty() {
		log.Debug().Msg("no metadata available")
	}
	return m
}

func (i *Installer) checkRequirements(ctx context.Context, pkg *core.PackageFile, log *zerolog.Logger) error {
	b, err := i.deps.Backends.Get(pkg.Format)
	if err != nil {
		return err
	}
	if err := b.Validate(ctx); err != nil {
		return err
	}

	// flatpak starts with a per-user install that needs no helper
	if pkg.Format != core.FormatFlatpak && i.deps.Privileges != nil {
		if err := i.deps.Privileges.Check(); err != nil {
			return err
		}
	}

	if i.deps.Disk != nil {
		if err := i.deps.Disk.Check(pkg); err != nil {
			if _, ok := pkgerr.As(err); ok {
				return err
			}
			log.Warn().Err(err).Msg("disk space check skipped")
		}
	}
	return nil
}

func (i *Installer) install(ctx context.Context, req Request, pkg *core.PackageFile, tracker *progress.Tracker, log *zerolog.Logger) (string, int, error) {
	b, err := i.deps.Backends.Get(pkg.Format)
	if err != nil {
		return "", 0, err
	}

	// interrupting only cuts the backoff wait short
	retryCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if req.Interrupt != nil {
		go func() {
			select {
			case <-req.Interrupt:
				cancel()
			case <-retryCtx.Done():
			}
		}()
	}

	opts := append([]retry.Option{retry.WithCallbacks(retry.Callbacks{
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("installation attempt failed, retrying")
		},
	})}, i.deps.RetryOptions...)
	executor := retry.NewExecutor(i.policy, log, opts...)

	var output string
	attempts, err := executor.Do(retryCtx, func(_ context.Context, attempt int) error {
		if attempt > 1 {
			if err := tracker.RetryInstall(attempt); err != nil {
				return err
			}
		}
		// a started package manager runs to completion or to its own timeout
		out, err := b.Install(context.WithoutCancel(ctx), pkg)
		output = out
		return err
	})
	return output, attempts, err
}

func (i *Installer) configure(ctx context.Context, pkg *core.PackageFile, log *zerolog.Logger) {
	if !i.cfg.Install.RefreshDesktopDatabase || i.deps.Refresher == nil {
		return
	}
	i.deps.Refresher.RefreshAfterInstall(ctx, pkg.Format, log)
}

// IsCancelled reports whether err means the installation was cancelled
func IsCancelled(err error) bool {
	return pkgerr.Is(err, pkgerr.KindInstallationCancelled) || errors.Is(err, context.Canceled)
}
