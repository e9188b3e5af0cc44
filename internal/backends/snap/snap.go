package snap

import (
	"context"
	"errors"
	"strings"

	"github.com/quantmind-br/snapwiz/internal/backends/base"
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/metadata"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const serviceName = "snapd"

// SnapBackend installs local .snap files with snapd
type SnapBackend struct {
	*base.BaseBackend
}

// New creates a new Snap backend
func New(cfg *config.Config, log *zerolog.Logger) *SnapBackend {
	return NewWithBase(base.New(cfg, log))
}

// NewWithDeps creates a new Snap backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *SnapBackend {
	return NewWithBase(base.NewWithDeps(cfg, log, fs, runner))
}

// NewWithBase creates a new Snap backend sharing b
func NewWithBase(b *base.BaseBackend) *SnapBackend {
	return &SnapBackend{BaseBackend: b}
}

// Name returns the backend name
func (s *SnapBackend) Name() string {
	return "snap"
}

// Format returns the package format handled
func (s *SnapBackend) Format() core.PackageFormat {
	return core.FormatSnap
}

// Validate requires the snap binary and a running snapd. Hosts without
// systemctl ask the snap client whether the daemon answers.
func (s *SnapBackend) Validate(ctx context.Context) error {
	m, err := s.Resolver.Resolve(core.FormatSnap)
	if err != nil {
		return err
	}

	if !s.Runner.CommandExists("systemctl") {
		return s.checkDaemonReachable(ctx, m.Name)
	}

	if _, err := s.RunQuery(ctx, "systemctl", "is-active", serviceName); err != nil {
		s.Log.Warn().Err(err).Str("service", serviceName).Msg("service not active")
		return pkgerr.Wrap(pkgerr.ServiceNotRunning{Service: serviceName}, err)
	}
	return nil
}

// checkDaemonReachable runs "snap version", which reports
// "snapd unavailable" when the client cannot reach the daemon.
func (s *SnapBackend) checkDaemonReachable(ctx context.Context, client string) error {
	out, err := s.RunQuery(ctx, client, "version")
	if err == nil && !daemonUnavailable(out) {
		return nil
	}
	if err == nil {
		err = errors.New("snapd unavailable")
	}
	s.Log.Warn().Err(err).Str("service", serviceName).Msg("service not reachable")
	return pkgerr.Wrap(pkgerr.ServiceNotRunning{Service: serviceName}, err)
}

func daemonUnavailable(versionOutput string) bool {
	for _, line := range strings.Split(versionOutput, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == serviceName {
			return fields[1] == "unavailable"
		}
	}
	// no server line at all
	return true
}

// ReadMetadata reads meta/snap.yaml out of the squashfs image
func (s *SnapBackend) ReadMetadata(ctx context.Context, pkg *core.PackageFile) core.PackageMetadata {
	if !s.Runner.CommandExists("unsquashfs") {
		s.Log.Debug().Msg("unsquashfs not available, snap metadata skipped")
		return core.PackageMetadata{}
	}

	out, err := s.RunQuery(ctx, "unsquashfs", "-cat", pkg.Path, "meta/snap.yaml")
	if err != nil {
		s.Log.Debug().Err(err).Str("package_path", pkg.Path).Msg("failed to read snap.yaml")
		return core.PackageMetadata{}
	}

	m, err := metadata.ParseSnapYAML([]byte(out))
	if err != nil {
		s.Log.Debug().Err(err).Str("package_path", pkg.Path).Msg("failed to parse snap.yaml")
		return core.PackageMetadata{}
	}
	return s.FinishMetadata(m, "snap.yaml")
}

// Install runs snap install --dangerous through the elevation helper
func (s *SnapBackend) Install(ctx context.Context, pkg *core.PackageFile) (string, error) {
	if err := s.CheckArgument(pkg); err != nil {
		return "", err
	}

	m, err := s.Resolver.Resolve(core.FormatSnap)
	if err != nil {
		return "", err
	}

	s.Log.Info().
		Str("package_path", pkg.Path).
		Msg("installing snap package")

	return s.RunInstall(ctx, base.Invocation{
		Format:  core.FormatSnap,
		Manager: m.Name,
		Args:    m.InstallArgs(pkg.Path, nil),
		Elevate: true,
	})
}
