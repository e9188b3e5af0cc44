package rpm

import (
	"context"

	"github.com/quantmind-br/snapwiz/internal/backends/base"
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/metadata"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// RpmBackend installs .rpm packages through dnf, yum, zypper or rpm
type RpmBackend struct {
	*base.BaseBackend
}

// New creates a new RPM backend
func New(cfg *config.Config, log *zerolog.Logger) *RpmBackend {
	return NewWithBase(base.New(cfg, log))
}

// NewWithDeps creates a new RPM backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *RpmBackend {
	return NewWithBase(base.NewWithDeps(cfg, log, fs, runner))
}

// NewWithBase creates a new RPM backend sharing b
func NewWithBase(b *base.BaseBackend) *RpmBackend {
	return &RpmBackend{BaseBackend: b}
}

// Name returns the backend name
func (r *RpmBackend) Name() string {
	return "rpm"
}

// Format returns the package format handled
func (r *RpmBackend) Format() core.PackageFormat {
	return core.FormatRpm
}

// Validate checks that an RPM package manager is available
func (r *RpmBackend) Validate(_ context.Context) error {
	_, err := r.Resolver.Resolve(core.FormatRpm)
	return err
}

// ReadMetadata queries rpm, falling back to parsing the package header
func (r *RpmBackend) ReadMetadata(ctx context.Context, pkg *core.PackageFile) core.PackageMetadata {
	if r.Runner.CommandExists("rpm") {
		out, err := r.RunQuery(ctx, "rpm", "-qip", pkg.Path)
		if err == nil {
			if m := metadata.ParseRpmInfo(out); !m.IsEmpty() {
				return r.FinishMetadata(m, "rpm")
			}
		}
		r.Log.Debug().Err(err).Str("package_path", pkg.Path).Msg("rpm query failed, reading header")
	}

	m, err := r.ReadFile(pkg.Path, metadata.ReadRpmHeader)
	if err != nil {
		r.Log.Debug().Err(err).Str("package_path", pkg.Path).Msg("failed to read rpm header")
		return core.PackageMetadata{}
	}
	return r.FinishMetadata(m, "header")
}

// Install runs the resolved manager once through the elevation helper
func (r *RpmBackend) Install(ctx context.Context, pkg *core.PackageFile) (string, error) {
	if err := r.CheckArgument(pkg); err != nil {
		return "", err
	}

	m, err := r.Resolver.Resolve(core.FormatRpm)
	if err != nil {
		return "", err
	}

	r.Log.Info().
		Str("package_path", pkg.Path).
		Str("manager", m.Name).
		Msg("installing RPM package")

	return r.RunInstall(ctx, base.Invocation{
		Format:  core.FormatRpm,
		Manager: m.Name,
		Args:    m.InstallArgs(pkg.Path, nil),
		Elevate: true,
	})
}
