package deb

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

// DebBackend installs .deb packages through apt, apt-get or dpkg
type DebBackend struct {
	*base.BaseBackend
}

// New creates a new DEB backend
func New(cfg *config.Config, log *zerolog.Logger) *DebBackend {
	return NewWithBase(base.New(cfg, log))
}

// NewWithDeps creates a new DEB backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *DebBackend {
	return NewWithBase(base.NewWithDeps(cfg, log, fs, runner))
}

// NewWithBase creates a new DEB backend sharing b
func NewWithBase(b *base.BaseBackend) *DebBackend {
	return &DebBackend{BaseBackend: b}
}

// Name returns the backend name
func (d *DebBackend) Name() string {
	return "deb"
}

// Format returns the package format handled
func (d *DebBackend) Format() core.PackageFormat {
	return core.FormatDeb
}

// Validate checks that a Debian package manager is available
func (d *DebBackend) Validate(_ context.Context) error {
	_, err := d.Resolver.Resolve(core.FormatDeb)
	return err
}

// ReadMetadata reads the control fields, with dpkg-deb when present and the
// archive itself otherwise
func (d *DebBackend) ReadMetadata(ctx context.Context, pkg *core.PackageFile) core.PackageMetadata {
	if d.Runner.CommandExists("dpkg-deb") {
		out, err := d.RunQuery(ctx, "dpkg-deb", "--field", pkg.Path)
		if err == nil {
			if m := metadata.ParseControl([]byte(out)); !m.IsEmpty() {
				return d.FinishMetadata(m, "dpkg-deb")
			}
		}
		d.Log.Debug().Err(err).Str("package_path", pkg.Path).Msg("dpkg-deb query failed, reading archive")
	}

	m, err := d.ReadFile(pkg.Path, metadata.ReadDebControl)
	if err != nil {
		d.Log.Debug().Err(err).Str("package_path", pkg.Path).Msg("failed to read control file")
		return core.PackageMetadata{}
	}
	return d.FinishMetadata(m, "control")
}

// Install runs the resolved manager once through the elevation helper
func (d *DebBackend) Install(ctx context.Context, pkg *core.PackageFile) (string, error) {
	if err := d.CheckArgument(pkg); err != nil {
		return "", err
	}

	m, err := d.Resolver.Resolve(core.FormatDeb)
	if err != nil {
		return "", err
	}

	d.Log.Info().
		Str("package_path", pkg.Path).
		Str("manager", m.Name).
		Msg("installing DEB package")

	return d.RunInstall(ctx, base.Invocation{
		Format:  core.FormatDeb,
		Manager: m.Name,
		Args:    m.InstallArgs(pkg.Path, nil),
		Elevate: true,
	})
}
