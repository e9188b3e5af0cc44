package flatpak

import (
	"context"

	"github.com/quantmind-br/snapwiz/internal/backends/base"
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/metadata"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/syspkg"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Installation scopes
const (
	ScopeUser   = "--user"
	ScopeSystem = "--system"
)

// FlatpakBackend installs .flatpak bundles, per user first and system wide
// only when that fails
type FlatpakBackend struct {
	*base.BaseBackend
}

// New creates a new Flatpak backend
func New(cfg *config.Config, log *zerolog.Logger) *FlatpakBackend {
	return NewWithBase(base.New(cfg, log))
}

// NewWithDeps creates a new Flatpak backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *FlatpakBackend {
	return NewWithBase(base.NewWithDeps(cfg, log, fs, runner))
}

// NewWithBase creates a new Flatpak backend sharing b
func NewWithBase(b *base.BaseBackend) *FlatpakBackend {
	return &FlatpakBackend{BaseBackend: b}
}

// Name returns the backend name
func (f *FlatpakBackend) Name() string {
	return "flatpak"
}

// Format returns the package format handled
func (f *FlatpakBackend) Format() core.PackageFormat {
	return core.FormatFlatpak
}

// Validate checks that flatpak is installed
func (f *FlatpakBackend) Validate(_ context.Context) error {
	_, err := f.Resolver.Resolve(core.FormatFlatpak)
	return err
}

// ReadMetadata reads the bundle metadata keyfile
func (f *FlatpakBackend) ReadMetadata(ctx context.Context, pkg *core.PackageFile) core.PackageMetadata {
	if !f.Runner.CommandExists("flatpak") {
		return core.PackageMetadata{}
	}

	out, err := f.RunQuery(ctx, "flatpak", "info", "--show-metadata", pkg.Path)
	if err != nil {
		f.Log.Debug().Err(err).Str("package_path", pkg.Path).Msg("flatpak info failed")
		return core.PackageMetadata{}
	}
	return f.FinishMetadata(metadata.ParseFlatpakMetadata([]byte(out)), "flatpak")
}

// Install tries a per-user install and, if allowed, an elevated system-wide
// install when the first one fails. At most two processes are started.
func (f *FlatpakBackend) Install(ctx context.Context, pkg *core.PackageFile) (string, error) {
	if err := f.CheckArgument(pkg); err != nil {
		return "", err
	}

	m, err := f.Resolver.Resolve(core.FormatFlatpak)
	if err != nil {
		return "", err
	}

	f.Log.Info().
		Str("package_path", pkg.Path).
		Str("scope", ScopeUser).
		Msg("installing flatpak bundle")

	out, err := f.RunInstall(ctx, base.Invocation{
		Format:  core.FormatFlatpak,
		Manager: m.Name,
		Args:    m.InstallArgs(pkg.Path, map[string]string{syspkg.PlaceholderScope: ScopeUser}),
	})
	if err == nil || !f.systemFallback(err) {
		return out, err
	}

	f.Log.Warn().
		Err(err).
		Str("package_path", pkg.Path).
		Str("scope", ScopeSystem).
		Msg("user installation failed, retrying system wide")

	return f.RunInstall(ctx, base.Invocation{
		Format:  core.FormatFlatpak,
		Manager: m.Name,
		Args:    m.InstallArgs(pkg.Path, map[string]string{syspkg.PlaceholderScope: ScopeSystem}),
		Elevate: true,
	})
}

func (f *FlatpakBackend) systemFallback(err error) bool {
	if f.Cfg != nil && !f.Cfg.Install.FlatpakSystemFallback {
		return false
	}
	switch pkgerr.KindOf(err) {
	case pkgerr.KindInstallationCancelled, pkgerr.KindPackageManagerNotFound,
		pkgerr.KindInstallationTimeout, pkgerr.KindInsufficientPrivileges:
		return false
	}
	return true
}
