package base

import (
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/syspkg"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// BaseBackend holds what every format backend shares. It is embedded by the
// concrete backends and does not implement Backend on its own.
//
//nolint:revive // exported name is kept for clarity across internal packages.
type BaseBackend struct {
	Fs       afero.Fs
	Runner   helpers.CommandRunner
	Resolver *syspkg.Resolver
	Elevator *syspkg.Elevator
	Log      *zerolog.Logger
	Cfg      *config.Config
}

// New wires the OS filesystem and process runner.
func New(cfg *config.Config, log *zerolog.Logger) *BaseBackend {
	return NewWithDeps(cfg, log, afero.NewOsFs(), helpers.NewOSCommandRunner())
}

// NewWithDeps takes the filesystem and runner explicitly.
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *BaseBackend {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &BaseBackend{
		Fs:       fs,
		Runner:   runner,
		Resolver: syspkg.NewResolver(cfg, runner),
		Elevator: syspkg.NewElevator(cfg, runner),
		Log:      log,
		Cfg:      cfg,
	}
}
