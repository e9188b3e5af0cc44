// Package backends dispatches an installation to the strategy for its format.
package backends

import (
	"context"

	"github.com/quantmind-br/snapwiz/internal/backends/base"
	"github.com/quantmind-br/snapwiz/internal/backends/deb"
	"github.com/quantmind-br/snapwiz/internal/backends/flatpak"
	"github.com/quantmind-br/snapwiz/internal/backends/rpm"
	"github.com/quantmind-br/snapwiz/internal/backends/snap"
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/rs/zerolog"
)

// Backend interface that all format installers must implement
type Backend interface {
	// Name returns the backend name
	Name() string

	// Format returns the package format handled by the backend
	Format() core.PackageFormat

	// Validate checks that the package manager (and its service) is usable
	Validate(ctx context.Context) error

	// ReadMetadata reads best-effort metadata, leaving unknown fields empty
	ReadMetadata(ctx context.Context, pkg *core.PackageFile) core.PackageMetadata

	// Install runs the native installation once and returns its output
	Install(ctx context.Context, pkg *core.PackageFile) (string, error)
}

// Registry holds one backend per supported format
type Registry struct {
	deb     Backend
	rpm     Backend
	snap    Backend
	flatpak Backend
}

// NewRegistry creates a backend registry with system dependencies
func NewRegistry(cfg *config.Config, log *zerolog.Logger) *Registry {
	return NewRegistryWithBase(base.New(cfg, log))
}

// NewRegistryWithBase creates a registry whose backends share b
func NewRegistryWithBase(b *base.BaseBackend) *Registry {
	return &Registry{
		deb:     deb.NewWithBase(b),
		rpm:     rpm.NewWithBase(b),
		snap:    snap.NewWithBase(b),
		flatpak: flatpak.NewWithBase(b),
	}
}

// Get returns the backend for format
func (r *Registry) Get(format core.PackageFormat) (Backend, error) {
	switch format {
	case core.FormatDeb:
		return r.deb, nil
	case core.FormatRpm:
		return r.rpm, nil
	case core.FormatSnap:
		return r.snap, nil
	case core.FormatFlatpak:
		return r.flatpak, nil
	}

	supported := make([]string, 0, len(core.AllFormats))
	for _, f := range core.AllFormats {
		supported = append(supported, f.Extension())
	}
	return nil, pkgerr.New(pkgerr.UnsupportedFormat{Extension: string(format), Supported: supported})
}

// All returns every backend in format order
func (r *Registry) All() []Backend {
	return []Backend{r.deb, r.rpm, r.snap, r.flatpak}
}

// ListBackends returns all registered backend names
func (r *Registry) ListBackends() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, b := range all {
		names[i] = b.Name()
	}
	return names
}
