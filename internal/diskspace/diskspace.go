// Package diskspace checks that the target filesystem can take a package.
package diskspace

import (
	"fmt"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/shirou/gopsutil/v3/disk"
)

const mib = 1024 * 1024

// ExpansionFactor estimates installed size from package size
const ExpansionFactor = 3

// UsageFunc returns the free bytes of the filesystem holding path
type UsageFunc func(path string) (uint64, error)

// Checker verifies free space before an installation
type Checker struct {
	path      string
	minFreeMB uint64
	usage     UsageFunc
}

// New creates a Checker for the configured path using gopsutil
func New(cfg *config.Config) *Checker {
	path, minFree := "/", uint64(0)
	if cfg != nil {
		if cfg.Install.DiskCheckPath != "" {
			path = cfg.Install.DiskCheckPath
		}
		minFree = cfg.Install.MinFreeSpaceMB
	}
	return NewWithUsage(path, minFree, systemUsage)
}

// NewWithUsage creates a Checker with an injected usage source
func NewWithUsage(path string, minFreeMB uint64, usage UsageFunc) *Checker {
	return &Checker{path: path, minFreeMB: minFreeMB, usage: usage}
}

func systemUsage(path string) (uint64, error) {
	stat, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return stat.Free, nil
}

// RequiredMB is the space needed to install pkg
func (c *Checker) RequiredMB(pkg *core.PackageFile) uint64 {
	size := uint64(0)
	if pkg.Size > 0 {
		size = uint64(pkg.Size) * ExpansionFactor
	}
	return c.minFreeMB + (size+mib-1)/mib
}

// Check returns InsufficientDiskSpace when the filesystem is too full.
// A usage lookup failure is returned as a plain error so callers can skip it.
func (c *Checker) Check(pkg *core.PackageFile) error {
	free, err := c.usage(c.path)
	if err != nil {
		return fmt.Errorf("disk usage of %s: %w", c.path, err)
	}

	required := c.RequiredMB(pkg)
	available := free / mib
	if available < required {
		return pkgerr.New(pkgerr.InsufficientDiskSpace{
			Path:        c.path,
			RequiredMB:  required,
			AvailableMB: available,
		})
	}
	return nil
}
