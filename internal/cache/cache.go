// Package cache refreshes the desktop caches that newly installed
// applications show up in. Every refresh is best effort.
package cache

import (
	"context"
	"time"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/fsops"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/paths"
	"github.com/quantmind-br/snapwiz/internal/security"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const refreshTimeout = 30 * time.Second

// Refresher is what the installer calls in its configure stage
type Refresher interface {
	RefreshAfterInstall(ctx context.Context, format core.PackageFormat, log *zerolog.Logger)
}

// CacheManager handles cache updates
type CacheManager struct {
	runner helpers.CommandRunner
	fs     afero.Fs
	paths  *paths.Resolver
}

// NewCacheManager creates a new CacheManager for the current user
func NewCacheManager() *CacheManager {
	return &CacheManager{runner: helpers.NewOSCommandRunner(), fs: afero.NewOsFs(), paths: paths.NewResolver()}
}

// NewCacheManagerWithDeps creates a new CacheManager with injected dependencies
func NewCacheManagerWithDeps(runner helpers.CommandRunner, fs afero.Fs, home string) *CacheManager {
	return &CacheManager{runner: runner, fs: fs, paths: paths.NewResolverWithHome(home)}
}

// ApplicationDirs returns the user-writable desktop entry directories for format
func (c *CacheManager) ApplicationDirs(format core.PackageFormat) []string {
	apps := c.paths.AppsDir()
	if apps == "" {
		return nil
	}
	dirs := []string{apps}
	if format == core.FormatFlatpak {
		dirs = append(dirs, c.paths.FlatpakAppsDir())
	}
	return dirs
}

// RefreshAfterInstall updates the desktop database and icon cache of the
// user directories that exist. System directories are left to the package
// manager's own triggers.
func (c *CacheManager) RefreshAfterInstall(ctx context.Context, format core.PackageFormat, log *zerolog.Logger) {
	for _, dir := range c.ApplicationDirs(format) {
		if !fsops.IsDir(c.fs, dir) {
			continue
		}
		_ = c.UpdateDesktopDatabase(ctx, dir, log)
	}

	iconDir := c.paths.IconsDir()
	if iconDir != "" && fsops.IsDir(c.fs, iconDir) {
		_ = c.UpdateIconCache(ctx, iconDir, log)
	}
}

// UpdateIconCache updates the icon cache using gtk-update-icon-cache
func (c *CacheManager) UpdateIconCache(ctx context.Context, iconDir string, log *zerolog.Logger) error {
	cmdName := c.detectIconCacheCommand()
	if cmdName == "" {
		log.Debug().Msg("gtk-update-icon-cache not found, skipping icon cache update")
		return nil
	}
	if security.NeedsElevation(iconDir) {
		log.Debug().Str("icon_dir", iconDir).Msg("system icon directory, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if _, err := c.runner.RunCommand(ctx, cmdName, "-f", "-t", iconDir); err != nil {
		log.Warn().Err(err).Msg("icon cache update failed (non-fatal)")
		return nil // Non-fatal
	}

	log.Debug().Str("icon_dir", iconDir).Msg("icon cache updated")
	return nil
}

// UpdateDesktopDatabase updates the desktop database using update-desktop-database
func (c *CacheManager) UpdateDesktopDatabase(ctx context.Context, appsDir string, log *zerolog.Logger) error {
	if !c.runner.CommandExists("update-desktop-database") {
		log.Debug().Msg("update-desktop-database not found, skipping desktop database update")
		return nil
	}
	if security.NeedsElevation(appsDir) {
		log.Debug().Str("apps_dir", appsDir).Msg("system applications directory, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if _, err := c.runner.RunCommand(ctx, "update-desktop-database", appsDir); err != nil {
		log.Warn().Err(err).Msg("desktop database update failed (non-fatal)")
		return nil // Non-fatal
	}

	log.Debug().Str("apps_dir", appsDir).Msg("desktop database updated")
	return nil
}

func (c *CacheManager) detectIconCacheCommand() string {
	if c.runner.CommandExists("gtk4-update-icon-cache") {
		return "gtk4-update-icon-cache"
	}
	if c.runner.CommandExists("gtk-update-icon-cache") {
		return "gtk-update-icon-cache"
	}
	return ""
}
