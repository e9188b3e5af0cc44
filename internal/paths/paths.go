// Package paths resolves the per-user directories snapwiz reads and writes.
package paths

import (
	"os"
	"path/filepath"
)

// Resolver derives snapwiz's base directories from HOME and XDG_DATA_HOME.
type Resolver struct {
	homeDir  string
	dataHome string
}

// NewResolver uses the current user's HOME and honors an absolute XDG_DATA_HOME.
func NewResolver() *Resolver {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}
	r := NewResolverWithHome(homeDir)
	if xdg := os.Getenv("XDG_DATA_HOME"); filepath.IsAbs(xdg) {
		r.dataHome = xdg
	}
	return r
}

// NewResolverWithHome ignores the environment.
func NewResolverWithHome(homeDir string) *Resolver {
	r := &Resolver{homeDir: homeDir}
	if homeDir != "" {
		r.dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return r
}

func (r *Resolver) HomeDir() string {
	return r.homeDir
}

// DataHome is empty when HOME is unknown.
func (r *Resolver) DataHome() string {
	return r.dataHome
}

func (r *Resolver) join(elem ...string) string {
	if r.dataHome == "" {
		return ""
	}
	return filepath.Join(append([]string{r.dataHome}, elem...)...)
}

// DataDir holds the history database and the log file.
func (r *Resolver) DataDir() string {
	if dir := r.join("snapwiz"); dir != "" {
		return dir
	}
	return filepath.Join(".", ".snapwiz")
}

func (r *Resolver) AppsDir() string {
	return r.join("applications")
}

func (r *Resolver) IconsDir() string {
	return r.join("icons", "hicolor")
}

// FlatpakAppsDir is where flatpak --user installs export desktop entries.
func (r *Resolver) FlatpakAppsDir() string {
	return r.join("flatpak", "exports", "share", "applications")
}
