// Package detect maps a user-supplied path to a validated PackageFile.
// It only inspects filesystem metadata and never spawns processes.
package detect

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/fsops"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/security"
	"github.com/spf13/afero"
)

// Detector resolves package files and their formats
type Detector struct {
	fs         afero.Fs
	extensions map[string]core.PackageFormat
}

// New creates a Detector on the OS filesystem using the configured extensions
func New(cfg *config.Config) *Detector {
	var exts []string
	if cfg != nil {
		exts = cfg.Install.SupportedExtensions
	}
	return NewWithFs(afero.NewOsFs(), exts)
}

// NewWithFs creates a Detector on fs. An empty extension list enables every format.
func NewWithFs(fs afero.Fs, extensions []string) *Detector {
	d := &Detector{
		fs:         fs,
		extensions: make(map[string]core.PackageFormat),
	}

	if len(extensions) == 0 {
		for _, f := range core.AllFormats {
			d.extensions[f.Extension()] = f
		}
		return d
	}

	for _, ext := range extensions {
		f, err := core.ParseFormat(ext)
		if err != nil {
			continue
		}
		d.extensions[f.Extension()] = f
	}
	return d
}

// SupportedExtensions returns the recognized extensions, sorted
func (d *Detector) SupportedExtensions() []string {
	out := make([]string, 0, len(d.extensions))
	for ext := range d.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// FormatOf returns the format for the path's extension, case-insensitively
func (d *Detector) FormatOf(path string) (core.PackageFormat, bool) {
	f, ok := d.extensions[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// Detect validates path and determines its format.
// Checks run in order: path sanity, existence and readability, file type,
// size, extension.
func (d *Detector) Detect(path string) (*core.PackageFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, pkgerr.New(pkgerr.InvalidPackage{Path: path, Reason: pkgerr.ReasonInvalidPath})
	}
	if err := security.ValidatePath(path); err != nil {
		return nil, pkgerr.Wrap(pkgerr.InvalidPackage{Path: security.SanitizePath(path), Reason: pkgerr.ReasonInvalidPath}, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.InvalidPackage{Path: path, Reason: pkgerr.ReasonInvalidPath}, err)
	}

	info, err := d.fs.Stat(absPath)
	if err != nil {
		// missing, permission denied on a parent, or broken symlink
		return nil, pkgerr.Wrap(pkgerr.PackageNotFound{Path: absPath}, err)
	}

	if info.IsDir() {
		return nil, pkgerr.New(pkgerr.InvalidPackage{Path: absPath, Reason: pkgerr.ReasonIsDirectory})
	}
	if !info.Mode().IsRegular() {
		return nil, pkgerr.New(pkgerr.InvalidPackage{Path: absPath, Reason: pkgerr.ReasonNotRegularFile})
	}
	if err := fsops.CheckReadable(d.fs, absPath); err != nil {
		return nil, pkgerr.Wrap(pkgerr.PackageNotFound{Path: absPath}, err)
	}
	if info.Size() == 0 {
		return nil, pkgerr.New(pkgerr.InvalidPackage{Path: absPath, Reason: pkgerr.ReasonEmptyFile})
	}

	format, ok := d.FormatOf(absPath)
	if !ok {
		return nil, pkgerr.New(pkgerr.UnsupportedFormat{
			Path:      absPath,
			Extension: strings.ToLower(filepath.Ext(absPath)),
			Supported: d.SupportedExtensions(),
		})
	}

	return &core.PackageFile{
		Path:   absPath,
		Format: format,
		Size:   info.Size(),
	}, nil
}
