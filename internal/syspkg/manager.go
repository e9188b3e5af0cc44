// Package syspkg locates the native package manager for a format and builds
// its install command line, including privilege elevation.
package syspkg

import (
	"strings"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
)

// Template placeholders
const (
	PlaceholderPackage = "{package}"
	PlaceholderScope   = "{scope}"
)

var defaultCandidates = map[core.PackageFormat][]string{
	core.FormatDeb:     {"apt", "apt-get", "dpkg"},
	core.FormatRpm:     {"dnf", "yum", "zypper", "rpm"},
	core.FormatSnap:    {"snap"},
	core.FormatFlatpak: {"flatpak"},
}

var defaultTemplates = map[string]string{
	"apt":     "install -y {package}",
	"apt-get": "install -y {package}",
	"dpkg":    "-i {package}",
	"dnf":     "install -y {package}",
	"yum":     "install -y {package}",
	"zypper":  "--non-interactive install {package}",
	"rpm":     "-ivh {package}",
	"snap":    "install --dangerous {package}",
	"flatpak": "install -y {scope} --bundle {package}",
}

// Manager is a resolved native package manager
type Manager struct {
	Name     string
	Format   core.PackageFormat
	Template []string
}

// InstallArgs expands the argument template. Placeholders with an empty value
// are dropped, a template without {package} gets the path appended.
func (m Manager) InstallArgs(packagePath string, vars map[string]string) []string {
	args := make([]string, 0, len(m.Template)+1)
	sawPackage := false
	for _, tok := range m.Template {
		switch tok {
		case PlaceholderPackage:
			args = append(args, packagePath)
			sawPackage = true
		default:
			if strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}") {
				if v := vars[tok]; v != "" {
					args = append(args, v)
				}
				continue
			}
			args = append(args, tok)
		}
	}
	if !sawPackage {
		args = append(args, packagePath)
	}
	return args
}

// Resolver picks the first available manager for each format
type Resolver struct {
	runner     helpers.CommandRunner
	candidates map[core.PackageFormat][]string
	templates  map[string]string
}

// NewResolver creates a Resolver from configuration, falling back to built-in defaults
func NewResolver(cfg *config.Config, runner helpers.CommandRunner) *Resolver {
	r := &Resolver{
		runner:     runner,
		candidates: make(map[core.PackageFormat][]string),
		templates:  make(map[string]string),
	}
	for f, c := range defaultCandidates {
		r.candidates[f] = c
	}
	for name, t := range defaultTemplates {
		r.templates[name] = t
	}
	if cfg == nil {
		return r
	}
	for key, c := range cfg.Managers {
		f, err := core.ParseFormat(key)
		if err != nil || len(c) == 0 {
			continue
		}
		r.candidates[f] = c
	}
	for name, t := range cfg.Commands {
		r.templates[name] = t
	}
	return r
}

// Candidates returns the managers tried for format, in order
func (r *Resolver) Candidates(format core.PackageFormat) []string {
	return append([]string(nil), r.candidates[format]...)
}

// Resolve returns the first candidate for format present in PATH
func (r *Resolver) Resolve(format core.PackageFormat) (*Manager, error) {
	for _, name := range r.candidates[format] {
		if r.runner.CommandExists(name) {
			return &Manager{
				Name:     name,
				Format:   format,
				Template: strings.Fields(r.template(name)),
			}, nil
		}
	}
	return nil, pkgerr.New(pkgerr.PackageManagerNotFound{
		Format:     string(format),
		Candidates: r.Candidates(format),
	})
}

// Available lists, per format, the candidates present in PATH
func (r *Resolver) Available() map[core.PackageFormat][]string {
	out := make(map[core.PackageFormat][]string)
	for _, f := range core.AllFormats {
		for _, name := range r.candidates[f] {
			if r.runner.CommandExists(name) {
				out[f] = append(out[f], name)
			}
		}
	}
	return out
}

func (r *Resolver) template(name string) string {
	if t, ok := r.templates[name]; ok && strings.TrimSpace(t) != "" {
		return t
	}
	return PlaceholderPackage
}
