package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/syspkg"
	"github.com/quantmind-br/snapwiz/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewDoctorCmd creates the doctor command
func NewDoctorCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newDoctorCmd(newServices(cfg, log))
}

// report collects the findings of one diagnostics run
type report struct {
	w        io.Writer
	issues   []string
	warnings []string
}

func (r *report) ok(format string, args ...any) {
	ui.PrintSuccess(r.w, format, args...)
}

func (r *report) issue(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ui.PrintError(r.w, "%s", msg)
	r.issues = append(r.issues, msg)
}

func (r *report) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ui.PrintWarning(r.w, "%s", msg)
	r.warnings = append(r.warnings, msg)
}

func newDoctorCmd(s *services) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the system for installation requirements",
		Long:  `Check which package managers, privilege helpers and services are available, and whether the history database is usable.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			r := &report{w: cmd.OutOrStdout()}

			ui.PrintHeader(r.w, "Package managers")
			checkManagers(s, r)

			ui.PrintHeader(r.w, "Privileges")
			checkPrivileges(s, r)

			ui.PrintHeader(r.w, "Services")
			checkSnapd(ctx, s, r)

			ui.PrintHeader(r.w, "Metadata tools")
			checkTools(s, r)

			ui.PrintHeader(r.w, "Storage")
			checkStorage(ctx, s, r)

			ui.PrintHeader(r.w, "Summary")
			if len(r.issues) == 0 {
				ui.PrintSuccess(r.w, "All critical checks passed!")
			} else {
				ui.PrintError(r.w, "Found %d issue(s):", len(r.issues))
				ui.PrintList(r.w, r.issues)
			}
			if len(r.warnings) > 0 {
				ui.PrintWarning(r.w, "Found %d warning(s):", len(r.warnings))
				ui.PrintList(r.w, r.warnings)
			}

			if len(r.issues) > 0 {
				return &ExitError{Code: core.ExitGeneral, Err: fmt.Errorf("system check failed with %d issue(s)", len(r.issues))}
			}
			return nil
		},
	}

	return cmd
}

func checkManagers(s *services, r *report) {
	available := s.resolver.Available()
	usable := 0
	for _, f := range core.AllFormats {
		names := available[f]
		if len(names) == 0 {
			r.warn("%s: none of %s found", f, strings.Join(s.resolver.Candidates(f), ", "))
			continue
		}
		usable++
		m, _ := s.resolver.Resolve(f)
		r.ok("%s: %s (available: %s)", f, m.Name, strings.Join(names, ", "))
	}
	if usable == 0 {
		r.issue("no supported package manager found")
	}
}

func checkPrivileges(s *services, r *report) {
	if !s.elevator.Required() {
		r.ok("running as root, no elevation needed")
		return
	}
	if err := s.elevator.Check(); err != nil {
		r.issue("elevation helper %s not found", s.elevator.Helper())
	} else {
		r.ok("elevation helper: %s", s.elevator.Helper())
	}

	var others []string
	for _, h := range syspkg.KnownHelpers {
		if h != s.elevator.Helper() && s.runner.CommandExists(h) {
			others = append(others, h)
		}
	}
	if len(others) > 0 {
		ui.PrintInfo(r.w, "other helpers available: %s", strings.Join(others, ", "))
	}
}

func checkSnapd(ctx context.Context, s *services, r *report) {
	if _, err := s.resolver.Resolve(core.FormatSnap); err != nil {
		ui.PrintInfo(r.w, "snapd: not installed, skipped")
		return
	}
	if !s.runner.CommandExists("systemctl") {
		ui.PrintInfo(r.w, "snapd: cannot check without systemctl")
		return
	}
	out, err := s.runner.RunCommand(ctx, "systemctl", "is-active", "snapd")
	if err != nil || strings.TrimSpace(out) != "active" {
		r.warn("snapd service is not running")
		return
	}
	r.ok("snapd: active")
}

func checkTools(s *services, r *report) {
	tools := []struct {
		name    string
		purpose string
	}{
		{"dpkg-deb", "read .deb metadata"},
		{"rpm", "read .rpm metadata"},
		{"unsquashfs", "read .snap metadata"},
		{"update-desktop-database", "refresh application menus"},
	}
	for _, t := range tools {
		if s.runner.CommandExists(t.name) {
			r.ok("%s: found", t.name)
		} else {
			ui.PrintInfo(r.w, "%s: not found (optional, used to %s)", t.name, t.purpose)
		}
	}
}

func checkStorage(ctx context.Context, s *services, r *report) {
	if err := s.disk.Check(&core.PackageFile{}); err != nil {
		r.warn("%v", err)
	} else {
		r.ok("free disk space: at least %d MB", s.cfg.Install.MinFreeSpaceMB)
	}

	store, err := s.openHistory(ctx)
	if err != nil {
		r.issue("history database not accessible: %v", err)
		return
	}
	defer store.Close()

	n, err := store.Count(ctx)
	if err != nil {
		r.warn("cannot count history records: %v", err)
		return
	}
	r.ok("history database: %s (%d records)", store.Path(), n)
	if limit := s.cfg.History.MaxEntries; limit > 0 && n > limit {
		r.warn("history has %d records (limit %d), consider exporting and clearing it", n, limit)
	}
}
