package syspkg

import (
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"golang.org/x/sys/unix"
)

// KnownHelpers are elevation helpers reported by diagnostics
var KnownHelpers = []string{"pkexec", "sudo", "doas"}

// Elevator prefixes commands with the privilege elevation helper
type Elevator struct {
	helper string
	runner helpers.CommandRunner
	isRoot func() bool
}

// NewElevator creates an Elevator using the configured helper
func NewElevator(cfg *config.Config, runner helpers.CommandRunner) *Elevator {
	return &Elevator{
		helper: cfg.ElevationHelper(),
		runner: runner,
		isRoot: func() bool { return unix.Geteuid() == 0 },
	}
}

// NewElevatorWithRoot creates an Elevator with an explicit root check (for tests)
func NewElevatorWithRoot(helper string, runner helpers.CommandRunner, isRoot func() bool) *Elevator {
	return &Elevator{helper: helper, runner: runner, isRoot: isRoot}
}

// Helper returns the configured helper name
func (e *Elevator) Helper() string {
	return e.helper
}

// Required reports whether commands need the helper
func (e *Elevator) Required() bool {
	return !e.isRoot()
}

// Check verifies the helper is usable when elevation is required
func (e *Elevator) Check() error {
	if !e.Required() {
		return nil
	}
	if !e.runner.CommandExists(e.helper) {
		return pkgerr.New(pkgerr.InsufficientPrivileges{
			Helper: e.helper,
			Output: e.helper + " not found in PATH",
		})
	}
	return nil
}

// Wrap returns the command line to run name with elevated privileges
func (e *Elevator) Wrap(name string, args []string) (string, []string) {
	if !e.Required() {
		return name, args
	}
	return e.helper, append([]string{name}, args...)
}

// IsDenied reports whether exitCode is the helper's authorization failure.
// pkexec exits 126 when the user dismisses the dialog and 127 when not authorized.
func (e *Elevator) IsDenied(exitCode int) bool {
	if !e.Required() || e.helper != "pkexec" {
		return false
	}
	return exitCode == 126 || exitCode == 127
}
