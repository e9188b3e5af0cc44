package base

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
)

// Result is the observable outcome of one failed package manager process
type Result struct {
	Format   core.PackageFormat
	Manager  string
	Output   string
	ExitCode int
	Err      error
	Timeout  time.Duration
	Elevated bool
}

var permissionPatterns = []string{
	"permission denied",
	"not authorized",
	"authentication failed",
	"authorization failed",
	"are you root",
	"must be run as root",
	"requires root",
	"request dismissed",
}

var dependencyMarkers = []string{
	"unmet dependencies",
	"dependency problems",
	"failed dependencies",
	"nothing provides",
	"depends on",
	"requires:",
	"conflicting requests",
}

// each pattern captures the missing dependency name in group 1
var dependencyPatterns = []*regexp.Regexp{
	// apt: " foo : Depends: libbar (>= 1.0) but it is not installable"
	regexp.MustCompile(`(?m)Depends:\s+([^\s(,|]+)`),
	// dpkg: " foo depends on libbar (>= 1.0); however:"
	regexp.MustCompile(`(?m)depends on\s+([^\s(;,]+)`),
	// dnf, zypper: "nothing provides libbar.so.1()(64bit) needed by foo"
	regexp.MustCompile(`(?m)nothing provides\s+'?([^\s']+)'?`),
	// yum: "Requires: libbar"
	regexp.MustCompile(`(?m)Requires:\s+([^\s(,]+)`),
	// rpm: "	libbar >= 1.0 is needed by foo-1.0"
	regexp.MustCompile(`(?m)^\s*([^\s]+)(?:\s+[<>=]+\s+\S+)?\s+is needed by`),
}

// Classify maps a failed process to exactly one error kind
func (b *BaseBackend) Classify(res Result) error {
	if res.Err == nil {
		return nil
	}

	tail := helpers.TailString(res.Output, b.Cfg.OutputTailBytes())

	switch {
	case errors.Is(res.Err, context.Canceled):
		return pkgerr.Wrap(pkgerr.InstallationCancelled{}, res.Err)
	case errors.Is(res.Err, context.DeadlineExceeded):
		return pkgerr.Wrap(pkgerr.InstallationTimeout{Manager: res.Manager, Timeout: res.Timeout}, res.Err)
	case errors.Is(res.Err, exec.ErrNotFound) && res.Elevated:
		// the elevation helper is the binary that was looked up
		return pkgerr.Wrap(pkgerr.InsufficientPrivileges{Helper: b.helper()}, res.Err)
	case errors.Is(res.Err, exec.ErrNotFound):
		return pkgerr.Wrap(pkgerr.PackageManagerNotFound{
			Format:     string(res.Format),
			Candidates: []string{res.Manager},
		}, res.Err)
	}

	if (res.Elevated && b.Elevator != nil && b.Elevator.IsDenied(res.ExitCode)) || containsAny(res.Output, permissionPatterns) {
		return pkgerr.Wrap(pkgerr.InsufficientPrivileges{Helper: b.helper(), Output: tail}, res.Err)
	}

	if containsAny(res.Output, dependencyMarkers) {
		return pkgerr.Wrap(pkgerr.DependencyError{
			Manager:      res.Manager,
			Dependencies: ParseDependencies(res.Output),
			Output:       tail,
		}, res.Err)
	}

	return pkgerr.Wrap(pkgerr.InstallationFailed{
		Manager:  res.Manager,
		ExitCode: res.ExitCode,
		Output:   tail,
	}, res.Err)
}

func (b *BaseBackend) helper() string {
	if b.Elevator == nil {
		return ""
	}
	return b.Elevator.Helper()
}

// ParseDependencies extracts missing dependency names from manager output
func ParseDependencies(output string) []string {
	var deps []string
	for _, re := range dependencyPatterns {
		for _, m := range re.FindAllStringSubmatch(output, -1) {
			deps = append(deps, strings.TrimSpace(m[1]))
		}
	}
	return helpers.Dedupe(deps)
}

func containsAny(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
