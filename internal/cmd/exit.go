package cmd

import (
	"errors"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
)

// ExitError is returned by commands that already reported the failure to
// the user. It carries the process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return core.ExitSuccess
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if pe, ok := pkgerr.As(err); ok {
		return exitCodeForKind(pe.Kind())
	}
	return core.ExitGeneral
}

func exitCodeForKind(k pkgerr.Kind) int {
	switch k {
	case pkgerr.KindPackageNotFound, pkgerr.KindInvalidPackage, pkgerr.KindUnsupportedFormat:
		return core.ExitInvalidArgs
	case pkgerr.KindPackageManagerNotFound:
		return core.ExitCommandNotFound
	case pkgerr.KindInsufficientPrivileges:
		return core.ExitPermission
	case pkgerr.KindNetworkTimeout, pkgerr.KindDownloadError:
		return core.ExitNetwork
	case pkgerr.KindInstallationCancelled:
		return core.ExitInterrupted
	default:
		return core.ExitInstallFailed
	}
}
