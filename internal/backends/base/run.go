package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/helpers"
)

// Invocation describes one package manager process
type Invocation struct {
	Format  core.PackageFormat
	Manager string
	Args    []string
	Elevate bool
}

// RunInstall runs a single install process under the install timeout and
// returns its combined output, or a classified *pkgerr.Error.
func (b *BaseBackend) RunInstall(ctx context.Context, inv Invocation) (string, error) {
	name, args := inv.Manager, inv.Args
	if inv.Elevate {
		name, args = b.Elevator.Wrap(name, args)
	}

	timeout := b.Cfg.InstallTimeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b.Log.Info().
		Str("manager", inv.Manager).
		Str("command", name).
		Strs("args", args).
		Dur("timeout", timeout).
		Msg("running package manager")

	start := time.Now()
	stdout, stderr, err := b.Runner.RunCommandWithOutput(runCtx, name, args...)
	output := helpers.CombineOutput(stdout, stderr)

	if err != nil {
		err = contextCause(ctx, runCtx, err)
		exitCode := b.Runner.GetExitCode(err)
		b.Log.Warn().
			Err(err).
			Str("manager", inv.Manager).
			Int("exit_code", exitCode).
			Dur("elapsed", time.Since(start)).
			Msg("package manager failed")

		return output, b.Classify(Result{
			Format:   inv.Format,
			Manager:  inv.Manager,
			Output:   output,
			ExitCode: exitCode,
			Err:      err,
			Timeout:  timeout,
			Elevated: inv.Elevate && b.Elevator.Required(),
		})
	}

	b.Log.Debug().
		Str("manager", inv.Manager).
		Dur("elapsed", time.Since(start)).
		Msg("package manager finished")
	return output, nil
}

// RunQuery runs an inspection tool under the metadata timeout and returns stdout
func (b *BaseBackend) RunQuery(ctx context.Context, name string, args ...string) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, b.Cfg.MetadataTimeout())
	defer cancel()

	stdout, stderr, err := b.Runner.RunCommandWithOutput(queryCtx, name, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, contextCause(ctx, queryCtx, err), helpers.TailString(stderr, 512))
	}
	return stdout, nil
}

// contextCause makes a killed process carry the context error that killed it.
// exec reports such processes as "signal: killed" only.
func contextCause(parent, run context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if parent.Err() != nil {
		return fmt.Errorf("%w: %w", parent.Err(), err)
	}
	if errors.Is(run.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}
