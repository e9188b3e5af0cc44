package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// CommandRunner is the only way snapwiz spawns processes, so tests can
// substitute MockCommandRunner.
type CommandRunner interface {
	// CommandExists reports whether name resolves in PATH
	CommandExists(name string) bool

	// RunCommand returns stdout; stderr is folded into the error
	RunCommand(ctx context.Context, name string, args ...string) (string, error)

	// RunCommandWithOutput returns both streams, also when the process fails
	RunCommandWithOutput(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

	// GetExitCode extracts the exit status from a RunCommand* error
	GetExitCode(err error) int
}

// OSCommandRunner runs processes with os/exec. Arguments are always passed
// as a vector, never through a shell.
type OSCommandRunner struct {
	lookups sync.Map // name -> bool
}

func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

func (r *OSCommandRunner) CommandExists(name string) bool {
	if v, ok := r.lookups.Load(name); ok {
		return v.(bool)
	}
	_, err := exec.LookPath(name)
	found := err == nil
	r.lookups.Store(name, found)
	return found
}

func (r *OSCommandRunner) RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	stdout, stderr, err := r.run(ctx, name, args)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w\nstderr: %s", name, err, stderr)
	}
	return stdout, nil
}

func (r *OSCommandRunner) RunCommandWithOutput(ctx context.Context, name string, args ...string) (string, string, error) {
	stdout, stderr, err := r.run(ctx, name, args)
	if err != nil {
		err = fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout, stderr, err
}

// GetExitCode returns 0 for nil and -1 when the process never produced an exit status.
func (r *OSCommandRunner) GetExitCode(err error) int {
	return ExitCode(err)
}

func (r *OSCommandRunner) run(ctx context.Context, name string, args []string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// ExitCode extracts the exit status from an error chain holding an *exec.ExitError.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}
