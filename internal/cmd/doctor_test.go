package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/diskspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_Healthy(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "apt", "dpkg", "flatpak", "snap", "systemctl", "pkexec", "sudo", "dpkg-deb")
	env.runner.RunCommandFunc = func(_ context.Context, name string, args ...string) (string, error) {
		if name == "systemctl" {
			return "active\n", nil
		}
		return "", nil
	}

	stdout, _, err := execute(newDoctorCmd(env.s))
	require.NoError(t, err)

	assert.Contains(t, stdout, "deb: apt (available: apt, dpkg)")
	assert.Contains(t, stdout, "rpm: none of dnf, yum, zypper, rpm found")
	assert.Contains(t, stdout, "elevation helper: pkexec")
	assert.Contains(t, stdout, "other helpers available: sudo")
	assert.Contains(t, stdout, "snapd: active")
	assert.Contains(t, stdout, "dpkg-deb: found")
	assert.Contains(t, stdout, "history database:")
	assert.Contains(t, stdout, "All critical checks passed!")
}

func TestDoctorCmd_Issues(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "snap", "systemctl")
	env.runner.RunCommandFunc = func(context.Context, string, ...string) (string, error) {
		return "inactive\n", errors.New("exit status 3")
	}
	env.s.disk = diskspace.NewWithUsage("/", 100, func(string) (uint64, error) { return 10 << 20, nil })

	stdout, _, err := execute(newDoctorCmd(env.s))
	require.Error(t, err)

	assert.Equal(t, core.ExitGeneral, ExitCode(err))
	assert.Contains(t, stdout, "elevation helper pkexec not found")
	assert.Contains(t, stdout, "snapd service is not running")
	assert.Contains(t, stdout, "insufficient disk space")
	assert.Contains(t, stdout, "Found 1 issue(s)")
}
