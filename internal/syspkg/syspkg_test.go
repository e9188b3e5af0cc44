package syspkg

import (
	"testing"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/helpers"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runnerWith(commands ...string) *helpers.MockCommandRunner {
	set := map[string]bool{}
	for _, c := range commands {
		set[c] = true
	}
	return &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return set[name] },
	}
}

func TestResolver_PicksFirstAvailable(t *testing.T) {
	t.Parallel()

	r := NewResolver(config.Default(), runnerWith("dpkg", "apt-get", "zypper", "rpm"))

	m, err := r.Resolve(core.FormatDeb)
	require.NoError(t, err)
	assert.Equal(t, "apt-get", m.Name)
	assert.Equal(t, []string{"install", "-y", "/tmp/a.deb"}, m.InstallArgs("/tmp/a.deb", nil))

	m, err = r.Resolve(core.FormatRpm)
	require.NoError(t, err)
	assert.Equal(t, "zypper", m.Name)
	assert.Equal(t, []string{"--non-interactive", "install", "/tmp/a.rpm"}, m.InstallArgs("/tmp/a.rpm", nil))
}

func TestResolver_NotFound(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, runnerWith())

	_, err := r.Resolve(core.FormatSnap)
	require.Error(t, err)
	pe, ok := pkgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pkgerr.KindPackageManagerNotFound, pe.Kind())
	assert.Equal(t, []string{"snap"}, pe.Record().Context["candidates"])
}

func TestResolver_ConfigOverrides(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Managers["deb"] = []string{"nala"}
	cfg.Commands["nala"] = "install --assume-yes {package}"

	r := NewResolver(cfg, runnerWith("nala", "apt"))
	m, err := r.Resolve(core.FormatDeb)
	require.NoError(t, err)
	assert.Equal(t, "nala", m.Name)
	assert.Equal(t, []string{"install", "--assume-yes", "/p.deb"}, m.InstallArgs("/p.deb", nil))
}

func TestManager_InstallArgs(t *testing.T) {
	t.Parallel()

	flatpak := Manager{Name: "flatpak", Template: []string{"install", "-y", "{scope}", "--bundle", "{package}"}}
	assert.Equal(t,
		[]string{"install", "-y", "--user", "--bundle", "/a.flatpak"},
		flatpak.InstallArgs("/a.flatpak", map[string]string{PlaceholderScope: "--user"}))
	assert.Equal(t,
		[]string{"install", "-y", "--bundle", "/a.flatpak"},
		flatpak.InstallArgs("/a.flatpak", nil))

	bare := Manager{Name: "custom", Template: []string{"add"}}
	assert.Equal(t, []string{"add", "/x.deb"}, bare.InstallArgs("/x.deb", nil))
}

func TestResolver_Available(t *testing.T) {
	t.Parallel()

	r := NewResolver(config.Default(), runnerWith("apt", "dpkg", "flatpak"))
	avail := r.Available()
	assert.Equal(t, []string{"apt", "dpkg"}, avail[core.FormatDeb])
	assert.Equal(t, []string{"flatpak"}, avail[core.FormatFlatpak])
	assert.Empty(t, avail[core.FormatRpm])
}

func TestElevator(t *testing.T) {
	t.Parallel()

	user := NewElevatorWithRoot("pkexec", runnerWith("pkexec"), func() bool { return false })
	name, args := user.Wrap("apt", []string{"install", "-y", "/a.deb"})
	assert.Equal(t, "pkexec", name)
	assert.Equal(t, []string{"apt", "install", "-y", "/a.deb"}, args)
	assert.NoError(t, user.Check())
	assert.True(t, user.IsDenied(126))
	assert.True(t, user.IsDenied(127))
	assert.False(t, user.IsDenied(1))

	root := NewElevatorWithRoot("pkexec", runnerWith(), func() bool { return true })
	name, args = root.Wrap("apt", []string{"install"})
	assert.Equal(t, "apt", name)
	assert.Equal(t, []string{"install"}, args)
	assert.NoError(t, root.Check())
	assert.False(t, root.IsDenied(126))

	missing := NewElevatorWithRoot("pkexec", runnerWith(), func() bool { return false })
	assert.True(t, pkgerr.Is(missing.Check(), pkgerr.KindInsufficientPrivileges))
}
