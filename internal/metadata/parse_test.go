package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleControl = `Package: hello
Version: 2.10-3
Architecture: amd64
Maintainer: Santiago Vila <sanvila@debian.org>
Installed-Size: 280
Description: example package based on GNU hello
 The GNU hello program produces a familiar, friendly greeting.
 .
 It allows non-programmers to use a classic computer science tool.

Package: ignored
`

func TestParseControl(t *testing.T) {
	t.Parallel()

	m := ParseControl([]byte(sampleControl))
	assert.Equal(t, "hello", m.Name)
	assert.Equal(t, "2.10-3", m.Version)
	assert.Equal(t, "amd64", m.Architecture)
	assert.Equal(t, "Santiago Vila <sanvila@debian.org>", m.Maintainer)
	assert.Equal(t, "example package based on GNU hello", m.Description)
}

func TestParseControl_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, ParseControl(nil).IsEmpty())
	assert.True(t, ParseControl([]byte("garbage without colon\n")).IsEmpty())
}

func TestParseRpmInfo(t *testing.T) {
	t.Parallel()

	out := `Name        : htop
Version     : 3.2.2
Release     : 2.fc39
Architecture: x86_64
Install Date: (not installed)
Group       : Unspecified
Size        : 391620
Packager    : Fedora Project
Summary     : Interactive process viewer
Description :
htop is an interactive text-mode process viewer.
Name        : not-a-field
`
	m := ParseRpmInfo(out)
	assert.Equal(t, "htop", m.Name)
	assert.Equal(t, "3.2.2-2.fc39", m.Version)
	assert.Equal(t, "x86_64", m.Architecture)
	assert.Equal(t, "Interactive process viewer", m.Description)
	assert.Equal(t, "Fedora Project", m.Maintainer)
}

func TestParseRpmInfo_NoRelease(t *testing.T) {
	t.Parallel()

	m := ParseRpmInfo("Name : tool\nVersion : 1.0\n")
	assert.Equal(t, "tool", m.Name)
	assert.Equal(t, "1.0", m.Version)
}

func TestParseSnapYAML(t *testing.T) {
	t.Parallel()

	data := []byte(`name: hello-world
version: 6.4
summary: The 'hello-world' of snaps
description: |
  This is a simple hello world example.
architectures:
  - amd64
  - arm64
apps:
  hello-world:
    command: bin/echo
`)
	m, err := ParseSnapYAML(data)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", m.Name)
	assert.Equal(t, "6.4", m.Version)
	assert.Equal(t, "amd64,arm64", m.Architecture)
	assert.Equal(t, "The 'hello-world' of snaps", m.Description)
}

func TestParseSnapYAML_DescriptionFallback(t *testing.T) {
	t.Parallel()

	m, err := ParseSnapYAML([]byte("name: x\ndescription: |\n  first line\n  second line\n"))
	require.NoError(t, err)
	assert.Equal(t, "first line", m.Description)
}

func TestParseSnapYAML_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParseSnapYAML([]byte("name: [unterminated"))
	assert.Error(t, err)
}

func TestParseFlatpakMetadata(t *testing.T) {
	t.Parallel()

	data := []byte(`[Application]
name=org.gnome.Calculator
runtime=org.gnome.Platform/x86_64/45
sdk=org.gnome.Sdk/x86_64/45
command=gnome-calculator

[Context]
shared=network;ipc;
`)
	m := ParseFlatpakMetadata(data)
	assert.Equal(t, "org.gnome.Calculator", m.Name)
	assert.Equal(t, "x86_64", m.Architecture)
}

func TestParseFlatpakMetadata_Runtime(t *testing.T) {
	t.Parallel()

	m := ParseFlatpakMetadata([]byte("[Runtime]\nname=org.freedesktop.Platform\nruntime=org.freedesktop.Platform/aarch64/23.08\n"))
	assert.Equal(t, "org.freedesktop.Platform", m.Name)
	assert.Equal(t, "aarch64", m.Architecture)

	assert.True(t, ParseFlatpakMetadata([]byte("name=orphan\n")).IsEmpty())
}
