package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/stretchr/testify/assert"
)

func TestInitColors(t *testing.T) {
	t.Run("with NO_COLOR", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")

		color.NoColor = false
		InitColors()

		assert.True(t, color.NoColor)
	})

	t.Run("with TERM=dumb", func(t *testing.T) {
		t.Setenv("TERM", "dumb")
		os.Unsetenv("NO_COLOR")

		color.NoColor = false
		InitColors()

		assert.True(t, color.NoColor)
	})
}

func TestPrintFunctions(t *testing.T) {
	DisableColors()
	defer EnableColors()

	tests := []struct {
		name  string
		print func(*bytes.Buffer)
		want  string
	}{
		{"success", func(b *bytes.Buffer) { PrintSuccess(b, "test %s", "message") }, "✓ test message\n"},
		{"error", func(b *bytes.Buffer) { PrintError(b, "boom") }, "✗ Error: boom\n"},
		{"warning", func(b *bytes.Buffer) { PrintWarning(b, "careful") }, "Warning: careful\n"},
		{"info", func(b *bytes.Buffer) { PrintInfo(b, "note") }, "→ note\n"},
		{"key value", func(b *bytes.Buffer) { PrintKeyValue(b, "Name", "hello") }, "Name: hello\n"},
		{"empty value skipped", func(b *bytes.Buffer) { PrintKeyValue(b, "Name", "") }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(&buf)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestPrintErrorRecord(t *testing.T) {
	DisableColors()
	defer EnableColors()

	rec := pkgerr.RecordOf(pkgerr.New(pkgerr.DependencyError{Manager: "apt", Dependencies: []string{"libfoo", "libbar"}}))

	var buf bytes.Buffer
	PrintErrorRecord(&buf, "hello", rec)

	out := buf.String()
	assert.Contains(t, out, "hello: unmet dependencies: libfoo, libbar")
	assert.Contains(t, out, "• libfoo")
	assert.Contains(t, out, RemediationHint(pkgerr.RemediationInstallDependencies))

	buf.Reset()
	PrintErrorRecord(&buf, "hello", nil)
	assert.Empty(t, buf.String())
}

func TestRemediationHints_CoverEveryKind(t *testing.T) {
	for _, k := range pkgerr.AllKinds() {
		if k.Remediation() == pkgerr.RemediationNone {
			continue
		}
		assert.NotEmpty(t, RemediationHint(k.Remediation()), k.String())
	}
}

func TestColorize(t *testing.T) {
	DisableColors()
	defer EnableColors()

	for _, f := range core.AllFormats {
		assert.Equal(t, string(f), ColorizeFormat(f))
	}
	assert.Equal(t, "other", ColorizeFormat("other"))
	assert.Equal(t, "failed", ColorizeStatus(core.StatusFailed))
	assert.Equal(t, "pending", ColorizeStatus(core.StatusPending))
}
