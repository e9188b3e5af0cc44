package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
)

// Color scheme for snapwiz
var (
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow)
	Info    = color.New(color.FgCyan)

	Highlight = color.New(color.FgHiCyan, color.Bold)
	Muted     = color.New(color.Faint)
	Bold      = color.New(color.Bold)

	CheckMark = color.GreenString("✓")
	CrossMark = color.RedString("✗")
	Arrow     = color.CyanString("→")
	Bullet    = color.HiBlackString("•")

	FormatDEB     = color.New(color.FgCyan)
	FormatRPM     = color.New(color.FgRed)
	FormatSnap    = color.New(color.FgMagenta)
	FormatFlatpak = color.New(color.FgBlue)
)

var remediationHints = map[pkgerr.Remediation]string{
	pkgerr.RemediationCheckPackagePath:      "Check that the file exists and that you can read it.",
	pkgerr.RemediationRedownloadPackage:     "The file looks damaged. Download it again from a trusted source.",
	pkgerr.RemediationUseSupportedFormat:    "Use a .deb, .rpm, .snap or .flatpak file.",
	pkgerr.RemediationInstallPackageManager: "Install the package manager for this format, then try again.",
	pkgerr.RemediationStartService:          "Start the service (for snaps: sudo systemctl start snapd) and try again.",
	pkgerr.RemediationInstallDependencies:   "Install the missing dependencies first, or let your distribution's package manager resolve them.",
	pkgerr.RemediationRetryLater:            "The package manager did not answer in time. Try again later.",
	pkgerr.RemediationGrantPrivileges:       "Administrator rights are required. Approve the authentication prompt or run as root.",
	pkgerr.RemediationFreeDiskSpace:         "Free up some disk space and try again.",
	pkgerr.RemediationInspectOutput:         "See the package manager output above for details.",
	pkgerr.RemediationCheckNetwork:          "Check your network connection.",
}

// InitColors initializes color settings based on environment
func InitColors() {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
	if os.Getenv("TERM") == "dumb" {
		color.NoColor = true
	}
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, format string, args ...any) {
	Success.Fprintf(w, "%s %s\n", CheckMark, fmt.Sprintf(format, args...))
}

// PrintError prints an error message
func PrintError(w io.Writer, format string, args ...any) {
	Error.Fprintf(w, "%s Error: %s\n", CrossMark, fmt.Sprintf(format, args...))
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, format string, args ...any) {
	Warning.Fprintf(w, "Warning: %s\n", fmt.Sprintf(format, args...))
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, format string, args ...any) {
	Info.Fprintf(w, "%s %s\n", Arrow, fmt.Sprintf(format, args...))
}

// PrintKeyValue prints a key-value pair, skipping empty values
func PrintKeyValue(w io.Writer, key, value string) {
	if value == "" {
		return
	}
	Bold.Fprintf(w, "%s: ", key)
	fmt.Fprintln(w, value)
}

// PrintHeader prints a section header
func PrintHeader(w io.Writer, text string) {
	fmt.Fprintln(w)
	Bold.Fprintln(w, text)
	Muted.Fprintln(w, "────────────────────────────────────────")
}

// PrintList prints a bulleted list
func PrintList(w io.Writer, items []string) {
	for _, item := range items {
		fmt.Fprintf(w, "  %s %s\n", Bullet, item)
	}
}

// RemediationHint returns the user-facing hint for a remediation id
func RemediationHint(r pkgerr.Remediation) string {
	return remediationHints[r]
}

// PrintErrorRecord prints a classified failure with its hint and, for
// dependency errors, the missing dependencies
func PrintErrorRecord(w io.Writer, name string, rec *pkgerr.Record) {
	if rec == nil {
		return
	}
	PrintError(w, "%s: %s", name, rec.Message)
	if deps, ok := rec.Context["dependencies"].([]string); ok && len(deps) > 0 {
		PrintList(w, deps)
	}
	if hint := RemediationHint(rec.Remediation); hint != "" {
		Muted.Fprintf(w, "  %s\n", hint)
	}
}

// ColorizeFormat returns a colored format name
func ColorizeFormat(f core.PackageFormat) string {
	switch f {
	case core.FormatDeb:
		return FormatDEB.Sprint(f)
	case core.FormatRpm:
		return FormatRPM.Sprint(f)
	case core.FormatSnap:
		return FormatSnap.Sprint(f)
	case core.FormatFlatpak:
		return FormatFlatpak.Sprint(f)
	default:
		return string(f)
	}
}

// ColorizeStatus returns a colored task status
func ColorizeStatus(s core.TaskStatus) string {
	switch s {
	case core.StatusSucceeded:
		return Success.Sprint(s)
	case core.StatusFailed:
		return Error.Sprint(s)
	case core.StatusCancelled:
		return Warning.Sprint(s)
	case core.StatusRunning:
		return Info.Sprint(s)
	default:
		return Muted.Sprint(s)
	}
}

// DisableColors disables all color output
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output
func EnableColors() {
	color.NoColor = false
}

// AreColorsEnabled returns whether colors are currently enabled
func AreColorsEnabled() bool {
	return !color.NoColor
}
