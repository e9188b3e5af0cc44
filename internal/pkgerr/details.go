package pkgerr

import (
	"fmt"
	"strings"
	"time"
)

// Detail is the per-kind payload of an Error. Each kind has exactly one
// detail type, so an Error can never carry a payload that disagrees with its kind.
type Detail interface {
	Kind() Kind
	Context() map[string]any
	describe() string
}

// PackageNotFound: the path does not exist or cannot be read
type PackageNotFound struct {
	Path string
}

func (PackageNotFound) Kind() Kind { return KindPackageNotFound }

func (d PackageNotFound) Context() map[string]any {
	return map[string]any{"path": d.Path}
}

func (d PackageNotFound) describe() string {
	return fmt.Sprintf("package not found: %s", d.Path)
}

// Reasons used by InvalidPackage
const (
	ReasonIsDirectory    = "is_directory"
	ReasonNotRegularFile = "not_regular_file"
	ReasonEmptyFile      = "empty_file"
	ReasonInvalidPath    = "invalid_path"
)

// Reasons used by VerificationFailed
const (
	ReasonTooSmall         = "too_small"
	ReasonBadSignature     = "bad_signature"
	ReasonChecksumMismatch = "checksum_mismatch"
	ReasonUnreadable       = "unreadable"
)

// InvalidPackage: the path exists but is not a usable package file
type InvalidPackage struct {
	Path   string
	Reason string
}

func (InvalidPackage) Kind() Kind { return KindInvalidPackage }

func (d InvalidPackage) Context() map[string]any {
	return map[string]any{"path": d.Path, "reason": d.Reason}
}

func (d InvalidPackage) describe() string {
	return fmt.Sprintf("invalid package %s: %s", d.Path, strings.ReplaceAll(d.Reason, "_", " "))
}

// UnsupportedFormat: the file extension is not one of the supported formats
type UnsupportedFormat struct {
	Path      string
	Extension string
	Supported []string
}

func (UnsupportedFormat) Kind() Kind { return KindUnsupportedFormat }

func (d UnsupportedFormat) Context() map[string]any {
	return map[string]any{"path": d.Path, "extension": d.Extension, "supported": d.Supported}
}

func (d UnsupportedFormat) describe() string {
	ext := d.Extension
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Sprintf("unsupported package format %s", ext)
}

// VerificationFailed: integrity checks on the file did not pass
type VerificationFailed struct {
	Path     string
	Reason   string
	Expected string
	Actual   string
}

func (VerificationFailed) Kind() Kind { return KindVerificationFailed }

func (d VerificationFailed) Context() map[string]any {
	ctx := map[string]any{"path": d.Path, "reason": d.Reason}
	if d.Expected != "" {
		ctx["expected"] = d.Expected
		ctx["actual"] = d.Actual
	}
	return ctx
}

func (d VerificationFailed) describe() string {
	return fmt.Sprintf("package verification failed for %s: %s", d.Path, d.Reason)
}

// PackageManagerNotFound: no native manager for the format is installed
type PackageManagerNotFound struct {
	Format     string
	Candidates []string
}

func (PackageManagerNotFound) Kind() Kind { return KindPackageManagerNotFound }

func (d PackageManagerNotFound) Context() map[string]any {
	return map[string]any{"format": d.Format, "candidates": d.Candidates}
}

func (d PackageManagerNotFound) describe() string {
	return fmt.Sprintf("no package manager found for %s (tried: %s)", d.Format, strings.Join(d.Candidates, ", "))
}

// ServiceNotRunning: a required background service is not active
type ServiceNotRunning struct {
	Service string
}

func (ServiceNotRunning) Kind() Kind { return KindServiceNotRunning }

func (d ServiceNotRunning) Context() map[string]any {
	return map[string]any{"service": d.Service}
}

func (d ServiceNotRunning) describe() string {
	return fmt.Sprintf("service %s is not running", d.Service)
}

// DependencyError: the native manager reported unmet dependencies
type DependencyError struct {
	Manager      string
	Dependencies []string
	Output       string
}

func (DependencyError) Kind() Kind { return KindDependencyError }

func (d DependencyError) Context() map[string]any {
	return map[string]any{"manager": d.Manager, "dependencies": d.Dependencies, "output": d.Output}
}

func (d DependencyError) describe() string {
	if len(d.Dependencies) == 0 {
		return "unmet dependencies"
	}
	return fmt.Sprintf("unmet dependencies: %s", strings.Join(d.Dependencies, ", "))
}

// InstallationTimeout: the manager did not finish within the hard timeout
type InstallationTimeout struct {
	Manager string
	Timeout time.Duration
}

func (InstallationTimeout) Kind() Kind { return KindInstallationTimeout }

func (d InstallationTimeout) Context() map[string]any {
	return map[string]any{"manager": d.Manager, "timeout_seconds": int(d.Timeout.Seconds())}
}

func (d InstallationTimeout) describe() string {
	return fmt.Sprintf("%s did not finish within %s", d.Manager, d.Timeout)
}

// InsufficientPrivileges: elevation was refused or is unavailable
type InsufficientPrivileges struct {
	Helper string
	Output string
}

func (InsufficientPrivileges) Kind() Kind { return KindInsufficientPrivileges }

func (d InsufficientPrivileges) Context() map[string]any {
	return map[string]any{"helper": d.Helper, "output": d.Output}
}

func (d InsufficientPrivileges) describe() string {
	if d.Helper == "" {
		return "insufficient privileges"
	}
	return fmt.Sprintf("insufficient privileges (%s)", d.Helper)
}

// InsufficientDiskSpace: the target filesystem does not have enough room
type InsufficientDiskSpace struct {
	Path        string
	RequiredMB  uint64
	AvailableMB uint64
}

func (InsufficientDiskSpace) Kind() Kind { return KindInsufficientDiskSpace }

func (d InsufficientDiskSpace) Context() map[string]any {
	return map[string]any{"path": d.Path, "required_mb": d.RequiredMB, "available_mb": d.AvailableMB}
}

func (d InsufficientDiskSpace) describe() string {
	return fmt.Sprintf("insufficient disk space on %s: %d MB required, %d MB available", d.Path, d.RequiredMB, d.AvailableMB)
}

// InstallationFailed: any other non-zero exit of the manager
type InstallationFailed struct {
	Manager  string
	ExitCode int
	Output   string
}

func (InstallationFailed) Kind() Kind { return KindInstallationFailed }

func (d InstallationFailed) Context() map[string]any {
	return map[string]any{"manager": d.Manager, "exit_code": d.ExitCode, "output": d.Output}
}

func (d InstallationFailed) describe() string {
	if d.Manager == "" {
		return "installation failed"
	}
	return fmt.Sprintf("%s exited with code %d", d.Manager, d.ExitCode)
}

// InstallationCancelled: the task was cancelled before it started
type InstallationCancelled struct{}

func (InstallationCancelled) Kind() Kind { return KindInstallationCancelled }

func (InstallationCancelled) Context() map[string]any { return map[string]any{} }

func (InstallationCancelled) describe() string { return "installation cancelled" }

// NetworkTimeout: a network operation timed out
type NetworkTimeout struct {
	URL string
}

func (NetworkTimeout) Kind() Kind { return KindNetworkTimeout }

func (d NetworkTimeout) Context() map[string]any {
	return map[string]any{"url": d.URL}
}

func (d NetworkTimeout) describe() string {
	return fmt.Sprintf("network timeout: %s", d.URL)
}

// DownloadError: a download failed
type DownloadError struct {
	URL    string
	Reason string
}

func (DownloadError) Kind() Kind { return KindDownloadError }

func (d DownloadError) Context() map[string]any {
	return map[string]any{"url": d.URL, "reason": d.Reason}
}

func (d DownloadError) describe() string {
	return fmt.Sprintf("download of %s failed: %s", d.URL, d.Reason)
}
