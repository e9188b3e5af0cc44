package core

import (
	"fmt"
	"strings"
	"time"
)

// PackageFormat represents the format of a local package file
type PackageFormat string

const (
	FormatDeb     PackageFormat = "deb"
	FormatRpm     PackageFormat = "rpm"
	FormatSnap    PackageFormat = "snap"
	FormatFlatpak PackageFormat = "flatpak"
)

// AllFormats lists every supported format in dispatch order
var AllFormats = []PackageFormat{FormatDeb, FormatRpm, FormatSnap, FormatFlatpak}

// Extension returns the file extension (with leading dot) for the format
func (f PackageFormat) Extension() string {
	return "." + string(f)
}

// Valid reports whether f is one of the supported formats
func (f PackageFormat) Valid() bool {
	switch f {
	case FormatDeb, FormatRpm, FormatSnap, FormatFlatpak:
		return true
	default:
		return false
	}
}

// ParseFormat converts a format name or extension into a PackageFormat
func ParseFormat(s string) (PackageFormat, error) {
	f := PackageFormat(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	if !f.Valid() {
		return "", fmt.Errorf("unknown package format: %q", s)
	}
	return f, nil
}

// PackageFile is a detected, existing, non-empty package on disk
type PackageFile struct {
	Path   string        `json:"path"`
	Format PackageFormat `json:"format"`
	Size   int64         `json:"size"`
}

// PackageMetadata contains best-effort display information read from a package.
// Missing fields stay empty, they are never guessed.
type PackageMetadata struct {
	Name         string `json:"name,omitempty"`
	Version      string `json:"version,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Description  string `json:"description,omitempty"`
	Maintainer   string `json:"maintainer,omitempty"`
	Source       string `json:"source,omitempty"` // tool that produced the data
}

// IsEmpty reports whether no field could be read
func (m PackageMetadata) IsEmpty() bool {
	return m.Name == "" && m.Version == "" && m.Architecture == "" && m.Description == ""
}

// DisplayName returns the package name, falling back to the file name
func (m PackageMetadata) DisplayName(path string) string {
	if m.Name != "" {
		return m.Name
	}
	name := path
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// TaskStatus is the lifecycle status of an installation task
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status can no longer change
func (s TaskStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Pending -> Running | Cancelled, Running -> Succeeded | Failed.
// A running task that is interrupted ends Failed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusSucceeded || next == StatusFailed
	default:
		return false
	}
}

// HistoryRecord is the record handed to the history store when a task finishes
type HistoryRecord struct {
	ID          int64         `json:"id,omitempty"`
	TaskID      string        `json:"task_id"`
	PackageName string        `json:"package_name"`
	PackagePath string        `json:"package_path"`
	Format      PackageFormat `json:"format"`
	Version     string        `json:"version,omitempty"`
	Status      TaskStatus    `json:"status"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Message     string        `json:"message,omitempty"`
	Attempts    int           `json:"attempts"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Succeeded reports whether the recorded task installed successfully
func (r HistoryRecord) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneral         = 1
	ExitInvalidArgs     = 2
	ExitInstallFailed   = 3
	ExitDatabase        = 5
	ExitPermission      = 6
	ExitNetwork         = 7
	ExitCommandNotFound = 8
	ExitInterrupted     = 130
)
