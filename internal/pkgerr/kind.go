package pkgerr

import (
	"fmt"
	"strings"
)

// Kind identifies a failure category. The set is closed.
type Kind int

const (
	KindUnknown Kind = iota
	KindPackageNotFound
	KindInvalidPackage
	KindUnsupportedFormat
	KindVerificationFailed
	KindPackageManagerNotFound
	KindServiceNotRunning
	KindDependencyError
	KindInstallationTimeout
	KindInsufficientPrivileges
	KindInsufficientDiskSpace
	KindInstallationFailed
	KindInstallationCancelled
	KindNetworkTimeout
	KindDownloadError
)

// Remediation is a stable identifier the presentation layer maps to a hint
type Remediation string

const (
	RemediationNone                  Remediation = "none"
	RemediationCheckPackagePath      Remediation = "check_package_path"
	RemediationRedownloadPackage     Remediation = "redownload_package"
	RemediationUseSupportedFormat    Remediation = "use_supported_format"
	RemediationInstallPackageManager Remediation = "install_package_manager"
	RemediationStartService          Remediation = "start_service"
	RemediationInstallDependencies   Remediation = "install_dependencies"
	RemediationRetryLater            Remediation = "retry_later"
	RemediationGrantPrivileges       Remediation = "grant_privileges"
	RemediationFreeDiskSpace         Remediation = "free_disk_space"
	RemediationInspectOutput         Remediation = "inspect_output"
	RemediationCheckNetwork          Remediation = "check_network"
)

type kindInfo struct {
	name        string
	retryable   bool
	remediation Remediation
}

var kinds = map[Kind]kindInfo{
	KindPackageNotFound:        {"package_not_found", false, RemediationCheckPackagePath},
	KindInvalidPackage:         {"invalid_package", false, RemediationRedownloadPackage},
	KindUnsupportedFormat:      {"unsupported_format", false, RemediationUseSupportedFormat},
	KindVerificationFailed:     {"verification_failed", false, RemediationRedownloadPackage},
	KindPackageManagerNotFound: {"package_manager_not_found", false, RemediationInstallPackageManager},
	KindServiceNotRunning:      {"service_not_running", false, RemediationStartService},
	KindDependencyError:        {"dependency_error", false, RemediationInstallDependencies},
	KindInstallationTimeout:    {"installation_timeout", true, RemediationRetryLater},
	KindInsufficientPrivileges: {"insufficient_privileges", false, RemediationGrantPrivileges},
	KindInsufficientDiskSpace:  {"insufficient_disk_space", false, RemediationFreeDiskSpace},
	KindInstallationFailed:     {"installation_failed", false, RemediationInspectOutput},
	KindInstallationCancelled:  {"installation_cancelled", false, RemediationNone},
	KindNetworkTimeout:         {"network_timeout", true, RemediationCheckNetwork},
	KindDownloadError:          {"download_error", true, RemediationCheckNetwork},
}

// AllKinds returns every known kind in declaration order
func AllKinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := KindPackageNotFound; k <= KindDownloadError; k++ {
		out = append(out, k)
	}
	return out
}

// String returns the stable identifier of the kind
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "unknown"
}

// Retryable reports whether failures of this kind are transient by default
func (k Kind) Retryable() bool {
	return kinds[k].retryable
}

// Remediation returns the remediation identifier for the kind
func (k Kind) Remediation() Remediation {
	if info, ok := kinds[k]; ok {
		return info.remediation
	}
	return RemediationInspectOutput
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind converts a stable identifier back into a Kind
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, info := range kinds {
		if info.name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown error kind: %q", s)
}

// ParseKinds parses a list of identifiers, failing on the first unknown one
func ParseKinds(names []string) ([]Kind, error) {
	out := make([]Kind, 0, len(names))
	for _, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
