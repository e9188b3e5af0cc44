package security

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/quantmind-br/snapwiz/internal/core"
)

var (
	// ValidPackageNameRegex allows alphanumeric, dash, underscore, plus, and dot
	ValidPackageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)

	// ValidVersionRegex allows standard version formats, including epochs and tildes
	ValidVersionRegex = regexp.MustCompile(`^[a-zA-Z0-9._+~:-]+$`)
)

// ValidatePackageName validates a package name read from metadata
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("package name too long (max 255 characters)")
	}
	if !ValidPackageNameRegex.MatchString(name) {
		return fmt.Errorf("invalid package name: %q", name)
	}
	return nil
}

// ValidateVersion validates a version string read from metadata
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if len(version) >= 100 {
		return fmt.Errorf("version string too long (max 100 characters)")
	}
	if !ValidVersionRegex.MatchString(version) {
		return fmt.Errorf("invalid version format: %q", version)
	}
	return nil
}

// SanitizeText strips control characters so package-provided text is safe to
// print on a terminal. Newlines and tabs survive.
func SanitizeText(input string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 32 || r == 0x7f {
			return -1
		}
		return r
	}, input)
}

// SanitizeMetadata cleans every field of package-provided metadata. Name and
// version values that fail validation are dropped rather than shown.
func SanitizeMetadata(m core.PackageMetadata) core.PackageMetadata {
	m.Name = strings.TrimSpace(SanitizeText(m.Name))
	if m.Name != "" && ValidatePackageName(m.Name) != nil {
		m.Name = ""
	}
	m.Version = strings.TrimSpace(SanitizeText(m.Version))
	if m.Version != "" && ValidateVersion(m.Version) != nil {
		m.Version = ""
	}
	m.Architecture = strings.TrimSpace(SanitizeText(m.Architecture))
	m.Description = strings.TrimSpace(SanitizeText(m.Description))
	m.Maintainer = strings.TrimSpace(SanitizeText(m.Maintainer))
	return m
}

var packageMagic = map[core.PackageFormat][]byte{
	core.FormatDeb:  []byte("!<arch>\n"),
	core.FormatRpm:  {0xed, 0xab, 0xee, 0xdb},
	core.FormatSnap: []byte("hsqs"),
}

// HeaderLength is how many leading bytes CheckMagic needs
const HeaderLength = 8

// CheckMagic verifies that head starts with the signature of format.
// Formats without a fixed signature always pass.
func CheckMagic(format core.PackageFormat, head []byte) error {
	magic, ok := packageMagic[format]
	if !ok {
		return nil
	}
	if !bytes.HasPrefix(head, magic) {
		return fmt.Errorf("file header does not match %s format", format)
	}
	return nil
}
