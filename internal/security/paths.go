package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxPathLength is the longest path accepted from callers
const MaxPathLength = 4096

// ValidatePath performs general path validation
func ValidatePath(path string) error {
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("path contains null bytes")
	}

	if len(path) > MaxPathLength {
		return fmt.Errorf("path too long: %d characters", len(path))
	}

	return nil
}

// SanitizePath sanitizes a file path for safe use in messages
func SanitizePath(path string) string {
	cleaned := strings.ReplaceAll(path, "\x00", "")
	return filepath.Clean(cleaned)
}

// ValidateCommandArgument rejects a package path that a native manager could
// mistake for an option or that contains line breaks
func ValidateCommandArgument(arg string) error {
	if err := ValidatePath(arg); err != nil {
		return err
	}
	if strings.HasPrefix(arg, "-") {
		return fmt.Errorf("argument starts with '-': %s", arg)
	}
	if strings.ContainsAny(arg, "\n\r") {
		return fmt.Errorf("argument contains line breaks")
	}
	if !filepath.IsAbs(arg) {
		return fmt.Errorf("package path must be absolute: %s", arg)
	}
	return nil
}

// NeedsElevation reports whether writing under path requires root
func NeedsElevation(path string) bool {
	cleaned := filepath.Clean(path)
	systemPrefixes := []string{"/usr", "/opt", "/var", "/etc"}
	for _, prefix := range systemPrefixes {
		if cleaned == prefix || strings.HasPrefix(cleaned, prefix+"/") {
			return true
		}
	}
	return false
}
