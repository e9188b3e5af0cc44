// Package metadata turns the output of package inspection tools, or the
// package files themselves, into core.PackageMetadata.
package metadata

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/quantmind-br/snapwiz/internal/core"
	"gopkg.in/yaml.v3"
)

// ParseControl parses a Debian control paragraph (dpkg-deb --field output or
// the control file itself)
func ParseControl(data []byte) core.PackageMetadata {
	fields := parseRFC822(data)
	return core.PackageMetadata{
		Name:         fields["package"],
		Version:      fields["version"],
		Architecture: fields["architecture"],
		Description:  firstLine(fields["description"]),
		Maintainer:   fields["maintainer"],
	}
}

// parseRFC822 returns lower-cased keys mapped to values, folding continuation lines
func parseRFC822(data []byte) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var key string
	var value strings.Builder
	flush := func() {
		if key != "" {
			fields[key] = strings.TrimSpace(value.String())
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			// only the first paragraph is relevant
			if key != "" {
				break
			}
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if key != "" {
				value.WriteString("\n")
				value.WriteString(strings.TrimSpace(line))
			}
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		flush()
		key = strings.ToLower(strings.TrimSpace(k))
		value.Reset()
		value.WriteString(strings.TrimSpace(v))
	}
	flush()
	return fields
}

// ParseRpmInfo parses `rpm -qip` output ("Name        : value" lines)
func ParseRpmInfo(output string) core.PackageMetadata {
	fields := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "description" {
			// multi-line section follows, summary is used instead
			break
		}
		if _, seen := fields[k]; !seen {
			fields[k] = strings.TrimSpace(v)
		}
	}

	version := fields["version"]
	if rel := fields["release"]; version != "" && rel != "" {
		version += "-" + rel
	}

	return core.PackageMetadata{
		Name:         fields["name"],
		Version:      version,
		Architecture: fields["architecture"],
		Description:  fields["summary"],
		Maintainer:   fields["packager"],
	}
}

type snapYAML struct {
	Name          string   `yaml:"name"`
	Version       string   `yaml:"version"`
	Summary       string   `yaml:"summary"`
	Description   string   `yaml:"description"`
	Architectures []string `yaml:"architectures"`
}

// ParseSnapYAML parses meta/snap.yaml from a snap
func ParseSnapYAML(data []byte) (core.PackageMetadata, error) {
	var s snapYAML
	if err := yaml.Unmarshal(data, &s); err != nil {
		return core.PackageMetadata{}, fmt.Errorf("parse snap.yaml: %w", err)
	}

	desc := s.Summary
	if desc == "" {
		desc = firstLine(s.Description)
	}

	return core.PackageMetadata{
		Name:         s.Name,
		Version:      s.Version,
		Architecture: strings.Join(s.Architectures, ","),
		Description:  desc,
	}, nil
}

// ParseFlatpakMetadata parses the keyfile printed by `flatpak info --show-metadata`.
// The architecture comes from the runtime ref (name/arch/branch).
func ParseFlatpakMetadata(data []byte) core.PackageMetadata {
	sections := parseKeyFile(data)

	group := sections["Application"]
	if group == nil {
		group = sections["Runtime"]
	}
	if group == nil {
		return core.PackageMetadata{}
	}

	m := core.PackageMetadata{Name: group["name"]}
	if parts := strings.Split(group["runtime"], "/"); len(parts) >= 3 {
		m.Architecture = parts[1]
	}
	if branch := sections["Application"]["branch"]; branch != "" {
		m.Version = branch
	}
	return m
}

func parseKeyFile(data []byte) map[string]map[string]string {
	sections := make(map[string]map[string]string)
	var current map[string]string

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			current = make(map[string]string)
			sections[name] = current
			continue
		}
		if current == nil {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok {
			current[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return sections
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
