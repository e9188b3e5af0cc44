package base

import (
	"fmt"
	"io"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/security"
)

// CheckArgument refuses package paths that could be parsed as options by the manager
func (b *BaseBackend) CheckArgument(pkg *core.PackageFile) error {
	if err := security.ValidateCommandArgument(pkg.Path); err != nil {
		return pkgerr.Wrap(pkgerr.InvalidPackage{Path: pkg.Path, Reason: pkgerr.ReasonInvalidPath}, err)
	}
	return nil
}

// FinishMetadata sanitizes tool output and stamps where it came from
func (b *BaseBackend) FinishMetadata(m core.PackageMetadata, source string) core.PackageMetadata {
	m = security.SanitizeMetadata(m)
	if !m.IsEmpty() {
		m.Source = source
	}
	return m
}

// ReadFile opens the package on the backend filesystem and hands it to read
func (b *BaseBackend) ReadFile(path string, read func(io.Reader) (core.PackageMetadata, error)) (core.PackageMetadata, error) {
	f, err := b.Fs.Open(path)
	if err != nil {
		return core.PackageMetadata{}, fmt.Errorf("open package: %w", err)
	}
	defer f.Close()
	return read(f)
}
