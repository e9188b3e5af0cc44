package installer

import (
	"fmt"

	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/fsops"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/security"
)

// verify checks size, file signature and, when requested, the checksum
func (i *Installer) verify(pkg *core.PackageFile, opts Options) error {
	if minSize := i.cfg.Install.MinPackageSize; minSize > 0 && pkg.Size < minSize {
		return pkgerr.New(pkgerr.VerificationFailed{
			Path:     pkg.Path,
			Reason:   pkgerr.ReasonTooSmall,
			Expected: fmt.Sprintf(">= %d bytes", minSize),
			Actual:   fmt.Sprintf("%d bytes", pkg.Size),
		})
	}

	head, err := fsops.ReadHead(i.deps.Fs, pkg.Path, security.HeaderLength)
	if err != nil {
		return pkgerr.Wrap(pkgerr.VerificationFailed{Path: pkg.Path, Reason: pkgerr.ReasonUnreadable}, err)
	}
	if err := security.CheckMagic(pkg.Format, head); err != nil {
		return pkgerr.Wrap(pkgerr.VerificationFailed{Path: pkg.Path, Reason: pkgerr.ReasonBadSignature}, err)
	}

	if opts.Checksum == nil {
		return nil
	}
	actual, err := security.VerifyChecksum(i.deps.Fs, pkg.Path, *opts.Checksum)
	if err != nil {
		if actual == "" {
			return pkgerr.Wrap(pkgerr.VerificationFailed{Path: pkg.Path, Reason: pkgerr.ReasonUnreadable}, err)
		}
		return pkgerr.Wrap(pkgerr.VerificationFailed{
			Path:     pkg.Path,
			Reason:   pkgerr.ReasonChecksumMismatch,
			Expected: opts.Checksum.String(),
			Actual:   string(opts.Checksum.Algorithm) + ":" + actual,
		}, err)
	}
	return nil
}
