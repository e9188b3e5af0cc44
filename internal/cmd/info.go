package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/security"
	"github.com/quantmind-br/snapwiz/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type packageInfo struct {
	Package  core.PackageFile     `json:"package"`
	Metadata core.PackageMetadata `json:"metadata"`
	Checksum string               `json:"checksum,omitempty"`
	Manager  string               `json:"manager,omitempty"`
}

// NewInfoCmd creates the info command
func NewInfoCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newInfoCmd(newServices(cfg, log))
}

func newInfoCmd(s *services) *cobra.Command {
	var (
		jsonOutput bool
		algorithm  string
	)

	cmd := &cobra.Command{
		Use:   "info <package>",
		Short: "Show package information",
		Long:  `Show the metadata and checksum of a local package file without installing it.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pkg, err := s.detector.Detect(args[0])
			if err != nil {
				ui.PrintErrorRecord(cmd.ErrOrStderr(), args[0], pkgerr.RecordOf(err))
				return &ExitError{Code: ExitCode(err), Err: err}
			}

			if algorithm == "" {
				algorithm = s.cfg.Install.ChecksumAlgorithm
			}
			algo, err := security.ParseAlgorithm(algorithm)
			if err != nil {
				return &ExitError{Code: core.ExitInvalidArgs, Err: err}
			}

			info := packageInfo{Package: *pkg, Metadata: s.metadata(ctx, pkg)}
			if sum, err := security.FileChecksum(s.fs, pkg.Path, algo); err != nil {
				s.log.Warn().Err(err).Str("package_path", pkg.Path).Msg("checksum failed")
			} else {
				info.Checksum = string(algo) + ":" + sum
			}
			if m, err := s.resolver.Resolve(pkg.Format); err == nil {
				info.Manager = m.Name
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			printPackageInfo(cmd, info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "checksum algorithm (sha256, sha512, sha1, md5, blake3)")

	return cmd
}

func printPackageInfo(cmd *cobra.Command, info packageInfo) {
	w := cmd.OutOrStdout()

	ui.PrintHeader(w, info.Metadata.DisplayName(info.Package.Path))
	ui.PrintKeyValue(w, "Name", info.Metadata.Name)
	ui.PrintKeyValue(w, "Version", info.Metadata.Version)
	ui.PrintKeyValue(w, "Architecture", info.Metadata.Architecture)
	ui.PrintKeyValue(w, "Description", info.Metadata.Description)
	ui.PrintKeyValue(w, "Maintainer", info.Metadata.Maintainer)
	ui.PrintKeyValue(w, "Format", ui.ColorizeFormat(info.Package.Format))
	ui.PrintKeyValue(w, "Size", humanSize(info.Package.Size))
	ui.PrintKeyValue(w, "Path", info.Package.Path)
	ui.PrintKeyValue(w, "Checksum", info.Checksum)

	if info.Manager != "" {
		ui.PrintKeyValue(w, "Installs with", info.Manager)
	} else {
		ui.PrintWarning(w, "no package manager for %s packages found", info.Package.Format)
	}
	if info.Metadata.IsEmpty() {
		fmt.Fprintln(w)
		ui.PrintInfo(w, "No metadata could be read from this package")
	}
}
