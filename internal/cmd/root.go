package cmd

import (
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd(cfg *config.Config, log *zerolog.Logger, version string) *cobra.Command {
	s := newServices(cfg, log)

	cmd := &cobra.Command{
		Use:   "snapwiz",
		Short: "Install local Linux packages",
		Long: `snapwiz installs local .deb, .rpm, .snap and .flatpak files through the
system's native package managers, one at a time, with retries and history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newInstallCmd(s))
	cmd.AddCommand(newInfoCmd(s))
	cmd.AddCommand(newHistoryCmd(s))
	cmd.AddCommand(newDoctorCmd(s))
	cmd.AddCommand(NewCompletionCmd(s.log))
	cmd.AddCommand(NewVersionCmd(version))

	return cmd
}
