package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/quantmind-br/snapwiz/internal/cmd"
	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/logging"
	"github.com/quantmind-br/snapwiz/internal/ui"
	"golang.org/x/term"
)

var version = "dev"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ui.InitColors()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return core.ExitGeneral
	}

	log := logging.NewLogger(logging.Config{
		Level:   cfg.Logging.Level,
		LogFile: cfg.Paths.LogFile,
		NoColor: cfg.Logging.Color == "never",
		Quiet:   term.IsTerminal(int(os.Stderr.Fd())),
	})

	rootCmd := cmd.NewRootCmd(cfg, log, version)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var reported *cmd.ExitError
		if !errors.As(err, &reported) {
			ui.PrintError(stderr, "%v", err)
		}
		log.Debug().Err(err).Msg("command failed")
		return cmd.ExitCode(err)
	}
	return core.ExitSuccess
}
