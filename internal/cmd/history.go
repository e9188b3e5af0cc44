package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/history"
	"github.com/quantmind-br/snapwiz/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command and its subcommands
func NewHistoryCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newHistoryCmd(newServices(cfg, log))
}

func newHistoryCmd(s *services) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past installations",
		Long:  `List, summarize, export or clear the record of past installations.`,
	}

	cmd.AddCommand(newHistoryListCmd(s))
	cmd.AddCommand(newHistoryStatsCmd(s))
	cmd.AddCommand(newHistoryExportCmd(s))
	cmd.AddCommand(newHistoryClearCmd(s))

	return cmd
}

func newHistoryListCmd(s *services) *cobra.Command {
	var (
		status     string
		format     string
		name       string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List past installations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			filter := history.Filter{Name: name, Limit: limit}
			if status != "" {
				st := core.TaskStatus(status)
				if !st.IsTerminal() {
					return fmt.Errorf("invalid status %q (use succeeded, failed or cancelled)", status)
				}
				filter.Status = st
			}
			if format != "" {
				f, err := core.ParseFormat(format)
				if err != nil {
					return err
				}
				filter.Format = f
			}

			store, err := s.openHistory(ctx)
			if err != nil {
				return &ExitError{Code: core.ExitDatabase, Err: fmt.Errorf("open history: %w", err)}
			}
			defer store.Close()

			records, err := store.List(ctx, filter)
			if err != nil {
				return &ExitError{Code: core.ExitDatabase, Err: err}
			}

			if jsonOutput {
				if records == nil {
					records = []core.HistoryRecord{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			if len(records) == 0 {
				ui.PrintInfo(cmd.OutOrStdout(), "No installations recorded")
				return nil
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (succeeded, failed, cancelled)")
	cmd.Flags().StringVar(&format, "format", "", "filter by package format (deb, rpm, snap, flatpak)")
	cmd.Flags().StringVar(&name, "name", "", "filter by package name (fuzzy)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records, 0 for all")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")

	return cmd
}

func printHistory(w io.Writer, records []core.HistoryRecord) {
	table := ui.NewTable(w, []string{"ID", "Date", "Package", "Version", "Format", "Status", "Attempts", "Error"})
	for _, r := range records {
		table.Append(
			strconv.FormatInt(r.ID, 10),
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			r.PackageName,
			r.Version,
			ui.ColorizeFormat(r.Format),
			ui.ColorizeStatus(r.Status),
			strconv.Itoa(r.Attempts),
			r.ErrorKind,
		)
	}
	table.Render()
}

func newHistoryStatsCmd(s *services) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show installation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			store, err := s.openHistory(ctx)
			if err != nil {
				return &ExitError{Code: core.ExitDatabase, Err: fmt.Errorf("open history: %w", err)}
			}
			defer store.Close()

			st, err := store.Stats(ctx)
			if err != nil {
				return &ExitError{Code: core.ExitDatabase, Err: err}
			}

			if jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			ui.PrintHeader(w, "Installation statistics")
			ui.PrintKeyValue(w, "Total", strconv.Itoa(st.Total))
			ui.PrintKeyValue(w, "Succeeded", strconv.Itoa(st.Succeeded))
			ui.PrintKeyValue(w, "Failed", strconv.Itoa(st.Failed))
			ui.PrintKeyValue(w, "Cancelled", strconv.Itoa(st.Cancelled))
			ui.PrintKeyValue(w, "Success rate", fmt.Sprintf("%.1f%%", st.SuccessRate))

			formats := make([]string, 0, len(st.ByFormat))
			for f, n := range st.ByFormat {
				formats = append(formats, fmt.Sprintf("%s: %d", f, n))
			}
			sort.Strings(formats)
			ui.PrintList(w, formats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")

	return cmd
}

func newHistoryExportCmd(s *services) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the installation history as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			exportFormat, err := history.ParseExportFormat(format)
			if err != nil {
				return &ExitError{Code: core.ExitInvalidArgs, Err: err}
			}

			store, err := s.openHistory(ctx)
			if err != nil {
				return &ExitError{Code: core.ExitDatabase, Err: fmt.Errorf("open history: %w", err)}
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := store.Export(ctx, w, exportFormat); err != nil {
				return &ExitError{Code: core.ExitDatabase, Err: err}
			}

			if output != "" && output != "-" {
				ui.PrintSuccess(cmd.ErrOrStderr(), "History exported to %s", output)
			}
			s.log.Debug().Str("format", string(exportFormat)).Str("output", output).Msg("history exported")
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "export format (json or csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func newHistoryClearCmd(s *services) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every history record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			store, err := s.openHistory(ctx)
			if err != nil {
				return &ExitError{Code: core.ExitDatabase, Err: fmt.Errorf("open history: %w", err)}
			}
			defer store.Close()

			if !yes {
				if !s.interactive {
					return &ExitError{Code: core.ExitInvalidArgs, Err: fmt.Errorf("refusing to clear history without --yes")}
				}
				ui.PrintWarning(cmd.ErrOrStderr(), "You are about to delete the installation history: %s", store.Path())
				ok, err := s.confirm("Are you sure you want to clear the history")
				if err != nil || !ok {
					ui.PrintInfo(w, "History kept")
					return nil
				}
			}

			n, err := store.Clear(ctx)
			if err != nil {
				return &ExitError{Code: core.ExitDatabase, Err: err}
			}
			ui.PrintSuccess(w, "Removed %d history records", n)
			s.log.Info().Int64("records", n).Msg("history cleared")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
