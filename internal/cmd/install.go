package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/quantmind-br/snapwiz/internal/config"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/quantmind-br/snapwiz/internal/installer"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/quantmind-br/snapwiz/internal/queue"
	"github.com/quantmind-br/snapwiz/internal/security"
	"github.com/quantmind-br/snapwiz/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type installFlags struct {
	checksum   string
	yes        bool
	noProgress bool
}

// NewInstallCmd creates the install command
func NewInstallCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newInstallCmd(newServices(cfg, log))
}

func newInstallCmd(s *services) *cobra.Command {
	var flags installFlags

	cmd := &cobra.Command{
		Use:   "install <package>...",
		Short: "Install local packages",
		Long: `Install .deb, .rpm, .snap and .flatpak files with the system's native package manager.

Packages are installed one at a time, in the order given. A failed package
does not stop the others. Press Ctrl+C to stop after the running package;
a package manager that already started is never killed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, s, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.checksum, "checksum", "", "expected checksum of the package (algo:hex or hex)")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "do not draw progress bars")

	return cmd
}

func runInstall(cmd *cobra.Command, s *services, paths []string, flags installFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	opts, err := installOptions(s.cfg, paths, flags.checksum)
	if err != nil {
		ui.PrintError(errOut, "%v", err)
		return &ExitError{Code: core.ExitInvalidArgs, Err: err}
	}

	var hist core.HistoryWriter
	store, err := s.openHistory(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("db_file", s.cfg.Paths.DBFile).Msg("history store unavailable")
		ui.PrintWarning(errOut, "installation history will not be recorded: %v", err)
	} else {
		defer store.Close()
		hist = store
	}

	mgr := queue.NewManager(s.cfg, s.log, queue.Deps{
		Detector:  s.detector,
		Installer: s.installer,
		Metadata:  s.metadata,
		History:   hist,
	})

	rejected := submitAll(ctx, mgr, paths, opts, errOut)
	tasks := mgr.Tasks()
	if len(tasks) == 0 {
		return &ExitError{Code: ExitCode(rejected), Err: rejected}
	}

	printQueue(out, tasks)
	if mgr.Degraded() {
		ui.PrintWarning(errOut, "%d packages queued, this may take a while", len(tasks))
	}

	if len(tasks) > 1 && !flags.yes && s.interactive {
		ok, err := s.confirm(fmt.Sprintf("Install %d packages", len(tasks)))
		if err != nil && !errors.Is(err, ui.ErrPromptCancelled) {
			return err
		}
		if !ok {
			ui.PrintInfo(out, "Nothing installed")
			return &ExitError{Code: core.ExitInterrupted, Err: errors.New("installation declined")}
		}
	}

	stop := watchInterrupts(ctx, mgr, errOut)
	defer stop()

	bars := ui.NewBatchProgress(errOut, tasks, s.interactive && !flags.noProgress)
	result, err := mgr.RunAll(ctx, bars.Update, bars.Done)
	if err != nil {
		return err
	}

	ui.PrintSummary(out, result)
	return batchError(result, rejected)
}

// installOptions builds per-task options. A checksum only makes sense for a
// single package.
func installOptions(cfg *config.Config, paths []string, checksum string) (installer.Options, error) {
	if checksum == "" {
		return installer.Options{}, nil
	}
	if len(paths) > 1 {
		return installer.Options{}, errors.New("--checksum can only be used with a single package")
	}

	algo, err := security.ParseAlgorithm(cfg.Install.ChecksumAlgorithm)
	if err != nil {
		algo = security.SHA256
	}
	expected, err := security.ParseExpectedChecksum(checksum, algo)
	if err != nil {
		return installer.Options{}, fmt.Errorf("invalid --checksum: %w", err)
	}
	return installer.Options{Checksum: expected}, nil
}

// submitAll enqueues every path, reporting rejected ones. It returns the
// first rejection.
func submitAll(ctx context.Context, mgr *queue.Manager, paths []string, opts installer.Options, w io.Writer) error {
	var first error
	for _, p := range paths {
		_, err := mgr.Submit(ctx, p, opts)
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		if errors.Is(err, queue.ErrQueueFull) {
			ui.PrintError(w, "%v, remaining packages skipped", err)
			break
		}
		ui.PrintErrorRecord(w, p, pkgerr.RecordOf(err))
	}
	return first
}

func printQueue(w io.Writer, tasks []queue.TaskSnapshot) {
	table := ui.NewTable(w, []string{"#", "Package", "Version", "Format", "Size"})
	for i, t := range tasks {
		table.Append(
			strconv.Itoa(i+1),
			t.Name(),
			t.Metadata.Version,
			ui.ColorizeFormat(t.Package.Format),
			humanSize(t.Package.Size),
		)
	}
	table.Render()
}

// watchInterrupts cancels the queue on the first signal. Later signals only
// remind the user that the running package is being waited for.
func watchInterrupts(ctx context.Context, mgr *queue.Manager, w io.Writer) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		interrupted := false
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-sigCh:
				if interrupted {
					ui.PrintWarning(w, "waiting for the running package manager to finish")
					continue
				}
				interrupted = true
				ui.PrintWarning(w, "cancelling after the running package")
				mgr.Cancel()
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// batchError turns a finished batch into the command error
func batchError(r queue.BatchResult, rejected error) error {
	for _, t := range r.Tasks {
		if t.Status == core.StatusFailed && t.Error != nil {
			return &ExitError{
				Code: exitCodeForKind(t.Error.Kind),
				Err:  fmt.Errorf("%d of %d packages failed", r.Failed, r.Total),
			}
		}
	}
	if r.Cancelled > 0 {
		return &ExitError{
			Code: core.ExitInterrupted,
			Err:  fmt.Errorf("%d of %d packages cancelled", r.Cancelled, r.Total),
		}
	}
	if rejected != nil {
		return &ExitError{Code: ExitCode(rejected), Err: rejected}
	}
	return nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
