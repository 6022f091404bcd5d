package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/lock"
	"github.com/dbsmedya/imagebatch/internal/session"
	"github.com/dbsmedya/imagebatch/internal/store"
)

const defaultPreviewRows = 50

// operationFlags are the flags shared by every operation command.
type operationFlags struct {
	selectSpec  string
	dryRun      bool
	reportPath  string
	previewRows int
	force       bool
	wait        bool
}

func (f *operationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.selectSpec, "select", "s", "all",
		"Candidates to apply: all, none, or IDs and ranges such as 1,3,5-7")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false,
		"Preview candidates without applying anything")
	cmd.Flags().StringVar(&f.reportPath, "report", "",
		"Write a YAML run report to this file")
	cmd.Flags().IntVar(&f.previewRows, "preview-rows", defaultPreviewRows,
		"Maximum candidates shown in the preview (0 shows all)")
	cmd.Flags().BoolVar(&f.force, "force", false,
		"Run even if the image set lock cannot be acquired (use with caution)")
	cmd.Flags().BoolVar(&f.wait, "wait", false,
		"Wait up to a minute for another run to release the image set lock")
}

// newOperationCommand builds the command for one operation. adjust, if set,
// applies command-specific flags to the operation settings.
func newOperationCommand(kind session.Kind, short, long string,
	adjust func(cmd *cobra.Command, s *config.OperationSettings)) *cobra.Command {
	flags := &operationFlags{}
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, kind, flags, adjust)
		},
	}
	flags.register(cmd)
	return cmd
}

func runOperation(cmd *cobra.Command, kind session.Kind, flags *operationFlags,
	adjust func(cmd *cobra.Command, s *config.OperationSettings)) error {
	spec, err := parseSelectSpec(flags.selectSpec)
	if err != nil {
		return err
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if adjust != nil {
		adjust(cmd, &cfg.Operations)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := engine.NotifyContext(context.Background(), func(sig os.Signal) {
		log.Warnf("Received %s - cancelling run...", sig)
	})
	defer stop()

	st, err := store.Open(ctx, &cfg.Store, cfg.Processing.OrderBy, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	opts := session.Options{
		ImageRoot: cfg.Store.ImageRoot,
		Settings:  cfg.Operations,
		Progress: engine.ProgressOptions{
			Interval: cfg.Processing.ProgressInterval(),
			Backoff:  cfg.Processing.Backoff(),
		},
		LockTimeout: lock.TimeoutShort,
	}
	if flags.wait {
		opts.LockTimeout = lock.TimeoutLong
	}
	if flags.force {
		log.Warnw("Skipping image set lock (--force flag used)", "operation", string(kind))
	} else {
		opts.Locker = newLocker(st)
	}

	sess, err := session.New(kind, st, opts, log)
	if err != nil {
		return err
	}

	sel, err := sess.Scan(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sel.Len() == 0 {
		printStatus(out, "Candidates", statusOK, fmt.Sprintf("none found, nothing to do for %s", kind))
		return nil
	}

	if err := applySelection(sel, spec); err != nil {
		return err
	}
	fmt.Fprintln(out, renderPreview(sel.Candidates(), flags.previewRows))

	selected, total := sel.Count()
	if flags.dryRun {
		fmt.Fprintln(out, countf("Dry run: %d of %d candidates selected, nothing applied", selected, total))
		return nil
	}

	task, err := sess.Apply(ctx, newProgressSink(cmd.ErrOrStderr(), string(kind), log))
	if errors.Is(err, lock.ErrLocked) {
		return fmt.Errorf("image set is in use by another run (use --wait to queue or --force to override): %w", err)
	}
	if err != nil {
		return err
	}

	res := task.Wait()
	printSummary(out, res, selected)

	if flags.reportPath != "" {
		if err := writeReport(flags.reportPath, newRunReport(res, selected, total)); err != nil {
			log.Errorf("failed to write report: %v", err)
		} else {
			log.Infow("Run report written", "path", flags.reportPath)
		}
	}

	if res.Err != nil {
		return fmt.Errorf("%s run failed: %w", kind, res.Err)
	}
	return nil
}

// newLocker picks the lock for the store: a lock file next to a SQLite
// database, or a MySQL named lock.
func newLocker(st *store.Store) lock.Locker {
	if st.Driver() == store.DriverMySQL {
		return lock.NewAdvisoryLock(st.DB(), lock.GenerateLockName(st.Table()))
	}
	return lock.NewFileLock(lock.LockPath(st.Path()))
}

