package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/lock"
	"github.com/dbsmedya/imagebatch/internal/store"
	"github.com/dbsmedya/imagebatch/internal/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and the image set",
	Long: `Validate checks the configuration file and the image set it points to.

Checks performed:
  - Configuration syntax and required fields
  - Database connectivity
  - Image set lock
  - File table columns
  - Image root folder

Example:
  imagebatch validate --config imagebatch.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	fmt.Fprintf(out, "\n=== Configuration Validation ===\n")
	if path := GetConfigFile(); path != "" {
		fmt.Fprintf(out, "Config file: %s\n", path)
	} else {
		fmt.Fprintf(out, "Config file: (defaults)\n")
	}
	printStatus(out, "Configuration", statusOK, "")

	// opening a missing SQLite path would create an empty image set
	if cfg.Store.Driver != store.DriverMySQL {
		if _, err := os.Stat(cfg.Store.Path); err != nil {
			printStatus(out, "Database", statusError, err.Error())
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	st, err := store.Open(ctx, &cfg.Store, cfg.Processing.OrderBy, log)
	if err != nil {
		printStatus(out, "Database", statusError, err.Error())
		return fmt.Errorf("validation failed: %w", err)
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		printStatus(out, "Database", statusError, err.Error())
		return fmt.Errorf("validation failed: %w", err)
	}
	printStatus(out, "Database", statusOK, describeStore(&cfg.Store))

	l := newLocker(st)
	err = lock.WithLock(ctx, l, lock.TimeoutImmediate, func() error { return nil })
	switch {
	case errors.Is(err, lock.ErrLocked):
		printStatus(out, "Run lock", statusWarn, "held by another run")
	case err != nil:
		printStatus(out, "Run lock", statusWarn, err.Error())
	default:
		printStatus(out, "Run lock", statusOK, l.Name())
	}

	hasErrors := false

	columns, err := st.Columns(ctx)
	if err != nil {
		printStatus(out, "File table", statusError, err.Error())
		hasErrors = true
	} else if missing := missingColumns(columns); len(missing) > 0 {
		printStatus(out, "File table", statusError, "missing columns: "+strings.Join(missing, ", "))
		hasErrors = true
	} else {
		printStatus(out, "File table", statusOK, fmt.Sprintf("%d columns", len(columns)))
	}

	records, err := st.LoadRecords(ctx)
	if err != nil {
		printStatus(out, "Records", statusError, err.Error())
		hasErrors = true
	} else {
		printStatus(out, "Records", statusInfo, countf("%d records", len(records)))
	}

	switch info, err := os.Stat(cfg.Store.ImageRoot); {
	case cfg.Store.ImageRoot == "":
		printStatus(out, "Image root", statusWarn, "not set; dark and delete need it")
	case err != nil:
		printStatus(out, "Image root", statusError, err.Error())
		hasErrors = true
	case !info.IsDir():
		printStatus(out, "Image root", statusError, "not a directory")
		hasErrors = true
	default:
		printStatus(out, "Image root", statusOK, cfg.Store.ImageRoot)
	}

	if hasErrors {
		return fmt.Errorf("validation failed")
	}

	fmt.Fprintln(out, "=== Validation Complete ===")
	return nil
}

func describeStore(s *config.StoreConfig) string {
	if s.Driver == store.DriverMySQL {
		return fmt.Sprintf("mysql %s:%d/%s table %s", s.Host, s.Port, s.Database, s.Table)
	}
	return fmt.Sprintf("sqlite %s table %s", s.Path, s.Table)
}

func missingColumns(columns []string) []string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[strings.ToLower(c)] = true
	}
	var missing []string
	for _, want := range []string{types.ColumnID, types.ColumnRelativePath, types.ColumnFile, types.ColumnDateTime} {
		if !have[want] {
			missing = append(missing, want)
		}
	}
	return missing
}

