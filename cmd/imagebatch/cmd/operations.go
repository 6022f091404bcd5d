package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/session"
)

var (
	darkThreshold    int
	episodeThreshold float64
	deleteData       bool
	noBackup         bool
)

var datesCmd = newOperationCommand(session.KindDates,
	"Swap day and month of ambiguous dates",
	`Dates finds runs of consecutive files taken on the same day whose day
of month is 12 or less, so day and month could have been read the wrong way
round. Applying a run swaps day and month for every file in it.

A cancelled run commits nothing.

Example:
  imagebatch dates --select 1,3-5`,
	nil)

var darkCmd = newOperationCommand(session.KindDark,
	"Classify dark images",
	`Dark decodes each selected image and records in the dark field whether
most of its pixels fall below the luminance threshold. Videos and colour
images are never dark.

A cancelled run commits nothing.

Example:
  imagebatch dark --pixel-threshold 50`,
	func(cmd *cobra.Command, s *config.OperationSettings) {
		if cmd.Flags().Changed("pixel-threshold") {
			s.Dark.PixelThreshold = darkThreshold
		}
	})

var guidCmd = newOperationCommand(session.KindGUID,
	"Populate missing GUIDs",
	`GUID writes a fresh random GUID into the GUID field of every selected
file that has none.

A cancelled run commits nothing.`,
	nil)

var episodesCmd = newOperationCommand(session.KindEpisodes,
	"Number capture episodes",
	`Episodes groups files whose neighbouring timestamps are at most the
threshold apart and writes "episode:sequence|count" into the episode field.

A cancelled run commits nothing.

Example:
  imagebatch episodes --threshold-minutes 5`,
	func(cmd *cobra.Command, s *config.OperationSettings) {
		if cmd.Flags().Changed("threshold-minutes") {
			s.Episodes.ThresholdMinutes = episodeThreshold
		}
	})

var deleteCmd = newOperationCommand(session.KindDelete,
	"Delete flagged files and records",
	`Delete removes the files of records whose delete flag is set. Files are
moved to the DeletedFiles folder under the image root unless --no-backup is
given. With --delete-data the rows are dropped too; otherwise only the flag
is cleared.

Files already moved cannot be put back, so a cancelled run still commits the
rows of the files it handled.`,
	func(cmd *cobra.Command, s *config.OperationSettings) {
		if cmd.Flags().Changed("delete-data") {
			s.Delete.DeleteData = deleteData
		}
		if noBackup {
			s.Delete.BackupFiles = false
		}
	})

func init() {
	darkCmd.Flags().IntVar(&darkThreshold, "pixel-threshold", 0,
		"Override the luminance below which a pixel counts as dark (0-255)")
	episodesCmd.Flags().Float64Var(&episodeThreshold, "threshold-minutes", 0,
		"Override the maximum gap between files of one episode")
	deleteCmd.Flags().BoolVar(&deleteData, "delete-data", false,
		"Drop the database rows as well as the files")
	deleteCmd.Flags().BoolVar(&noBackup, "no-backup", false,
		"Delete files permanently instead of moving them to DeletedFiles")

	rootCmd.AddCommand(datesCmd, darkCmd, guidCmd, episodesCmd, deleteCmd)
}
