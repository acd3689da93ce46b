package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/snapmatch/snapmatch/internal/config"
	"github.com/snapmatch/snapmatch/internal/console"
	"github.com/snapmatch/snapmatch/internal/pipeline"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <index-file>",
	Short: "Seed the face collection from a roster index file",
	Long: `Enroll every portrait listed in a tab-delimited roster index file into
the face collection and the local identity database.

Enrollment is idempotent: rows already enrolled are skipped, so an aborted
run can simply be started again.

Examples:
  # Enroll a season's roster, year taken from the path
  snapmatch enroll /archive/fall2024/Index.txt

  # Enroll with an explicit year
  snapmatch enroll ./Index.txt --year 2024

  # Only enroll ninth graders
  snapmatch enroll ./Index.txt --class 9`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int("year", 0, "School year of the photos (default: taken from the index file path)")
	enrollCmd.Flags().String("class", "", "Only enroll rows with this class/grade token")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	enroller := pipeline.NewEnroller(newRecognizer(cfg), st, console.New(os.Stdout))
	return enroller.Run(cmd.Context(), args[0], mustGetInt(cmd, "year"), mustGetString(cmd, "class"))
}
