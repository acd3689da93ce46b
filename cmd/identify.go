package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/snapmatch/snapmatch/internal/config"
	"github.com/snapmatch/snapmatch/internal/console"
	"github.com/snapmatch/snapmatch/internal/pipeline"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <file-or-dir>",
	Short: "Identify enrolled people in event photographs",
	Long: `Identify the people appearing in a photo, or in every photo directly
inside a directory, and record the matches in the local identity database.

Each processed photo gets two sidecar files (raw detections and resolved
names) that make re-runs skip completed work, so the batch can be
interrupted and restarted at any time.

Examples:
  # Identify everyone in a gallery directory
  snapmatch identify /galleries/homecoming

  # Identify a single photo
  snapmatch identify /galleries/homecoming/IMG_2041.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Bool("progress", false, "Show a progress bar for directory runs")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	identifier := pipeline.NewIdentifier(newRecognizer(cfg), st, console.New(os.Stdout), cfg.Identify)
	progress, err := cmd.Flags().GetBool("progress")
	if err == nil {
		identifier.ShowProgress = progress
	}
	return identifier.Run(cmd.Context(), args[0])
}
