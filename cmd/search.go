package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snapmatch/snapmatch/internal/config"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the identity database for photos of a person",
	Long: `Search recorded photo matches by person name (case-insensitive
substring) or by exact face identifier.

Examples:
  # All photos Jane appears in
  snapmatch search jane

  # All photos for a specific face id
  snapmatch search 5a1f6a22-93c4-4b0e-9d3b-6f2d60f122ab`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int("limit", 50, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	hits, err := st.Search(args[0], mustGetInt(cmd, "limit"))
	if err != nil {
		if hits == nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if len(hits) == 0 {
		fmt.Println("No matching photos found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GALLERY\tPHOTO\tNAME")
	for _, hit := range hits {
		fmt.Fprintf(w, "%s\t%s\t%s\n", hit.Gallery, hit.Photo, hit.Name)
	}
	return w.Flush()
}
