package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snapmatch/snapmatch/internal/config"
)

var peopleCmd = &cobra.Command{
	Use:   "people <gallery> <photo>",
	Short: "List everyone recorded in one photo",
	Long: `List the people the identification pipeline recorded for a photo,
ordered by name. The photo is named without its extension.

Example:
  snapmatch people homecoming IMG_2041`,
	Args: cobra.ExactArgs(2),
	RunE: runPeople,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
}

func runPeople(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	people, err := st.PeopleInPhoto(args[0], args[1])
	if err != nil {
		return err
	}
	if len(people) == 0 {
		fmt.Println("Nobody recorded in this photo.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCLASS\tFACE ID")
	for _, p := range people {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Class, p.ID)
	}
	return w.Flush()
}
