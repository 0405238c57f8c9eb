package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sadiq-codes/genpaper/internal/style"
)

var citationsCmd = &cobra.Command{
	Use:   "citations",
	Short: "List a project's resolved citations",
	Long: `Citations prints the project's reference list in first-seen order.
The default output is one line per citation; --bibliography renders a
formatted reference list and --csl dumps full CSL records as YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		if projectID == "" {
			return fmt.Errorf("--project is required")
		}
		styleName, _ := cmd.Flags().GetString("style")

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		citations, err := eng.store.ListCitations(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		if len(citations) == 0 {
			fmt.Fprintf(os.Stderr, "No citations recorded for project %s\n", projectID)
			return nil
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(citations)
		}
		if bib, _ := cmd.Flags().GetBool("bibliography"); bib {
			fmt.Print(style.RenderBibliography(citations, styleName))
			return nil
		}
		if asCSL, _ := cmd.Flags().GetBool("csl"); asCSL {
			for _, c := range citations {
				out, err := style.FormatCSL(c.CSL)
				if err != nil {
					return err
				}
				fmt.Printf("---\n%s", out)
			}
			return nil
		}

		for _, c := range citations {
			fmt.Printf("%3d  %-24s %s\n", c.FirstSeenOrder, c.CiteKey, c.CSL.Title)
		}
		return nil
	},
}

func init() {
	citationsCmd.Flags().String("project", "", "project identifier scoping the citation store")
	citationsCmd.Flags().String("style", "numeric", "bibliography style: numeric or author-year")
	citationsCmd.Flags().Bool("bibliography", false, "render a formatted reference list")
	citationsCmd.Flags().Bool("csl", false, "dump CSL records as YAML")
	citationsCmd.Flags().Bool("json", false, "output citations as JSON")

	rootCmd.AddCommand(citationsCmd)
}
