package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Show the passages pdf_search would return for query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := root.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			hits, err := orch.Current().Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for i, h := range hits {
				fmt.Fprintf(out, "  [%d] page %d, offset %d (distance %.3f)\n", i+1, h.Page, h.Offset, h.Distance)
				fmt.Fprintf(out, "      %s\n", strings.ReplaceAll(h.Text, "\n", " "))
			}
			return nil
		},
	}
}
