package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var (
		asJSON    bool
		showSteps bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question about --file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := root.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ans, err := orch.Ask(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(map[string]any{
					"response":     ans.Text,
					"chat_history": ans.History,
					"steps":        ans.Steps,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal answer: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if showSteps {
				for i, s := range ans.Steps {
					fmt.Fprintf(out, "[%d] %s %s\n", i+1, s.Tool, s.Input)
				}
			}
			fmt.Fprintln(out, ans.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the answer as JSON")
	cmd.Flags().BoolVar(&showSteps, "steps", false, "print the tool calls made")
	return cmd
}
