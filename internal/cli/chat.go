package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/dgallion1/pdfchat/internal/agent"
	"github.com/spf13/cobra"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Hold a conversation about --file",
		Long:  "Reads questions line by line from stdin. Type exit or quit, or send EOF, to stop.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := root.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var history agent.History
			in := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					fmt.Fprintln(out)
					return in.Err()
				}
				q := strings.TrimSpace(in.Text())
				switch q {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				ans, err := orch.Ask(cmd.Context(), q, history)
				if err != nil {
					// Keep the conversation going; history is unchanged.
					cmd.PrintErrln("error:", err)
					continue
				}
				history = ans.History
				fmt.Fprintln(out, ans.Text)
			}
		},
	}
}
