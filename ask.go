package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verbi-app/verbi/internal/document"
)

// askOutput is the JSON schema for `ask --json`.
type askOutput struct {
	Action string `json:"action"`
	Answer string `json:"answer"`
}

func newAskCmd() *cobra.Command {
	var question, book string

	cmd := &cobra.Command{
		Use:   "ask <question|rephrase|summarize> <text>...",
		Short: "Run an AI text action on a passage",
		Long: `Send a passage of document text to the language model.

  question   answer --question about the passage
  rephrase   reword the passage
  summarize  summarize the passage

--book names the document the passage comes from.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			action, err := document.ParseAction(args[0])
			if err != nil {
				return err
			}

			text := strings.Join(args[1:], " ")

			answer, err := cc.App().Document.PerformAction(cmd.Context(), text, action, question, book)
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return printJSON(cc.Out, askOutput{Action: string(action), Answer: answer})
			}

			fmt.Fprintln(cc.Out, answer)

			return nil
		},
	}

	cmd.Flags().StringVar(&question, "question", "", "question to ask (question action)")
	cmd.Flags().StringVar(&book, "book", "", "title of the source document")

	return cmd
}
