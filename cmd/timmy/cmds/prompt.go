package cmds

import (
	"fmt"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/go-go-golems/timmy/pkg/prompt"
	"github.com/go-go-golems/timmy/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tiktoken-go/tokenizer"
	"gopkg.in/yaml.v3"
)

const countingBudget = 1 << 30

func NewPromptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt <prompt...>",
		Short: "Print the messages sent for a tutorial, without calling the model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			userPrompt, err := promptFromArgs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			pdfText := ""
			if path, _ := cmd.Flags().GetString("pdf"); path != "" {
				pdfText, err = newExtractor(s).ExtractText(path)
				if err != nil {
					return err
				}
			}

			var history conversation.Conversation
			if path, _ := cmd.Flags().GetString("history"); path != "" {
				history, err = conversation.LoadFromFile(path)
				if err != nil {
					return err
				}
			}

			messages := prompt.Assemble(session.View{
				UserPrompt: userPrompt,
				PDFContext: pdfText,
				History:    history,
			})

			if output, _ := cmd.Flags().GetString("output"); output != "" {
				if err := messages.SaveToFile(output); err != nil {
					return errors.Wrapf(err, "could not write %s", output)
				}
			} else {
				b, err := yaml.Marshal(messages)
				if err != nil {
					return errors.Wrap(err, "could not encode messages")
				}
				if _, err := cmd.OutOrStdout().Write(b); err != nil {
					return err
				}
			}

			if showTokens, _ := cmd.Flags().GetBool("tokens"); showTokens {
				counter, err := prompt.NewTokenBudget(countingBudget, tokenizer.Cl100kBase)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.ErrOrStderr(), "# %d messages, about %d tokens (%s)\n",
					len(messages), counter.Count(messages), tokenizer.Cl100kBase)
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("pdf", "", "PDF file to use as context")
	cmd.Flags().String("history", "", "JSON or YAML file with earlier user and assistant turns")
	cmd.Flags().String("output", "", "Write the messages to a .json or .yaml file instead of stdout")
	cmd.Flags().Bool("tokens", false, "Print the token count to stderr")
	return cmd
}
