package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/timmy/pkg/bridge"
	"github.com/go-go-golems/timmy/pkg/render"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"
)

const commandQuit = "quit"

// terminalPanel plays the role of the browser panel for a terminal session.
type terminalPanel struct {
	out     io.Writer
	errOut  io.Writer
	options render.TerminalOptions

	sessionID string
	pdfText   string
	failed    bool
}

func (p *terminalPanel) Publish(_ context.Context, out bridge.Outbound) error {
	switch out.Type {
	case bridge.OutboundTutorialStarted:
		p.sessionID = out.SessionID
		return p.printStep(out)
	case bridge.OutboundTutorialContinued:
		return p.printStep(out)
	case bridge.OutboundPDFProcessed:
		p.pdfText = out.Text
		_, err := fmt.Fprintf(p.errOut, "Loaded PDF (%d characters)\n", len([]rune(out.Text)))
		return err
	case bridge.OutboundError:
		p.failed = true
		_, err := fmt.Fprintf(p.errOut, "Error: %s\n", out.Message)
		return err
	case bridge.OutboundReset:
		p.sessionID = ""
	}
	return nil
}

func (p *terminalPanel) printStep(out bridge.Outbound) error {
	number := 1
	if out.Step != nil {
		number = out.Step.Number
	}
	rendered, err := render.RenderTerminal(render.Parse(number, out.Message), p.options)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out, rendered)
	return err
}

// ttyChooser asks for a PDF path on the terminal.
type ttyChooser struct {
	ui *input.UI
}

func (c *ttyChooser) ChooseFile(context.Context) (string, bool, error) {
	path, err := c.ui.Ask("PDF file (empty to cancel)", &input.Options{
		HideOrder: true,
	})
	if err != nil {
		return "", false, err
	}
	path = strings.TrimSpace(path)
	return path, path != "", nil
}

func NewTutorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tutor <prompt...>",
		Short: "Run a tutorial in the terminal",
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

			registry, err := s.NewRegistry()
			if err != nil {
				return err
			}
			svc, err := s.NewTutor(registry)
			if err != nil {
				return err
			}

			isOutputTerminal := isatty.IsTerminal(os.Stdout.Fd())
			options := render.DefaultTerminalOptions()
			options.Plain = !isOutputTerminal
			if style, _ := cmd.Flags().GetString("style"); style != "" {
				options.Style = style
			}

			panel := &terminalPanel{
				out:     cmd.OutOrStdout(),
				errOut:  cmd.ErrOrStderr(),
				options: options,
			}

			var ui *input.UI
			interactive, _ := cmd.Flags().GetBool("interactive")
			if interactive {
				tty, err := OpenTTY()
				if err != nil {
					log.Debug().Err(err).Msg("No terminal available, running one step only")
				} else {
					defer func() {
						_ = tty.Close()
					}()
					ui = &input.UI{Writer: tty, Reader: tty}
				}
			}

			dispatcherOptions := []bridge.DispatcherOption{bridge.WithProviderName(s.ProviderName())}
			if ui != nil {
				dispatcherOptions = append(dispatcherOptions, bridge.WithFileChooser(&ttyChooser{ui: ui}))
			}
			dispatcher := bridge.NewDispatcher(svc, newExtractor(s), dispatcherOptions...)

			ctx := cmd.Context()

			path, _ := cmd.Flags().GetString("pdf")
			choosePDF, _ := cmd.Flags().GetBool("choose-pdf")
			if path != "" || (choosePDF && ui != nil) {
				// without a path the dispatcher asks the chooser
				if err := dispatcher.Handle(ctx, bridge.Inbound{Type: bridge.InboundUploadPDF, Path: path}, panel); err != nil {
					return err
				}
				if panel.failed {
					return errors.New("could not read the PDF")
				}
			}

			err = dispatcher.Handle(ctx, bridge.Inbound{
				Type:    bridge.InboundStartTutorial,
				Prompt:  userPrompt,
				PDFText: panel.pdfText,
			}, panel)
			if err != nil {
				return err
			}
			if panel.sessionID == "" {
				return errors.New("tutorial did not start")
			}
			if ui == nil {
				return nil
			}

			return runTutorLoop(ctx, ui, dispatcher, panel)
		},
	}
	cmd.Flags().String("pdf", "", "PDF file to use as context")
	cmd.Flags().Bool("choose-pdf", false, "Ask for a PDF file before starting")
	cmd.Flags().String("style", "", "Glamour style used to render steps (dark, light, notty, ...)")
	cmd.Flags().Bool("interactive", true, "Ask follow-up questions on the terminal")
	return cmd
}

func runTutorLoop(ctx context.Context, ui *input.UI, dispatcher *bridge.Dispatcher, panel *terminalPanel) error {
	query := fmt.Sprintf("Question (enter for next step, %q to stop)", commandQuit)
	for {
		answer, err := ui.Ask(query, &input.Options{
			Default:     "next",
			HideDefault: true,
			HideOrder:   true,
		})
		if err != nil {
			if errors.Is(err, input.ErrInterrupted) {
				return nil
			}
			return errors.Wrap(err, "could not read answer")
		}

		answer = strings.TrimSpace(answer)
		switch strings.ToLower(answer) {
		case commandQuit, "exit":
			return dispatcher.Handle(ctx, bridge.Inbound{Type: bridge.InboundReset, SessionID: panel.sessionID}, panel)
		}

		err = dispatcher.Handle(ctx, bridge.Inbound{
			Type:        bridge.InboundContinueTutorial,
			SessionID:   panel.sessionID,
			UserMessage: answer,
		}, panel)
		if err != nil {
			return err
		}
	}
}
