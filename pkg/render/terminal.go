package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
)

type TerminalOptions struct {
	Style    string
	WordWrap int
	Plain    bool
}

func DefaultTerminalOptions() TerminalOptions {
	return TerminalOptions{Style: "dark", WordWrap: 100}
}

// StepMarkdown rebuilds a step as markdown: heading, code block, explanation.
func StepMarkdown(step Step) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Step %d\n\n", step.Number)
	if step.HasCode {
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", step.Language, step.Code)
	}
	sb.WriteString(step.Explanation)
	sb.WriteString("\n")
	return sb.String()
}

// RenderTerminal renders a step for a terminal. With Plain set the markdown is returned
// unstyled, which is what we print when stdout is not a TTY.
func RenderTerminal(step Step, options TerminalOptions) (string, error) {
	md := StepMarkdown(step)
	if options.Plain {
		return md, nil
	}

	renderOptions := []glamour.TermRendererOption{
		glamour.WithStandardStyle(options.Style),
	}
	if options.WordWrap > 0 {
		renderOptions = append(renderOptions, glamour.WithWordWrap(options.WordWrap))
	}
	r, err := glamour.NewTermRenderer(renderOptions...)
	if err != nil {
		return "", errors.Wrap(err, "could not create terminal renderer")
	}
	out, err := r.Render(md)
	if err != nil {
		return "", errors.Wrapf(err, "could not render step %d", step.Number)
	}
	return out, nil
}
