package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const transcriptHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 50em; margin: 2em auto; line-height: 1.5; }
pre { background: #1e1e1e; color: #d4d4d4; padding: 1em; overflow-x: auto; }
.turn-user { border-left: 3px solid #0e639c; padding-left: 1em; color: #555; }
</style>
</head>
<body>
`

var transcriptMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderTranscript exports a whole session as a standalone HTML page. Assistant turns are
// rendered as full markdown including all of their code blocks, user turns are quoted.
// Raw HTML in turns is not passed through.
func RenderTranscript(title string, userPrompt string, turns []conversation.Message) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, transcriptHeader, EscapeHTML(title))
	fmt.Fprintf(&buf, "<h1>%s</h1>\n", EscapeHTML(title))
	if userPrompt != "" {
		fmt.Fprintf(&buf, "<p class=\"prompt\"><strong>Prompt:</strong> %s</p>\n", EscapeHTML(userPrompt))
	}

	step := 0
	for i, turn := range turns {
		switch turn.Role {
		case conversation.RoleAssistant:
			step++
			fmt.Fprintf(&buf, "<section class=\"turn-assistant\" id=\"step-%d\">\n<h2>Step %d</h2>\n", step, step)
			if err := transcriptMarkdown.Convert([]byte(turn.Content), &buf); err != nil {
				return "", errors.Wrapf(err, "could not convert turn %d", i)
			}
			buf.WriteString("</section>\n")
		case conversation.RoleUser:
			content := turn.Content
			if turn.IsNext() {
				content = "(next step)"
			}
			fmt.Fprintf(&buf, "<blockquote class=\"turn-user\">%s</blockquote>\n",
				strings.ReplaceAll(EscapeHTML(content), "\n", "<br>"))
		}
	}

	buf.WriteString("</body>\n</html>\n")
	return buf.String(), nil
}
