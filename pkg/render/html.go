package render

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	boldRegexp       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRegexp     = regexp.MustCompile(`\*(.*?)\*`)
	inlineCodeRegexp = regexp.MustCompile("`(.*?)`")

	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// EscapeHTML escapes text the way a DOM text node is serialized.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// FormatParagraph escapes a paragraph and applies the inline markup the panel supports:
// bold, italic, inline code and line breaks. Order matters, bold has to run before italic.
func FormatParagraph(paragraph string) string {
	s := EscapeHTML(paragraph)
	s = boldRegexp.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRegexp.ReplaceAllString(s, "<em>$1</em>")
	s = inlineCodeRegexp.ReplaceAllString(s, "<code>$1</code>")
	s = strings.ReplaceAll(s, "\n", "<br>")
	return s
}

// RenderHTML returns the explanation entry for a step.
func RenderHTML(step Step) string {
	var sb strings.Builder
	sb.WriteString(`<div class="explanation-entry">`)
	fmt.Fprintf(&sb, `<div class="step-number">Step %d</div>`, step.Number)
	for _, p := range step.Paragraphs {
		sb.WriteString("<p>")
		sb.WriteString(FormatParagraph(p))
		sb.WriteString("</p>")
	}
	sb.WriteString("</div>")
	return sb.String()
}
