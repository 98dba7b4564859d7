package render

import (
	"strings"
	"testing"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSplitsCodeAndExplanation(t *testing.T) {
	step := Parse(1, "pre ```python\nprint(1)\n``` post")

	assert.Equal(t, 1, step.Number)
	assert.True(t, step.HasCode)
	assert.Equal(t, "print(1)", step.Code)
	assert.Equal(t, "python", step.Language)
	assert.Equal(t, "pre  post", step.Explanation)
	assert.Equal(t, []string{"pre  post"}, step.Paragraphs)
}

func TestParseStripsEveryBlockButShowsFirst(t *testing.T) {
	response := "Intro\n\n```go\nfmt.Println(\"a\")\n```\n\nMiddle\n\n```\nsecond block\n```\n\nAsk questions about this block, or say \"next\" to continue."
	step := Parse(3, response)

	assert.Equal(t, "fmt.Println(\"a\")", step.Code)
	assert.Equal(t, "go", step.Language)
	assert.NotContains(t, step.Explanation, "```")
	assert.NotContains(t, step.Explanation, "second block")
	assert.Equal(t, []string{"Intro", "Middle", "Ask questions about this block, or say \"next\" to continue."}, step.Paragraphs)

	blocks := ParseCodeBlocks(response)
	require.Len(t, blocks, 2)
	assert.Equal(t, DefaultLanguage, blocks[1].Language)
	assert.Equal(t, "second block", blocks[1].Code)
}

func TestParseWithoutCode(t *testing.T) {
	step := Parse(2, "  Just words.\n\n\n\nMore words.  ")

	assert.False(t, step.HasCode)
	assert.Empty(t, step.Code)
	assert.Empty(t, step.Language)
	assert.Equal(t, []string{"Just words.", "More words."}, step.Paragraphs)
}

func TestParseIgnoresUnterminatedFence(t *testing.T) {
	step := Parse(1, "```python\nprint(1)\n")
	assert.False(t, step.HasCode)
	assert.Equal(t, "```python\nprint(1)", step.Explanation)
}

func TestFormatParagraph(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "escape", in: "a < b && c > d", want: "a &lt; b &amp;&amp; c &gt; d"},
		{name: "bold", in: "this is **important**", want: "this is <strong>important</strong>"},
		{name: "italic", in: "an *aside*", want: "an <em>aside</em>"},
		{name: "inline code", in: "call `len(x)`", want: "call <code>len(x)</code>"},
		{name: "line break", in: "one\ntwo", want: "one<br>two"},
		{name: "no html injection", in: "<script>alert(1)</script>", want: "&lt;script&gt;alert(1)&lt;/script&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatParagraph(tt.in))
		})
	}
}

func TestRenderHTML(t *testing.T) {
	step := Parse(4, "```go\nx := 1\n```\n\nFirst **point**.\n\nSecond line\nwrapped.")
	got := RenderHTML(step)

	assert.Equal(t,
		`<div class="explanation-entry"><div class="step-number">Step 4</div>`+
			`<p>First <strong>point</strong>.</p><p>Second line<br>wrapped.</p></div>`,
		got)
}

func TestRenderTerminalPlain(t *testing.T) {
	step := Parse(1, "```go\nx := 1\n```\nExplained.")
	out, err := RenderTerminal(step, TerminalOptions{Plain: true})
	require.NoError(t, err)
	assert.Equal(t, "## Step 1\n\n```go\nx := 1\n```\n\nExplained.\n", out)
}

func TestRenderTerminalStyled(t *testing.T) {
	step := Parse(1, "```go\nx := 1\n```\nExplained.")
	out, err := RenderTerminal(step, TerminalOptions{Style: "notty", WordWrap: 80})
	require.NoError(t, err)
	assert.Contains(t, out, "Step 1")
	assert.Contains(t, out, "x := 1")
	assert.Contains(t, out, "Explained.")
}

func TestRenderTranscript(t *testing.T) {
	turns := []conversation.Message{
		conversation.NewAssistantMessage("```go\nfmt.Println(1)\n```\n\nFirst step."),
		conversation.NewUserMessage("why <fmt>?"),
		conversation.NewAssistantMessage("Because **fmt** prints."),
		conversation.NewUserMessage("next"),
		conversation.NewAssistantMessage("<b>raw</b> step three"),
	}

	out, err := RenderTranscript("Learn & go", "teach me go", turns)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Learn &amp; go</title>")
	assert.Contains(t, out, "teach me go")
	assert.Contains(t, out, `<code class="language-go">fmt.Println(1)`)
	assert.Contains(t, out, "<strong>fmt</strong>")
	assert.Contains(t, out, "why &lt;fmt&gt;?")
	assert.Contains(t, out, "(next step)")
	assert.Contains(t, out, `id="step-3"`)
	assert.NotContains(t, out, "<b>raw</b>")
}
