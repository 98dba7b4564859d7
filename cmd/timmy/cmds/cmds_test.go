package cmds

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-go-golems/timmy/pkg/bridge"
	"github.com/go-go-golems/timmy/pkg/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcnksm/go-input"
)

func TestPromptFromArgs(t *testing.T) {
	got, err := promptFromArgs([]string{"teach", "me", "go"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "teach me go", got)

	got, err = promptFromArgs([]string{"-"}, strings.NewReader("  from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)
}

func TestTerminalPanel(t *testing.T) {
	var out, errOut bytes.Buffer
	panel := &terminalPanel{out: &out, errOut: &errOut, options: render.TerminalOptions{Plain: true}}
	ctx := context.Background()

	require.NoError(t, panel.Publish(ctx, bridge.Outbound{Type: bridge.OutboundPDFProcessed, Text: "héllo"}))
	assert.Equal(t, "héllo", panel.pdfText)
	assert.Contains(t, errOut.String(), "5 characters")

	require.NoError(t, panel.Publish(ctx, bridge.Outbound{
		Type:      bridge.OutboundTutorialStarted,
		SessionID: "session_1",
		Message:   "```go\nx := 1\n```\nFirst.",
		Step:      &bridge.StepView{Number: 1},
	}))
	assert.Equal(t, "session_1", panel.sessionID)
	assert.Contains(t, out.String(), "## Step 1")
	assert.Contains(t, out.String(), "x := 1")

	require.NoError(t, panel.Publish(ctx, bridge.ErrorMessage("Session not found. Please start a new tutorial.")))
	assert.True(t, panel.failed)
	assert.Contains(t, errOut.String(), "Error: Session not found.")

	require.NoError(t, panel.Publish(ctx, bridge.Outbound{Type: bridge.OutboundReset}))
	assert.Empty(t, panel.sessionID)
}

func TestTTYChooser(t *testing.T) {
	var out bytes.Buffer
	chooser := &ttyChooser{ui: &input.UI{Writer: &out, Reader: strings.NewReader("/tmp/notes.pdf\n")}}
	path, ok, err := chooser.ChooseFile(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/tmp/notes.pdf", path)

	chooser = &ttyChooser{ui: &input.UI{Writer: &out, Reader: strings.NewReader("\n")}}
	_, ok, err = chooser.ChooseFile(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
