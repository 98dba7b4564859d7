package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/pkg/errors"
)

const ProviderEcho = "echo"

type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// RequiresCredential reports whether the provider needs an API key.
func (c Config) RequiresCredential() bool {
	switch strings.ToLower(c.Provider) {
	case ProviderOllama, ProviderEcho:
		return false
	default:
		return true
	}
}

// New creates the gateway for the configured provider.
func New(c Config) (Gateway, error) {
	switch strings.ToLower(c.Provider) {
	case "", ProviderOpenAI:
		g := NewOpenAIGateway(c.Model, float32(c.Temperature), c.BaseURL)
		g.MaxTokens = c.MaxTokens
		return g, nil
	case ProviderAnthropic:
		g := NewAnthropicGateway(c.Model, c.Temperature, c.BaseURL)
		if c.MaxTokens > 0 {
			g.MaxTokens = int64(c.MaxTokens)
		}
		return g, nil
	case ProviderOllama:
		// the native client only reads OLLAMA_HOST, an explicit server url goes through langchaingo
		if c.BaseURL != "" {
			return NewOllamaGateway(c.Model, c.BaseURL, c.Temperature)
		}
		return NewOllamaAPIGateway(c.Model, c.Temperature)
	case ProviderEcho:
		return Echo{}, nil
	default:
		return nil, errors.Errorf("unknown completion provider %q", c.Provider)
	}
}

// Echo answers every request with a fixed tutorial step quoting the last user message.
// It needs no network access and is meant for trying out the UI.
type Echo struct{}

func (Echo) Complete(_ context.Context, messages conversation.Conversation, _ string) (string, error) {
	last, ok := messages.Last()
	if !ok {
		return "", &Error{Kind: ErrorKindModel, Provider: ProviderEcho, Err: errors.New("no messages")}
	}
	step := (len(messages) + 1) / 2
	return fmt.Sprintf("```text\n%s\n```\n\nThis is step %d. The echo provider repeats your last message.\n\n"+
		"Ask questions about this block, or say \"next\" to continue.", last.Content, step), nil
}
