package gateway

import (
	"context"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

const (
	ProviderOllama     = "ollama"
	DefaultOllamaModel = "llama3"
)

// LangchainGateway runs completions through a langchaingo model. It is used for local
// models served by ollama, which need no credential.
type LangchainGateway struct {
	Provider    string
	LLM         llms.Model
	Temperature float64
}

var _ Gateway = (*LangchainGateway)(nil)

func NewOllamaGateway(model string, serverURL string, temperature float64) (*LangchainGateway, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	options := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		options = append(options, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(options...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create ollama client")
	}
	return &LangchainGateway{
		Provider:    ProviderOllama,
		LLM:         llm,
		Temperature: temperature,
	}, nil
}

func ToLangchainMessages(messages conversation.Conversation) []llms.MessageContent {
	return lo.Map(messages, func(m conversation.Message, _ int) llms.MessageContent {
		var t schema.ChatMessageType
		switch m.Role {
		case conversation.RoleSystem:
			t = schema.ChatMessageTypeSystem
		case conversation.RoleAssistant:
			t = schema.ChatMessageTypeAI
		default:
			t = schema.ChatMessageTypeHuman
		}
		return llms.TextParts(t, m.Content)
	})
}

func (g *LangchainGateway) Complete(ctx context.Context, messages conversation.Conversation, _ string) (string, error) {
	log.Debug().
		Str("provider", g.Provider).
		Int("num_messages", len(messages)).
		Msg("Langchain completion request")

	resp, err := g.LLM.GenerateContent(ctx, ToLangchainMessages(messages), llms.WithTemperature(g.Temperature))
	if err != nil {
		if gerr := classifyContextErr(ctx, g.Provider, err); gerr != nil {
			return "", gerr
		}
		log.Warn().Err(err).Str("provider", g.Provider).Msg("Langchain completion failed")
		return "", &Error{Kind: ErrorKindTransport, Provider: g.Provider, Err: err}
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", &Error{
			Kind:     ErrorKindEmptyResponse,
			Provider: g.Provider,
			Err:      errors.New("no choices in response"),
		}
	}

	return resp.Choices[0].Content, nil
}
