package gateway

import (
	"context"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// OllamaGateway talks to a local ollama server through its native chat API. The server
// address comes from OLLAMA_HOST (default 127.0.0.1:11434). Local models need no credential.
type OllamaGateway struct {
	Client      *api.Client
	Model       string
	Temperature float64
}

var _ Gateway = (*OllamaGateway)(nil)

func NewOllamaAPIGateway(model string, temperature float64) (*OllamaGateway, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, errors.Wrap(err, "could not create ollama client")
	}
	return &OllamaGateway{
		Client:      client,
		Model:       model,
		Temperature: temperature,
	}, nil
}

// MakeChatRequest converts the conversation into a non-streaming ollama chat request.
func (g *OllamaGateway) MakeChatRequest(messages conversation.Conversation) *api.ChatRequest {
	stream := false
	return &api.ChatRequest{
		Model: g.Model,
		Messages: lo.Map(messages, func(m conversation.Message, _ int) api.Message {
			return api.Message{
				Role:    string(m.Role),
				Content: m.Content,
			}
		}),
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": g.Temperature,
		},
	}
}

func (g *OllamaGateway) Complete(ctx context.Context, messages conversation.Conversation, _ string) (string, error) {
	req := g.MakeChatRequest(messages)
	log.Debug().
		Str("model", req.Model).
		Int("num_messages", len(req.Messages)).
		Msg("Ollama completion request")

	// without streaming the callback runs once, with the whole answer
	content := ""
	done := false
	err := g.Client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += messageContent(resp.Message)
		done = done || resp.Done
		return nil
	})
	if err != nil {
		gerr := classifyOllamaError(ctx, err)
		log.Warn().Err(err).Str("kind", string(gerr.Kind)).Msg("Ollama completion failed")
		return "", gerr
	}

	if content == "" {
		return "", &Error{
			Kind:     ErrorKindEmptyResponse,
			Provider: ProviderOllama,
			Err:      errors.Errorf("empty response (done=%v)", done),
		}
	}

	log.Debug().Int("chars", len(content)).Msg("Ollama completion done")
	return content, nil
}

// messageContent reads the content of a chat response message, which older clients
// expose as a pointer.
func messageContent(m interface{}) string {
	switch v := m.(type) {
	case api.Message:
		return v.Content
	case *api.Message:
		if v != nil {
			return v.Content
		}
	}
	return ""
}

func classifyOllamaError(ctx context.Context, err error) *Error {
	if gerr := classifyContextErr(ctx, ProviderOllama, err); gerr != nil {
		return gerr
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &Error{
			Kind:       KindFromStatus(statusErr.StatusCode),
			Provider:   ProviderOllama,
			StatusCode: statusErr.StatusCode,
			Err:        err,
		}
	}

	return &Error{Kind: ErrorKindTransport, Provider: ProviderOllama, Err: err}
}
