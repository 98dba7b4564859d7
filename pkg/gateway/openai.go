package gateway

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	go_openai "github.com/sashabaranov/go-openai"
)

const (
	ProviderOpenAI     = "openai"
	DefaultOpenAIModel = "gpt-4-turbo-preview"
)

// OpenAIGateway talks to the OpenAI chat completions API (or a compatible endpoint).
// Clients are created lazily and cached per API key.
type OpenAIGateway struct {
	Model       string
	Temperature float32
	MaxTokens   int
	BaseURL     string

	mu      sync.Mutex
	clients map[string]*go_openai.Client
}

var _ Gateway = (*OpenAIGateway)(nil)

func NewOpenAIGateway(model string, temperature float32, baseURL string) *OpenAIGateway {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGateway{
		Model:       model,
		Temperature: temperature,
		BaseURL:     baseURL,
		clients:     map[string]*go_openai.Client{},
	}
}

func (g *OpenAIGateway) client(apiKey string) *go_openai.Client {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c
	}
	config := go_openai.DefaultConfig(apiKey)
	if g.BaseURL != "" {
		config.BaseURL = g.BaseURL
	}
	c := go_openai.NewClientWithConfig(config)
	g.clients[apiKey] = c
	return c
}

// MakeCompletionRequest converts the conversation into an OpenAI request.
func (g *OpenAIGateway) MakeCompletionRequest(messages conversation.Conversation) go_openai.ChatCompletionRequest {
	temperature := g.Temperature
	if temperature == 0 {
		// a zero temperature is dropped by omitempty and the API would use its default of 1
		temperature = math.SmallestNonzeroFloat32
	}
	return go_openai.ChatCompletionRequest{
		Model:       g.Model,
		Temperature: temperature,
		MaxTokens:   g.MaxTokens,
		Messages: lo.Map(messages, func(m conversation.Message, _ int) go_openai.ChatCompletionMessage {
			return go_openai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Content,
			}
		}),
	}
}

func (g *OpenAIGateway) Complete(ctx context.Context, messages conversation.Conversation, credential string) (string, error) {
	req := g.MakeCompletionRequest(messages)

	log.Debug().
		Str("model", req.Model).
		Float32("temperature", req.Temperature).
		Int("num_messages", len(req.Messages)).
		Msg("OpenAI completion request")

	resp, err := g.client(credential).CreateChatCompletion(ctx, req)
	if err != nil {
		gerr := classifyOpenAIError(ctx, err)
		log.Warn().Err(err).Str("kind", string(gerr.Kind)).Msg("OpenAI completion failed")
		return "", gerr
	}

	if len(resp.Choices) == 0 {
		return "", &Error{
			Kind:     ErrorKindEmptyResponse,
			Provider: ProviderOpenAI,
			Err:      errors.New("no choices in response"),
		}
	}

	content := resp.Choices[0].Message.Content
	log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("OpenAI completion done")

	return content, nil
}

func classifyOpenAIError(ctx context.Context, err error) *Error {
	if gerr := classifyContextErr(ctx, ProviderOpenAI, err); gerr != nil {
		return gerr
	}

	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		kind := KindFromStatus(apiErr.HTTPStatusCode)
		if apiErr.HTTPStatusCode == 0 && strings.Contains(strings.ToLower(apiErr.Type), "auth") {
			kind = ErrorKindAuth
		}
		return &Error{Kind: kind, Provider: ProviderOpenAI, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{
			Kind:       KindFromStatus(reqErr.HTTPStatusCode),
			Provider:   ProviderOpenAI,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	return &Error{Kind: ErrorKindTransport, Provider: ProviderOpenAI, Err: err}
}
