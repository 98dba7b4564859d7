package gateway

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	ProviderAnthropic        = "anthropic"
	DefaultAnthropicModel    = "claude-sonnet-4-20250514"
	defaultAnthropicMaxToken = 4096
)

// AnthropicGateway talks to the Anthropic messages API. The leading system message is sent
// as the system parameter.
type AnthropicGateway struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	BaseURL     string
}

var _ Gateway = (*AnthropicGateway)(nil)

func NewAnthropicGateway(model string, temperature float64, baseURL string) *AnthropicGateway {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicGateway{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   defaultAnthropicMaxToken,
		BaseURL:     baseURL,
	}
}

// MakeMessageParams converts the conversation into Anthropic request parameters.
func (g *AnthropicGateway) MakeMessageParams(messages conversation.Conversation) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.Model),
		MaxTokens:   g.MaxTokens,
		Temperature: anthropic.Float(g.Temperature),
	}

	for _, m := range messages {
		switch m.Role {
		case conversation.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case conversation.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case conversation.RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	return params
}

func (g *AnthropicGateway) Complete(ctx context.Context, messages conversation.Conversation, credential string) (string, error) {
	options := []option.RequestOption{
		option.WithAPIKey(credential),
		option.WithMaxRetries(0),
	}
	if g.BaseURL != "" {
		options = append(options, option.WithBaseURL(g.BaseURL))
	}
	client := anthropic.NewClient(options...)

	params := g.MakeMessageParams(messages)
	log.Debug().
		Str("model", g.Model).
		Int("num_messages", len(params.Messages)).
		Msg("Anthropic completion request")

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		gerr := classifyAnthropicError(ctx, err)
		log.Warn().Err(err).Str("kind", string(gerr.Kind)).Msg("Anthropic completion failed")
		return "", gerr
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &Error{
			Kind:     ErrorKindEmptyResponse,
			Provider: ProviderAnthropic,
			Err:      errors.New("no text blocks in response"),
		}
	}

	log.Debug().
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Str("stop_reason", string(resp.StopReason)).
		Msg("Anthropic completion done")

	return sb.String(), nil
}

func classifyAnthropicError(ctx context.Context, err error) *Error {
	if gerr := classifyContextErr(ctx, ProviderAnthropic, err); gerr != nil {
		return gerr
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &Error{
			Kind:       KindFromStatus(apiErr.StatusCode),
			Provider:   ProviderAnthropic,
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}

	return &Error{Kind: ErrorKindTransport, Provider: ProviderAnthropic, Err: err}
}
