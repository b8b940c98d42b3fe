package chat

import (
	"context"
	"fmt"

	"github.com/dkoval/workshop-labs/internal/domain"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider requests one assistant reply for a running transcript.
type Provider interface {
	Complete(ctx context.Context, system string, transcript []domain.ChatMessage) (string, error)
}

// ProviderFactory builds a Provider from a caller-supplied credential. The
// credential is held only by the resulting provider, in memory, for the
// lifetime of the chat session.
type ProviderFactory func(apiKey string) Provider

// OpenAIProvider implements Provider for OpenAI-compatible chat-completion
// APIs.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a provider. baseURL may be empty for the default
// endpoint; model must be set.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Factory returns a ProviderFactory bound to a base URL and model.
func Factory(baseURL, model string) ProviderFactory {
	return func(apiKey string) Provider {
		return NewOpenAIProvider(apiKey, baseURL, model)
	}
}

// Complete sends the transcript and returns the assistant message text.
func (p *OpenAIProvider) Complete(ctx context.Context, system string, transcript []domain.ChatMessage) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript)+1)
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	for _, m := range transcript {
		switch m.Role {
		case domain.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
