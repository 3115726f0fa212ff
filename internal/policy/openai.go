package policy

import (
	"context"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient implements ModelClient over the Chat Completions API. Like the
// Anthropic client, it degrades to unavailable when no key is configured.
type OpenAIClient struct {
	client *sdk.Client
	model  string
}

// NewOpenAIClient builds an OpenAI-backed model client. Returns an
// unavailable client when apiKey is empty.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	c := &OpenAIClient{model: model}
	if apiKey != "" {
		oc := sdk.NewClient(option.WithAPIKey(apiKey))
		c.client = &oc
	}
	return c
}

// Available reports whether an API key was configured.
func (c *OpenAIClient) Available() bool { return c.client != nil }

// Complete issues a chat completion and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, maxTokens int) (RawResult, error) {
	if c.client == nil {
		return RawResult{}, fmt.Errorf("openai client not configured")
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, sdk.SystemMessage(system))
	}
	messages = append(messages, sdk.UserMessage(user))

	resp, err := c.client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model:     sdk.ChatModel(c.model),
		Messages:  messages,
		MaxTokens: sdk.Int(int64(maxTokens)),
	})
	if err != nil {
		return RawResult{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return RawResult{}, fmt.Errorf("openai chat completion: empty choices")
	}
	return RawResult{
		Response:     resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}
