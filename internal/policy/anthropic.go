package policy

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicClient implements ModelClient over the Claude Messages API. A
// client constructed without an API key stays in the registry but reports
// unavailable, so every decide call for its policy type takes the fallback.
type AnthropicClient struct {
	client *sdk.Client
	model  string
}

// NewAnthropicClient builds a Claude-backed model client. Returns an
// unavailable client when apiKey is empty.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = defaultAnthropicModel
	}
	c := &AnthropicClient{model: model}
	if apiKey != "" {
		ac := sdk.NewClient(option.WithAPIKey(apiKey))
		c.client = &ac
	}
	return c
}

// Available reports whether an API key was configured.
func (c *AnthropicClient) Available() bool { return c.client != nil }

// Complete issues a non-streaming Messages call and returns the joined text
// content.
func (c *AnthropicClient) Complete(ctx context.Context, system, user string, maxTokens int) (RawResult, error) {
	if c.client == nil {
		return RawResult{}, fmt.Errorf("anthropic client not configured")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return RawResult{}, fmt.Errorf("anthropic messages.new: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return RawResult{
		Response:     b.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
