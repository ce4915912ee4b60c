package adapters

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicCompleter(apiKey, model string) *AnthropicCompleter {
	return &AnthropicCompleter{
		client: anthropic.NewClient(apiKey),
		model:  model,
	}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	temperature := req.Temperature
	mreq := anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{{
			Role:    anthropic.RoleUser,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(flattenPrompt(req))},
		}},
		MaxTokens:   maxTokensOr(req.MaxTokens, 1024),
		Temperature: &temperature,
	}
	if req.System != "" {
		mreq.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: req.System}}
	}

	resp, err := c.client.CreateMessages(ctx, mreq)
	if err != nil {
		return "", wrapErr("anthropic messages", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic messages: empty response: %w", models.ErrAdapterFailed)
	}
	return text.String(), nil
}
