package adapters

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// OpenAICompleter calls an OpenAI-compatible chat completion endpoint.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	return &OpenAICompleter{client: newOpenAIClient(apiKey, baseURL), model: model}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: flattenPrompt(req)})

	temperature := req.Temperature
	creq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   maxTokensOr(req.MaxTokens, 1024),
		Temperature: &temperature,
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", wrapErr("openai chat", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai chat: empty response: %w", models.ErrAdapterFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

// WhisperTranscriber transcribes audio with the OpenAI transcription endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

func NewWhisperTranscriber(apiKey, baseURL, model string) *WhisperTranscriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{client: newOpenAIClient(apiKey, baseURL), model: model}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte) (*Transcription, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "segment.webm",
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: "en",
	})
	if err != nil {
		return nil, wrapErr("whisper transcription", err)
	}

	confidence := 0.0
	if len(resp.Segments) > 0 {
		sum := 0.0
		for _, seg := range resp.Segments {
			sum += math.Exp(seg.AvgLogprob)
		}
		confidence = clamp01(sum / float64(len(resp.Segments)))
	} else if strings.TrimSpace(resp.Text) != "" {
		confidence = 1
	}

	return &Transcription{
		Text:       strings.TrimSpace(resp.Text),
		Confidence: confidence,
		Duration:   resp.Duration,
	}, nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
