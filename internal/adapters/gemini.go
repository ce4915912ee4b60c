package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

const extractPrompt = `Transcribe every piece of readable text in this screen capture from a live
project presentation. Preserve line breaks and code indentation. Output only the text,
with no commentary. If there is no readable text, output nothing.`

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return cli, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// GeminiCompleter calls the Gemini generateContent API.
type GeminiCompleter struct {
	cli   *genai.Client
	model string
}

func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	cli, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiCompleter{cli: cli, model: model}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	temperature := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokensOr(req.MaxTokens, 1024)),
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: flattenPrompt(req)}}}},
		cfg,
	)
	if err != nil {
		return "", wrapErr("gemini generate", err)
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini generate: empty response: %w", models.ErrAdapterFailed)
	}
	return text, nil
}

// GeminiExtractor reads screen text with a Gemini vision model.
type GeminiExtractor struct {
	cli   *genai.Client
	model string
}

func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	cli, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiExtractor{cli: cli, model: model}, nil
}

func (g *GeminiExtractor) Extract(ctx context.Context, image []byte) (*Extraction, error) {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("capture is %s, not an image: %w", mime, models.ErrBadRequest)
	}

	var temperature float32
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{
			{Text: extractPrompt},
			{InlineData: &genai.Blob{MIMEType: mime, Data: image}},
		}}},
		&genai.GenerateContentConfig{Temperature: &temperature},
	)
	if err != nil {
		return nil, wrapErr("gemini extract", err)
	}

	text := strings.TrimSpace(responseText(resp))
	return &Extraction{Text: text, Classification: Classify(text, imageWidth(image))}, nil
}
