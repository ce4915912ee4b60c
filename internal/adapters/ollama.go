package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// OllamaCompleter generates completions with a local Ollama server.
type OllamaCompleter struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaCompleter(baseURL, model string) *OllamaCompleter {
	return &OllamaCompleter{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client: &http.Client{
			Timeout: 120 * time.Second, // LLM generation can be slow
		},
	}
}

// ollamaRequest is the request body for Ollama /api/generate.
type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaResponse is the response body from Ollama /api/generate.
type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *OllamaCompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	reqBody := ollamaRequest{
		Model:  c.model,
		System: req.System,
		Prompt: flattenPrompt(req),
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if req.JSON {
		reqBody.Format = "json"
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ollama request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(hreq)
	if err != nil {
		return "", wrapErr("ollama generate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned %d: %s: %w", resp.StatusCode, string(respBody), models.ErrAdapterFailed)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", wrapErr("decode ollama response", err)
	}
	if strings.TrimSpace(ollamaResp.Response) == "" {
		return "", fmt.Errorf("empty response from ollama: %w", models.ErrAdapterFailed)
	}
	return strings.TrimSpace(ollamaResp.Response), nil
}

// HealthCheck verifies Ollama is reachable.
func (c *OllamaCompleter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check: status %d", resp.StatusCode)
	}
	return nil
}
