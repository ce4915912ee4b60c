package adapters

import (
	"context"
	"log/slog"

	"github.com/iammorganparry/clive/apps/interviewer/internal/config"
)

// Set is the collaborators the service runs with. Any member may be nil when
// its provider is disabled or missing credentials.
type Set struct {
	Completer   Completer
	Extractor   TextExtractor
	Transcriber Transcriber

	CompletionProvider  string
	ExtractorProvider   string
	TranscriberProvider string
}

// New builds the configured adapters. Providers without credentials are left
// unset and logged, so the service still starts and reports them as unavailable.
func New(ctx context.Context, cfg config.AdapterConfig, logger *slog.Logger) (*Set, error) {
	set := &Set{
		CompletionProvider:  cfg.Completion,
		ExtractorProvider:   cfg.Extractor,
		TranscriberProvider: cfg.Transcriber,
	}

	var completer Completer
	switch cfg.Completion {
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey != "" {
			completer = NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.CompletionModel)
		}
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey != "" {
			completer = NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.CompletionModel)
		}
	case config.ProviderGemini:
		if cfg.GeminiAPIKey != "" {
			g, err := NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.CompletionModel)
			if err != nil {
				return nil, err
			}
			completer = g
		}
	case config.ProviderOllama:
		completer = NewOllamaCompleter(cfg.OllamaBaseURL, cfg.CompletionModel)
	}
	if completer != nil {
		set.Completer = NewRateLimitedCompleter(completer, cfg.RateLimitRPS, cfg.RateLimitBurst)
	} else if cfg.Completion != config.ProviderNone {
		logger.Warn("completion provider missing credentials, question generation disabled", "provider", cfg.Completion)
	}

	if cfg.Extractor == config.ProviderGemini {
		if cfg.GeminiAPIKey != "" {
			g, err := NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.ExtractorModel)
			if err != nil {
				return nil, err
			}
			set.Extractor = NewCachedExtractor(g, cfg.OCRCacheSize, cfg.OCRCacheTTL)
		} else {
			logger.Warn("extractor provider missing credentials, screen analysis disabled", "provider", cfg.Extractor)
		}
	}

	if cfg.Transcriber == config.ProviderOpenAI {
		if cfg.OpenAIAPIKey != "" {
			set.Transcriber = NewWhisperTranscriber(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel)
		} else {
			logger.Warn("transcriber provider missing credentials, audio transcription disabled", "provider", cfg.Transcriber)
		}
	}

	return set, nil
}
