package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported adapter providers.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

type Config struct {
	Port           int      `yaml:"port"`
	LogLevel       string   `yaml:"log_level"`
	CORSOrigins    []string `yaml:"cors_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	ArchiveDBPath  string   `yaml:"archive_db_path"`
	PromptsPath    string   `yaml:"prompts_path"`

	Interview InterviewConfig `yaml:"interview"`
	Adapters  AdapterConfig   `yaml:"adapters"`
	Blobs     BlobConfig      `yaml:"blobs"`
}

// InterviewConfig tunes question generation and evaluation.
type InterviewConfig struct {
	MaxQuestions        int           `yaml:"max_questions"`
	ScreenWindow        int           `yaml:"screen_window"`
	AudioWindow         int           `yaml:"audio_window"`
	KeywordLimit        int           `yaml:"keyword_limit"`
	MinAnswerWords      int           `yaml:"min_answer_words"`
	ClarifyConfidence   float64       `yaml:"clarify_confidence"`
	TopicCoverage       float64       `yaml:"topic_coverage"`
	QuestionTemperature float32       `yaml:"question_temperature"`
	QuestionMaxTokens   int           `yaml:"question_max_tokens"`
	EvalTemperature     float32       `yaml:"eval_temperature"`
	EvalMaxTokens       int           `yaml:"eval_max_tokens"`
	AdapterTimeout      time.Duration `yaml:"adapter_timeout"`
	RetryBackoff        time.Duration `yaml:"retry_backoff"`
}

// AdapterConfig selects and configures the external collaborators.
type AdapterConfig struct {
	Completion      string        `yaml:"completion"`
	CompletionModel string        `yaml:"completion_model"`
	Extractor       string        `yaml:"extractor"`
	ExtractorModel  string        `yaml:"extractor_model"`
	Transcriber     string        `yaml:"transcriber"`
	WhisperModel    string        `yaml:"whisper_model"`
	AnthropicAPIKey string        `yaml:"-"`
	OpenAIAPIKey    string        `yaml:"-"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	GeminiAPIKey    string        `yaml:"-"`
	OllamaBaseURL   string        `yaml:"ollama_base_url"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	OCRCacheSize    int           `yaml:"ocr_cache_size"`
	OCRCacheTTL     time.Duration `yaml:"ocr_cache_ttl"`
}

// BlobConfig points at the S3-compatible store for captured images.
// An empty endpoint keeps only content digests.
type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:           8750,
		LogLevel:       "info",
		CORSOrigins:    []string{"*"},
		MaxUploadBytes: 10 << 20,
		Interview: InterviewConfig{
			MaxQuestions:        10,
			ScreenWindow:        5,
			AudioWindow:         10,
			KeywordLimit:        10,
			MinAnswerWords:      10,
			ClarifyConfidence:   0.6,
			TopicCoverage:       0.5,
			QuestionTemperature: 0.7,
			QuestionMaxTokens:   500,
			EvalTemperature:     0.3,
			EvalMaxTokens:       1500,
			AdapterTimeout:      30 * time.Second,
			RetryBackoff:        500 * time.Millisecond,
		},
		Adapters: AdapterConfig{
			Completion:      ProviderAnthropic,
			CompletionModel: "claude-3-5-sonnet-20241022",
			Extractor:       ProviderGemini,
			ExtractorModel:  "gemini-2.5-flash",
			Transcriber:     ProviderOpenAI,
			WhisperModel:    "whisper-1",
			OllamaBaseURL:   "http://localhost:11434",
			RateLimitRPS:    2,
			RateLimitBurst:  4,
			OCRCacheSize:    256,
			OCRCacheTTL:     30 * time.Minute,
		},
		Blobs: BlobConfig{
			Bucket: "interview-captures",
			Region: "us-east-1",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// INTERVIEWER_CONFIG, and environment variables, in increasing precedence.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("INTERVIEWER_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envInt("PORT", c.Port)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.CORSOrigins = envList("CORS_ORIGINS", c.CORSOrigins)
	c.MaxUploadBytes = int64(envInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.ArchiveDBPath = envStr("ARCHIVE_DB_PATH", c.ArchiveDBPath)
	c.PromptsPath = envStr("PROMPTS_PATH", c.PromptsPath)

	iv := &c.Interview
	iv.MaxQuestions = envInt("MAX_QUESTIONS", iv.MaxQuestions)
	iv.ScreenWindow = envInt("SCREEN_WINDOW", iv.ScreenWindow)
	iv.AudioWindow = envInt("AUDIO_WINDOW", iv.AudioWindow)
	iv.KeywordLimit = envInt("KEYWORD_LIMIT", iv.KeywordLimit)
	iv.MinAnswerWords = envInt("MIN_ANSWER_WORDS", iv.MinAnswerWords)
	iv.ClarifyConfidence = envFloat("CLARIFY_CONFIDENCE", iv.ClarifyConfidence)
	iv.TopicCoverage = envFloat("TOPIC_COVERAGE", iv.TopicCoverage)
	iv.QuestionTemperature = float32(envFloat("QUESTION_TEMPERATURE", float64(iv.QuestionTemperature)))
	iv.QuestionMaxTokens = envInt("QUESTION_MAX_TOKENS", iv.QuestionMaxTokens)
	iv.EvalTemperature = float32(envFloat("EVAL_TEMPERATURE", float64(iv.EvalTemperature)))
	iv.EvalMaxTokens = envInt("EVAL_MAX_TOKENS", iv.EvalMaxTokens)
	iv.AdapterTimeout = envDuration("ADAPTER_TIMEOUT", iv.AdapterTimeout)
	iv.RetryBackoff = envDuration("RETRY_BACKOFF", iv.RetryBackoff)

	ad := &c.Adapters
	ad.Completion = strings.ToLower(envStr("COMPLETION_PROVIDER", ad.Completion))
	ad.CompletionModel = envStr("COMPLETION_MODEL", ad.CompletionModel)
	ad.Extractor = strings.ToLower(envStr("EXTRACTOR_PROVIDER", ad.Extractor))
	ad.ExtractorModel = envStr("EXTRACTOR_MODEL", ad.ExtractorModel)
	ad.Transcriber = strings.ToLower(envStr("TRANSCRIBER_PROVIDER", ad.Transcriber))
	ad.WhisperModel = envStr("WHISPER_MODEL", ad.WhisperModel)
	ad.AnthropicAPIKey = envStr("ANTHROPIC_API_KEY", ad.AnthropicAPIKey)
	ad.OpenAIAPIKey = envStr("OPENAI_API_KEY", ad.OpenAIAPIKey)
	ad.OpenAIBaseURL = envStr("OPENAI_BASE_URL", ad.OpenAIBaseURL)
	ad.GeminiAPIKey = envStr("GEMINI_API_KEY", ad.GeminiAPIKey)
	ad.OllamaBaseURL = envStr("OLLAMA_BASE_URL", ad.OllamaBaseURL)
	ad.RateLimitRPS = envFloat("COMPLETION_RPS", ad.RateLimitRPS)
	ad.RateLimitBurst = envInt("COMPLETION_BURST", ad.RateLimitBurst)
	ad.OCRCacheSize = envInt("OCR_CACHE_SIZE", ad.OCRCacheSize)
	ad.OCRCacheTTL = envDuration("OCR_CACHE_TTL", ad.OCRCacheTTL)

	b := &c.Blobs
	b.Endpoint = envStr("BLOB_ENDPOINT", b.Endpoint)
	b.Bucket = envStr("BLOB_BUCKET", b.Bucket)
	b.Region = envStr("BLOB_REGION", b.Region)
	b.UseSSL = envBool("BLOB_USE_SSL", b.UseSSL)
	b.AccessKey = envStr("BLOB_ACCESS_KEY", b.AccessKey)
	b.SecretKey = envStr("BLOB_SECRET_KEY", b.SecretKey)
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}

	iv := c.Interview
	if iv.MaxQuestions < 1 {
		return fmt.Errorf("MAX_QUESTIONS must be positive, got %d", iv.MaxQuestions)
	}
	if iv.ScreenWindow < 1 || iv.AudioWindow < 1 {
		return fmt.Errorf("SCREEN_WINDOW and AUDIO_WINDOW must be positive, got %d and %d", iv.ScreenWindow, iv.AudioWindow)
	}
	if iv.ClarifyConfidence < 0 || iv.ClarifyConfidence > 1 {
		return fmt.Errorf("CLARIFY_CONFIDENCE must be within [0,1], got %f", iv.ClarifyConfidence)
	}
	if iv.TopicCoverage < 0 || iv.TopicCoverage > 1 {
		return fmt.Errorf("TOPIC_COVERAGE must be within [0,1], got %f", iv.TopicCoverage)
	}
	if iv.AdapterTimeout <= 0 {
		return fmt.Errorf("ADAPTER_TIMEOUT must be positive, got %s", iv.AdapterTimeout)
	}

	ad := c.Adapters
	if !oneOf(ad.Completion, ProviderNone, ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderOllama) {
		return fmt.Errorf("COMPLETION_PROVIDER %q is not supported", ad.Completion)
	}
	if !oneOf(ad.Extractor, ProviderNone, ProviderGemini) {
		return fmt.Errorf("EXTRACTOR_PROVIDER %q is not supported", ad.Extractor)
	}
	if !oneOf(ad.Transcriber, ProviderNone, ProviderOpenAI) {
		return fmt.Errorf("TRANSCRIBER_PROVIDER %q is not supported", ad.Transcriber)
	}
	if ad.RateLimitRPS < 0 {
		return fmt.Errorf("COMPLETION_RPS must not be negative, got %f", ad.RateLimitRPS)
	}
	if c.Blobs.Endpoint != "" && c.Blobs.Bucket == "" {
		return fmt.Errorf("BLOB_BUCKET must not be empty when BLOB_ENDPOINT is set")
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		var out []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
