package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderAzureOpenAI = "azure_openai"
	ProviderOllama      = "ollama"
)

type Config struct {
	APIPort  string
	LogLevel string

	MaxFileBytes       int64
	MaxClassifierChars int
	OCRTimeout         time.Duration
	ClassifierTimeout  time.Duration
	OCRMaxConcurrency  int
	PDFMaxPages        int

	ImageLegibilityMinChars  int
	ImageLegibilityMinTokens int
	TextLegibilityMinChars   int
	TextLegibilityMinTokens  int

	KnowledgeBasePath string

	AzureVisionEndpoint   string
	AzureVisionKey        string
	AzureVisionAPIVersion string

	ClassifierProvider    string
	AzureOpenAIEndpoint   string
	AzureOpenAIKey        string
	AzureOpenAIDeployment string
	AzureOpenAIAPIVersion string
	AzureOpenAIMaxTokens  int

	OllamaURL         string
	OllamaTextModel   string
	OllamaVisionModel string

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration
	APIValidateRequests bool
	APIShutdownTimeout  time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerEnabled      bool
	BreakerOpenTimeout  time.Duration

	MCPHTTPAddr string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		MaxFileBytes:       int64(mustEnvInt("MAX_FILE_BYTES", 15*1024*1024)),
		MaxClassifierChars: mustEnvInt("CLASSIFIER_MAX_CHARS", 12000),
		OCRTimeout:         mustEnvDuration("OCR_TIMEOUT", 30*time.Second),
		ClassifierTimeout:  mustEnvDuration("CLASSIFIER_TIMEOUT", 60*time.Second),
		OCRMaxConcurrency:  mustEnvInt("OCR_MAX_CONCURRENCY", 3),
		PDFMaxPages:        mustEnvInt("PDF_MAX_PAGES", 30),

		ImageLegibilityMinChars:  mustEnvInt("LEGIBILITY_IMAGE_MIN_CHARS", 80),
		ImageLegibilityMinTokens: mustEnvInt("LEGIBILITY_IMAGE_MIN_TOKENS", 10),
		TextLegibilityMinChars:   mustEnvInt("LEGIBILITY_TEXT_MIN_CHARS", 40),
		TextLegibilityMinTokens:  mustEnvInt("LEGIBILITY_TEXT_MIN_TOKENS", 5),

		KnowledgeBasePath: mustEnv("KNOWLEDGE_BASE_PATH", ""),

		AzureVisionEndpoint:   mustEnv("AZURE_CV_ENDPOINT", ""),
		AzureVisionKey:        mustEnv("AZURE_CV_KEY", ""),
		AzureVisionAPIVersion: mustEnv("AZURE_CV_API_VERSION", "2024-02-01"),

		ClassifierProvider:    strings.ToLower(mustEnv("CLASSIFIER_PROVIDER", ProviderAzureOpenAI)),
		AzureOpenAIEndpoint:   mustEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIKey:        mustEnv("AZURE_OPENAI_KEY", ""),
		AzureOpenAIDeployment: mustEnv("AZURE_OPENAI_DEPLOYMENT", ""),
		AzureOpenAIAPIVersion: mustEnv("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),
		AzureOpenAIMaxTokens:  mustEnvInt("AZURE_OPENAI_MAX_TOKENS", 300),

		OllamaURL:         mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaTextModel:   mustEnv("OLLAMA_TEXT_MODEL", "llama3.1:8b"),
		OllamaVisionModel: mustEnv("OLLAMA_VISION_MODEL", "llava:13b"),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 16),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),
		APIValidateRequests: mustEnvBool("API_VALIDATE_REQUESTS", true),
		APIShutdownTimeout:  mustEnvDuration("API_SHUTDOWN_TIMEOUT", 10*time.Second),

		RetryMaxAttempts:    mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: mustEnvDuration("RETRY_INITIAL_BACKOFF", 250*time.Millisecond),
		RetryMaxBackoff:     mustEnvDuration("RETRY_MAX_BACKOFF", 2*time.Second),
		BreakerEnabled:      mustEnvBool("BREAKER_ENABLED", true),
		BreakerOpenTimeout:  mustEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		MCPHTTPAddr: mustEnv("MCP_HTTP_ADDR", ""),
	}
}

func mustEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("45s") or bare seconds ("45").
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
