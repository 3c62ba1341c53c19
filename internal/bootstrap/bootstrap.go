package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/kirillkom/document-validator/internal/adapters/http"
	mcpadapter "github.com/kirillkom/document-validator/internal/adapters/mcp"
	"github.com/kirillkom/document-validator/internal/config"
	"github.com/kirillkom/document-validator/internal/core/ports"
	"github.com/kirillkom/document-validator/internal/core/usecase"
	"github.com/kirillkom/document-validator/internal/infrastructure/extractor"
	"github.com/kirillkom/document-validator/internal/infrastructure/llm"
	"github.com/kirillkom/document-validator/internal/infrastructure/llm/azureopenai"
	"github.com/kirillkom/document-validator/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-validator/internal/infrastructure/ocr/azurevision"
	"github.com/kirillkom/document-validator/internal/infrastructure/resilience"
	"github.com/kirillkom/document-validator/internal/knowledge"
	"github.com/kirillkom/document-validator/internal/observability/metrics"
)

const serviceName = "document-validator"

type App struct {
	Config config.Config
	Logger *slog.Logger

	Knowledge  *knowledge.KnowledgeBase
	Registry   *prometheus.Registry
	ValidateUC *usecase.ValidateDocumentUseCase
	MCPServer  *server.MCPServer
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kb, err := loadKnowledge(cfg.KnowledgeBasePath)
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg), resilience.WithLogger(logger))

	ocr, err := azurevision.New(azurevision.Config{
		Endpoint:   cfg.AzureVisionEndpoint,
		Key:        cfg.AzureVisionKey,
		APIVersion: cfg.AzureVisionAPIVersion,
		Executor:   executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init ocr client: %w", err)
	}

	parser, err := llm.NewResponseParser()
	if err != nil {
		return nil, fmt.Errorf("compile classifier response schema: %w", err)
	}
	classifier, err := newClassifier(cfg, kb, parser, executor)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(serviceName, registry)

	contentExtractor := extractor.New(pipelineMetrics.InstrumentOCR(ocr), extractor.Options{
		OCRTimeout:           cfg.OCRTimeout,
		OCRConcurrency:       cfg.OCRMaxConcurrency,
		MaxPDFPages:          cfg.PDFMaxPages,
		MaxWordInflatedBytes: 4 * cfg.MaxFileBytes,
		Logger:               logger,
	})

	validateUC, err := usecase.NewValidateDocumentUseCase(kb.RuleSet(), contentExtractor, classifier, usecase.Options{
		MaxFileBytes: cfg.MaxFileBytes,
		ImageLegibility: usecase.LegibilityThresholds{
			MinChars:  cfg.ImageLegibilityMinChars,
			MinTokens: cfg.ImageLegibilityMinTokens,
		},
		TextLegibility: usecase.LegibilityThresholds{
			MinChars:  cfg.TextLegibilityMinChars,
			MinTokens: cfg.TextLegibilityMinTokens,
		},
		MaxClassifierChars: cfg.MaxClassifierChars,
		ClassifierTimeout:  cfg.ClassifierTimeout,
		Observer:           pipelineMetrics,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init validate usecase: %w", err)
	}

	mcpServer := mcpadapter.NewServer(mcpadapter.NewTools(validateUC, validateUC, logger))

	logger.Info("bootstrap_ready",
		"kb_version", kb.Version,
		"categories", len(kb.Categories),
		"fast_rules", len(kb.FastRules),
		"classifier_provider", cfg.ClassifierProvider,
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Knowledge:  kb,
		Registry:   registry,
		ValidateUC: validateUC,
		MCPServer:  mcpServer,
	}, nil
}

// HTTPHandler assembles the REST surface with /metrics and /mcp mounted.
func (a *App) HTTPHandler() (http.Handler, error) {
	router, err := httpadapter.NewRouter(a.ValidateUC, a.ValidateUC, httpadapter.Options{
		Service:          "api",
		Logger:           a.Logger,
		Metrics:          metrics.NewHTTPServerMetrics("api", a.Registry),
		MCPHandler:       mcpadapter.NewHTTPHandler(a.MCPServer),
		RateLimitRPS:     a.Config.APIRateLimitRPS,
		RateLimitBurst:   a.Config.APIRateLimitBurst,
		MaxInFlight:      a.Config.APIMaxInFlight,
		BackpressureWait: a.Config.APIBackpressureWait,
		ValidateRequests: a.Config.APIValidateRequests,
		MaxFileBytes:     a.Config.MaxFileBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("init router: %w", err)
	}
	return router.Handler(), nil
}

func loadKnowledge(path string) (*knowledge.KnowledgeBase, error) {
	if path == "" {
		return knowledge.Default()
	}
	return knowledge.Load(path)
}

func newClassifier(
	cfg config.Config,
	prompts ports.PromptBuilder,
	parser *llm.ResponseParser,
	executor *resilience.Executor,
) (ports.SemanticClassifier, error) {
	switch cfg.ClassifierProvider {
	case config.ProviderAzureOpenAI:
		c, err := azureopenai.New(azureopenai.Config{
			Endpoint:   cfg.AzureOpenAIEndpoint,
			Key:        cfg.AzureOpenAIKey,
			Deployment: cfg.AzureOpenAIDeployment,
			APIVersion: cfg.AzureOpenAIAPIVersion,
			MaxTokens:  cfg.AzureOpenAIMaxTokens,
			Executor:   executor,
		}, prompts, parser)
		if err != nil {
			return nil, fmt.Errorf("init azure openai classifier: %w", err)
		}
		return c, nil
	case config.ProviderOllama:
		client := ollama.New(cfg.OllamaURL, executor)
		return ollama.NewClassifier(client, cfg.OllamaTextModel, cfg.OllamaVisionModel, prompts, parser), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.ClassifierProvider)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	if cfg.RetryMaxAttempts > 0 {
		rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialBackoff > 0 {
		rc.RetryInitialBackoff = cfg.RetryInitialBackoff
	}
	if cfg.RetryMaxBackoff > 0 {
		rc.RetryMaxBackoff = cfg.RetryMaxBackoff
	}
	if cfg.BreakerOpenTimeout > 0 {
		rc.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	}
	rc.BreakerEnabled = cfg.BreakerEnabled
	return rc
}
