// Package llm routes content generation requests to Gemini, Claude or OpenAI.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v2"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/finagent/internal/common"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
	// ProviderOpenAI uses the OpenAI chat completions API
	ProviderOpenAI ProviderType = "openai"
)

// ErrNoAPIKey is returned when the selected provider has no API key configured
var ErrNoAPIKey = errors.New("no API key configured for provider")

// Message is one turn of a conversation
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// ContentRequest represents a provider-agnostic content generation request
type ContentRequest struct {
	Messages          []Message
	Model             string   // empty uses the default provider and its model
	Temperature       *float32 // nil uses the provider default
	MaxTokens         int
	SystemInstruction string
	JSON              bool // ask for a JSON object response where supported
}

// ContentResponse represents a provider-agnostic content generation response
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
}

// Generator generates content. ProviderFactory is the production implementation.
type Generator interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)
}

// Temperature returns a pointer for ContentRequest.Temperature
func Temperature(t float32) *float32 {
	return &t
}

// ProviderFactory creates and manages AI provider clients
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	openaiConfig *common.OpenAIConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger
	retry        *RetryConfig

	mu           sync.Mutex
	geminiClient *genai.Client
	claudeClient *anthropic.Client
	openaiClient *openai.Client
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *common.Config, logger arbor.ILogger) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig: &cfg.Gemini,
		claudeConfig: &cfg.Claude,
		openaiConfig: &cfg.OpenAI,
		llmConfig:    &cfg.LLM,
		logger:       logger,
		retry:        NewRetryConfig(cfg.LLM.MaxRetries),
	}
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" or "claude/..." -> Claude
// - "gemini-2.5-flash" or "gemini/..." -> Gemini
// - "gpt-4o-mini", "o3-mini" or "openai/..." -> OpenAI
// - Empty string -> uses default provider from config
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	return ProviderType(common.DetectLLMProvider(model, f.llmConfig.DefaultProvider))
}

// NormalizeModel removes provider prefix from model name if present
func (f *ProviderFactory) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/", "openai/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// GetDefaultModel returns the default model for a provider
func (f *ProviderFactory) GetDefaultModel(provider ProviderType) string {
	switch provider {
	case ProviderClaude:
		return f.claudeConfig.Model
	case ProviderGemini:
		return f.geminiConfig.Model
	default:
		return f.openaiConfig.Model
	}
}

// GenerateContent generates content using the appropriate provider based on model
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	provider := f.DetectProvider(request.Model)
	model := f.NormalizeModel(request.Model)
	if model == "" {
		model = f.GetDefaultModel(provider)
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("message_count", len(request.Messages)).
		Msg("Generating content with provider")

	var (
		text string
		err  error
	)
	switch provider {
	case ProviderClaude:
		text, err = f.generateWithClaude(ctx, request, model)
	case ProviderGemini:
		text, err = f.generateWithGemini(ctx, request, model)
	default:
		provider = ProviderOpenAI
		text, err = f.generateWithOpenAI(ctx, request, model)
	}
	if err != nil {
		return nil, err
	}

	return &ContentResponse{Text: text, Provider: provider, Model: model}, nil
}

// withRetry calls fn until it succeeds, the retry budget is spent or ctx ends.
// Only rate limit errors are retried.
func (f *ProviderFactory) withRetry(ctx context.Context, provider ProviderType, fn func() error) error {
	var err error
	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == f.retry.MaxRetries || !IsRateLimitError(err) {
			break
		}

		backoff := f.retry.CalculateBackoff(attempt, ExtractRetryDelay(err))
		f.logger.Warn().
			Str("provider", string(provider)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying rate limited LLM call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s API call failed: %w", provider, err)
}

func (f *ProviderFactory) temperature(request *ContentRequest, fallback float32) float32 {
	if request.Temperature != nil {
		return *request.Temperature
	}
	return fallback
}

// splitSystem separates system messages from the conversation. The request
// level instruction wins over a system message.
func splitSystem(request *ContentRequest) ([]Message, string, error) {
	system := request.SystemInstruction
	conversation := make([]Message, 0, len(request.Messages))
	hasUser := false
	for _, m := range request.Messages {
		switch m.Role {
		case "system":
			if system == "" {
				system = m.Content
			}
		case "assistant":
			conversation = append(conversation, m)
		default:
			hasUser = true
			conversation = append(conversation, Message{Role: "user", Content: m.Content})
		}
	}
	if !hasUser {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}
	return conversation, system, nil
}

// Close releases provider clients
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geminiClient = nil
	f.claudeClient = nil
	f.openaiClient = nil
	return nil
}
