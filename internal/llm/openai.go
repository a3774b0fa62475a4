package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/ternarybob/finagent/internal/common"
)

// GetOpenAIClient returns an OpenAI client, creating one if necessary
func (f *ProviderFactory) GetOpenAIClient() (*openai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openaiClient != nil {
		return f.openaiClient, nil
	}
	if f.openaiConfig.APIKey == "" {
		return nil, fmt.Errorf("%w: openai (set OPENAI_API_KEY or openai.api_key)", ErrNoAPIKey)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(f.openaiConfig.APIKey),
		option.WithRequestTimeout(common.ParseDurationOr(f.openaiConfig.Timeout, defaultTimeout)),
	}
	if f.openaiConfig.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(f.openaiConfig.BaseURL))
	}

	client := openai.NewClient(opts...)
	f.openaiClient = &client
	return f.openaiClient, nil
}

// generateWithOpenAI generates content using the chat completions API
func (f *ProviderFactory) generateWithOpenAI(ctx context.Context, request *ContentRequest, model string) (string, error) {
	client, err := f.GetOpenAIClient()
	if err != nil {
		return "", err
	}

	conversation, systemText, err := splitSystem(request)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(conversation)+1)
	if systemText != "" {
		messages = append(messages, openai.SystemMessage(systemText))
	}
	for _, msg := range conversation {
		if msg.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(msg.Content))
			continue
		}
		messages = append(messages, openai.UserMessage(msg.Content))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: param.NewOpt(float64(f.temperature(request, f.openaiConfig.Temperature))),
	}
	if request.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(request.MaxTokens))
	}

	var resp *openai.ChatCompletion
	err = f.withRetry(ctx, ProviderOpenAI, func() error {
		var callErr error
		resp, callErr = client.Chat.Completions.New(ctx, params)
		return callErr
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}
