package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/finagent/internal/llm"
	"github.com/ternarybob/finagent/internal/models"
)

const (
	systemPrompt = "You are an expert assistant."

	matchPrompt = "You are a FINRA approved financial analyst with deep understanding of fundamental analysis. " +
		"You are an expert in financial filings and data analysis.\n\n" +
		"Given the following list of company-specific concepts extracted from EDGAR filings:\n%s\n\n" +
		"To do fundamental analysis, identify the company concept that best matches the standardized template concept: '%s'.\n\n" +
		"This company concept will then be used to calculate various financial metrics.\n" +
		"Respond with only the closest matching company concept. " +
		"Provide the exact concept name as it appears in the EDGAR filings without any extra words added."

	matchMaxTokens = 50
)

// LLMOracle asks a text model for the best match at temperature 0
type LLMOracle struct {
	generator llm.Generator
	model     string
}

// NewLLMOracle creates an oracle using generator. An empty model uses the
// default provider's model.
func NewLLMOracle(generator llm.Generator, model string) *LLMOracle {
	return &LLMOracle{generator: generator, model: model}
}

// BestMatch implements Oracle
func (o *LLMOracle) BestMatch(ctx context.Context, candidates []string, template string) (string, error) {
	prompt := fmt.Sprintf(matchPrompt, strings.Join(candidates, ", "), template)

	resp, err := o.generator.GenerateContent(ctx, &llm.ContentRequest{
		Model:             o.model,
		SystemInstruction: systemPrompt,
		Messages:          []llm.Message{{Role: "user", Content: prompt}},
		Temperature:       llm.Temperature(0),
		MaxTokens:         matchMaxTokens,
	})
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return models.NoMatch, nil
	}
	return answer, nil
}
