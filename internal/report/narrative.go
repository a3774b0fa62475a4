package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/go-playground/validator/v10"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/finagent/internal/llm"
	"github.com/ternarybob/finagent/internal/models"
)

const (
	narrativeMaxTokens   = 2048
	narrativeSourceChars = 1500
)

const narrativeSystem = `You are a financial analyst writing the opening of an equity research report.
Use only the data provided. Do not invent figures.
Reply with one JSON object and nothing else, with these fields:
  "summary": an executive summary of three to five sentences,
  "strengths", "weaknesses", "opportunities", "threats": arrays of short statements,
  "outlook": two or three sentences on the outlook.`

// NarrativeWriter asks an LLM for the executive summary and SWOT section
type NarrativeWriter struct {
	generator llm.Generator
	model     string
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewNarrativeWriter creates a narrative writer. An empty model uses the
// generator's default.
func NewNarrativeWriter(generator llm.Generator, model string, logger arbor.ILogger) *NarrativeWriter {
	return &NarrativeWriter{
		generator: generator,
		model:     model,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Write produces the narrative for in. Any failure is returned to the caller,
// which keeps the report without a narrative.
func (w *NarrativeWriter) Write(ctx context.Context, in Input) (*models.Narrative, error) {
	payload, err := json.MarshalIndent(narrativeData(in), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode narrative data: %w", err)
	}

	resp, err := w.generator.GenerateContent(ctx, &llm.ContentRequest{
		Model:             w.model,
		SystemInstruction: narrativeSystem,
		Messages: []llm.Message{
			{Role: "user", Content: "Analysis data for " + strings.ToUpper(in.Ticker) + ":\n\n" + string(payload)},
		},
		Temperature: llm.Temperature(0.2),
		MaxTokens:   narrativeMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("narrative generation failed: %w", err)
	}

	narrative, err := ParseNarrative(resp.Text)
	if err != nil {
		return nil, err
	}
	if err := w.validate.Struct(narrative); err != nil {
		return nil, fmt.Errorf("narrative is incomplete: %w", err)
	}

	w.logger.Debug().
		Str("ticker", in.Ticker).
		Str("model", resp.Model).
		Int("strengths", len(narrative.Strengths)).
		Msg("Narrative generated")
	return narrative, nil
}

// ParseNarrative decodes a model reply into a Narrative. Replies wrapped in
// code fences or with minor syntax errors are repaired; Hjson and YAML style
// replies are accepted as a last resort.
func ParseNarrative(reply string) (*models.Narrative, error) {
	reply = stripFences(reply)
	if reply == "" {
		return nil, errors.New("narrative reply is empty")
	}

	var firstErr error
	for _, decode := range []func(string) (*models.Narrative, error){decodeRepairedJSON, decodeHjson, decodeYAML} {
		narrative, err := decode(reply)
		if err == nil && !emptyNarrative(narrative) {
			return narrative, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no narrative fields found")
	}
	return nil, fmt.Errorf("narrative reply is not JSON: %w", firstErr)
}

func decodeRepairedJSON(reply string) (*models.Narrative, error) {
	repaired, err := jsonrepair.RepairJSON(reply)
	if err != nil {
		return nil, err
	}
	var narrative models.Narrative
	if err := json.Unmarshal([]byte(repaired), &narrative); err != nil {
		return nil, err
	}
	return &narrative, nil
}

func decodeHjson(reply string) (*models.Narrative, error) {
	var loose map[string]interface{}
	if err := hjson.Unmarshal([]byte(reply), &loose); err != nil {
		return nil, err
	}
	return fromMap(loose)
}

func decodeYAML(reply string) (*models.Narrative, error) {
	var loose map[string]interface{}
	if err := yaml.Unmarshal([]byte(reply), &loose); err != nil {
		return nil, err
	}
	return fromMap(loose)
}

// fromMap converts a loosely decoded object through JSON so the struct tags apply
func fromMap(loose map[string]interface{}) (*models.Narrative, error) {
	data, err := json.Marshal(loose)
	if err != nil {
		return nil, err
	}
	var narrative models.Narrative
	if err := json.Unmarshal(data, &narrative); err != nil {
		return nil, fmt.Errorf("narrative reply has unexpected shape: %w", err)
	}
	return &narrative, nil
}

func emptyNarrative(n *models.Narrative) bool {
	return n.Summary == "" && n.Outlook == "" &&
		len(n.Strengths)+len(n.Weaknesses)+len(n.Opportunities)+len(n.Threats) == 0
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

type narrativeSource struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Body    string `json:"body,omitempty"`
}

type narrativeInput struct {
	Company      *models.Company           `json:"company,omitempty"`
	LatestRatios *models.RatioRecord       `json:"latest_ratios,omitempty"`
	PriorRatios  *models.RatioRecord       `json:"prior_ratios,omitempty"`
	Technicals   *models.IndicatorSnapshot `json:"technicals,omitempty"`
	Filing       map[string]string         `json:"filing_excerpts,omitempty"`
	News         []narrativeSource         `json:"news,omitempty"`
}

// narrativeData selects the compact subset of in sent to the model
func narrativeData(in Input) narrativeInput {
	var data narrativeInput
	if f := in.Fundamentals; f != nil {
		company := f.Company
		data.Company = &company
		if n := len(f.Ratios); n > 0 {
			data.LatestRatios = &f.Ratios[n-1]
			if n > 1 {
				data.PriorRatios = &f.Ratios[n-2]
			}
		}
	}
	if in.Technicals != nil {
		snap := *in.Technicals
		snap.Charts = nil
		data.Technicals = &snap
	}
	if len(in.Sections) > 0 {
		data.Filing = make(map[string]string, len(in.Sections))
		for _, s := range in.Sections {
			data.Filing[s.Name] = excerpt(oneLine(s.Text), narrativeSourceChars)
		}
	}
	for _, s := range in.Sources {
		data.News = append(data.News, narrativeSource{Title: s.Title, Snippet: s.Snippet, Body: s.Body})
	}
	return data
}
