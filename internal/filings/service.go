package filings

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/models"
)

// Source is the part of the EDGAR client used to locate and download filings
type Source interface {
	Resolve(ctx context.Context, ticker string) (models.Company, error)
	LatestFiling(ctx context.Context, cik, form string) (*models.Filing, error)
	FetchDocument(ctx context.Context, filing *models.Filing) (string, error)
}

// Service downloads the latest filing of a company and extracts its sections
type Service struct {
	source Source
	logger arbor.ILogger
}

// NewService creates a filings Service
func NewService(source Source, logger arbor.ILogger) *Service {
	return &Service{source: source, logger: logger}
}

// ExtractLatest downloads the most recent filing of form for ticker and extracts
// sectionNames (DefaultSections when empty). Each section carries its plain
// text and a Markdown rendering of its source HTML.
func (s *Service) ExtractLatest(ctx context.Context, ticker, form string, sectionNames []string) (*models.Filing, []models.FilingSection, error) {
	if form == "" {
		form = "10-K"
	}
	if len(sectionNames) == 0 {
		sectionNames = DefaultSections
	}

	company, err := s.source.Resolve(ctx, ticker)
	if err != nil {
		return nil, nil, err
	}

	filing, err := s.source.LatestFiling(ctx, company.CIK, form)
	if err != nil {
		return nil, nil, err
	}

	document, err := s.source.FetchDocument(ctx, filing)
	if err != nil {
		return filing, nil, fmt.Errorf("failed to download %s %s: %w", filing.Form, filing.AccessionNumber, err)
	}

	found := extractSections(document, sectionNames)
	converter := md.NewConverter("", true, nil)

	sections := make([]models.FilingSection, 0, len(found))
	for _, f := range found {
		section := models.FilingSection{Name: f.name, Text: f.text}

		var htmlBuilder strings.Builder
		for _, b := range f.blocks {
			htmlBuilder.WriteString(b.html)
			htmlBuilder.WriteString("\n")
		}
		markdown, err := converter.ConvertString(htmlBuilder.String())
		if err != nil {
			s.logger.Warn().Str("section", f.name).Err(err).Msg("Failed to convert section to markdown")
		} else {
			section.Markdown = strings.TrimSpace(markdown)
		}
		sections = append(sections, section)
	}

	s.logger.Info().
		Str("ticker", company.Ticker).
		Str("cik", company.CIK).
		Str("form", filing.Form).
		Str("accession", filing.AccessionNumber).
		Int("requested", len(sectionNames)).
		Int("found", len(sections)).
		Msg("Extracted filing sections")

	return filing, sections, nil
}
