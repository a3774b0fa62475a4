// Package matcher maps a company's reported XBRL concepts onto the fixed
// template vocabulary used by the ratio engine.
package matcher

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/models"
)

// Oracle picks the company concept that best matches a template concept.
// It returns models.NoMatch, or an empty string, when nothing fits.
type Oracle interface {
	BestMatch(ctx context.Context, candidates []string, template string) (string, error)
}

// Matcher asks an Oracle once per template concept
type Matcher struct {
	oracle Oracle
	logger arbor.ILogger
}

// NewMatcher creates a Matcher around oracle
func NewMatcher(oracle Oracle, logger arbor.ILogger) *Matcher {
	return &Matcher{oracle: oracle, logger: logger}
}

// Match maps every template concept to a company concept. A failed oracle
// call marks that template models.MatchFailed; an empty answer or one that is
// not a reported concept marks it models.NoMatch. The batch never aborts.
func (m *Matcher) Match(ctx context.Context, companyConcepts []string, templates []string) models.ConceptMap {
	result := make(models.ConceptMap, len(templates))

	byFold := make(map[string]string, len(companyConcepts))
	for _, c := range companyConcepts {
		byFold[strings.ToLower(c)] = c
	}

	for _, template := range templates {
		if len(companyConcepts) == 0 {
			result[template] = models.NoMatch
			continue
		}
		if err := ctx.Err(); err != nil {
			result[template] = models.MatchFailed
			continue
		}

		answer, err := m.oracle.BestMatch(ctx, companyConcepts, template)
		if err != nil {
			m.logger.Warn().
				Str("template", template).
				Err(err).
				Msg("Concept matching failed")
			result[template] = models.MatchFailed
			continue
		}

		answer = cleanAnswer(answer)
		matched, ok := byFold[strings.ToLower(answer)]
		switch {
		case answer == "" || answer == models.NoMatch:
			result[template] = models.NoMatch
		case !ok:
			m.logger.Debug().
				Str("template", template).
				Str("answer", answer).
				Msg("Oracle answer is not a reported concept")
			result[template] = models.NoMatch
		default:
			result[template] = matched
		}
	}

	m.logger.Info().
		Int("templates", len(templates)).
		Int("matched", result.MatchedCount()).
		Msg("Concept matching complete")

	return result
}

// cleanAnswer strips the decoration models tend to add around a bare name
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == models.NoMatch || s == models.MatchFailed {
		return s
	}
	s = strings.Trim(s, "`'\" .")
	return strings.TrimPrefix(s, "us-gaap:")
}
