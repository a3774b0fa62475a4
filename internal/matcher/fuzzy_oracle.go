package matcher

import (
	"context"
	"strings"
	"unicode"

	"github.com/ternarybob/finagent/internal/models"
)

// FuzzyOracle matches without a network call: exact name first, then
// case-insensitive, then the best token overlap scoring at least MinScore.
// Ties go to the shorter, then alphabetically first, candidate.
type FuzzyOracle struct {
	MinScore float64
}

// NewFuzzyOracle creates a FuzzyOracle
func NewFuzzyOracle(minScore float64) *FuzzyOracle {
	return &FuzzyOracle{MinScore: minScore}
}

// BestMatch implements Oracle
func (o *FuzzyOracle) BestMatch(_ context.Context, candidates []string, template string) (string, error) {
	for _, c := range candidates {
		if c == template {
			return c, nil
		}
	}
	for _, c := range candidates {
		if strings.EqualFold(c, template) {
			return c, nil
		}
	}

	target := tokenize(template)
	best, bestScore := "", 0.0
	for _, c := range candidates {
		score := diceScore(target, tokenize(c))
		if score > bestScore ||
			(score == bestScore && best != "" && (len(c) < len(best) || (len(c) == len(best) && c < best))) {
			best, bestScore = c, score
		}
	}

	if best == "" || bestScore < o.MinScore {
		return models.NoMatch, nil
	}
	return best, nil
}

// tokenize splits a CamelCase concept name into lower case words
func tokenize(s string) []string {
	var (
		tokens  []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, strings.ToLower(string(current)))
			current = current[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return tokens
}

// diceScore is the Sørensen-Dice coefficient over token multisets
func diceScore(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	shared := 0
	for _, t := range b {
		if counts[t] > 0 {
			counts[t]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}
