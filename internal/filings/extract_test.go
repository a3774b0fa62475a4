package filings

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/models"
)

var riskText = strings.Repeat("Our business is subject to many risks. ", 10)

var testFiling = `<html><head><title>10-K</title><style>p {color: red}</style></head><body>
<table>
  <tr><td>Item 1A.</td><td>Risk Factors</td><td>12</td></tr>
  <tr><td>Item 7.</td><td>Management&#8217;s Discussion and Analysis</td><td>30</td></tr>
</table>
<div><span style="font-weight:bold">ITEM 1A.  RISK
  FACTORS</span></div>
<p>` + riskText + `</p>
<p>Competition is <b>intense</b>.</p>
<div><b>Item 1B. Unresolved Staff Comments</b></div>
<p>None.</p>
<div><b>Item 7. Management’s Discussion and Analysis</b></div>
<p>Revenue grew.</p>
<ul><li>Services up 10%</li></ul>
</body></html>`

func TestExtract(t *testing.T) {
	sections := Extract(testFiling, []string{
		"Item 1A. Risk Factors",
		"Item 7. Management's Discussion and Analysis",
		"Item 9. Changes in Accountants",
	})

	require.Len(t, sections, 2)

	risk := sections["Item 1A. Risk Factors"]
	assert.Contains(t, risk, "Our business is subject to many risks.")
	assert.Contains(t, risk, "Competition is intense.")
	assert.Contains(t, risk, "Item 1B. Unresolved Staff Comments\nNone.", "unrequested headings do not end a section")
	assert.NotContains(t, risk, "Revenue grew.", "extraction stops at the next requested section")

	mdna := sections["Item 7. Management's Discussion and Analysis"]
	assert.Equal(t, "Revenue grew.\nServices up 10%", mdna)

	_, ok := sections["Item 9. Changes in Accountants"]
	assert.False(t, ok)
}

func TestExtract_PlainText(t *testing.T) {
	doc := "ANNUAL REPORT\n\nItem 1. Business\nWe make widgets.\n\nWe sell widgets.\nItem 2. Properties\nA factory."
	sections := Extract(doc, []string{"item 1. business"})
	assert.Equal(t, "We make widgets.\nWe sell widgets.\nItem 2. Properties\nA factory.", sections["item 1. business"])

	sections = Extract(doc, []string{"Item 1. Business", "Item 2. Properties"})
	assert.Equal(t, "We make widgets.\nWe sell widgets.", sections["Item 1. Business"])
	assert.Equal(t, "A factory.", sections["Item 2. Properties"])
}

func TestExtract_NameWithoutItemLabel(t *testing.T) {
	sections := Extract(testFiling, []string{"Risk Factors", "Management's Discussion and Analysis"})

	require.Len(t, sections, 2)
	assert.Contains(t, sections["Risk Factors"], "Competition is intense.")
	assert.Equal(t, "Revenue grew.\nServices up 10%", sections["Management's Discussion and Analysis"])
}

func TestExtract_SkipsContentsEntry(t *testing.T) {
	sections := Extract(testFiling, []string{"Item 7. Management's Discussion and Analysis"})
	assert.Equal(t, "Revenue grew.\nServices up 10%", sections["Item 7. Management's Discussion and Analysis"])
}

func TestExtract_NothingFound(t *testing.T) {
	assert.Empty(t, Extract("<html><body><p>Hello</p></body></html>", []string{"Item 1A. Risk Factors"}))
	assert.Empty(t, Extract("", DefaultSections))
}

func TestSectionPattern(t *testing.T) {
	p := SectionPattern("Item 7. Management's Discussion")
	assert.True(t, p.MatchString("ITEM 7.MANAGEMENT’S   DISCUSSION and analysis"))
	assert.True(t, p.MatchString("  item 7. management's discussion"))
	assert.False(t, p.MatchString("See Item 7. Management's Discussion"))

	bare := SectionPattern("Risk Factors")
	assert.True(t, bare.MatchString("Item 1A. Risk Factors"))
	assert.True(t, bare.MatchString("RISK FACTORS"))
	assert.False(t, bare.MatchString("Summary of Risk Factors"))
}

type fakeSource struct {
	filing *models.Filing
	doc    string
	err    error
}

func (f *fakeSource) Resolve(_ context.Context, ticker string) (models.Company, error) {
	return models.Company{CIK: "0000320193", Ticker: ticker}, nil
}

func (f *fakeSource) LatestFiling(_ context.Context, cik, form string) (*models.Filing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.filing, nil
}

func (f *fakeSource) FetchDocument(_ context.Context, _ *models.Filing) (string, error) {
	return f.doc, nil
}

func TestService_ExtractLatest(t *testing.T) {
	source := &fakeSource{
		filing: &models.Filing{CIK: "0000320193", Form: "10-K", AccessionNumber: "0000320193-23-000106"},
		doc:    testFiling,
	}
	service := NewService(source, arbor.NewLogger())

	filing, sections, err := service.ExtractLatest(context.Background(), "AAPL", "", []string{"Item 7. Management's Discussion and Analysis"})
	require.NoError(t, err)
	assert.Equal(t, "10-K", filing.Form)
	require.Len(t, sections, 1)
	assert.Equal(t, "Revenue grew.\nServices up 10%", sections[0].Text)
	assert.Contains(t, sections[0].Markdown, "Revenue grew.")
	assert.Contains(t, sections[0].Markdown, "Services up 10%")
}

func TestService_ExtractLatest_NoFiling(t *testing.T) {
	service := NewService(&fakeSource{err: errors.New("filing not found")}, arbor.NewLogger())
	_, _, err := service.ExtractLatest(context.Background(), "AAPL", "10-K", nil)
	assert.Error(t, err)
}
